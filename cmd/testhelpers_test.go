package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-cli/internal/cost"
	"github.com/sells-group/contract-cli/internal/document"
	"github.com/sells-group/contract-cli/internal/pipeline"
	"github.com/sells-group/contract-cli/internal/store"
)

const sampleContract = `REBATE AGREEMENT
Contract No. RA-2024-001

This Rebate Agreement is effective January 1, 2024 between Acme Pharma and
General Hospital. Manufacturer shall pay a rebate of 5% on net purchases,
payable quarterly.`

// newTestEnv builds a pipelineEnv backed by stub completions and a
// temporary SQLite store.
func newTestEnv(t *testing.T, pcfg pipeline.Config) *pipelineEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(&pipeline.StubCompleter{}, pcfg, nil, nil),
		Loader:   document.NewLoaderWith(nil),
		Costs:    cost.NewCalculator(cost.DefaultRates()),
		Model:    "claude-sonnet-4-5-20250929",
	}
}
