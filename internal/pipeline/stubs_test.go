package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-cli/internal/model"
)

func TestStubCompleter_DrivesPipeline(t *testing.T) {
	t.Parallel()

	res, err := testPipeline(&StubCompleter{}, Config{}).Run(context.Background(), amendedContract, "stub.txt")
	require.NoError(t, err)

	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, model.DocumentTypeRebateAgreement, res.Classification.DocumentType)
	assert.NotEmpty(t, res.Fields[model.DomainGeneral])
	assert.NotEmpty(t, res.Fields[model.DomainFinancial])
	assert.Positive(t, res.Usage.InputTokens)
	// The stub baseline still shows the pre-amendment 5% tier.
	assert.Len(t, res.Conflicts, 1)
}
