// Package store persists extraction runs and their extracted fields.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-cli/internal/config"
	"github.com/sells-group/contract-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// defaultListLimit caps ListRuns when no limit is given.
const defaultListLimit = 100

// Store defines the persistence interface for extraction runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, fileName string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	// CompleteRun stores the result, marks the run complete and replaces
	// its extracted fields.
	CompleteRun(ctx context.Context, runID string, result *model.PipelineResult) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Fields
	ListFields(ctx context.Context, runID string) ([]model.ExtractedField, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// fieldColumns is the column order of contract_fields rows.
var fieldColumns = []string{"run_id", "position", "category", "name", "label", "value_type", "value", "confidence", "source_page", "source_quote"}

// fieldRow flattens f into fieldColumns order.
func fieldRow(runID string, pos int, f model.ExtractedField) ([]any, error) {
	value, err := json.Marshal(f.Value)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal value of %s", f.Name)
	}
	var page any
	if f.SourcePage != nil {
		page = *f.SourcePage
	}
	return []any{runID, pos, string(f.Category), f.Name, f.Label, string(f.ValueType), string(value), f.Confidence, page, f.SourceQuote}, nil
}

func decodeValue(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal field value")
	}
	return v, nil
}
