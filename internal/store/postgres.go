package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const pgRunColumns = `id, file_name, status, requires_review, overall_confidence, result, error, created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, file_name, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":      `UPDATE runs SET result = $1, status = $2, requires_review = $3, overall_confidence = $4, error = '', updated_at = $5 WHERE id = $6`,
	"fail_run":          `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT ` + pgRunColumns + ` FROM runs WHERE id = $1`,
	"clear_fields":      `DELETE FROM contract_fields WHERE run_id = $1`,
	"list_fields":       `SELECT category, name, label, value_type, value, confidence, source_page, source_quote FROM contract_fields WHERE run_id = $1 ORDER BY position`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	file_name          TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'queued',
	requires_review    BOOLEAN NOT NULL DEFAULT false,
	overall_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	result             JSONB,
	error              TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contract_fields (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	category     TEXT NOT NULL,
	name         TEXT NOT NULL,
	label        TEXT NOT NULL,
	value_type   TEXT NOT NULL,
	value        JSONB NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	source_page  INTEGER,
	source_quote TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_requires_review ON runs(requires_review) WHERE requires_review;
CREATE INDEX IF NOT EXISTS idx_contract_fields_name ON contract_fields(name);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, fileName string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx, preparedStatements["insert_run"],
		id, fileName, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		FileName:  fileName,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx, preparedStatements["update_run_status"],
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	return checkTag(tag, runID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.PipelineResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	fields := result.OrderedFields()
	rows := make([][]any, 0, len(fields))
	for i, f := range fields {
		row, err := fieldRow(runID, i, f)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, preparedStatements["complete_run"],
		resultJSON, string(model.RunStatusComplete), result.RequiresReview, result.OverallConfidence, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if err := checkTag(tag, runID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, preparedStatements["clear_fields"], runID); err != nil {
		return eris.Wrapf(err, "postgres: clear fields %s", runID)
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"contract_fields"}, fieldColumns, pgx.CopyFromRows(rows)); err != nil {
			return eris.Wrapf(err, "postgres: copy fields %s", runID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run result")
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx, preparedStatements["fail_run"],
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	return checkTag(tag, runID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, preparedStatements["get_run"], runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT ` + pgRunColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.RequiresReview != nil {
		query += fmt.Sprintf(` AND requires_review = $%d`, argIdx)
		args = append(args, *filter.RequiresReview)
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListFields(ctx context.Context, runID string) ([]model.ExtractedField, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_fields"], runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list fields %s", runID)
	}
	defer rows.Close()

	var fields []model.ExtractedField
	for rows.Next() {
		var (
			f                   model.ExtractedField
			category, valueType string
			value               []byte
			page                *int32
		)
		if err := rows.Scan(&category, &f.Name, &f.Label, &valueType, &value, &f.Confidence, &page, &f.SourceQuote); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field")
		}
		f.Category = model.Domain(category)
		f.ValueType = model.ValueType(valueType)
		if f.Value, err = decodeValue(string(value)); err != nil {
			return nil, err
		}
		if page != nil {
			p := int(*page)
			f.SourcePage = &p
		}
		fields = append(fields, f)
	}
	return fields, eris.Wrap(rows.Err(), "postgres: list fields iterate")
}

func checkTag(tag pgconn.CommandTag, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", id)
	}
	return nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var (
		r          model.Run
		status     string
		resultJSON []byte
	)
	if err := row.Scan(&r.ID, &r.FileName, &status, &r.RequiresReview, &r.OverallConfidence, &resultJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if resultJSON != nil {
		r.Result = &model.PipelineResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}
