package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contract-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	file_name          TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'queued',
	requires_review    INTEGER NOT NULL DEFAULT 0,
	overall_confidence REAL NOT NULL DEFAULT 0,
	result             TEXT,
	error              TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS contract_fields (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	category     TEXT NOT NULL,
	name         TEXT NOT NULL,
	label        TEXT NOT NULL,
	value_type   TEXT NOT NULL,
	value        TEXT NOT NULL,
	confidence   REAL NOT NULL,
	source_page  INTEGER,
	source_quote TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_requires_review ON runs(requires_review);
CREATE INDEX IF NOT EXISTS idx_contract_fields_name ON contract_fields(name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, fileName string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, file_name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, fileName, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		FileName:  fileName,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.PipelineResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, requires_review = ?, overall_confidence = ?, error = '', updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusComplete), result.RequiresReview, result.OverallConfidence, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	if err := checkRowsAffected(res, runID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM contract_fields WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear fields %s", runID)
	}

	insert := `INSERT INTO contract_fields (` + strings.Join(fieldColumns, ", ") + `) VALUES (?` + strings.Repeat(", ?", len(fieldColumns)-1) + `)`
	for i, f := range result.OrderedFields() {
		row, err := fieldRow(runID, i, f)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert field %s", f.Name)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run result")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

const sqliteRunColumns = `id, file_name, status, requires_review, overall_confidence, result, error, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.RequiresReview != nil {
		query += ` AND requires_review = ?`
		args = append(args, *filter.RequiresReview)
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListFields(ctx context.Context, runID string) ([]model.ExtractedField, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, name, label, value_type, value, confidence, source_page, source_quote
		 FROM contract_fields WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list fields %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var fields []model.ExtractedField
	for rows.Next() {
		var (
			f     model.ExtractedField
			value string
			page  sql.NullInt64
		)
		if err := rows.Scan(&f.Category, &f.Name, &f.Label, &f.ValueType, &value, &f.Confidence, &page, &f.SourceQuote); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field")
		}
		if f.Value, err = decodeValue(value); err != nil {
			return nil, err
		}
		if page.Valid {
			p := int(page.Int64)
			f.SourcePage = &p
		}
		fields = append(fields, f)
	}
	return fields, eris.Wrap(rows.Err(), "sqlite: list fields iterate")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.FileName, &r.Status, &r.RequiresReview, &r.OverallConfidence, &resultJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.PipelineResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
