package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"finsight/internal/domain/analysis"
	"finsight/internal/metrics"
	"finsight/pkg/errors"
)

func observe(op string, start time.Time, err *error) {
	metrics.RecordDBQuery("postgres", op, time.Since(start), *err)
}

// Compile-time check
var _ analysis.RunRepository = (*RunRepository)(nil)

// Schema creates the analysis_runs table when it does not exist
const Schema = `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id            UUID PRIMARY KEY,
		task_id       TEXT NOT NULL DEFAULT '',
		kind          TEXT NOT NULL,
		skill         TEXT NOT NULL,
		symbol        TEXT NOT NULL DEFAULT '',
		input_summary TEXT NOT NULL DEFAULT '',
		output        JSONB NOT NULL,
		warnings      TEXT[] NOT NULL DEFAULT '{}',
		report        TEXT NOT NULL DEFAULT '',
		started_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS analysis_runs_symbol_finished_idx ON analysis_runs (symbol, finished_at DESC);`

const defaultListLimit = 50

type runRow struct {
	ID           uuid.UUID      `db:"id"`
	TaskID       string         `db:"task_id"`
	Kind         string         `db:"kind"`
	Skill        string         `db:"skill"`
	Symbol       string         `db:"symbol"`
	InputSummary string         `db:"input_summary"`
	Output       []byte         `db:"output"`
	Warnings     pq.StringArray `db:"warnings"`
	Report       string         `db:"report"`
	StartedAt    time.Time      `db:"started_at"`
	FinishedAt   time.Time      `db:"finished_at"`
}

func (r runRow) toDomain() (*analysis.Run, error) {
	run := &analysis.Run{
		ID:           r.ID,
		TaskID:       r.TaskID,
		Kind:         r.Kind,
		Skill:        r.Skill,
		Symbol:       r.Symbol,
		InputSummary: r.InputSummary,
		Warnings:     []string(r.Warnings),
		Report:       r.Report,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
	if err := json.Unmarshal(r.Output, &run.Output); err != nil {
		return nil, errors.Wrapf(err, "failed to decode output of run %s", r.ID)
	}
	return run, nil
}

// RunRepository implements analysis.RunRepository using sqlx
type RunRepository struct {
	db DBTX
}

// NewRunRepository creates a new run repository
func NewRunRepository(db DBTX) *RunRepository {
	return &RunRepository{db: db}
}

// EnsureSchema creates the table and index
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return errors.Wrap(err, "failed to create analysis_runs")
	}
	return nil
}

// SaveRun inserts or replaces a run
func (r *RunRepository) SaveRun(ctx context.Context, run *analysis.Run) (err error) {
	defer observe("save_run", time.Now(), &err)

	if run == nil {
		return errors.NewValidationError("run", "required", nil)
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	output, err := json.Marshal(run.Output)
	if err != nil {
		return errors.Wrap(err, "failed to encode run output")
	}
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	query := `
		INSERT INTO analysis_runs (
			id, task_id, kind, skill, symbol, input_summary,
			output, warnings, report, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (id) DO UPDATE SET
			output = EXCLUDED.output,
			warnings = EXCLUDED.warnings,
			report = EXCLUDED.report,
			finished_at = EXCLUDED.finished_at`

	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.TaskID, run.Kind, run.Skill, strings.ToUpper(run.Symbol), run.InputSummary,
		output, pq.Array(warnings), run.Report, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save run %s", run.ID)
	}
	return nil
}

// LoadRun returns a run by id or errors.ErrNotFound
func (r *RunRepository) LoadRun(ctx context.Context, id uuid.UUID) (_ *analysis.Run, err error) {
	defer observe("load_run", time.Now(), &err)

	var row runRow

	query := `SELECT * FROM analysis_runs WHERE id = $1`

	err = r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("run", id.String())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load run %s", id)
	}
	return row.toDomain()
}

// ListRuns returns runs newest first
func (r *RunRepository) ListRuns(ctx context.Context, filter analysis.RunFilter) (_ []*analysis.Run, err error) {
	defer observe("list_runs", time.Now(), &err)

	query := `SELECT * FROM analysis_runs WHERE 1=1`
	args := make([]interface{}, 0, 5)

	if filter.Symbol != "" {
		args = append(args, strings.ToUpper(filter.Symbol))
		query += fmt.Sprintf(` AND symbol = $%d`, len(args))
	}
	if filter.Skill != "" {
		args = append(args, filter.Skill)
		query += fmt.Sprintf(` AND skill = $%d`, len(args))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(` AND finished_at >= $%d`, len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY finished_at DESC LIMIT $%d`, len(args))

	var rows []runRow
	if err = r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}

	runs := make([]*analysis.Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
