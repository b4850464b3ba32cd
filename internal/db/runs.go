package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/cover-letter-rag/internal/types"
)

const runColumns = `id, request_id, operation, company_name, job_role, experience_type, top_k,
	status, category, word_count, context_count, warnings, cache_hit, duration_ms, created_at`

// RecordRun stores the audit entry for a finished request.
// It satisfies pipeline.Recorder.
func (db *DB) RecordRun(ctx context.Context, run types.RunRecord) error {
	row, err := newRunRow(run)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO generation_runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		row.args()...,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.RequestID, err)
	}
	return nil
}

// GetRunByRequestID retrieves the audit entry for a request, or nil if none exists
func (db *DB) GetRunByRequestID(ctx context.Context, requestID string) (*Run, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM generation_runs WHERE request_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		requestID,
	)
	run, err := scanRun(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves recent runs, newest first
func (db *DB) ListRuns(ctx context.Context, filters RunFilters) ([]Run, error) {
	query, args := buildListRunsQuery(filters)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// CountByCategory summarizes outcomes across all stored runs
func (db *DB) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT status, COALESCE(category, ''), COUNT(*)
		 FROM generation_runs
		 GROUP BY status, category
		 ORDER BY status, COALESCE(category, '')`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Status, &c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan run count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// buildListRunsQuery assembles the filtered listing query and its positional arguments.
func buildListRunsQuery(filters RunFilters) (string, []any) {
	limit := filters.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + runColumns + ` FROM generation_runs WHERE 1=1`)
	args := []any{}
	argNum := 1

	if filters.Company != "" {
		fmt.Fprintf(&sb, " AND company_name ILIKE $%d", argNum)
		args = append(args, "%"+filters.Company+"%")
		argNum++
	}
	if filters.Status != "" {
		fmt.Fprintf(&sb, " AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.Category != "" {
		fmt.Fprintf(&sb, " AND category = $%d", argNum)
		args = append(args, filters.Category)
		argNum++
	}
	if !filters.Since.IsZero() {
		fmt.Fprintf(&sb, " AND created_at >= $%d", argNum)
		args = append(args, filters.Since)
		argNum++
	}

	fmt.Fprintf(&sb, " ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, limit)
	return sb.String(), args
}

// runRow is a RunRecord in column order.
type runRow struct {
	id       uuid.UUID
	record   types.RunRecord
	category *string
	warnings []byte
}

func newRunRow(run types.RunRecord) (runRow, error) {
	warnings := make([]string, 0, len(run.Warnings))
	for _, w := range run.Warnings {
		warnings = append(warnings, string(w))
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return runRow{}, fmt.Errorf("failed to marshal warnings: %w", err)
	}

	var category *string
	if run.Category != "" {
		c := string(run.Category)
		category = &c
	}
	return runRow{id: uuid.New(), record: run, category: category, warnings: warningsJSON}, nil
}

func (r runRow) args() []any {
	rec := r.record
	return []any{
		r.id, rec.RequestID, rec.Operation, rec.CompanyName, rec.JobRole, rec.ExperienceType, rec.TopK,
		string(rec.Status), r.category, rec.WordCount, rec.ContextCount, r.warnings, rec.CacheHit,
		rec.Duration.Milliseconds(), rec.CreatedAt,
	}
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	var warningsJSON []byte
	err := row.Scan(&run.ID, &run.RequestID, &run.Operation, &run.CompanyName, &run.JobRole,
		&run.ExperienceType, &run.TopK, &run.Status, &run.Category, &run.WordCount,
		&run.ContextCount, &warningsJSON, &run.CacheHit, &run.DurationMs, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.Warnings = []string{}
	if len(warningsJSON) > 0 {
		_ = json.Unmarshal(warningsJSON, &run.Warnings)
	}
	return &run, nil
}
