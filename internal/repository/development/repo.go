package development

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/faxe1008/dstylehub/internal/model"
)

// Record is a stored development row.
type Record struct {
	ID         uuid.UUID
	RunID      string
	Source     string
	Style      string // empty for baseline developments
	Output     string
	Status     model.Status
	Error      string
	Duration   time.Duration
	FinishedAt time.Time
}

// Summary aggregates the stored developments of one run.
type Summary struct {
	Developed int
	Failed    int
	Duration  time.Duration // total time spent in the development tool
}

// Summarize counts records by status and sums their durations.
func Summarize(records []Record) Summary {
	var s Summary
	for _, rec := range records {
		switch rec.Status {
		case model.StatusDeveloped:
			s.Developed++
		case model.StatusFailed:
			s.Failed++
		}
		s.Duration += rec.Duration
	}
	return s
}

// Repository stores the history of development runs in the database.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// newRecord flattens a development into the columns stored per row.
func newRecord(runID string, d model.Development) Record {
	r := Record{
		ID:         d.Job.ID,
		RunID:      runID,
		Source:     filepath.Base(d.Job.Source),
		Style:      d.Job.StyleName(),
		Output:     d.Filename(),
		Status:     d.Status,
		Error:      d.Error,
		Duration:   d.Duration,
		FinishedAt: d.FinishedAt,
	}
	if r.Error == "" && d.Err != nil {
		r.Error = d.Err.Error()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	return r
}

// Save inserts one development of the given run.
func (r *Repository) Save(ctx context.Context, runID string, d model.Development) error {
	query := `
		INSERT INTO developments (id, run_id, source, style, output, status, error, duration_ms, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	rec := newRecord(runID, d)

	_, err := r.db.ExecContext(
		ctx, query,
		rec.ID, rec.RunID, rec.Source, rec.Style, rec.Output,
		string(rec.Status), rec.Error, rec.Duration.Milliseconds(), rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save: failed to save development %s: %w", rec.ID, err)
	}

	return nil
}

// ListRun returns the developments of a run in insertion order.
func (r *Repository) ListRun(ctx context.Context, runID string) ([]Record, error) {
	query := `
		SELECT id, source, style, output, status, error, duration_ms, finished_at
		FROM developments
		WHERE run_id = $1
		ORDER BY finished_at, id
    `

	rows, err := r.db.Master.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list: failed to query run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec    Record
			status string
			ms     int64
		)
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Style, &rec.Output, &status, &rec.Error, &ms, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("list: failed to scan development: %w", err)
		}
		rec.RunID = runID
		rec.Status = model.Status(status)
		rec.Duration = time.Duration(ms) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	return records, nil
}
