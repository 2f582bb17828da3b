package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rendersync/internal/domain"
	"rendersync/internal/infra"
	"rendersync/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a job repository over the given executor.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new job row in pending state with zero progress.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = domain.JobStatusPending
	job.Progress = 0
	row := r.sql.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID,
		job.UserID,
		job.OrgID,
		job.Provider,
		job.Engine,
		job.Prompt,
		job.Ratio,
		job.DurationSeconds,
		job.WithAudio,
		job.Quantity,
		job.Seed,
		job.PresetID,
		nullableJSON(job.Metadata),
		job.CostEstimateCents,
	)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return r.scanOne(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID))
}

// GetByExternalID resolves the job a webhook payload is targeting.
func (r *JobRepositoryPG) GetByExternalID(ctx context.Context, externalID string) (*domain.Job, error) {
	return r.scanOne(r.sql.QueryRow(ctx, sqlinline.QSelectJobByExternalID, externalID))
}

// Update applies a partial patch and returns the resulting row. The set-once
// and non-regression conditions live in the SQL itself so concurrent webhook
// and poll writers cannot produce a lost update.
func (r *JobRepositoryPG) Update(ctx context.Context, jobID string, patch domain.JobPatch) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateJob,
		jobID,
		patch.Status,
		patch.Progress,
		patch.ExternalJobID,
		patch.CostActualCents,
		patch.DurationActualSeconds,
		patch.OutputURL,
		patch.ThumbnailURL,
		patch.ArchiveURL,
		patch.Error,
	)
	return r.scanOne(row)
}

// InsertEvent appends one immutable audit record.
func (r *JobRepositoryPG) InsertEvent(ctx context.Context, event *domain.JobEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertJobEvent,
		event.ID,
		event.JobID,
		event.Status,
		event.Progress,
		event.Message,
		nullableJSON(event.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

// ListEvents returns the audit trail oldest first.
func (r *JobRepositoryPG) ListEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectJobEvents, jobID)
	if err != nil {
		return nil, fmt.Errorf("list job events: %w", err)
	}
	defer rows.Close()
	var events []domain.JobEvent
	for rows.Next() {
		var ev domain.JobEvent
		if err := rows.Scan(&ev.ID, &ev.JobID, &ev.Status, &ev.Progress, &ev.Message, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListPollable selects jobs eligible for the scheduled poll loop.
func (r *JobRepositoryPG) ListPollable(ctx context.Context, limit int) ([]domain.Job, error) {
	return r.list(ctx, sqlinline.QSelectPollableJobs, limit)
}

// ListArchivable selects completed jobs whose output has not been archived.
func (r *JobRepositoryPG) ListArchivable(ctx context.Context, limit int) ([]domain.Job, error) {
	return r.list(ctx, sqlinline.QSelectArchivableJobs, limit)
}

// ListByUser returns a user's jobs, newest first.
func (r *JobRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Job, error) {
	return r.list(ctx, sqlinline.QSelectJobsByUser, userID, limit)
}

func (r *JobRepositoryPG) list(ctx context.Context, query string, args ...any) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		var job domain.Job
		if err := scanJob(rows, &job); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepositoryPG) scanOne(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := scanJob(row, &job); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// scanJob scans the jobColumns projection shared by all job selects.
func scanJob(row pgx.Row, job *domain.Job) error {
	return row.Scan(
		&job.ID,
		&job.UserID,
		&job.OrgID,
		&job.ExternalJobID,
		&job.Provider,
		&job.Engine,
		&job.Prompt,
		&job.Ratio,
		&job.DurationSeconds,
		&job.WithAudio,
		&job.Quantity,
		&job.Seed,
		&job.PresetID,
		&job.Metadata,
		&job.Status,
		&job.Progress,
		&job.CostEstimateCents,
		&job.CostActualCents,
		&job.DurationActualSeconds,
		&job.OutputURL,
		&job.ThumbnailURL,
		&job.ArchiveURL,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func nullableJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
