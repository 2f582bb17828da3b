package domain

import "context"

// JobPatch carries a partial update. Nil fields are left untouched by the
// repository; this is the contract that makes webhook and poll application
// safe to interleave.
type JobPatch struct {
	Status                *JobStatus
	Progress              *int
	ExternalJobID         *string
	CostActualCents       *int
	DurationActualSeconds *int
	OutputURL             *string
	ThumbnailURL          *string
	ArchiveURL            *string
	Error                 *string
}

// IsZero reports whether the patch would change nothing.
func (p JobPatch) IsZero() bool {
	return p.Status == nil && p.Progress == nil && p.ExternalJobID == nil &&
		p.CostActualCents == nil && p.DurationActualSeconds == nil &&
		p.OutputURL == nil && p.ThumbnailURL == nil && p.ArchiveURL == nil &&
		p.Error == nil
}

// JobRepository defines persistence for jobs and their audit trail.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	GetByExternalID(ctx context.Context, externalID string) (*Job, error)
	// Update applies only the fields set on the patch. cost_actual_cents and
	// external_job_id are set-once: a patch value for either is ignored when
	// the column already holds a value.
	Update(ctx context.Context, jobID string, patch JobPatch) (*Job, error)
	InsertEvent(ctx context.Context, event *JobEvent) error
	ListEvents(ctx context.Context, jobID string) ([]JobEvent, error)
	// ListPollable returns jobs with an external id and a non-terminal status,
	// oldest-updated first, at most limit rows.
	ListPollable(ctx context.Context, limit int) ([]Job, error)
	// ListArchivable returns completed jobs with an output url and no archive
	// url yet.
	ListArchivable(ctx context.Context, limit int) ([]Job, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Job, error)
}

// WalletRepository is the append-only billing ledger.
type WalletRepository interface {
	// Append inserts a ledger entry. It returns false without error when an
	// entry with the same (job_id, entry_type) already exists.
	Append(ctx context.Context, entry *WalletEntry) (bool, error)
	Balance(ctx context.Context, userID string) (int, error)
}

// UsageRepository records metered consumption.
type UsageRepository interface {
	// Insert writes a usage event, at most once per (job_id, meter).
	Insert(ctx context.Context, event *UsageEvent) (bool, error)
}
