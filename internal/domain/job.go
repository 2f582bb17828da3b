package domain

import (
	"encoding/json"
	"time"
)

// Provider enumerates supported remote render engines.
type Provider string

const (
	ProviderFal Provider = "fal"
	ProviderSim Provider = "sim"
)

// JobStatus enumerates job lifecycle states as persisted. Reconciliation only
// ever writes pending, completed or failed; running exists in the schema and is
// accepted on reads but is not emitted by the normalizer (see DESIGN.md).
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether a job in this status can still change.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one user-submitted render request tracked against a remote provider.
type Job struct {
	ID            string
	UserID        string
	OrgID         *string
	ExternalJobID *string

	Provider        Provider
	Engine          string
	Prompt          string
	Ratio           string
	DurationSeconds int
	WithAudio       bool
	Quantity        int
	Seed            *int64
	PresetID        *string
	Metadata        json.RawMessage

	Status                JobStatus
	Progress              int
	CostEstimateCents     int
	CostActualCents       *int
	DurationActualSeconds *int
	OutputURL             *string
	ThumbnailURL          *string
	ArchiveURL            *string
	Error                 *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobEvent is an immutable audit record appended on every reconciliation pass.
type JobEvent struct {
	ID        string
	JobID     string
	Status    JobStatus
	Progress  int
	Message   *string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// UsageEvent records metered consumption for downstream invoicing. At most one
// is written per completed job and meter.
type UsageEvent struct {
	ID        string
	JobID     *string
	UserID    string
	Meter     string
	Quantity  int
	Engine    string
	Provider  Provider
	CreatedAt time.Time
}

// WalletEntryType enumerates ledger entry kinds.
type WalletEntryType string

const (
	WalletDebitEstimate WalletEntryType = "debit_estimate"
	WalletAdjustActual  WalletEntryType = "adjust_actual"
	WalletRefund        WalletEntryType = "refund"
)

// WalletEntry is one append-only ledger row. The (job_id, entry_type) unique
// constraint makes every charge and refund at-most-once.
type WalletEntry struct {
	ID          string
	UserID      string
	JobID       *string
	EntryType   WalletEntryType
	AmountCents int
	CreatedAt   time.Time
}

// JobView is the client-safe projection of a Job. Field names here are the UI
// contract and must stay stable regardless of internal storage naming.
type JobView struct {
	ID                    string          `json:"id"`
	Provider              Provider        `json:"provider"`
	Engine                string          `json:"engine"`
	Prompt                string          `json:"prompt"`
	Ratio                 string          `json:"ratio"`
	DurationSeconds       int             `json:"duration_seconds"`
	WithAudio             bool            `json:"with_audio"`
	Quantity              int             `json:"quantity"`
	PresetID              *string         `json:"preset_id,omitempty"`
	Metadata              json.RawMessage `json:"metadata,omitempty"`
	Status                JobStatus       `json:"status"`
	Progress              int             `json:"progress"`
	CostEstimateCents     int             `json:"cost_estimate_cents"`
	CostActualCents       *int            `json:"cost_actual_cents,omitempty"`
	CostDisplay           string          `json:"cost_display,omitempty"`
	DurationActualSeconds *int            `json:"duration_actual_seconds,omitempty"`
	OutputURL             *string         `json:"output_url,omitempty"`
	ThumbnailURL          *string         `json:"thumbnail_url,omitempty"`
	ArchiveURL            *string         `json:"archive_url,omitempty"`
	Error                 *string         `json:"error,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// View strips internal-only fields (owner ids, external provider id) and maps
// the rest onto the stable client contract.
func (j *Job) View() JobView {
	return JobView{
		ID:                    j.ID,
		Provider:              j.Provider,
		Engine:                j.Engine,
		Prompt:                j.Prompt,
		Ratio:                 j.Ratio,
		DurationSeconds:       j.DurationSeconds,
		WithAudio:             j.WithAudio,
		Quantity:              j.Quantity,
		PresetID:              j.PresetID,
		Metadata:              j.Metadata,
		Status:                j.Status,
		Progress:              j.Progress,
		CostEstimateCents:     j.CostEstimateCents,
		CostActualCents:       j.CostActualCents,
		DurationActualSeconds: j.DurationActualSeconds,
		OutputURL:             j.OutputURL,
		ThumbnailURL:          j.ThumbnailURL,
		ArchiveURL:            j.ArchiveURL,
		Error:                 j.Error,
		CreatedAt:             j.CreatedAt,
		UpdatedAt:             j.UpdatedAt,
	}
}
