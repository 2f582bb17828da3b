// Package provider defines the uniform adapter surface for remote render
// engines. Adapters hide provider-specific request and response shapes; the
// reconciler only ever sees StartResult and PollResult.
package provider

import (
	"context"

	"rendersync/internal/domain"
)

// StartInput carries everything a remote engine needs to begin a render.
type StartInput struct {
	JobID           string
	Engine          string
	Prompt          string
	Ratio           string
	DurationSeconds int
	WithAudio       bool
	Quantity        int
	Seed            *int64
	WebhookURL      string
}

// StartResult is returned once the remote provider accepted the job. The
// render itself continues remotely; StartJob never waits for it.
type StartResult struct {
	JobID            string
	Provider         domain.Provider
	ExternalID       string
	RawStatus        string
	EstimatedSeconds *int
}

// PollResult is the provider's view of a running or finished job. RawStatus
// is deliberately left in the provider's own vocabulary; normalization is the
// reconciler's concern. Ordinary remote failures are reported through
// RawStatus and Error, not as Go errors: returning an error from PollJob is
// reserved for adapter faults (bad configuration, unreachable endpoint).
type PollResult struct {
	Provider        domain.Provider
	ExternalID      string
	RawStatus       string
	Progress        *float64
	OutputURL       string
	ThumbnailURL    string
	Error           string
	CostActualCents *int
	DurationSeconds *int
}

// HasMedia reports whether the provider delivered a playable artifact.
func (r *PollResult) HasMedia() bool {
	return r != nil && r.OutputURL != ""
}

// Adapter is implemented once per remote render provider.
type Adapter interface {
	Name() domain.Provider
	StartJob(ctx context.Context, input StartInput) (*StartResult, error)
	PollJob(ctx context.Context, externalID string) (*PollResult, error)
}
