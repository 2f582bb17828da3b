// Package reconcile drives a job from pending to a terminal state off
// provider webhooks and scheduled polls. Both paths funnel through the same
// normalize-then-patch application, so identical provider reports converge on
// identical job state no matter which path delivered them first.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"rendersync/internal/domain"
	"rendersync/internal/infra"
	"rendersync/internal/provider"
	"rendersync/internal/status"
)

// Biller settles wallet state on terminal transitions. Implementations must
// be idempotent; the reconciler will call them again on repeated terminal
// reports.
type Biller interface {
	SettleCompleted(ctx context.Context, job *domain.Job) error
	RefundFailed(ctx context.Context, job *domain.Job) error
}

// Reconciler owns the webhook and poll application paths.
type Reconciler struct {
	jobs     domain.JobRepository
	biller   Biller
	adapters map[domain.Provider]provider.Adapter
	logger   infra.Logger
	metrics  *infra.Metrics
}

func New(jobs domain.JobRepository, biller Biller, adapters map[domain.Provider]provider.Adapter, logger infra.Logger, metrics *infra.Metrics) *Reconciler {
	return &Reconciler{jobs: jobs, biller: biller, adapters: adapters, logger: logger, metrics: metrics}
}

// Apply routes one provider report through normalization, applies the partial
// patch, appends the audit event and settles billing on terminal states. It
// returns the updated job and whether any lifecycle field changed.
//
// Every call appends exactly one JobEvent, including no-op reapplications of
// a terminal report: the audit trail grows, financial state does not.
func (r *Reconciler) Apply(ctx context.Context, job *domain.Job, res *provider.PollResult) (*domain.Job, bool, error) {
	canon := status.Normalize(res.RawStatus, res.HasMedia())
	message := status.NormalizeMessage(res.Error)

	patch := buildPatch(job, res, canon)
	updated := job
	if !patch.IsZero() {
		var err error
		updated, err = r.jobs.Update(ctx, job.ID, patch)
		if err != nil {
			return nil, false, fmt.Errorf("apply job %s: %w", job.ID, err)
		}
	}

	event := &domain.JobEvent{
		JobID:    updated.ID,
		Status:   updated.Status,
		Progress: updated.Progress,
		Message:  message,
	}
	if updated.OutputURL != nil {
		payload, _ := json.Marshal(map[string]string{"output_url": *updated.OutputURL})
		event.Payload = payload
	}
	if err := r.jobs.InsertEvent(ctx, event); err != nil {
		return nil, false, fmt.Errorf("record event for job %s: %w", updated.ID, err)
	}

	switch updated.Status {
	case domain.JobStatusCompleted:
		if err := r.biller.SettleCompleted(ctx, updated); err != nil {
			return nil, false, err
		}
	case domain.JobStatusFailed:
		if err := r.biller.RefundFailed(ctx, updated); err != nil {
			return nil, false, err
		}
	}

	changed := updated.Status != job.Status ||
		updated.Progress != job.Progress ||
		firstSet(job.OutputURL, updated.OutputURL) ||
		firstSet(job.Error, updated.Error)
	if changed && r.metrics != nil {
		r.metrics.JobTransitions.WithLabelValues(string(updated.Status)).Inc()
	}
	return updated, changed, nil
}

// buildPatch translates a normalized provider report into a partial update.
// An Undefined canonical status contributes no status field at all; the
// stored status survives ambiguous payloads untouched.
func buildPatch(job *domain.Job, res *provider.PollResult, canon status.Canonical) domain.JobPatch {
	patch := domain.JobPatch{}

	if next, ok := canonicalToJobStatus(canon); ok {
		// A provider still reporting pending must not demote a job the
		// schema already marks running.
		if !(next == domain.JobStatusPending && job.Status == domain.JobStatusRunning) {
			patch.Status = &next
		}
	}
	if p := status.NormalizeProgress(res.Progress, canon, res.HasMedia()); p != nil && *p > job.Progress {
		patch.Progress = p
	}
	if res.OutputURL != "" {
		patch.OutputURL = &res.OutputURL
	}
	if res.ThumbnailURL != "" {
		patch.ThumbnailURL = &res.ThumbnailURL
	}
	if canon == status.Completed {
		actual := job.CostEstimateCents
		if res.CostActualCents != nil {
			actual = *res.CostActualCents
		}
		patch.CostActualCents = &actual
		if res.DurationSeconds != nil {
			patch.DurationActualSeconds = res.DurationSeconds
		}
	}
	if canon == status.Failed {
		patch.Error = status.NormalizeMessage(res.Error)
		if patch.Error == nil {
			msg := "provider reported failure"
			patch.Error = &msg
		}
	}
	return patch
}

func canonicalToJobStatus(canon status.Canonical) (domain.JobStatus, bool) {
	switch canon {
	case status.Pending:
		return domain.JobStatusPending, true
	case status.Completed:
		return domain.JobStatusCompleted, true
	case status.Failed:
		return domain.JobStatusFailed, true
	default:
		return "", false
	}
}

func firstSet(before, after *string) bool {
	return before == nil && after != nil
}

// PollBatch reconciles up to limit in-flight jobs, oldest update first. One
// job's adapter failure is logged and skipped; the rest of the batch still
// runs. Returns how many jobs were checked and how many changed.
func (r *Reconciler) PollBatch(ctx context.Context, limit int) (checked, updates int, err error) {
	jobs, err := r.jobs.ListPollable(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("select pollable jobs: %w", err)
	}

	for i := range jobs {
		job := &jobs[i]
		checked++
		if r.metrics != nil {
			r.metrics.PollChecked.Inc()
		}

		adapter, ok := r.adapters[job.Provider]
		if !ok {
			r.logger.Error().Str("job_id", job.ID).Str("provider", string(job.Provider)).Msg("poll: no adapter configured")
			continue
		}
		res, pollErr := adapter.PollJob(ctx, *job.ExternalJobID)
		if pollErr != nil {
			if r.metrics != nil {
				r.metrics.PollErrors.Inc()
			}
			r.logger.Warn().Err(pollErr).Str("job_id", job.ID).Msg("poll: adapter failed, retrying next cycle")
			continue
		}

		_, changed, applyErr := r.Apply(ctx, job, res)
		if applyErr != nil {
			if r.metrics != nil {
				r.metrics.PollErrors.Inc()
			}
			r.logger.Error().Err(applyErr).Str("job_id", job.ID).Msg("poll: apply failed")
			continue
		}
		if changed {
			updates++
			if r.metrics != nil {
				r.metrics.PollUpdates.Inc()
			}
		}
	}
	return checked, updates, nil
}

// Resync recovers a job whose automatic sync stalled. It resolves an external
// id (the override wins over the stored one), fetches the provider's current
// result directly and applies it through the normal path. It refuses to write
// anything when no external id resolves or the provider has no playable
// output yet.
func (r *Reconciler) Resync(ctx context.Context, jobID, overrideExternalID string) (*domain.Job, error) {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("resync job %s: %w", jobID, err)
	}

	externalID := overrideExternalID
	if externalID == "" && job.ExternalJobID != nil {
		externalID = *job.ExternalJobID
	}
	if externalID == "" {
		return nil, fmt.Errorf("resync job %s: %w", jobID, domain.ErrNoExternalID)
	}

	adapter, ok := r.adapters[job.Provider]
	if !ok {
		return nil, fmt.Errorf("resync job %s: no adapter for provider %s", jobID, job.Provider)
	}
	res, err := adapter.PollJob(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("resync job %s: %w", jobID, err)
	}
	if !res.HasMedia() {
		return nil, fmt.Errorf("resync job %s: %w", jobID, domain.ErrNoPlayableMedia)
	}

	if job.ExternalJobID == nil {
		// Link the recovered id so webhooks and polls can target the job
		// from now on. Set-once semantics in the update keep an existing
		// link intact.
		job, err = r.jobs.Update(ctx, job.ID, domain.JobPatch{ExternalJobID: &externalID})
		if err != nil {
			return nil, fmt.Errorf("resync job %s: link external id: %w", jobID, err)
		}
	}

	updated, _, err := r.Apply(ctx, job, res)
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str("job_id", jobID).Str("external_id", externalID).Msg("resync: job relinked")
	return updated, nil
}
