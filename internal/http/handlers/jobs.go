package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rendersync/internal/billing"
	"rendersync/internal/domain"
	"rendersync/internal/provider"
)

type jobSubmitRequest struct {
	Provider        string          `json:"provider"`
	Engine          string          `json:"engine" validate:"required"`
	Prompt          string          `json:"prompt" validate:"required,max=4000"`
	Ratio           string          `json:"ratio" validate:"omitempty,oneof=16:9 9:16 1:1 4:3 3:4"`
	DurationSeconds int             `json:"duration_seconds" validate:"omitempty,min=1,max=60"`
	WithAudio       bool            `json:"with_audio"`
	Quantity        int             `json:"quantity" validate:"omitempty,min=1,max=4"`
	Seed            *int64          `json:"seed"`
	PresetID        *string         `json:"preset_id"`
	Metadata        json.RawMessage `json:"metadata"`
}

// JobsSubmit creates a pending job, holds the wallet estimate and hands the
// render to the provider. The response returns immediately; completion
// arrives later via webhook or poll.
func (a *App) JobsSubmit(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req jobSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Provider == "" {
		req.Provider = string(domain.ProviderFal)
	}
	if req.Ratio == "" {
		req.Ratio = "16:9"
	}
	if req.DurationSeconds == 0 {
		req.DurationSeconds = 8
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := a.Validate.Struct(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload: "+err.Error())
		return
	}
	adapter, ok := a.Adapters[domain.Provider(req.Provider)]
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported provider")
		return
	}

	job := &domain.Job{
		UserID:            userID,
		Provider:          domain.Provider(req.Provider),
		Engine:            req.Engine,
		Prompt:            req.Prompt,
		Ratio:             req.Ratio,
		DurationSeconds:   req.DurationSeconds,
		WithAudio:         req.WithAudio,
		Quantity:          req.Quantity,
		Seed:              req.Seed,
		PresetID:          req.PresetID,
		Metadata:          req.Metadata,
		CostEstimateCents: billing.EstimateCents(req.Engine, req.DurationSeconds, req.Quantity),
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("jobs: create failed")
		a.error(w, http.StatusServiceUnavailable, "unavailable", "failed to create job")
		return
	}
	if err := a.Billing.HoldEstimate(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: hold estimate failed")
		a.error(w, http.StatusServiceUnavailable, "unavailable", "failed to reserve funds")
		return
	}

	started, err := adapter.StartJob(r.Context(), a.startInput(job))
	if err != nil {
		// The remote never accepted the job: fail it and give the money back.
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: provider start failed")
		failed := domain.JobStatusFailed
		msg := "provider rejected the job"
		if job, err = a.Jobs.Update(r.Context(), job.ID, domain.JobPatch{Status: &failed, Error: &msg}); err == nil {
			_ = a.Jobs.InsertEvent(r.Context(), &domain.JobEvent{JobID: job.ID, Status: job.Status, Progress: job.Progress, Message: &msg})
			_ = a.Billing.RefundFailed(r.Context(), job)
		}
		a.error(w, http.StatusBadGateway, "provider_failure", "provider rejected the job")
		return
	}

	job, err = a.Jobs.Update(r.Context(), job.ID, domain.JobPatch{ExternalJobID: &started.ExternalID})
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: link external id failed")
		a.error(w, http.StatusServiceUnavailable, "unavailable", "failed to record job")
		return
	}
	if err := a.Jobs.InsertEvent(r.Context(), &domain.JobEvent{JobID: job.ID, Status: job.Status, Progress: job.Progress}); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: record submit event failed")
	}

	a.json(w, http.StatusAccepted, map[string]any{"job": a.view(job)})
}

func (a *App) startInput(job *domain.Job) provider.StartInput {
	webhookURL := ""
	if a.Cfg != nil && a.Cfg.PublicBaseURL != "" {
		webhookURL = a.Cfg.PublicBaseURL + "/v1/webhooks/render"
		if a.Cfg.WebhookToken != "" {
			webhookURL += "?token=" + a.Cfg.WebhookToken
		}
	}
	return provider.StartInput{
		JobID:           job.ID,
		Engine:          job.Engine,
		Prompt:          job.Prompt,
		Ratio:           job.Ratio,
		DurationSeconds: job.DurationSeconds,
		WithAudio:       job.WithAudio,
		Quantity:        job.Quantity,
		Seed:            job.Seed,
		WebhookURL:      webhookURL,
	}
}

// JobGet returns the client-safe view of one job.
func (a *App) JobGet(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		a.error(w, http.StatusServiceUnavailable, "unavailable", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job": a.view(job)})
}

// JobEvents returns the append-only audit trail for a job.
func (a *App) JobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if _, err := a.Jobs.GetByID(r.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		a.error(w, http.StatusServiceUnavailable, "unavailable", "failed to load job")
		return
	}
	events, err := a.Jobs.ListEvents(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "failed to load events")
		return
	}
	items := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		items = append(items, map[string]any{
			"status":     ev.Status,
			"progress":   ev.Progress,
			"message":    ev.Message,
			"payload":    ev.Payload,
			"created_at": ev.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// JobsList returns the caller's jobs, newest first.
func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobs, err := a.Jobs.ListByUser(r.Context(), userID, 50)
	if err != nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "failed to list jobs")
		return
	}
	items := make([]domain.JobView, 0, len(jobs))
	for i := range jobs {
		items = append(items, a.view(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
