package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"rendersync/internal/domain"
	"rendersync/internal/provider"
)

// ErrBadPayload classifies webhook bodies that cannot be decoded or fail
// validation. The HTTP layer maps it to 400; the provider's redelivery policy
// owns retries.
var ErrBadPayload = errors.New("bad webhook payload")

// WebhookOutcome tells the HTTP layer what happened without forcing it to
// inspect job state.
type WebhookOutcome string

const (
	OutcomeApplied WebhookOutcome = "applied"
	// OutcomeUnknownJob means the payload referenced a job this system no
	// longer tracks. Deliberately benign: failing loudly would turn every
	// redelivery of an already-reconciled job into a poison pill.
	OutcomeUnknownJob WebhookOutcome = "unknown_job"
)

// webhookResult is the nested artifact section. Providers disagree on whether
// the video link arrives as a flat video_url or a nested video object, so
// both are decoded and the flat form wins.
type webhookResult struct {
	VideoURL string `json:"video_url"`
	Video    struct {
		URL      string `json:"url"`
		Duration *int   `json:"duration"`
	} `json:"video"`
	ThumbnailURL string `json:"thumbnail_url"`
	Thumbnail    struct {
		URL string `json:"url"`
	} `json:"thumbnail"`
	Duration  *int `json:"duration"`
	CostCents *int `json:"cost_cents"`
}

// WebhookPayload is the inbound callback shape. Exactly the fields we accept;
// anything unparsable is rejected at the boundary rather than coerced.
type WebhookPayload struct {
	RequestID string         `json:"request_id" validate:"required_without=JobID"`
	JobID     string         `json:"job_id" validate:"required_without=RequestID"`
	Status    string         `json:"status"`
	Progress  *float64       `json:"progress"`
	Error     string         `json:"error"`
	Result    *webhookResult `json:"result"`
	Data      *webhookResult `json:"data"`
}

var validate = validator.New()

// externalID returns whichever job reference the provider sent.
func (p *WebhookPayload) externalID() string {
	if p.RequestID != "" {
		return p.RequestID
	}
	return p.JobID
}

// toPollResult flattens the payload onto the shared application shape so the
// webhook path and the poll path are literally the same code from here on.
func (p *WebhookPayload) toPollResult(prov domain.Provider) *provider.PollResult {
	res := &provider.PollResult{
		Provider:   prov,
		ExternalID: p.externalID(),
		RawStatus:  p.Status,
		Progress:   p.Progress,
		Error:      p.Error,
	}
	for _, section := range []*webhookResult{p.Result, p.Data} {
		if section == nil {
			continue
		}
		if res.OutputURL == "" {
			if section.VideoURL != "" {
				res.OutputURL = section.VideoURL
			} else if section.Video.URL != "" {
				res.OutputURL = section.Video.URL
			}
		}
		if res.ThumbnailURL == "" {
			if section.ThumbnailURL != "" {
				res.ThumbnailURL = section.ThumbnailURL
			} else if section.Thumbnail.URL != "" {
				res.ThumbnailURL = section.Thumbnail.URL
			}
		}
		if res.DurationSeconds == nil {
			if section.Duration != nil {
				res.DurationSeconds = section.Duration
			} else if section.Video.Duration != nil {
				res.DurationSeconds = section.Video.Duration
			}
		}
		if res.CostActualCents == nil && section.CostCents != nil {
			res.CostActualCents = section.CostCents
		}
	}
	return res
}

// DecodeWebhook parses and validates a raw callback body.
func DecodeWebhook(body []byte) (*WebhookPayload, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrBadPayload)
	}
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, fmt.Errorf("%w: missing job reference", ErrBadPayload)
	}
	return &payload, nil
}

// HandleWebhook applies one provider callback. Unknown jobs are reported as
// an outcome, not an error.
func (r *Reconciler) HandleWebhook(ctx context.Context, body []byte) (WebhookOutcome, error) {
	payload, err := DecodeWebhook(body)
	if err != nil {
		return "", err
	}

	job, err := r.jobs.GetByExternalID(ctx, payload.externalID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn().Str("external_id", payload.externalID()).Msg("webhook: job not tracked, ignoring")
			return OutcomeUnknownJob, nil
		}
		return "", fmt.Errorf("resolve webhook target: %w", err)
	}

	if _, _, err := r.Apply(ctx, job, payload.toPollResult(job.Provider)); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}
