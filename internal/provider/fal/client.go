// Package fal talks to the fal.ai queue API, the aggregator fronting most of
// the supported video engines.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rendersync/internal/domain"
	"rendersync/internal/infra"
	"rendersync/internal/provider"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

// Options configures the fal queue client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the fal queue endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type submitRequest struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	DurationSeconds int    `json:"duration,omitempty"`
	WithAudio       bool   `json:"generate_audio,omitempty"`
	NumVideos       int    `json:"num_videos,omitempty"`
	Seed            *int64 `json:"seed,omitempty"`
	WebhookURL      string `json:"webhook_url,omitempty"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	QueueETA  *int   `json:"queue_eta_seconds"`
}

type statusResponse struct {
	Status        string   `json:"status"`
	QueuePosition *int     `json:"queue_position"`
	Progress      *float64 `json:"progress"`
	Error         string   `json:"error"`
}

type resultResponse struct {
	Video struct {
		URL      string `json:"url"`
		Duration *int   `json:"duration"`
	} `json:"video"`
	Thumbnail struct {
		URL string `json:"url"`
	} `json:"thumbnail"`
	CostCents *int   `json:"cost_cents"`
	Error     string `json:"error"`
	Detail    string `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name identifies the adapter.
func (c *Client) Name() domain.Provider {
	return domain.ProviderFal
}

// StartJob submits a render to the queue. It returns as soon as the queue
// accepts the request; the render itself continues remotely.
func (c *Client) StartJob(ctx context.Context, input provider.StartInput) (*provider.StartResult, error) {
	body := submitRequest{
		Prompt:          input.Prompt,
		AspectRatio:     input.Ratio,
		DurationSeconds: input.DurationSeconds,
		WithAudio:       input.WithAudio,
		NumVideos:       input.Quantity,
		Seed:            input.Seed,
		WebhookURL:      input.WebhookURL,
	}
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.baseURL, strings.Trim(input.Engine, "/")), body, &resp); err != nil {
		return nil, err
	}
	if resp.RequestID == "" {
		return nil, fmt.Errorf("fal: submit response missing request_id")
	}
	rawStatus := resp.Status
	if rawStatus == "" {
		rawStatus = "queued"
	}
	c.logger.Info().Str("job_id", input.JobID).Str("request_id", resp.RequestID).Msg("fal: job submitted")
	return &provider.StartResult{
		JobID:            input.JobID,
		Provider:         domain.ProviderFal,
		ExternalID:       resp.RequestID,
		RawStatus:        rawStatus,
		EstimatedSeconds: resp.QueueETA,
	}, nil
}

// PollJob fetches the queue status and, once the queue reports the request
// finished, the result payload. Remote job failures come back inside the
// PollResult; an error return means the adapter itself could not ask.
func (c *Client) PollJob(ctx context.Context, externalID string) (*provider.PollResult, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("fal: external id is required")
	}

	var st statusResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/requests/%s/status", c.baseURL, externalID), nil, &st); err != nil {
		return nil, err
	}

	result := &provider.PollResult{
		Provider:   domain.ProviderFal,
		ExternalID: externalID,
		RawStatus:  st.Status,
		Progress:   st.Progress,
		Error:      st.Error,
	}

	if !strings.EqualFold(st.Status, "completed") {
		return result, nil
	}

	var res resultResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/requests/%s", c.baseURL, externalID), nil, &res); err != nil {
		return nil, err
	}
	result.OutputURL = res.Video.URL
	result.ThumbnailURL = res.Thumbnail.URL
	result.CostActualCents = res.CostCents
	result.DurationSeconds = res.Video.Duration
	if result.Error == "" {
		if res.Error != "" {
			result.Error = res.Error
		} else if res.Detail != "" {
			result.Error = res.Detail
		}
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("fal: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("fal: build request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fal: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("fal: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fal: %s %s: status %d: %s", method, url, resp.StatusCode, truncate(raw, 256))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("fal: decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

var _ provider.Adapter = (*Client)(nil)
