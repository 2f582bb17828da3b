// Package sim is an in-process render provider for development and test
// environments where no fal credentials are available. Jobs complete after a
// fixed number of polls with a deterministic CDN-shaped URL.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"rendersync/internal/domain"
	"rendersync/internal/provider"
)

const pollsUntilDone = 2

type jobState struct {
	jobID string
	polls int
}

type Provider struct {
	mu   sync.Mutex
	jobs map[string]*jobState
}

func New() *Provider {
	return &Provider{jobs: make(map[string]*jobState)}
}

func (p *Provider) Name() domain.Provider {
	return domain.ProviderSim
}

func (p *Provider) StartJob(ctx context.Context, input provider.StartInput) (*provider.StartResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	externalID := uuid.NewString()
	p.mu.Lock()
	p.jobs[externalID] = &jobState{jobID: input.JobID}
	p.mu.Unlock()
	eta := 10
	return &provider.StartResult{
		JobID:            input.JobID,
		Provider:         domain.ProviderSim,
		ExternalID:       externalID,
		RawStatus:        "queued",
		EstimatedSeconds: &eta,
	}, nil
}

func (p *Provider) PollJob(ctx context.Context, externalID string) (*provider.PollResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.jobs[externalID]
	if !ok {
		return &provider.PollResult{
			Provider:   domain.ProviderSim,
			ExternalID: externalID,
			RawStatus:  "not_found",
			Error:      "simulated job not found",
		}, nil
	}
	st.polls++
	if st.polls < pollsUntilDone {
		progress := float64(st.polls) * 100 / pollsUntilDone
		return &provider.PollResult{
			Provider:   domain.ProviderSim,
			ExternalID: externalID,
			RawStatus:  "in_progress",
			Progress:   &progress,
		}, nil
	}
	cost := 100
	duration := 8
	return &provider.PollResult{
		Provider:        domain.ProviderSim,
		ExternalID:      externalID,
		RawStatus:       "completed",
		OutputURL:       fmt.Sprintf("https://cdn.example.com/sim/%s.mp4", externalID),
		ThumbnailURL:    fmt.Sprintf("https://cdn.example.com/sim/%s.jpg", externalID),
		CostActualCents: &cost,
		DurationSeconds: &duration,
	}, nil
}

var _ provider.Adapter = (*Provider)(nil)
