// Package archive copies finished renders off the provider's CDN into our own
// storage. Provider URLs expire; the archive URL is the durable one.
package archive

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"rendersync/internal/domain"
	"rendersync/internal/infra"
	"rendersync/internal/storage"
)

const maxArtifactBytes = 512 << 20

// Archiver runs the post-completion archival pass.
type Archiver struct {
	jobs       domain.JobRepository
	store      storage.BlobStore
	httpClient *http.Client
	logger     infra.Logger
	metrics    *infra.Metrics
}

func New(jobs domain.JobRepository, store storage.BlobStore, httpClient *http.Client, logger infra.Logger, metrics *infra.Metrics) *Archiver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Archiver{jobs: jobs, store: store, httpClient: httpClient, logger: logger, metrics: metrics}
}

// RunOnce archives up to limit completed jobs. A single job's failure is
// logged and skipped so the rest of the batch still runs; the job stays
// eligible for the next pass.
func (a *Archiver) RunOnce(ctx context.Context, limit int) (archived int, err error) {
	jobs, err := a.jobs.ListArchivable(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("select archivable jobs: %w", err)
	}
	for i := range jobs {
		job := &jobs[i]
		if err := a.archiveJob(ctx, job); err != nil {
			a.logger.Warn().Err(err).Str("job_id", job.ID).Msg("archive: skipping job")
			continue
		}
		archived++
		if a.metrics != nil {
			a.metrics.JobsArchived.Inc()
		}
	}
	return archived, nil
}

func (a *Archiver) archiveJob(ctx context.Context, job *domain.Job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *job.OutputURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download output: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download output: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	key := fmt.Sprintf("jobs/%s/output.mp4", job.ID)
	url, err := a.store.Write(ctx, key, contentType, http.MaxBytesReader(nil, resp.Body, maxArtifactBytes), resp.ContentLength)
	if err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}

	if _, err := a.jobs.Update(ctx, job.ID, domain.JobPatch{ArchiveURL: &url}); err != nil {
		return fmt.Errorf("record archive url: %w", err)
	}
	a.logger.Info().Str("job_id", job.ID).Str("archive_url", url).Msg("archive: output archived")
	return nil
}
