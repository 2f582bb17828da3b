package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rendersync/internal/domain"
	"rendersync/internal/provider"
)

// memJobs mirrors the repository's partial-patch contract in memory: set-once
// cost and external id, monotonic progress, terminal statuses never
// overwritten.
type memJobs struct {
	jobs    map[string]*domain.Job
	events  []domain.JobEvent
	updates int
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]*domain.Job)}
}

func (m *memJobs) Create(ctx context.Context, job *domain.Job) error {
	job.Status = domain.JobStatusPending
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobs) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memJobs) GetByExternalID(ctx context.Context, externalID string) (*domain.Job, error) {
	for _, job := range m.jobs {
		if job.ExternalJobID != nil && *job.ExternalJobID == externalID {
			cp := *job
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memJobs) Update(ctx context.Context, jobID string, patch domain.JobPatch) (*domain.Job, error) {
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.updates++
	if patch.Status != nil && !job.Status.IsTerminal() {
		job.Status = *patch.Status
	}
	if patch.Progress != nil && *patch.Progress > job.Progress {
		job.Progress = *patch.Progress
	}
	if patch.ExternalJobID != nil && job.ExternalJobID == nil {
		v := *patch.ExternalJobID
		job.ExternalJobID = &v
	}
	if patch.CostActualCents != nil && job.CostActualCents == nil {
		v := *patch.CostActualCents
		job.CostActualCents = &v
	}
	if patch.DurationActualSeconds != nil {
		v := *patch.DurationActualSeconds
		job.DurationActualSeconds = &v
	}
	if patch.OutputURL != nil {
		v := *patch.OutputURL
		job.OutputURL = &v
	}
	if patch.ThumbnailURL != nil {
		v := *patch.ThumbnailURL
		job.ThumbnailURL = &v
	}
	if patch.ArchiveURL != nil {
		v := *patch.ArchiveURL
		job.ArchiveURL = &v
	}
	if patch.Error != nil {
		v := *patch.Error
		job.Error = &v
	}
	job.UpdatedAt = time.Now()
	cp := *job
	return &cp, nil
}

func (m *memJobs) InsertEvent(ctx context.Context, event *domain.JobEvent) error {
	m.events = append(m.events, *event)
	return nil
}

func (m *memJobs) ListEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error) {
	var out []domain.JobEvent
	for _, ev := range m.events {
		if ev.JobID == jobID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memJobs) ListPollable(ctx context.Context, limit int) ([]domain.Job, error) {
	var out []domain.Job
	for _, job := range m.jobs {
		if job.ExternalJobID != nil && !job.Status.IsTerminal() {
			out = append(out, *job)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memJobs) ListArchivable(ctx context.Context, limit int) ([]domain.Job, error) {
	var out []domain.Job
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusCompleted && job.OutputURL != nil && job.ArchiveURL == nil {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *memJobs) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Job, error) {
	var out []domain.Job
	for _, job := range m.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

type memBiller struct {
	settled  map[string]int
	refunded map[string]int
}

func newMemBiller() *memBiller {
	return &memBiller{settled: map[string]int{}, refunded: map[string]int{}}
}

func (b *memBiller) SettleCompleted(ctx context.Context, job *domain.Job) error {
	b.settled[job.ID]++
	return nil
}

func (b *memBiller) RefundFailed(ctx context.Context, job *domain.Job) error {
	b.refunded[job.ID]++
	return nil
}

type scriptedAdapter struct {
	results map[string]*provider.PollResult
	errs    map[string]error
}

func (a *scriptedAdapter) Name() domain.Provider { return domain.ProviderFal }

func (a *scriptedAdapter) StartJob(ctx context.Context, input provider.StartInput) (*provider.StartResult, error) {
	return nil, errors.New("not used in tests")
}

func (a *scriptedAdapter) PollJob(ctx context.Context, externalID string) (*provider.PollResult, error) {
	if err, ok := a.errs[externalID]; ok {
		return nil, err
	}
	if res, ok := a.results[externalID]; ok {
		return res, nil
	}
	return &provider.PollResult{Provider: domain.ProviderFal, ExternalID: externalID, RawStatus: "not_found"}, nil
}

func testReconciler(adapter provider.Adapter) (*Reconciler, *memJobs, *memBiller) {
	jobs := newMemJobs()
	biller := newMemBiller()
	adapters := map[domain.Provider]provider.Adapter{domain.ProviderFal: adapter}
	return New(jobs, biller, adapters, zerolog.New(io.Discard), nil), jobs, biller
}

func seedJob(t *testing.T, jobs *memJobs, id, externalID string) *domain.Job {
	t.Helper()
	job := &domain.Job{
		ID:                id,
		UserID:            "user-1",
		Provider:          domain.ProviderFal,
		Engine:            "veo3/fast",
		Prompt:            "a fox in the snow",
		DurationSeconds:   8,
		Quantity:          1,
		CostEstimateCents: 100,
	}
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	if externalID != "" {
		if _, err := jobs.Update(context.Background(), id, domain.JobPatch{ExternalJobID: &externalID}); err != nil {
			t.Fatalf("seed external id: %v", err)
		}
	}
	got, _ := jobs.GetByID(context.Background(), id)
	return got
}

func completedWebhook(externalID string) []byte {
	return []byte(fmt.Sprintf(
		`{"request_id":%q,"status":"completed","result":{"video_url":"https://cdn.example.com/out.mp4","duration":8}}`,
		externalID,
	))
}

func TestWebhookCompletesJobEndToEnd(t *testing.T) {
	rec, jobs, biller := testReconciler(&scriptedAdapter{})
	seedJob(t, jobs, "job-1", "req-1")

	outcome, err := rec.HandleWebhook(context.Background(), completedWebhook("req-1"))
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %q, want applied", outcome)
	}

	job, _ := jobs.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", job.Status)
	}
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want 100", job.Progress)
	}
	if job.OutputURL == nil || *job.OutputURL != "https://cdn.example.com/out.mp4" {
		t.Fatalf("output url = %v", job.OutputURL)
	}
	if job.CostActualCents == nil || *job.CostActualCents != 100 {
		t.Fatalf("cost actual = %v, want estimate fallback 100", job.CostActualCents)
	}
	if job.DurationActualSeconds == nil || *job.DurationActualSeconds != 8 {
		t.Fatalf("duration actual = %v, want 8", job.DurationActualSeconds)
	}

	events, _ := jobs.ListEvents(context.Background(), "job-1")
	if len(events) != 1 {
		t.Fatalf("events = %d, want exactly 1", len(events))
	}
	if events[0].Status != domain.JobStatusCompleted {
		t.Fatalf("event status = %q", events[0].Status)
	}
	if biller.settled["job-1"] != 1 {
		t.Fatalf("settle calls = %d, want 1", biller.settled["job-1"])
	}
}

func TestWebhookTerminalReplayIsIdempotent(t *testing.T) {
	rec, jobs, _ := testReconciler(&scriptedAdapter{})
	seedJob(t, jobs, "job-1", "req-1")

	body := []byte(`{"request_id":"req-1","status":"completed","result":{"video_url":"https://cdn.example.com/out.mp4","cost_cents":80}}`)
	for i := 0; i < 2; i++ {
		if _, err := rec.HandleWebhook(context.Background(), body); err != nil {
			t.Fatalf("HandleWebhook #%d: %v", i+1, err)
		}
	}

	job, _ := jobs.GetByID(context.Background(), "job-1")
	if job.CostActualCents == nil || *job.CostActualCents != 80 {
		t.Fatalf("cost actual = %v, want 80 set exactly once", job.CostActualCents)
	}

	// The audit trail grows, financial state does not.
	events, _ := jobs.ListEvents(context.Background(), "job-1")
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Status != events[1].Status || events[0].Progress != events[1].Progress {
		t.Fatalf("replayed events disagree: %+v vs %+v", events[0], events[1])
	}
}

func TestWebhookLateCostCannotOverwrite(t *testing.T) {
	rec, jobs, _ := testReconciler(&scriptedAdapter{})
	seedJob(t, jobs, "job-1", "req-1")

	first := []byte(`{"request_id":"req-1","status":"completed","result":{"video_url":"https://cdn.example.com/out.mp4","cost_cents":80}}`)
	second := []byte(`{"request_id":"req-1","status":"completed","result":{"video_url":"https://cdn.example.com/out.mp4","cost_cents":9999}}`)
	if _, err := rec.HandleWebhook(context.Background(), first); err != nil {
		t.Fatalf("first webhook: %v", err)
	}
	if _, err := rec.HandleWebhook(context.Background(), second); err != nil {
		t.Fatalf("second webhook: %v", err)
	}

	job, _ := jobs.GetByID(context.Background(), "job-1")
	if job.CostActualCents == nil || *job.CostActualCents != 80 {
		t.Fatalf("cost actual = %v, want original 80", job.CostActualCents)
	}
}

func TestWebhookUnknownJobIsBenign(t *testing.T) {
	rec, jobs, _ := testReconciler(&scriptedAdapter{})
	seedJob(t, jobs, "job-1", "req-1")

	outcome, err := rec.HandleWebhook(context.Background(), completedWebhook("req-gone"))
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if outcome != OutcomeUnknownJob {
		t.Fatalf("outcome = %q, want unknown_job", outcome)
	}
	if len(jobs.events) != 0 {
		t.Fatalf("unknown job must not write events, got %d", len(jobs.events))
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	rec, _, _ := testReconciler(&scriptedAdapter{})

	for _, body := range [][]byte{nil, []byte("not json"), []byte(`{"status":"completed"}`)} {
		if _, err := rec.HandleWebhook(context.Background(), body); !errors.Is(err, ErrBadPayload) {
			t.Fatalf("HandleWebhook(%q) err = %v, want ErrBadPayload", body, err)
		}
	}
}

func TestApplyPartialProgressPreservesFields(t *testing.T) {
	rec, jobs, _ := testReconciler(&scriptedAdapter{})
	seedJob(t, jobs, "job-1", "req-1")

	thumb := "https://cdn.example.com/thumb.jpg"
	if _, err := jobs.Update(context.Background(), "job-1", domain.JobPatch{ThumbnailURL: &thumb}); err != nil {
		t.Fatalf("seed thumbnail: %v", err)
	}

	job, _ := jobs.GetByID(context.Background(), "job-1")
	progress := 50.0
	if _, _, err := rec.Apply(context.Background(), job, &provider.PollResult{
		Provider:   domain.ProviderFal,
		ExternalID: "req-1",
		RawStatus:  "in_progress",
		Progress:   &progress,
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	job, _ = jobs.GetByID(context.Background(), "job-1")
	if job.Progress != 50 {
		t.Fatalf("progress = %d, want 50", job.Progress)
	}
	if job.ThumbnailURL == nil || *job.ThumbnailURL != thumb {
		t.Fatalf("thumbnail was clobbered: %v", job.ThumbnailURL)
	}
}

func TestApplyUndefinedStatusPreservesState(t *testing.T) {
	rec, jobs, _ := testReconciler(&scriptedAdapter{})
	seedJob(t, jobs, "job-1", "req-1")

	job, _ := jobs.GetByID(context.Background(), "job-1")
	// Absent status, no media: the normalizer makes no decision and nothing
	// moves, but the audit trail still records the pass.
	_, changed, err := rec.Apply(context.Background(), job, &provider.PollResult{
		Provider:   domain.ProviderFal,
		ExternalID: "req-1",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if changed {
		t.Fatalf("undefined status must not count as an update")
	}
	job, _ = jobs.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusPending {
		t.Fatalf("status = %q, want untouched pending", job.Status)
	}
	if events, _ := jobs.ListEvents(context.Background(), "job-1"); len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
}

func TestFailureReplayInvokesBillerPerReport(t *testing.T) {
	rec, jobs, biller := testReconciler(&scriptedAdapter{})
	seedJob(t, jobs, "job-1", "req-1")

	body := []byte(`{"request_id":"req-1","status":"failed","error":"render crashed"}`)
	for i := 0; i < 2; i++ {
		if _, err := rec.HandleWebhook(context.Background(), body); err != nil {
			t.Fatalf("HandleWebhook #%d: %v", i+1, err)
		}
	}

	job, _ := jobs.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if job.Error == nil || *job.Error != "render crashed" {
		t.Fatalf("error = %v", job.Error)
	}
	// The biller is invoked per terminal report; it is the biller's ledger
	// that holds the at-most-once guarantee.
	if biller.refunded["job-1"] != 2 {
		t.Fatalf("refund calls = %d, want 2 (idempotent downstream)", biller.refunded["job-1"])
	}
}

func TestPollBatchIsolatesAdapterFailures(t *testing.T) {
	adapter := &scriptedAdapter{
		results: map[string]*provider.PollResult{
			"req-ok": {
				Provider:   domain.ProviderFal,
				ExternalID: "req-ok",
				RawStatus:  "completed",
				OutputURL:  "https://cdn.example.com/ok.mp4",
			},
			"req-still": {
				Provider:   domain.ProviderFal,
				ExternalID: "req-still",
				RawStatus:  "in_progress",
			},
		},
		errs: map[string]error{"req-boom": errors.New("connection reset")},
	}
	rec, jobs, _ := testReconciler(adapter)
	seedJob(t, jobs, "job-ok", "req-ok")
	seedJob(t, jobs, "job-boom", "req-boom")
	seedJob(t, jobs, "job-still", "req-still")

	checked, updates, err := rec.PollBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("PollBatch: %v", err)
	}
	if checked != 3 {
		t.Fatalf("checked = %d, want 3", checked)
	}
	if updates != 1 {
		t.Fatalf("updates = %d, want 1 (completed job only)", updates)
	}

	ok, _ := jobs.GetByID(context.Background(), "job-ok")
	if ok.Status != domain.JobStatusCompleted {
		t.Fatalf("job-ok status = %q, want completed", ok.Status)
	}
	boom, _ := jobs.GetByID(context.Background(), "job-boom")
	if boom.Status != domain.JobStatusPending {
		t.Fatalf("job-boom status = %q, want pending (retry next cycle)", boom.Status)
	}
}

func TestResyncWithoutExternalIDMutatesNothing(t *testing.T) {
	rec, jobs, _ := testReconciler(&scriptedAdapter{})
	seedJob(t, jobs, "job-1", "")
	before := jobs.updates

	_, err := rec.Resync(context.Background(), "job-1", "")
	if !errors.Is(err, domain.ErrNoExternalID) {
		t.Fatalf("Resync err = %v, want ErrNoExternalID", err)
	}
	if jobs.updates != before {
		t.Fatalf("resync without external id must not write")
	}
	if len(jobs.events) != 0 {
		t.Fatalf("resync without external id must not append events")
	}
}

func TestResyncRequiresPlayableOutput(t *testing.T) {
	adapter := &scriptedAdapter{
		results: map[string]*provider.PollResult{
			"req-1": {Provider: domain.ProviderFal, ExternalID: "req-1", RawStatus: "in_progress"},
		},
	}
	rec, jobs, _ := testReconciler(adapter)
	seedJob(t, jobs, "job-1", "req-1")

	if _, err := rec.Resync(context.Background(), "job-1", ""); !errors.Is(err, domain.ErrNoPlayableMedia) {
		t.Fatalf("Resync err = %v, want ErrNoPlayableMedia", err)
	}
}

func TestResyncLinksOverrideAndApplies(t *testing.T) {
	adapter := &scriptedAdapter{
		results: map[string]*provider.PollResult{
			"req-override": {
				Provider:   domain.ProviderFal,
				ExternalID: "req-override",
				RawStatus:  "completed",
				OutputURL:  "https://cdn.example.com/recovered.mp4",
			},
		},
	}
	rec, jobs, _ := testReconciler(adapter)
	seedJob(t, jobs, "job-1", "")

	updated, err := rec.Resync(context.Background(), "job-1", "req-override")
	if err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if updated.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", updated.Status)
	}
	job, _ := jobs.GetByID(context.Background(), "job-1")
	if job.ExternalJobID == nil || *job.ExternalJobID != "req-override" {
		t.Fatalf("external id = %v, want req-override linked", job.ExternalJobID)
	}
}
