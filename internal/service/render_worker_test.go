package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/models"
	"github.com/noah-isme/talentscope-api/internal/repository"
)

const testPrintSecret = "print-secret"

type fakeRenderer struct {
	mu     sync.Mutex
	output []byte
	err    error
	pages  []string
}

func (f *fakeRenderer) RenderPDF(_ context.Context, pageURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, pageURL)
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

type renderWorkerFixture struct {
	*reportFixture
	storage  *fakeStorage
	renderer *fakeRenderer
	events   RenderEventService
	worker   *RenderWorker
}

func newRenderWorkerFixture(t *testing.T) *renderWorkerFixture {
	t.Helper()
	f := newReportFixture(t)
	storage := newFakeStorage()
	renderer := &fakeRenderer{output: []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF")}
	events := NewRenderEventService(nil, "", nil, testLogger())
	worker := NewRenderWorker(
		f.caches,
		NewPrintTokenService(testPrintSecret, time.Minute, nil, testLogger()),
		renderer,
		storage,
		events,
		RenderWorkerConfig{PollInterval: 10 * time.Millisecond, RenderTimeout: time.Second, PrintBaseURL: "http://api.internal:8080/"},
		testLogger(),
	)
	return &renderWorkerFixture{reportFixture: f, storage: storage, renderer: renderer, events: events, worker: worker}
}

func drainEvents(ch <-chan dto.RenderStatusEvent) []dto.RenderStatusEvent {
	var events []dto.RenderStatusEvent
	for {
		select {
		case event := <-ch:
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestRenderWorkerProcessesQueuedJob(t *testing.T) {
	f := newRenderWorkerFixture(t)
	ctx := context.Background()
	updates, cleanup := f.events.Subscribe(801)
	defer cleanup()

	require.NoError(t, f.caches.Queue(ctx, 801, time.Now()))

	claimed, err := f.worker.ProcessNext(ctx)
	require.NoError(t, err)
	require.True(t, claimed)

	row, err := f.caches.Get(ctx, 801)
	require.NoError(t, err)
	require.Equal(t, models.RenderStatusReady, row.PDFStatus)
	require.Equal(t, 1, row.PDFVersion)
	require.Equal(t, "801/v1.pdf", row.PDFStoragePath)
	require.NotNil(t, row.PDFGeneratedAt)

	data, ok := f.storage.uploaded("801/v1.pdf")
	require.True(t, ok)
	require.Equal(t, f.renderer.output, data)

	require.Len(t, f.renderer.pages, 1)
	pageURL, err := url.Parse(f.renderer.pages[0])
	require.NoError(t, err)
	require.Equal(t, "api.internal:8080", pageURL.Host)
	require.Equal(t, "/print/reports/801", pageURL.Path)

	redeemer := NewPrintTokenService(testPrintSecret, time.Minute, f.redis, testLogger())
	granted, err := redeemer.Redeem(ctx, pageURL.Query().Get("token"))
	require.NoError(t, err)
	require.Equal(t, uint(801), granted)

	events := drainEvents(updates)
	require.Len(t, events, 2)
	require.Equal(t, models.RenderStatusGenerating, events[0].Status)
	require.Equal(t, models.RenderStatusReady, events[1].Status)
	require.Equal(t, 1, events[1].Version)
	require.Equal(t, "801/v1.pdf", events[1].StoragePath)
}

func TestRenderWorkerIncrementsVersion(t *testing.T) {
	f := newRenderWorkerFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, f.caches.Queue(ctx, 802, time.Now()))
		claimed, err := f.worker.ProcessNext(ctx)
		require.NoError(t, err)
		require.True(t, claimed)
	}

	row, err := f.caches.Get(ctx, 802)
	require.NoError(t, err)
	require.Equal(t, 2, row.PDFVersion)
	require.Equal(t, "802/v2.pdf", row.PDFStoragePath)
	_, ok := f.storage.uploaded("802/v1.pdf")
	require.True(t, ok)
}

func TestRenderWorkerRecordsFailures(t *testing.T) {
	cases := []struct {
		name      string
		configure func(f *renderWorkerFixture)
		contains  string
	}{
		{
			name:      "renderer error",
			configure: func(f *renderWorkerFixture) { f.renderer.err = errors.New("page crashed") },
			contains:  "page crashed",
		},
		{
			name:      "not a pdf",
			configure: func(f *renderWorkerFixture) { f.renderer.output = []byte("<html><body>oops</body></html>") },
			contains:  "unexpected content type",
		},
		{
			name:      "upload error",
			configure: func(f *renderWorkerFixture) { f.storage.err = errors.New("bucket unavailable") },
			contains:  "bucket unavailable",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRenderWorkerFixture(t)
			tc.configure(f)
			ctx := context.Background()
			updates, cleanup := f.events.Subscribe(803)
			defer cleanup()

			require.NoError(t, f.caches.Queue(ctx, 803, time.Now()))
			claimed, err := f.worker.ProcessNext(ctx)
			require.NoError(t, err)
			require.True(t, claimed)

			row, err := f.caches.Get(ctx, 803)
			require.NoError(t, err)
			require.Equal(t, models.RenderStatusFailed, row.PDFStatus)
			require.Contains(t, row.PDFLastError, tc.contains)
			require.Equal(t, 0, row.PDFVersion)

			events := drainEvents(updates)
			require.Len(t, events, 2)
			require.Equal(t, models.RenderStatusFailed, events[1].Status)
			require.Equal(t, RenderFailureMessage, events[1].Error)
		})
	}
}

type failingReadyRepo struct {
	repository.ReportCacheRepository
	err error
}

func (r failingReadyRepo) MarkReady(context.Context, uint, int, string, time.Time) error {
	return r.err
}

func TestRenderWorkerFailsJobWhenReadyCannotBeRecorded(t *testing.T) {
	f := newRenderWorkerFixture(t)
	worker := NewRenderWorker(
		failingReadyRepo{ReportCacheRepository: f.caches, err: errors.New("database is locked")},
		NewPrintTokenService(testPrintSecret, time.Minute, nil, testLogger()),
		f.renderer,
		f.storage,
		f.events,
		RenderWorkerConfig{PollInterval: 10 * time.Millisecond, RenderTimeout: time.Second, PrintBaseURL: "http://api.internal:8080/"},
		testLogger(),
	)
	ctx := context.Background()
	updates, cleanup := f.events.Subscribe(804)
	defer cleanup()

	require.NoError(t, f.caches.Queue(ctx, 804, time.Now()))
	claimed, err := worker.ProcessNext(ctx)
	require.NoError(t, err)
	require.True(t, claimed)

	_, uploaded := f.storage.uploaded("804/v1.pdf")
	require.True(t, uploaded)

	row, err := f.caches.Get(ctx, 804)
	require.NoError(t, err)
	require.Equal(t, models.RenderStatusFailed, row.PDFStatus)
	require.Contains(t, row.PDFLastError, "database is locked")
	require.Equal(t, 0, row.PDFVersion)

	events := drainEvents(updates)
	require.Len(t, events, 2)
	require.Equal(t, models.RenderStatusFailed, events[1].Status)
}

func TestRenderWorkerWithoutQueuedJobs(t *testing.T) {
	f := newRenderWorkerFixture(t)

	claimed, err := f.worker.ProcessNext(context.Background())
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestRenderWorkerRunStopsOnCancel(t *testing.T) {
	f := newRenderWorkerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.caches.Queue(ctx, 804, time.Now()))

	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		row, err := f.caches.Get(context.Background(), 804)
		return err == nil && row.PDFStatus == models.RenderStatusReady
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestArtifactPathAndPrintURL(t *testing.T) {
	require.Equal(t, "42/v3.pdf", ArtifactPath(42, 3, "pdf"))
	require.Equal(t, "http://localhost:8080/print/reports/42?token=a%2Bb", PrintURL("http://localhost:8080/", 42, "a+b"))
}
