package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/models"
	"github.com/noah-isme/talentscope-api/internal/observability"
	"github.com/noah-isme/talentscope-api/internal/repository"
)

// DocumentRenderer turns a printable page into a PDF document.
type DocumentRenderer interface {
	RenderPDF(ctx context.Context, pageURL string) ([]byte, error)
}

// RenderWorkerConfig tunes the polling loop.
type RenderWorkerConfig struct {
	PollInterval  time.Duration
	RenderTimeout time.Duration
	PrintBaseURL  string
	Debug         bool
}

// RenderWorker claims queued render jobs and processes them one at a time.
type RenderWorker struct {
	caches   repository.ReportCacheRepository
	tokens   PrintTokenService
	renderer DocumentRenderer
	storage  ArtifactStorage
	events   RenderEventService
	cfg      RenderWorkerConfig
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRenderWorker wires the worker. events may be nil.
func NewRenderWorker(caches repository.ReportCacheRepository, tokens PrintTokenService, renderer DocumentRenderer, storage ArtifactStorage, events RenderEventService, cfg RenderWorkerConfig, logger zerolog.Logger) *RenderWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 2 * time.Minute
	}
	return &RenderWorker{
		caches:   caches,
		tokens:   tokens,
		renderer: renderer,
		storage:  storage,
		events:   events,
		cfg:      cfg,
		logger:   logger.With().Str("component", "render_worker").Logger(),
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled. Datastore errors are logged and retried on the next tick.
func (w *RenderWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info().Dur("poll_interval", w.cfg.PollInterval).Msg("render worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("render worker stopped")
			return nil
		case <-ticker.C:
			if _, err := w.ProcessNext(ctx); err != nil {
				w.logger.Error().Err(err).Msg("render poll failed")
			}
		}
	}
}

// ProcessNext claims and processes at most one job. It reports whether a job was claimed.
func (w *RenderWorker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.caches.ClaimNextQueued(ctx)
	if errors.Is(err, repository.ErrNoQueuedJob) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim render job: %w", err)
	}

	w.process(ctx, job)
	return true, nil
}

func (w *RenderWorker) process(ctx context.Context, job models.ReportCache) {
	tracer := otel.Tracer("github.com/noah-isme/talentscope-api/internal/service/render_worker")
	ctx, span := tracer.Start(ctx, "render.job")
	span.SetAttributes(attribute.Int64("assignment.id", int64(job.AssignmentID)))
	defer span.End()

	version := job.PDFVersion + 1
	logger := w.logger.With().Uint("assignment_id", job.AssignmentID).Int("version", version).Logger()
	w.publish(ctx, dto.RenderStatusEvent{AssignmentID: job.AssignmentID, Status: models.RenderStatusGenerating, Version: job.PDFVersion})

	started := w.now()
	path, err := w.render(ctx, job.AssignmentID, version)
	duration := w.now().Sub(started)
	observability.RenderDuration().Observe(duration.Seconds())

	if err == nil {
		if markErr := w.caches.MarkReady(context.WithoutCancel(ctx), job.AssignmentID, version, path, w.now().UTC()); markErr != nil {
			err = fmt.Errorf("record render result: %w", markErr)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render_failed")
		observability.RenderJobs().WithLabelValues("failed").Inc()
		logger.Error().Err(err).Dur("duration", duration).Msg("render job failed")

		if markErr := w.caches.MarkFailed(context.WithoutCancel(ctx), job.AssignmentID, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("failed to record render failure")
		}
		w.publish(ctx, dto.RenderStatusEvent{AssignmentID: job.AssignmentID, Status: models.RenderStatusFailed, Version: job.PDFVersion, Error: RenderFailureMessage})
		return
	}

	observability.RenderJobs().WithLabelValues("ready").Inc()
	logger.Info().Str("storage_path", path).Dur("duration", duration).Msg("render job completed")
	w.publish(ctx, dto.RenderStatusEvent{AssignmentID: job.AssignmentID, Status: models.RenderStatusReady, Version: version, StoragePath: path})
}

// render is bounded by the render timeout as a whole, on top of the per-step browser bounds.
func (w *RenderWorker) render(ctx context.Context, assignmentID uint, version int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RenderTimeout)
	defer cancel()

	token, err := w.tokens.Issue(ctx, assignmentID)
	if err != nil {
		return "", fmt.Errorf("issue print token: %w", err)
	}
	pageURL := PrintURL(w.cfg.PrintBaseURL, assignmentID, token)
	if w.cfg.Debug {
		w.logger.Debug().Uint("assignment_id", assignmentID).Msg("rendering printable view")
	}

	data, err := w.renderer.RenderPDF(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("render document: empty output")
	}
	if detected := mimetype.Detect(data); !detected.Is("application/pdf") {
		return "", fmt.Errorf("render document: unexpected content type %s", detected.String())
	}

	path := ArtifactPath(assignmentID, version, "pdf")
	if _, err := w.storage.Upload(ctx, path, "application/pdf", data, true); err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}
	return path, nil
}

func (w *RenderWorker) publish(ctx context.Context, event dto.RenderStatusEvent) {
	if w.events == nil {
		return
	}
	event.OccurredAt = w.now().UTC()
	if err := w.events.Publish(ctx, event); err != nil {
		w.logger.Warn().Err(err).Uint("assignment_id", event.AssignmentID).Msg("failed to publish render status")
	}
}

// ArtifactPath is the deterministic storage location of a rendered artifact.
func ArtifactPath(assignmentID uint, version int, ext string) string {
	return fmt.Sprintf("%d/v%d.%s", assignmentID, version, ext)
}

// PrintURL builds the printable view address carrying the print credential.
func PrintURL(baseURL string, assignmentID uint, token string) string {
	return fmt.Sprintf("%s/print/reports/%d?token=%s", strings.TrimRight(baseURL, "/"), assignmentID, url.QueryEscape(token))
}
