package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/models"
	"github.com/noah-isme/talentscope-api/internal/repository"
)

// RenderFailureMessage is shown to non-admin users instead of the raw render error.
const RenderFailureMessage = "Report generation failed. Please request a new report."

// ArtifactStorage stores rendered documents and signs time-limited download links.
type ArtifactStorage interface {
	Upload(ctx context.Context, path, contentType string, data []byte, overwrite bool) (string, error)
	SignedURL(path string, ttl time.Duration) (string, error)
}

// RenderQueueService accepts render requests and reports job state.
type RenderQueueService interface {
	Enqueue(ctx context.Context, req dto.RenderEnqueueRequest) (dto.RenderEnqueueResult, error)
	Status(ctx context.Context, assignmentID uint, viewer dto.ReportViewer) (dto.RenderStatusResponse, error)
}

type renderQueueService struct {
	assignments repository.AssignmentRepository
	caches      repository.ReportCacheRepository
	storage     ArtifactStorage
	signedTTL   time.Duration
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRenderQueueService constructs the queue service. storage may be nil when downloads are not signed.
func NewRenderQueueService(assignments repository.AssignmentRepository, caches repository.ReportCacheRepository, storage ArtifactStorage, signedTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) RenderQueueService {
	if signedTTL <= 0 {
		signedTTL = 15 * time.Minute
	}
	return &renderQueueService{
		assignments: assignments,
		caches:      caches,
		storage:     storage,
		signedTTL:   signedTTL,
		validator:   validate,
		logger:      logger.With().Str("component", "render_queue_service").Logger(),
		now:         time.Now,
	}
}

// Enqueue queues eligible assignments. Jobs already in flight or finished are skipped,
// unless regenerate is set, in which case only in-flight jobs are skipped.
func (s *renderQueueService) Enqueue(ctx context.Context, req dto.RenderEnqueueRequest) (dto.RenderEnqueueResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RenderEnqueueResult{}, err
	}

	result := dto.RenderEnqueueResult{Errors: []string{}}
	seen := make(map[uint]struct{}, len(req.AssignmentIDs))
	for _, id := range req.AssignmentIDs {
		if _, dup := seen[id]; dup {
			result.Skipped++
			continue
		}
		seen[id] = struct{}{}

		assignment, err := s.assignments.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.Errors = append(result.Errors, fmt.Sprintf("%d: assignment not found", id))
				continue
			}
			return dto.RenderEnqueueResult{}, fmt.Errorf("load assignment %d: %w", id, err)
		}
		if !assignment.Completed {
			result.Errors = append(result.Errors, fmt.Sprintf("%d: assignment not completed", id))
			continue
		}

		status := models.RenderStatusNotRequested
		cache, err := s.caches.Get(ctx, id)
		switch {
		case err == nil:
			status = cache.RenderStatusOrDefault()
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return dto.RenderEnqueueResult{}, fmt.Errorf("load render state %d: %w", id, err)
		}

		if skipEnqueue(status, req.Regenerate) {
			result.Skipped++
			continue
		}

		if err := s.caches.Queue(ctx, id, s.now().UTC()); err != nil {
			return dto.RenderEnqueueResult{}, fmt.Errorf("queue render %d: %w", id, err)
		}
		result.Queued++
	}

	s.logger.Info().
		Int("queued", result.Queued).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Bool("regenerate", req.Regenerate).
		Msg("render jobs enqueued")
	return result, nil
}

func skipEnqueue(status string, regenerate bool) bool {
	switch status {
	case models.RenderStatusQueued, models.RenderStatusGenerating:
		return true
	case models.RenderStatusReady:
		return !regenerate
	default:
		return false
	}
}

func (s *renderQueueService) Status(ctx context.Context, assignmentID uint, viewer dto.ReportViewer) (dto.RenderStatusResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RenderStatusResponse{}, ErrReportAssignmentNotFound
		}
		return dto.RenderStatusResponse{}, fmt.Errorf("load assignment: %w", err)
	}
	if !canView(viewer, assignment) {
		return dto.RenderStatusResponse{}, ErrReportForbidden
	}

	response := dto.RenderStatusResponse{AssignmentID: assignmentID, Status: models.RenderStatusNotRequested}
	cache, err := s.caches.Get(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response, nil
		}
		return dto.RenderStatusResponse{}, fmt.Errorf("load render state: %w", err)
	}

	response.Status = cache.RenderStatusOrDefault()
	response.Version = cache.PDFVersion
	response.GeneratedAt = cache.PDFGeneratedAt
	response.StoragePath = cache.PDFStoragePath

	if response.Status == models.RenderStatusFailed {
		response.Message = RenderFailureMessage
		if viewer.IsAdmin() {
			response.LastError = cache.PDFLastError
		}
	}

	if response.Status == models.RenderStatusReady && cache.PDFStoragePath != "" && s.storage != nil {
		url, err := s.storage.SignedURL(cache.PDFStoragePath, s.signedTTL)
		if err != nil {
			s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to sign download url")
		} else {
			response.DownloadURL = url
		}
	}
	return response, nil
}
