package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/talentscope-api/internal/models"
)

// ErrNoQueuedJob is returned when no render job is waiting to be claimed.
var ErrNoQueuedJob = errors.New("no queued render job")

// ReportCacheRepository persists computed reports and their document render state.
type ReportCacheRepository interface {
	Get(ctx context.Context, assignmentID uint) (models.ReportCache, error)
	SaveReport(ctx context.Context, cache *models.ReportCache) error
	Queue(ctx context.Context, assignmentID uint, requestedAt time.Time) error
	ClaimNextQueued(ctx context.Context) (models.ReportCache, error)
	MarkReady(ctx context.Context, assignmentID uint, version int, storagePath string, generatedAt time.Time) error
	MarkFailed(ctx context.Context, assignmentID uint, message string) error
}

type reportCacheRepository struct {
	db *gorm.DB
}

// NewReportCacheRepository constructs the report cache repository.
func NewReportCacheRepository(db *gorm.DB) ReportCacheRepository {
	return &reportCacheRepository{db: db}
}

func (r *reportCacheRepository) Get(ctx context.Context, assignmentID uint) (models.ReportCache, error) {
	var cache models.ReportCache
	err := r.db.WithContext(ctx).First(&cache, "assignment_id = ?", assignmentID).Error
	return cache, err
}

// SaveReport upserts the report columns, leaving render state untouched on existing rows.
func (r *reportCacheRepository) SaveReport(ctx context.Context, cache *models.ReportCache) error {
	if cache.PDFStatus == "" {
		cache.PDFStatus = models.RenderStatusNotRequested
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "assignment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "data", "overall_score", "calculated_at", "updated_at"}),
	}).Create(cache).Error
}

// Queue moves the assignment's render job to queued, creating the row when needed.
func (r *reportCacheRepository) Queue(ctx context.Context, assignmentID uint, requestedAt time.Time) error {
	row := models.ReportCache{
		AssignmentID:   assignmentID,
		PDFStatus:      models.RenderStatusQueued,
		PDFRequestedAt: &requestedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "assignment_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"pdf_status":       models.RenderStatusQueued,
			"pdf_requested_at": requestedAt,
			"pdf_last_error":   "",
			"updated_at":       requestedAt,
		}),
	}).Create(&row).Error
}

// ClaimNextQueued atomically moves the oldest queued job to generating.
// A concurrent claimer that loses the conditional update retries with the next candidate.
func (r *reportCacheRepository) ClaimNextQueued(ctx context.Context) (models.ReportCache, error) {
	for attempt := 0; attempt < 5; attempt++ {
		var candidate models.ReportCache
		err := r.db.WithContext(ctx).
			Where("pdf_status = ?", models.RenderStatusQueued).
			Order("pdf_requested_at ASC, assignment_id ASC").
			First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ReportCache{}, ErrNoQueuedJob
		}
		if err != nil {
			return models.ReportCache{}, err
		}

		result := r.db.WithContext(ctx).Model(&models.ReportCache{}).
			Where("assignment_id = ? AND pdf_status = ?", candidate.AssignmentID, models.RenderStatusQueued).
			Updates(map[string]interface{}{"pdf_status": models.RenderStatusGenerating})
		if result.Error != nil {
			return models.ReportCache{}, result.Error
		}
		if result.RowsAffected == 1 {
			candidate.PDFStatus = models.RenderStatusGenerating
			return candidate, nil
		}
	}
	return models.ReportCache{}, ErrNoQueuedJob
}

func (r *reportCacheRepository) MarkReady(ctx context.Context, assignmentID uint, version int, storagePath string, generatedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.ReportCache{}).
		Where("assignment_id = ?", assignmentID).
		Updates(map[string]interface{}{
			"pdf_status":       models.RenderStatusReady,
			"pdf_version":      version,
			"pdf_storage_path": storagePath,
			"pdf_generated_at": generatedAt,
			"pdf_last_error":   "",
		}).Error
}

func (r *reportCacheRepository) MarkFailed(ctx context.Context, assignmentID uint, message string) error {
	return r.db.WithContext(ctx).Model(&models.ReportCache{}).
		Where("assignment_id = ?", assignmentID).
		Updates(map[string]interface{}{
			"pdf_status":     models.RenderStatusFailed,
			"pdf_last_error": message,
		}).Error
}
