package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/models"
)

// DimensionScoreRepository owns the per-assignment aggregation procedure.
type DimensionScoreRepository interface {
	Refresh(ctx context.Context, assignmentID uint) error
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.DimensionScore, error)
}

type dimensionScoreRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDimensionScoreRepository constructs the dimension score repository.
func NewDimensionScoreRepository(db *gorm.DB) DimensionScoreRepository {
	return &dimensionScoreRepository{db: db, now: time.Now}
}

// Refresh rebuilds the cached per-dimension averages for one assignment from its answers.
func (r *dimensionScoreRepository) Refresh(ctx context.Context, assignmentID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ?", assignmentID).Delete(&models.DimensionScore{}).Error; err != nil {
			return err
		}
		return tx.Exec(`
			INSERT INTO dimension_scores (assignment_id, dimension_id, score, response_count, updated_at)
			SELECT assignment_id, dimension_id, AVG(numeric_value), COUNT(numeric_value), ?
			FROM answers
			WHERE assignment_id = ? AND dimension_id IS NOT NULL AND numeric_value IS NOT NULL
			GROUP BY assignment_id, dimension_id
		`, r.now(), assignmentID).Error
	})
}

func (r *dimensionScoreRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.DimensionScore, error) {
	var scores []models.DimensionScore
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("dimension_id ASC").
		Find(&scores).Error
	return scores, err
}
