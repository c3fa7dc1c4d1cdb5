package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/models"
)

// DimensionRepository loads scoring dimensions.
type DimensionRepository interface {
	ListByAssessment(ctx context.Context, assessmentID uint) ([]models.Dimension, error)
}

type dimensionRepository struct {
	db *gorm.DB
}

// NewDimensionRepository constructs the dimension repository.
func NewDimensionRepository(db *gorm.DB) DimensionRepository {
	return &dimensionRepository{db: db}
}

func (r *dimensionRepository) ListByAssessment(ctx context.Context, assessmentID uint) ([]models.Dimension, error) {
	var dimensions []models.Dimension
	err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("position ASC, id ASC").
		Find(&dimensions).Error
	return dimensions, err
}
