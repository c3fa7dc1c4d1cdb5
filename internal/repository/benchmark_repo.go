package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/models"
)

// BenchmarkRepository reads industry reference scores.
type BenchmarkRepository interface {
	ListByIndustry(ctx context.Context, industryID uint, dimensionIDs []uint) ([]models.Benchmark, error)
}

type benchmarkRepository struct {
	db *gorm.DB
}

// NewBenchmarkRepository constructs the benchmark repository.
func NewBenchmarkRepository(db *gorm.DB) BenchmarkRepository {
	return &benchmarkRepository{db: db}
}

func (r *benchmarkRepository) ListByIndustry(ctx context.Context, industryID uint, dimensionIDs []uint) ([]models.Benchmark, error) {
	if len(dimensionIDs) == 0 {
		return []models.Benchmark{}, nil
	}
	var benchmarks []models.Benchmark
	err := r.db.WithContext(ctx).
		Where("industry_id = ? AND dimension_id IN ?", industryID, dimensionIDs).
		Find(&benchmarks).Error
	return benchmarks, err
}
