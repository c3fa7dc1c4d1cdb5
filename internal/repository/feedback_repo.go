package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/models"
)

// FeedbackRepository manages the feedback library and the feedback attached to reports.
type FeedbackRepository interface {
	ListEntries(ctx context.Context, assessmentID uint) ([]models.FeedbackEntry, error)
	ListAssigned(ctx context.Context, assignmentID uint) ([]models.AssignedFeedback, error)
	ReplaceAssigned(ctx context.Context, assignmentID uint, items []models.AssignedFeedback) error
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository constructs the feedback repository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) ListEntries(ctx context.Context, assessmentID uint) ([]models.FeedbackEntry, error) {
	var entries []models.FeedbackEntry
	err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("position ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *feedbackRepository) ListAssigned(ctx context.Context, assignmentID uint) ([]models.AssignedFeedback, error) {
	var items []models.AssignedFeedback
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("position ASC, id ASC").
		Find(&items).Error
	return items, err
}

// ReplaceAssigned swaps the assignment's feedback set in a single transaction.
func (r *feedbackRepository) ReplaceAssigned(ctx context.Context, assignmentID uint, items []models.AssignedFeedback) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ?", assignmentID).Delete(&models.AssignedFeedback{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ID = 0
			items[i].AssignmentID = assignmentID
		}
		return tx.Create(&items).Error
	})
}
