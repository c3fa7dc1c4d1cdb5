package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/models"
)

// AssignmentRepository reads assignments for report computation.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	ListBySubject(ctx context.Context, assessmentID, subjectID uint) ([]models.Assignment, error)
	ListCompletedByGroup(ctx context.Context, assessmentID, groupID uint) ([]models.Assignment, error)
	GetUser(ctx context.Context, id uint) (models.User, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Preload("Assessment").
		Preload("Assessment.ReportTemplate").
		First(&assignment, id).Error
	return assignment, err
}

// ListBySubject returns every rater assignment about the subject, completed or not.
func (r *assignmentRepository) ListBySubject(ctx context.Context, assessmentID, subjectID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Where("(target_id = ? OR (target_id IS NULL AND user_id = ?))", subjectID, subjectID).
		Order("completed_at ASC, id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepository) ListCompletedByGroup(ctx context.Context, assessmentID, groupID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("assessment_id = ? AND group_id = ? AND completed = ?", assessmentID, groupID, true).
		Order("id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepository) GetUser(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Client").
		First(&user, id).Error
	return user, err
}
