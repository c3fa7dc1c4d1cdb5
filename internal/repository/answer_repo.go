package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/models"
)

// AnswerRepository exposes raw answers for score and feedback computation.
type AnswerRepository interface {
	ListNumeric(ctx context.Context, assignmentIDs []uint) ([]models.Answer, error)
	ListText(ctx context.Context, assignmentIDs []uint) ([]models.Answer, error)
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository constructs the answer repository.
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) ListNumeric(ctx context.Context, assignmentIDs []uint) ([]models.Answer, error) {
	if len(assignmentIDs) == 0 {
		return []models.Answer{}, nil
	}
	var answers []models.Answer
	err := r.db.WithContext(ctx).
		Where("assignment_id IN ?", assignmentIDs).
		Where("dimension_id IS NOT NULL AND numeric_value IS NOT NULL").
		Order("id ASC").
		Find(&answers).Error
	return answers, err
}

// ListText returns free-text answers to text questions, tagged to a dimension.
func (r *answerRepository) ListText(ctx context.Context, assignmentIDs []uint) ([]models.Answer, error) {
	if len(assignmentIDs) == 0 {
		return []models.Answer{}, nil
	}
	var answers []models.Answer
	err := r.db.WithContext(ctx).
		Joins("JOIN questions ON questions.id = answers.question_id").
		Where("answers.assignment_id IN ?", assignmentIDs).
		Where("questions.type = ?", models.QuestionTypeText).
		Where("answers.dimension_id IS NOT NULL").
		Where("TRIM(answers.text_value) <> ''").
		Order("answers.id ASC").
		Find(&answers).Error
	return answers, err
}
