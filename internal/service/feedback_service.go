package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/models"
	"github.com/noah-isme/talentscope-api/internal/repository"
)

// FeedbackService attaches narrative feedback to reports.
type FeedbackService interface {
	AssignRanged(ctx context.Context, assignment models.Assignment, overallScore float64, dimensions []dto.DimensionReport) ([]models.AssignedFeedback, error)
	AssignHarvested(ctx context.Context, assignment models.Assignment, raters []models.Assignment, dimensions []dto.DimensionReport) ([]models.AssignedFeedback, error)
	List(ctx context.Context, assignmentID uint) ([]dto.AssignedFeedbackResponse, error)
}

type feedbackService struct {
	feedback repository.FeedbackRepository
	answers  repository.AnswerRepository
	logger   zerolog.Logger
}

// NewFeedbackService constructs the feedback engine.
func NewFeedbackService(feedback repository.FeedbackRepository, answers repository.AnswerRepository, logger zerolog.Logger) FeedbackService {
	return &feedbackService{
		feedback: feedback,
		answers:  answers,
		logger:   logger.With().Str("component", "feedback_service").Logger(),
	}
}

// AssignRanged matches library entries whose score range contains the overall or dimension score
// and replaces the assignment's previous feedback with the matches.
func (s *feedbackService) AssignRanged(ctx context.Context, assignment models.Assignment, overallScore float64, dimensions []dto.DimensionReport) ([]models.AssignedFeedback, error) {
	tracer := otel.Tracer("github.com/noah-isme/talentscope-api/internal/service/feedback")
	ctx, span := tracer.Start(ctx, "feedback.assign_ranged")
	span.SetAttributes(attribute.Int64("assignment.id", int64(assignment.ID)))
	defer span.End()

	entries, err := s.feedback.ListEntries(ctx, assignment.AssessmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_feedback_entries_failed")
		return nil, fmt.Errorf("load feedback library: %w", err)
	}

	items := matchRangedFeedback(entries, overallScore, dimensions)
	if err := s.feedback.ReplaceAssigned(ctx, assignment.ID, items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace_feedback_failed")
		return nil, fmt.Errorf("store feedback: %w", err)
	}

	span.SetAttributes(attribute.Int("feedback.assigned", len(items)))
	return items, nil
}

// AssignHarvested collects free-text rater answers per dimension and replaces the assignment's
// previous feedback with them.
func (s *feedbackService) AssignHarvested(ctx context.Context, assignment models.Assignment, raters []models.Assignment, dimensions []dto.DimensionReport) ([]models.AssignedFeedback, error) {
	tracer := otel.Tracer("github.com/noah-isme/talentscope-api/internal/service/feedback")
	ctx, span := tracer.Start(ctx, "feedback.assign_harvested")
	span.SetAttributes(attribute.Int64("assignment.id", int64(assignment.ID)))
	defer span.End()

	ids := make([]uint, 0, len(raters))
	for _, rater := range raters {
		if rater.Completed {
			ids = append(ids, rater.ID)
		}
	}

	answers, err := s.answers.ListText(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_text_answers_failed")
		return nil, fmt.Errorf("load text answers: %w", err)
	}

	items := harvestFeedback(raters, answers, dimensions)
	if err := s.feedback.ReplaceAssigned(ctx, assignment.ID, items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace_feedback_failed")
		return nil, fmt.Errorf("store feedback: %w", err)
	}

	span.SetAttributes(attribute.Int("feedback.assigned", len(items)))
	return items, nil
}

func (s *feedbackService) List(ctx context.Context, assignmentID uint) ([]dto.AssignedFeedbackResponse, error) {
	items, err := s.feedback.ListAssigned(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("load assigned feedback: %w", err)
	}
	return toAssignedFeedbackResponses(items), nil
}

// matchRangedFeedback walks the library in order; dimensions without data receive no specific feedback
// and the overall entries only apply when at least one dimension has data.
func matchRangedFeedback(entries []models.FeedbackEntry, overallScore float64, dimensions []dto.DimensionReport) []models.AssignedFeedback {
	scored := make(map[uint]float64, len(dimensions))
	for _, dim := range dimensions {
		if dim.ResponseCount > 0 {
			scored[dim.DimensionID] = dim.OverallScore
		}
	}

	items := make([]models.AssignedFeedback, 0)
	for _, entry := range entries {
		entryID := entry.ID
		switch entry.Type {
		case models.FeedbackTypeOverall:
			if entry.DimensionID != nil || len(scored) == 0 || !entry.Contains(overallScore) {
				continue
			}
			items = append(items, models.AssignedFeedback{
				FeedbackEntryID: &entryID,
				Type:            models.FeedbackTypeOverall,
				Content:         entry.Content,
				Position:        len(items),
			})
		case models.FeedbackTypeSpecific:
			if entry.DimensionID == nil {
				continue
			}
			score, ok := scored[*entry.DimensionID]
			if !ok || !entry.Contains(score) {
				continue
			}
			dimensionID := *entry.DimensionID
			items = append(items, models.AssignedFeedback{
				FeedbackEntryID: &entryID,
				DimensionID:     &dimensionID,
				Type:            models.FeedbackTypeSpecific,
				Content:         entry.Content,
				Position:        len(items),
			})
		}
	}
	return items
}

// harvestFeedback orders text answers by the completion time of their assignment, then by answer id,
// and keeps those tagged to a reported dimension. Content is kept verbatim.
func harvestFeedback(raters []models.Assignment, answers []models.Answer, dimensions []dto.DimensionReport) []models.AssignedFeedback {
	completedAt := make(map[uint]time.Time, len(raters))
	for _, rater := range raters {
		if !rater.Completed {
			continue
		}
		var at time.Time
		if rater.CompletedAt != nil {
			at = *rater.CompletedAt
		}
		completedAt[rater.ID] = at
	}
	reported := make(map[uint]struct{}, len(dimensions))
	for _, dim := range dimensions {
		reported[dim.DimensionID] = struct{}{}
	}

	selected := make([]models.Answer, 0, len(answers))
	for _, answer := range answers {
		if _, ok := completedAt[answer.AssignmentID]; !ok || answer.DimensionID == nil {
			continue
		}
		if _, ok := reported[*answer.DimensionID]; !ok {
			continue
		}
		if strings.TrimSpace(answer.TextValue) == "" {
			continue
		}
		selected = append(selected, answer)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		left, right := completedAt[selected[i].AssignmentID], completedAt[selected[j].AssignmentID]
		if !left.Equal(right) {
			return left.Before(right)
		}
		return selected[i].ID < selected[j].ID
	})

	items := make([]models.AssignedFeedback, 0, len(selected))
	for _, answer := range selected {
		dimensionID := *answer.DimensionID
		items = append(items, models.AssignedFeedback{
			DimensionID: &dimensionID,
			Type:        models.FeedbackTypeSpecific,
			Content:     answer.TextValue,
			Position:    len(items),
		})
	}
	return items
}

// attachFeedback copies assigned feedback into the report; fields without matches stay null.
func attachFeedback(report dto.ReportData, items []models.AssignedFeedback) {
	base := report.Base()
	index := make(map[uint]int, len(base.Dimensions))
	for i, dim := range base.Dimensions {
		base.Dimensions[i].Feedback = nil
		index[dim.DimensionID] = i
	}

	var overall []string
	for _, item := range items {
		if item.DimensionID == nil {
			overall = append(overall, item.Content)
			continue
		}
		if i, ok := index[*item.DimensionID]; ok {
			base.Dimensions[i].Feedback = append(base.Dimensions[i].Feedback, item.Content)
		}
	}

	if r, ok := report.(*dto.ReportLeaderBlockerData); ok {
		r.OverallFeedback = overall
	}
}

func toAssignedFeedbackResponses(items []models.AssignedFeedback) []dto.AssignedFeedbackResponse {
	responses := make([]dto.AssignedFeedbackResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.AssignedFeedbackResponse{
			ID:              item.ID,
			FeedbackEntryID: item.FeedbackEntryID,
			DimensionID:     item.DimensionID,
			Type:            item.Type,
			Content:         item.Content,
		})
	}
	return responses
}
