package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/models"
)

func setupReportTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func floatPtr(v float64) *float64 { return &v }

func uintPtr(v uint) *uint { return &v }

func seedAssessment(t *testing.T, db *gorm.DB) (models.User, models.Assessment, []models.Dimension) {
	t.Helper()
	user := models.User{FullName: "Dana Reyes", Email: fmt.Sprintf("%s@example.com", t.Name())}
	require.NoError(t, db.Create(&user).Error)
	assessment := models.Assessment{Title: "Leadership", Type: models.AssessmentTypeLeaderBlocker}
	require.NoError(t, db.Create(&assessment).Error)

	dims := []models.Dimension{
		{AssessmentID: assessment.ID, Code: "A", Name: "Alpha", Position: 1},
		{AssessmentID: assessment.ID, Code: "B", Name: "Beta", Position: 2},
	}
	require.NoError(t, db.Create(&dims).Error)
	return user, assessment, dims
}

func TestDimensionScoreRepositoryRefreshAggregatesAnswers(t *testing.T) {
	db := setupReportTestDB(t)
	repo := NewDimensionScoreRepository(db)
	user, assessment, dims := seedAssessment(t, db)

	question := models.Question{AssessmentID: assessment.ID, Type: models.QuestionTypeScale}
	require.NoError(t, db.Create(&question).Error)
	assignment := models.Assignment{UserID: user.ID, AssessmentID: assessment.ID, Completed: true}
	require.NoError(t, db.Create(&assignment).Error)

	answers := []models.Answer{
		{AssignmentID: assignment.ID, QuestionID: question.ID, DimensionID: &dims[0].ID, NumericValue: floatPtr(3)},
		{AssignmentID: assignment.ID, QuestionID: question.ID, DimensionID: &dims[0].ID, NumericValue: floatPtr(4)},
		{AssignmentID: assignment.ID, QuestionID: question.ID, DimensionID: &dims[1].ID, NumericValue: floatPtr(2)},
		{AssignmentID: assignment.ID, QuestionID: question.ID, TextValue: "untagged"},
	}
	require.NoError(t, db.Create(&answers).Error)

	require.NoError(t, repo.Refresh(context.Background(), assignment.ID))
	require.NoError(t, repo.Refresh(context.Background(), assignment.ID))

	scores, err := repo.ListByAssignment(context.Background(), assignment.ID)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	require.InDelta(t, 3.5, scores[0].Score, 1e-9)
	require.Equal(t, 2, scores[0].ResponseCount)
	require.InDelta(t, 2.0, scores[1].Score, 1e-9)
	require.Equal(t, 1, scores[1].ResponseCount)
}

func TestAssignmentRepositoryListBySubject(t *testing.T) {
	db := setupReportTestDB(t)
	repo := NewAssignmentRepository(db)
	subject, assessment, _ := seedAssessment(t, db)

	rater := models.User{FullName: "Rater", Email: "rater@example.com"}
	require.NoError(t, db.Create(&rater).Error)

	rows := []models.Assignment{
		{UserID: subject.ID, AssessmentID: assessment.ID, RaterType: models.RaterTypeSelf, Completed: true},
		{UserID: rater.ID, TargetID: &subject.ID, AssessmentID: assessment.ID, RaterType: models.RaterTypePeer},
		{UserID: subject.ID, TargetID: &rater.ID, AssessmentID: assessment.ID, RaterType: models.RaterTypePeer},
	}
	require.NoError(t, db.Create(&rows).Error)

	items, err := repo.ListBySubject(context.Background(), assessment.ID, subject.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		require.Equal(t, subject.ID, item.SubjectID())
	}
}

func TestFeedbackRepositoryReplaceAssignedIsIdempotent(t *testing.T) {
	db := setupReportTestDB(t)
	repo := NewFeedbackRepository(db)

	items := func() []models.AssignedFeedback {
		return []models.AssignedFeedback{
			{Type: models.FeedbackTypeOverall, Content: "Strong overall", Position: 0},
			{Type: models.FeedbackTypeSpecific, DimensionID: uintPtr(4), Content: "Delegate more", Position: 1},
		}
	}

	require.NoError(t, repo.ReplaceAssigned(context.Background(), 9, items()))
	require.NoError(t, repo.ReplaceAssigned(context.Background(), 9, items()))

	stored, err := repo.ListAssigned(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "Strong overall", stored[0].Content)
	require.Equal(t, "Delegate more", stored[1].Content)

	require.NoError(t, repo.ReplaceAssigned(context.Background(), 9, nil))
	stored, err = repo.ListAssigned(context.Background(), 9)
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestReportCacheRepositorySaveReportKeepsRenderState(t *testing.T) {
	db := setupReportTestDB(t)
	repo := NewReportCacheRepository(db)
	ctx := context.Background()

	requested := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Queue(ctx, 7, requested))

	calculated := requested.Add(time.Minute)
	require.NoError(t, repo.SaveReport(ctx, &models.ReportCache{
		AssignmentID: 7,
		Kind:         "leader_blocker",
		Data:         datatypes.JSON(`{"kind":"leader_blocker"}`),
		OverallScore: 3.2,
		CalculatedAt: &calculated,
	}))

	cache, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, models.RenderStatusQueued, cache.PDFStatus)
	require.InDelta(t, 3.2, cache.OverallScore, 1e-9)
	require.NotNil(t, cache.CalculatedAt)
}

func TestReportCacheRepositoryClaimLifecycle(t *testing.T) {
	db := setupReportTestDB(t)
	repo := NewReportCacheRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Queue(ctx, 12, base.Add(2*time.Second)))
	require.NoError(t, repo.Queue(ctx, 11, base.Add(time.Second)))

	first, err := repo.ClaimNextQueued(ctx)
	require.NoError(t, err)
	require.Equal(t, uint(11), first.AssignmentID)
	require.Equal(t, models.RenderStatusGenerating, first.PDFStatus)

	second, err := repo.ClaimNextQueued(ctx)
	require.NoError(t, err)
	require.Equal(t, uint(12), second.AssignmentID)

	_, err = repo.ClaimNextQueued(ctx)
	require.ErrorIs(t, err, ErrNoQueuedJob)

	generatedAt := base.Add(time.Minute)
	require.NoError(t, repo.MarkReady(ctx, 11, 1, "11/v1.pdf", generatedAt))
	require.NoError(t, repo.MarkFailed(ctx, 12, "browser crashed"))

	ready, err := repo.Get(ctx, 11)
	require.NoError(t, err)
	require.Equal(t, models.RenderStatusReady, ready.PDFStatus)
	require.Equal(t, 1, ready.PDFVersion)
	require.Equal(t, "11/v1.pdf", ready.PDFStoragePath)
	require.Empty(t, ready.PDFLastError)

	failed, err := repo.Get(ctx, 12)
	require.NoError(t, err)
	require.Equal(t, models.RenderStatusFailed, failed.PDFStatus)
	require.Equal(t, "browser crashed", failed.PDFLastError)

	require.NoError(t, repo.Queue(ctx, 12, base.Add(time.Hour)))
	requeued, err := repo.Get(ctx, 12)
	require.NoError(t, err)
	require.Equal(t, models.RenderStatusQueued, requeued.PDFStatus)
	require.Empty(t, requeued.PDFLastError)
}
