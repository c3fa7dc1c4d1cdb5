package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/models"
	"github.com/noah-isme/talentscope-api/internal/repository"
)

var adminViewer = dto.ReportViewer{UserID: 1, Role: models.UserRoleAdmin}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func uintPtr(v uint) *uint { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seed(t *testing.T, db *gorm.DB, records ...interface{}) {
	t.Helper()
	for _, record := range records {
		require.NoError(t, db.Create(record).Error)
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type reportFixture struct {
	db          *gorm.DB
	redis       *redis.Client
	assignments repository.AssignmentRepository
	caches      repository.ReportCacheRepository
	feedback    repository.FeedbackRepository
	reports     ReportService
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	db := setupServiceDB(t)
	client := newTestRedis(t)

	assignments := repository.NewAssignmentRepository(db)
	answers := repository.NewAnswerRepository(db)
	caches := repository.NewReportCacheRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	reports := NewReportService(ReportServiceDeps{
		Assignments: assignments,
		Answers:     answers,
		Scores:      repository.NewDimensionScoreRepository(db),
		Caches:      caches,
		Resolver:    NewDimensionResolver(repository.NewDimensionRepository(db)),
		Benchmarks:  NewBenchmarkCalculator(assignments, answers, repository.NewBenchmarkRepository(db), testLogger()),
		Feedback:    NewFeedbackService(feedbackRepo, answers, testLogger()),
		Redis:       client,
		RedisTTL:    time.Minute,
	}, testLogger())

	return &reportFixture{
		db:          db,
		redis:       client,
		assignments: assignments,
		caches:      caches,
		feedback:    feedbackRepo,
		reports:     reports,
	}
}

func user(id uint, name string) *models.User {
	return &models.User{ID: id, FullName: name, Email: fmt.Sprintf("user%d@example.com", id), Role: models.UserRoleUser}
}

func scaleAnswer(id, assignmentID, questionID, dimensionID uint, value float64) *models.Answer {
	return &models.Answer{ID: id, AssignmentID: assignmentID, QuestionID: questionID, DimensionID: uintPtr(dimensionID), NumericValue: floatPtr(value)}
}

func textAnswer(id, assignmentID, questionID, dimensionID uint, text string) *models.Answer {
	return &models.Answer{ID: id, AssignmentID: assignmentID, QuestionID: questionID, DimensionID: uintPtr(dimensionID), TextValue: text}
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
	err     error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: map[string][]byte{}}
}

func (f *fakeStorage) Upload(_ context.Context, path, _ string, data []byte, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.uploads[path] = append([]byte(nil), data...)
	return path, nil
}

func (f *fakeStorage) SignedURL(path string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://files.example/%s?ttl=%d", path, int(ttl.Seconds())), nil
}

func (f *fakeStorage) uploaded(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.uploads[path]
	return data, ok
}
