package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/models"
	"github.com/noah-isme/talentscope-api/internal/observability"
	"github.com/noah-isme/talentscope-api/internal/repository"
)

var (
	// ErrReportAssignmentNotFound indicates the requested assignment does not exist.
	ErrReportAssignmentNotFound = errors.New("assignment not found")
	// ErrReportForbidden indicates the viewer is neither the owner nor an admin.
	ErrReportForbidden = errors.New("not allowed to access this report")
	// ErrUse360Generator is returned when a multi-rater assessment reaches the single-rater generator.
	ErrUse360Generator = errors.New("assessment collects multiple raters; use the 360 report generator")
	// ErrUseLeaderBlockerGenerator is returned when a single-rater assessment reaches the 360 generator.
	ErrUseLeaderBlockerGenerator = errors.New("assessment has a single rater; use the leader blocker report generator")
)

// ReportService computes, caches and presents assessment reports.
type ReportService interface {
	GetReport(ctx context.Context, assignmentID uint, viewer dto.ReportViewer) (dto.ReportResponse, error)
	Regenerate(ctx context.Context, assignmentID uint) (dto.ReportData, error)
	Generate360(ctx context.Context, assignmentID uint) (*dto.Report360Data, error)
	GenerateLeaderBlocker(ctx context.Context, assignmentID uint) (*dto.ReportLeaderBlockerData, error)
	AssignFeedback(ctx context.Context, assignmentID uint) ([]dto.AssignedFeedbackResponse, error)
	Present(ctx context.Context, assignmentID uint, viewer dto.ReportViewer) (dto.PresentedReport, error)
}

// ReportServiceDeps groups the collaborators of the report service.
type ReportServiceDeps struct {
	Assignments repository.AssignmentRepository
	Answers     repository.AnswerRepository
	Scores      repository.DimensionScoreRepository
	Caches      repository.ReportCacheRepository
	Resolver    DimensionResolver
	Benchmarks  BenchmarkCalculator
	Feedback    FeedbackService
	Redis       *redis.Client
	RedisTTL    time.Duration
}

type reportService struct {
	assignments repository.AssignmentRepository
	answers     repository.AnswerRepository
	scores      repository.DimensionScoreRepository
	caches      repository.ReportCacheRepository
	resolver    DimensionResolver
	benchmarks  BenchmarkCalculator
	feedback    FeedbackService
	redis       *redis.Client
	redisTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReportService wires the report pipeline.
func NewReportService(deps ReportServiceDeps, logger zerolog.Logger) ReportService {
	ttl := deps.RedisTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &reportService{
		assignments: deps.Assignments,
		answers:     deps.Answers,
		scores:      deps.Scores,
		caches:      deps.Caches,
		resolver:    deps.Resolver,
		benchmarks:  deps.Benchmarks,
		feedback:    deps.Feedback,
		redis:       deps.Redis,
		redisTTL:    ttl,
		logger:      logger.With().Str("component", "report_service").Logger(),
		now:         time.Now,
	}
}

type cachedReportPayload struct {
	CalculatedAt time.Time       `json:"calculated_at"`
	Report       json.RawMessage `json:"report"`
}

func reportCacheKey(assignmentID uint) string {
	return fmt.Sprintf("report:%d", assignmentID)
}

func (s *reportService) GetReport(ctx context.Context, assignmentID uint, viewer dto.ReportViewer) (dto.ReportResponse, error) {
	_, response, err := s.getReport(ctx, assignmentID, viewer)
	return response, err
}

func (s *reportService) Present(ctx context.Context, assignmentID uint, viewer dto.ReportViewer) (dto.PresentedReport, error) {
	assignment, response, err := s.getReport(ctx, assignmentID, viewer)
	if err != nil {
		return dto.PresentedReport{}, err
	}
	return ApplyTemplate(response.Report, assignment.Assessment.ReportTemplate), nil
}

func (s *reportService) getReport(ctx context.Context, assignmentID uint, viewer dto.ReportViewer) (models.Assignment, dto.ReportResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/talentscope-api/internal/service/report")
	ctx, span := tracer.Start(ctx, "report.get")
	span.SetAttributes(attribute.Int64("assignment.id", int64(assignmentID)))
	defer span.End()

	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_assignment_failed")
		return models.Assignment{}, dto.ReportResponse{}, err
	}
	if !canView(viewer, assignment) {
		return models.Assignment{}, dto.ReportResponse{}, ErrReportForbidden
	}

	if report, ok := s.readCached(ctx, assignment, s.reportInputs(ctx, assignment)); ok {
		span.SetAttributes(attribute.Bool("report.cached", true))
		observability.ReportGenerations().WithLabelValues(string(report.Kind()), "cache").Inc()
		return assignment, dto.ReportResponse{Report: report, Cached: true}, nil
	}

	report, err := s.generate(ctx, assignment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate_report_failed")
		return models.Assignment{}, dto.ReportResponse{}, err
	}
	span.SetAttributes(attribute.Bool("report.cached", false))
	return assignment, dto.ReportResponse{Report: report, Cached: false}, nil
}

func (s *reportService) Regenerate(ctx context.Context, assignmentID uint) (dto.ReportData, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, assignment)
}

func (s *reportService) Generate360(ctx context.Context, assignmentID uint) (*dto.Report360Data, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !assignment.Assessment.IsMultiRater() {
		return nil, ErrUseLeaderBlockerGenerator
	}
	report, err := s.generate(ctx, assignment)
	if err != nil {
		return nil, err
	}
	typed, ok := report.(*dto.Report360Data)
	if !ok {
		return nil, dto.ErrUnknownReportKind
	}
	return typed, nil
}

func (s *reportService) GenerateLeaderBlocker(ctx context.Context, assignmentID uint) (*dto.ReportLeaderBlockerData, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.Assessment.IsMultiRater() {
		return nil, ErrUse360Generator
	}
	report, err := s.generate(ctx, assignment)
	if err != nil {
		return nil, err
	}
	typed, ok := report.(*dto.ReportLeaderBlockerData)
	if !ok {
		return nil, dto.ErrUnknownReportKind
	}
	return typed, nil
}

// AssignFeedback recomputes the report, which replaces the assignment's feedback, and returns the new set.
func (s *reportService) AssignFeedback(ctx context.Context, assignmentID uint) ([]dto.AssignedFeedbackResponse, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.generate(ctx, assignment); err != nil {
		return nil, err
	}
	return s.feedback.List(ctx, assignment.ID)
}

func (s *reportService) loadAssignment(ctx context.Context, assignmentID uint) (models.Assignment, error) {
	if assignmentID == 0 {
		return models.Assignment{}, ErrReportAssignmentNotFound
	}
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrReportAssignmentNotFound
		}
		return models.Assignment{}, fmt.Errorf("load assignment: %w", err)
	}
	return assignment, nil
}

func canView(viewer dto.ReportViewer, assignment models.Assignment) bool {
	if viewer.IsAdmin() {
		return true
	}
	return viewer.UserID != 0 && (viewer.UserID == assignment.UserID || viewer.UserID == assignment.SubjectID())
}

// reportInputs lists the assignments whose completion invalidates the cached report.
// A 360 report depends on every rater assignment about the subject. Nil means the
// inputs could not be loaded and the cache must not be trusted.
func (s *reportService) reportInputs(ctx context.Context, assignment models.Assignment) []models.Assignment {
	if !assignment.Assessment.IsMultiRater() {
		return []models.Assignment{assignment}
	}
	raters, err := s.assignments.ListBySubject(ctx, assignment.AssessmentID, assignment.SubjectID())
	if err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to load rater assignments for cache check")
		return nil
	}
	return append(raters, assignment)
}

// readCached returns a report that was calculated no earlier than the latest completion among its inputs.
func (s *reportService) readCached(ctx context.Context, assignment models.Assignment, inputs []models.Assignment) (dto.ReportData, bool) {
	if inputs == nil {
		return nil, false
	}

	if s.redis != nil {
		raw, err := s.redis.Get(ctx, reportCacheKey(assignment.ID)).Bytes()
		if err == nil {
			var payload cachedReportPayload
			if jsonErr := json.Unmarshal(raw, &payload); jsonErr == nil {
				row := models.ReportCache{CalculatedAt: &payload.CalculatedAt, Data: datatypes.JSON(payload.Report)}
				if row.IsFreshFor(inputs...) {
					if report, decodeErr := dto.DecodeReport(payload.Report); decodeErr == nil {
						return report, true
					}
				}
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to read report cache")
		}
	}

	row, err := s.caches.Get(ctx, assignment.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to read cached report row")
		}
		return nil, false
	}
	if !row.IsFreshFor(inputs...) {
		return nil, false
	}
	report, err := dto.DecodeReport(row.Data)
	if err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("discarding undecodable cached report")
		return nil, false
	}
	s.storeHot(ctx, assignment.ID, *row.CalculatedAt, row.Data)
	return report, true
}

func (s *reportService) storeHot(ctx context.Context, assignmentID uint, calculatedAt time.Time, encoded []byte) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(cachedReportPayload{CalculatedAt: calculatedAt, Report: encoded})
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, reportCacheKey(assignmentID), payload, s.redisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to store report cache")
	}
}

func (s *reportService) generate(ctx context.Context, assignment models.Assignment) (dto.ReportData, error) {
	tracer := otel.Tracer("github.com/noah-isme/talentscope-api/internal/service/report")
	ctx, span := tracer.Start(ctx, "report.generate")
	span.SetAttributes(
		attribute.Int64("assignment.id", int64(assignment.ID)),
		attribute.String("assessment.type", assignment.Assessment.Type),
	)
	defer span.End()

	started := s.now()
	var (
		report dto.ReportData
		err    error
	)
	if assignment.Assessment.IsMultiRater() {
		report, err = s.build360(ctx, assignment)
	} else {
		report, err = s.buildLeaderBlocker(ctx, assignment)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build_report_failed")
		return nil, err
	}

	if err := s.persist(ctx, assignment, report); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_report_failed")
		return nil, err
	}

	kind := string(report.Kind())
	observability.ReportGenerations().WithLabelValues(kind, "computed").Inc()
	observability.ReportLatency().WithLabelValues(kind).Observe(s.now().Sub(started).Seconds())
	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Str("kind", kind).
		Int("dimensions", len(report.Base().Dimensions)).
		Msg("report generated")
	return report, nil
}

func (s *reportService) build360(ctx context.Context, assignment models.Assignment) (dto.ReportData, error) {
	dimensions, err := s.resolver.Resolve(ctx, assignment.AssessmentID)
	if err != nil {
		return nil, err
	}

	subjectID := assignment.SubjectID()
	raters, err := s.assignments.ListBySubject(ctx, assignment.AssessmentID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load rater assignments: %w", err)
	}

	raterTypes := make(map[uint]string, len(raters))
	completedIDs := make([]uint, 0, len(raters))
	for _, rater := range raters {
		if !rater.Completed {
			continue
		}
		raterTypes[rater.ID] = rater.NormalizedRaterType()
		completedIDs = append(completedIDs, rater.ID)
	}

	answers, err := s.answers.ListNumeric(ctx, completedIDs)
	if err != nil {
		return nil, fmt.Errorf("load rater answers: %w", err)
	}

	reports, overall := Aggregate360(dimensions, answers, raterTypes)
	if err := s.benchmarks.Apply(ctx, assignment, dimensions, reports); err != nil {
		return nil, err
	}

	report := &dto.Report360Data{
		ReportBase: s.newBase(ctx, assignment, subjectID, overall, reports),
		Partial:    len(completedIDs) < len(raters) || len(completedIDs) == 0,
		ParticipantResponseSummary: dto.ResponseSummary{
			Completed: len(completedIDs),
			Total:     len(raters),
		},
	}

	items, err := s.feedback.AssignHarvested(ctx, assignment, raters, reports)
	if err != nil {
		return nil, err
	}
	attachFeedback(report, items)
	return report, nil
}

func (s *reportService) buildLeaderBlocker(ctx context.Context, assignment models.Assignment) (dto.ReportData, error) {
	dimensions, err := s.resolver.Resolve(ctx, assignment.AssessmentID)
	if err != nil {
		return nil, err
	}

	if err := s.scores.Refresh(ctx, assignment.ID); err != nil {
		return nil, fmt.Errorf("refresh dimension scores: %w", err)
	}
	scores, err := s.scores.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		return nil, fmt.Errorf("load dimension scores: %w", err)
	}

	reports, overall := AggregateSingleRater(dimensions, scores)
	if err := s.benchmarks.Apply(ctx, assignment, dimensions, reports); err != nil {
		return nil, err
	}

	report := &dto.ReportLeaderBlockerData{
		ReportBase: s.newBase(ctx, assignment, assignment.SubjectID(), overall, reports),
	}

	items, err := s.feedback.AssignRanged(ctx, assignment, overall, reports)
	if err != nil {
		return nil, err
	}
	attachFeedback(report, items)
	return report, nil
}

func (s *reportService) newBase(ctx context.Context, assignment models.Assignment, subjectID uint, overall float64, reports []dto.DimensionReport) dto.ReportBase {
	targetName := ""
	if subject, err := s.assignments.GetUser(ctx, subjectID); err == nil {
		targetName = subject.FullName
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn().Err(err).Uint("subject_id", subjectID).Msg("failed to load report subject")
	}

	return dto.ReportBase{
		AssignmentID:    assignment.ID,
		AssessmentID:    assignment.AssessmentID,
		AssessmentTitle: assignment.Assessment.Title,
		TargetID:        subjectID,
		TargetName:      targetName,
		OverallScore:    overall,
		Dimensions:      reports,
		GeneratedAt:     s.now().UTC(),
	}
}

// persist writes the canonical report; the later of two concurrent writes wins.
func (s *reportService) persist(ctx context.Context, assignment models.Assignment, report dto.ReportData) error {
	encoded, err := dto.EncodeReport(report)
	if err != nil {
		return err
	}
	calculatedAt := report.Base().GeneratedAt
	row := models.ReportCache{
		AssignmentID: assignment.ID,
		Kind:         string(report.Kind()),
		Data:         datatypes.JSON(encoded),
		OverallScore: report.Base().OverallScore,
		CalculatedAt: &calculatedAt,
	}
	if err := s.caches.SaveReport(ctx, &row); err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	s.storeHot(ctx, assignment.ID, calculatedAt, encoded)
	return nil
}
