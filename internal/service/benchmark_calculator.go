package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/models"
	"github.com/noah-isme/talentscope-api/internal/repository"
)

// BenchmarkCalculator attaches industry benchmarks and group norms to dimension reports.
type BenchmarkCalculator interface {
	Apply(ctx context.Context, assignment models.Assignment, dimensions []models.Dimension, reports []dto.DimensionReport) error
}

type benchmarkCalculator struct {
	assignments repository.AssignmentRepository
	answers     repository.AnswerRepository
	benchmarks  repository.BenchmarkRepository
	logger      zerolog.Logger
}

// NewBenchmarkCalculator wires the calculator.
func NewBenchmarkCalculator(assignments repository.AssignmentRepository, answers repository.AnswerRepository, benchmarks repository.BenchmarkRepository, logger zerolog.Logger) BenchmarkCalculator {
	return &benchmarkCalculator{
		assignments: assignments,
		answers:     answers,
		benchmarks:  benchmarks,
		logger:      logger.With().Str("component", "benchmark_calculator").Logger(),
	}
}

// groupNorm is the average of peer subject scores for one dimension.
type groupNorm struct {
	value        *float64
	participants int
}

func (c *benchmarkCalculator) Apply(ctx context.Context, assignment models.Assignment, dimensions []models.Dimension, reports []dto.DimensionReport) error {
	if len(reports) == 0 {
		return nil
	}

	benchmarks, err := c.loadBenchmarks(ctx, assignment.SubjectID(), dimensions)
	if err != nil {
		return err
	}

	norms, err := c.loadGroupNorms(ctx, assignment, dimensions)
	if err != nil {
		return err
	}

	applyComparisons(reports, benchmarks, norms)
	return nil
}

func (c *benchmarkCalculator) loadBenchmarks(ctx context.Context, subjectID uint, dimensions []models.Dimension) (map[uint]float64, error) {
	subject, err := c.assignments.GetUser(ctx, subjectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subject: %w", err)
	}
	if subject.Client == nil || subject.Client.IndustryID == nil {
		return nil, nil
	}

	ids := make([]uint, 0, len(dimensions))
	for _, dim := range dimensions {
		ids = append(ids, dim.ID)
	}
	rows, err := c.benchmarks.ListByIndustry(ctx, *subject.Client.IndustryID, ids)
	if err != nil {
		return nil, fmt.Errorf("load benchmarks: %w", err)
	}

	values := make(map[uint]float64, len(rows))
	for _, row := range rows {
		values[row.DimensionID] = row.Value
	}
	return values, nil
}

func (c *benchmarkCalculator) loadGroupNorms(ctx context.Context, assignment models.Assignment, dimensions []models.Dimension) (map[uint]groupNorm, error) {
	if assignment.GroupID == nil {
		return nil, nil
	}

	cohort, err := c.assignments.ListCompletedByGroup(ctx, assignment.AssessmentID, *assignment.GroupID)
	if err != nil {
		return nil, fmt.Errorf("load group assignments: %w", err)
	}

	subjectID := assignment.SubjectID()
	peerSubjects := make(map[uint]uint)
	ids := make([]uint, 0, len(cohort))
	for _, peer := range cohort {
		if peer.SubjectID() == subjectID {
			continue
		}
		peerSubjects[peer.ID] = peer.SubjectID()
		ids = append(ids, peer.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	answers, err := c.answers.ListNumeric(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load group answers: %w", err)
	}

	c.logger.Debug().
		Uint("assignment_id", assignment.ID).
		Int("peer_assignments", len(ids)).
		Msg("computed group norm inputs")

	return computeGroupNorms(dimensions, answers, peerSubjects), nil
}

// computeGroupNorms scores each peer subject separately, then averages the per-subject scores.
func computeGroupNorms(dimensions []models.Dimension, answers []models.Answer, peerSubjects map[uint]uint) map[uint]groupNorm {
	bySubject := make(map[uint][]models.Answer)
	for _, answer := range answers {
		subject, ok := peerSubjects[answer.AssignmentID]
		if !ok {
			continue
		}
		bySubject[subject] = append(bySubject[subject], answer)
	}

	totals := make(map[uint]scoreCell, len(dimensions))
	for _, items := range bySubject {
		cells := dimensionCells(dimensions, items)
		for _, dim := range dimensions {
			cell := cells[dim.ID]
			if cell.count == 0 {
				continue
			}
			total := totals[dim.ID]
			total.add(cell.mean())
			totals[dim.ID] = total
		}
	}

	norms := make(map[uint]groupNorm, len(dimensions))
	for _, dim := range dimensions {
		total := totals[dim.ID]
		norms[dim.ID] = groupNorm{value: total.meanPtr(), participants: total.count}
	}
	return norms
}

// applyComparisons sets benchmark and group-norm fields and the improvement flag.
// A dimension without data never needs improvement; otherwise it does when it scores
// below any available comparison.
func applyComparisons(reports []dto.DimensionReport, benchmarks map[uint]float64, norms map[uint]groupNorm) {
	for i := range reports {
		report := &reports[i]
		if value, ok := benchmarks[report.DimensionID]; ok {
			v := value
			report.Benchmark = &v
		}
		if norm, ok := norms[report.DimensionID]; ok && norm.participants > 0 && norm.value != nil {
			report.GEOnorm = norm.value
			report.GEOnormParticipants = norm.participants
		} else {
			report.GEOnorm = nil
			report.GEOnormParticipants = 0
		}

		report.ImprovementNeeded = false
		if report.ResponseCount == 0 {
			continue
		}
		if report.Benchmark != nil && report.OverallScore < *report.Benchmark {
			report.ImprovementNeeded = true
		}
		if report.GEOnorm != nil && report.OverallScore < *report.GEOnorm {
			report.ImprovementNeeded = true
		}
	}
}
