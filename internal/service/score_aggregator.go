package service

import (
	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/models"
)

// scoreCell accumulates raw answer values so that roll-ups pool answers instead of averaging averages.
type scoreCell struct {
	sum   float64
	count int
}

func (c *scoreCell) add(value float64) {
	c.sum += value
	c.count++
}

func (c *scoreCell) merge(other scoreCell) {
	c.sum += other.sum
	c.count += other.count
}

func (c scoreCell) mean() float64 {
	if c.count == 0 {
		return 0
	}
	return c.sum / float64(c.count)
}

func (c scoreCell) meanPtr() *float64 {
	if c.count == 0 {
		return nil
	}
	v := c.mean()
	return &v
}

// rollUp scores every dimension from its direct cell; a parent without direct answers
// is scored from the pooled answers of its children.
func rollUp(dimensions []models.Dimension, direct map[uint]scoreCell) map[uint]scoreCell {
	children := childIndex(dimensions)
	cells := make(map[uint]scoreCell, len(dimensions))
	for _, dim := range dimensions {
		cell := direct[dim.ID]
		if cell.count == 0 {
			for _, childID := range children[dim.ID] {
				cell.merge(direct[childID])
			}
		}
		cells[dim.ID] = cell
	}
	return cells
}

// dimensionCells pools numeric answers per dimension and applies the roll-up.
func dimensionCells(dimensions []models.Dimension, answers []models.Answer) map[uint]scoreCell {
	direct := make(map[uint]scoreCell)
	for _, answer := range answers {
		if answer.DimensionID == nil || answer.NumericValue == nil {
			continue
		}
		cell := direct[*answer.DimensionID]
		cell.add(*answer.NumericValue)
		direct[*answer.DimensionID] = cell
	}
	return rollUp(dimensions, direct)
}

func newDimensionReport(dim models.Dimension) dto.DimensionReport {
	return dto.DimensionReport{
		DimensionID: dim.ID,
		Code:        dim.Code,
		Name:        dim.Name,
		ParentID:    dim.ParentID,
	}
}

// AggregateSingleRater builds dimension reports from the refreshed per-dimension averages of one assignment.
// Without any score rows the report has no dimensions; otherwise every dimension is listed and
// dimensions without answers score 0. The overall score pools every scored answer.
func AggregateSingleRater(dimensions []models.Dimension, scores []models.DimensionScore) ([]dto.DimensionReport, float64) {
	if len(scores) == 0 {
		return []dto.DimensionReport{}, 0
	}

	known := make(map[uint]struct{}, len(dimensions))
	for _, dim := range dimensions {
		known[dim.ID] = struct{}{}
	}

	direct := make(map[uint]scoreCell, len(scores))
	var overall scoreCell
	for _, row := range scores {
		if _, ok := known[row.DimensionID]; !ok || row.ResponseCount <= 0 {
			continue
		}
		cell := scoreCell{sum: row.Score * float64(row.ResponseCount), count: row.ResponseCount}
		direct[row.DimensionID] = cell
		overall.merge(cell)
	}

	cells := rollUp(dimensions, direct)
	reports := make([]dto.DimensionReport, 0, len(dimensions))
	for _, dim := range dimensions {
		cell := cells[dim.ID]
		report := newDimensionReport(dim)
		report.OverallScore = cell.mean()
		report.ResponseCount = cell.count
		report.TargetScore = cell.meanPtr()
		reports = append(reports, report)
	}
	return reports, overall.mean()
}

// Aggregate360 builds dimension reports with per rater-type breakdowns from completed rater answers.
// raterTypes maps an assignment id to its rater type; answers from unknown assignments are ignored.
// Every dimension is listed even when no rater has answered yet.
func Aggregate360(dimensions []models.Dimension, answers []models.Answer, raterTypes map[uint]string) ([]dto.DimensionReport, float64) {
	known := make(map[uint]struct{}, len(dimensions))
	for _, dim := range dimensions {
		known[dim.ID] = struct{}{}
	}

	byType := make(map[string][]models.Answer)
	all := make([]models.Answer, 0, len(answers))
	var overall scoreCell
	for _, answer := range answers {
		raterType, ok := raterTypes[answer.AssignmentID]
		if !ok || answer.DimensionID == nil || answer.NumericValue == nil {
			continue
		}
		if _, ok := known[*answer.DimensionID]; !ok {
			continue
		}
		byType[raterType] = append(byType[raterType], answer)
		all = append(all, answer)
		overall.add(*answer.NumericValue)
	}

	allCells := dimensionCells(dimensions, all)
	typeCells := make(map[string]map[uint]scoreCell, len(byType))
	for raterType, items := range byType {
		typeCells[raterType] = dimensionCells(dimensions, items)
	}
	bucket := func(raterType string, dimensionID uint) *float64 {
		cells, ok := typeCells[raterType]
		if !ok {
			return nil
		}
		return cells[dimensionID].meanPtr()
	}

	reports := make([]dto.DimensionReport, 0, len(dimensions))
	for _, dim := range dimensions {
		cell := allCells[dim.ID]
		report := newDimensionReport(dim)
		report.OverallScore = cell.mean()
		report.ResponseCount = cell.count
		report.RaterBreakdown = &dto.RaterBreakdown{
			Peer:         bucket(models.RaterTypePeer, dim.ID),
			DirectReport: bucket(models.RaterTypeDirectReport, dim.ID),
			Supervisor:   bucket(models.RaterTypeSupervisor, dim.ID),
			Self:         bucket(models.RaterTypeSelf, dim.ID),
			Other:        bucket(models.RaterTypeOther, dim.ID),
			AllRaters:    cell.meanPtr(),
		}
		reports = append(reports, report)
	}
	return reports, overall.mean()
}
