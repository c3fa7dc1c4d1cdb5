package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/noah-isme/talentscope-api/internal/models"
	"github.com/noah-isme/talentscope-api/internal/repository"
)

// DimensionResolver loads the dimension hierarchy of an assessment.
type DimensionResolver interface {
	Resolve(ctx context.Context, assessmentID uint) ([]models.Dimension, error)
}

type dimensionResolver struct {
	repo repository.DimensionRepository
}

// NewDimensionResolver constructs the resolver.
func NewDimensionResolver(repo repository.DimensionRepository) DimensionResolver {
	return &dimensionResolver{repo: repo}
}

// Resolve returns roots ordered by position with each root's children directly after it.
// An assessment without dimensions yields an empty slice.
func (r *dimensionResolver) Resolve(ctx context.Context, assessmentID uint) ([]models.Dimension, error) {
	dimensions, err := r.repo.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("load dimensions: %w", err)
	}
	return orderDimensions(dimensions), nil
}

func orderDimensions(dimensions []models.Dimension) []models.Dimension {
	index := childIndex(dimensions)
	nested := make(map[uint]struct{}, len(dimensions))
	for _, kids := range index {
		for _, id := range kids {
			nested[id] = struct{}{}
		}
	}

	byID := make(map[uint]models.Dimension, len(dimensions))
	roots := make([]models.Dimension, 0, len(dimensions))
	for _, dim := range dimensions {
		byID[dim.ID] = dim
		if _, ok := nested[dim.ID]; !ok {
			roots = append(roots, dim)
		}
	}

	sortDimensions(roots)
	ordered := make([]models.Dimension, 0, len(dimensions))
	for _, root := range roots {
		ordered = append(ordered, root)
		kids := make([]models.Dimension, 0, len(index[root.ID]))
		for _, id := range index[root.ID] {
			kids = append(kids, byID[id])
		}
		sortDimensions(kids)
		ordered = append(ordered, kids...)
	}
	return ordered
}

func sortDimensions(items []models.Dimension) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
}

// childIndex maps each top-level dimension to its direct children.
// Parent links to unknown dimensions, to themselves, or to another child are ignored.
func childIndex(dimensions []models.Dimension) map[uint][]uint {
	topLevel := make(map[uint]struct{}, len(dimensions))
	for _, dim := range dimensions {
		if !hasParent(dim) {
			topLevel[dim.ID] = struct{}{}
		}
	}
	known := make(map[uint]struct{}, len(dimensions))
	for _, dim := range dimensions {
		known[dim.ID] = struct{}{}
	}
	for _, dim := range dimensions {
		if hasParent(dim) {
			if _, ok := known[*dim.ParentID]; !ok {
				topLevel[dim.ID] = struct{}{}
			}
		}
	}

	index := make(map[uint][]uint)
	for _, dim := range dimensions {
		if !hasParent(dim) {
			continue
		}
		if _, ok := topLevel[dim.ID]; ok {
			continue
		}
		if _, ok := topLevel[*dim.ParentID]; ok {
			index[*dim.ParentID] = append(index[*dim.ParentID], dim.ID)
		}
	}
	return index
}

func hasParent(dim models.Dimension) bool {
	return dim.ParentID != nil && *dim.ParentID != 0 && *dim.ParentID != dim.ID
}
