package models

import "time"

// Feedback entry types.
const (
	FeedbackTypeOverall  = "overall"
	FeedbackTypeSpecific = "specific"
)

// FeedbackEntry is a library item matched against scores by range.
type FeedbackEntry struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	AssessmentID uint     `gorm:"not null;index" json:"assessment_id"`
	DimensionID  *uint    `gorm:"index" json:"dimension_id"`
	Type         string   `gorm:"size:16;not null" json:"type"`
	MinScore     *float64 `json:"min_score"`
	MaxScore     *float64 `json:"max_score"`
	Content      string   `gorm:"type:text;not null" json:"content"`
	Position     int      `gorm:"not null;default:0" json:"position"`
}

// Contains reports whether score lies within the inclusive range; a nil bound is unbounded.
func (f FeedbackEntry) Contains(score float64) bool {
	if f.MinScore != nil && score < *f.MinScore {
		return false
	}
	if f.MaxScore != nil && score > *f.MaxScore {
		return false
	}
	return true
}

// AssignedFeedback is narrative text attached to an assignment's report.
type AssignedFeedback struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	AssignmentID    uint      `gorm:"not null;index" json:"assignment_id"`
	FeedbackEntryID *uint     `json:"feedback_entry_id"`
	DimensionID     *uint     `gorm:"index" json:"dimension_id"`
	Type            string    `gorm:"size:16;not null" json:"type"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	Position        int       `gorm:"not null;default:0" json:"position"`
	CreatedAt       time.Time `json:"created_at"`
}
