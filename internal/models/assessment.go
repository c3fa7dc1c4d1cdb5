package models

import "time"

// Assessment types select the scoring and feedback policies.
const (
	AssessmentType360           = "360"
	AssessmentTypeLeaderBlocker = "leader_blocker"
)

// Assessment is a survey definition that produces scored reports.
type Assessment struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Title            string          `gorm:"size:255;not null" json:"title"`
	Type             string          `gorm:"size:32;not null" json:"type"`
	ReportTemplateID *uint           `json:"report_template_id"`
	ReportTemplate   *ReportTemplate `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"report_template,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsMultiRater reports whether the assessment collects answers from several raters about one target.
func (a Assessment) IsMultiRater() bool {
	return a.Type == AssessmentType360
}

// Dimension is a coded scoring category; at most one level of nesting is used.
type Dimension struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssessmentID uint      `gorm:"not null;uniqueIndex:idx_dimension_code" json:"assessment_id"`
	Code         string    `gorm:"size:64;not null;uniqueIndex:idx_dimension_code" json:"code"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	ParentID     *uint     `gorm:"index" json:"parent_id"`
	Position     int       `gorm:"not null;default:0" json:"position"`
	CreatedAt    time.Time `json:"created_at"`
}

// Question types.
const (
	QuestionTypeScale = "scale"
	QuestionTypeText  = "text"
)

// Question is a survey item, optionally tagged to a dimension.
type Question struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	AssessmentID uint   `gorm:"not null;index" json:"assessment_id"`
	DimensionID  *uint  `gorm:"index" json:"dimension_id"`
	Type         string `gorm:"size:16;not null" json:"type"`
	Prompt       string `gorm:"type:text" json:"prompt"`
	Position     int    `gorm:"not null;default:0" json:"position"`
}

// Answer is a rater's response to one question.
type Answer struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssignmentID uint      `gorm:"not null;index" json:"assignment_id"`
	QuestionID   uint      `gorm:"not null;index" json:"question_id"`
	DimensionID  *uint     `gorm:"index" json:"dimension_id"`
	NumericValue *float64  `json:"numeric_value"`
	TextValue    string    `gorm:"type:text" json:"text_value"`
	CreatedAt    time.Time `json:"created_at"`
	Question     Question  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// DimensionScore caches the per-dimension average for one assignment.
type DimensionScore struct {
	AssignmentID  uint      `gorm:"primaryKey" json:"assignment_id"`
	DimensionID   uint      `gorm:"primaryKey" json:"dimension_id"`
	Score         float64   `gorm:"not null" json:"score"`
	ResponseCount int       `gorm:"not null" json:"response_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Benchmark is an externally curated reference score for a dimension within an industry.
type Benchmark struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	DimensionID uint    `gorm:"not null;uniqueIndex:idx_benchmark_dimension_industry" json:"dimension_id"`
	IndustryID  uint    `gorm:"not null;uniqueIndex:idx_benchmark_dimension_industry" json:"industry_id"`
	Value       float64 `gorm:"not null" json:"value"`
}
