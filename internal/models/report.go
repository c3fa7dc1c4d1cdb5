package models

import (
	"time"

	"gorm.io/datatypes"
)

// Render job states stored on the cached report row.
const (
	RenderStatusNotRequested = "not_requested"
	RenderStatusQueued       = "queued"
	RenderStatusGenerating   = "generating"
	RenderStatusReady        = "ready"
	RenderStatusFailed       = "failed"
)

// ReportTemplate customises which report components are emitted and how sections are labelled.
type ReportTemplate struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	Name       string            `gorm:"size:255;not null" json:"name"`
	Components datatypes.JSONMap `gorm:"type:json" json:"components"`
	Labels     datatypes.JSONMap `gorm:"type:json" json:"labels"`
	Styling    datatypes.JSON    `gorm:"type:json" json:"styling"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// ReportCache stores the last computed report for an assignment plus its document render job.
type ReportCache struct {
	AssignmentID   uint           `gorm:"primaryKey;autoIncrement:false" json:"assignment_id"`
	Kind           string         `gorm:"size:32" json:"kind"`
	Data           datatypes.JSON `gorm:"type:json" json:"data"`
	OverallScore   float64        `json:"overall_score"`
	CalculatedAt   *time.Time     `json:"calculated_at"`
	PDFStatus      string         `gorm:"size:32;not null;default:not_requested;index" json:"pdf_status"`
	PDFVersion     int            `gorm:"not null;default:0" json:"pdf_version"`
	PDFGeneratedAt *time.Time     `json:"pdf_generated_at"`
	PDFStoragePath string         `gorm:"size:512" json:"pdf_storage_path"`
	PDFLastError   string         `gorm:"type:text" json:"pdf_last_error"`
	PDFRequestedAt *time.Time     `gorm:"index" json:"pdf_requested_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// RenderStatusOrDefault treats an empty status as not requested.
func (r ReportCache) RenderStatusOrDefault() string {
	if r.PDFStatus == "" {
		return RenderStatusNotRequested
	}
	return r.PDFStatus
}

// IsFreshFor reports whether the cached report was calculated after every given assignment completed.
func (r ReportCache) IsFreshFor(assignments ...Assignment) bool {
	if r.CalculatedAt == nil || len(r.Data) == 0 {
		return false
	}
	for _, assignment := range assignments {
		if assignment.CompletedAt != nil && assignment.CompletedAt.After(*r.CalculatedAt) {
			return false
		}
	}
	return true
}

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Industry{},
		&Client{},
		&User{},
		&ReportTemplate{},
		&Assessment{},
		&Dimension{},
		&Question{},
		&Assignment{},
		&Answer{},
		&DimensionScore{},
		&Benchmark{},
		&FeedbackEntry{},
		&AssignedFeedback{},
		&ReportCache{},
	}
}
