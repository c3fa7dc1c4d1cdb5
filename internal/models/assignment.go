package models

import "time"

// Rater types recorded on 360 assignments.
const (
	RaterTypePeer         = "peer"
	RaterTypeDirectReport = "direct_report"
	RaterTypeSupervisor   = "supervisor"
	RaterTypeSelf         = "self"
	RaterTypeOther        = "other"
)

// Assignment is one subject's instance of taking, or being rated on, an assessment.
type Assignment struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	TargetID     *uint      `gorm:"index" json:"target_id"`
	GroupID      *uint      `gorm:"index" json:"group_id"`
	AssessmentID uint       `gorm:"not null;index" json:"assessment_id"`
	RaterType    string     `gorm:"size:32" json:"rater_type"`
	Completed    bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	User         User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Assessment   Assessment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// SubjectID returns the person the assignment is about: the target when set, otherwise the taker.
func (a Assignment) SubjectID() uint {
	if a.TargetID != nil && *a.TargetID != 0 {
		return *a.TargetID
	}
	return a.UserID
}

// NormalizedRaterType maps unknown rater types onto the "other" bucket.
func (a Assignment) NormalizedRaterType() string {
	switch a.RaterType {
	case RaterTypePeer, RaterTypeDirectReport, RaterTypeSupervisor, RaterTypeSelf:
		return a.RaterType
	default:
		return RaterTypeOther
	}
}
