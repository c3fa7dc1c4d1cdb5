package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ReportKind discriminates the report union.
type ReportKind string

// Report kinds.
const (
	ReportKind360           ReportKind = "360"
	ReportKindLeaderBlocker ReportKind = "leader_blocker"
)

// ReportSchemaVersion is bumped whenever the serialized report layout changes.
const ReportSchemaVersion = 1

// ErrUnknownReportKind is returned when a serialized report carries an unsupported kind or version.
var ErrUnknownReportKind = errors.New("unknown report kind")

// ReportData is a closed union of Report360Data and ReportLeaderBlockerData.
type ReportData interface {
	Kind() ReportKind
	Base() *ReportBase
}

// ReportBase holds the fields every report carries.
type ReportBase struct {
	AssignmentID    uint              `json:"assignment_id"`
	AssessmentID    uint              `json:"assessment_id"`
	AssessmentTitle string            `json:"assessment_title"`
	TargetID        uint              `json:"target_id"`
	TargetName      string            `json:"target_name"`
	OverallScore    float64           `json:"overall_score"`
	Dimensions      []DimensionReport `json:"dimensions"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// ResponseSummary counts completed rater responses against the expected total.
type ResponseSummary struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Report360Data is the multi-rater report.
type Report360Data struct {
	ReportBase
	Partial                    bool            `json:"partial"`
	ParticipantResponseSummary ResponseSummary `json:"participant_response_summary"`
}

// Kind implements ReportData.
func (r *Report360Data) Kind() ReportKind { return ReportKind360 }

// Base implements ReportData.
func (r *Report360Data) Base() *ReportBase { return &r.ReportBase }

// MarshalJSON emits the report with its kind tag.
func (r Report360Data) MarshalJSON() ([]byte, error) {
	type plain Report360Data
	return json.Marshal(struct {
		Kind ReportKind `json:"kind"`
		plain
	}{Kind: ReportKind360, plain: plain(r)})
}

// ReportLeaderBlockerData is the single-rater report.
type ReportLeaderBlockerData struct {
	ReportBase
	OverallFeedback []string `json:"overall_feedback"`
}

// Kind implements ReportData.
func (r *ReportLeaderBlockerData) Kind() ReportKind { return ReportKindLeaderBlocker }

// Base implements ReportData.
func (r *ReportLeaderBlockerData) Base() *ReportBase { return &r.ReportBase }

// MarshalJSON emits the report with its kind tag.
func (r ReportLeaderBlockerData) MarshalJSON() ([]byte, error) {
	type plain ReportLeaderBlockerData
	return json.Marshal(struct {
		Kind ReportKind `json:"kind"`
		plain
	}{Kind: ReportKindLeaderBlocker, plain: plain(r)})
}

// RaterBreakdown holds per rater-type averages; nil means no responses of that type.
type RaterBreakdown struct {
	Peer         *float64 `json:"peer"`
	DirectReport *float64 `json:"direct_report"`
	Supervisor   *float64 `json:"supervisor"`
	Self         *float64 `json:"self"`
	Other        *float64 `json:"other"`
	AllRaters    *float64 `json:"all_raters"`
}

// IsEmpty reports whether every bucket is null.
func (b RaterBreakdown) IsEmpty() bool {
	return b.Peer == nil && b.DirectReport == nil && b.Supervisor == nil && b.Self == nil && b.Other == nil && b.AllRaters == nil
}

// DimensionReport is the computed unit attached to a report per dimension.
type DimensionReport struct {
	DimensionID         uint            `json:"dimension_id"`
	Code                string          `json:"code"`
	Name                string          `json:"name"`
	ParentID            *uint           `json:"parent_id"`
	OverallScore        float64         `json:"overall_score"`
	ResponseCount       int             `json:"response_count"`
	RaterBreakdown      *RaterBreakdown `json:"rater_breakdown,omitempty"`
	TargetScore         *float64        `json:"target_score,omitempty"`
	Benchmark           *float64        `json:"benchmark"`
	GEOnorm             *float64        `json:"geonorm"`
	GEOnormParticipants int             `json:"geonorm_participants"`
	ImprovementNeeded   bool            `json:"improvement_needed"`
	Feedback            []string        `json:"feedback"`
}

type reportEnvelope struct {
	Kind    ReportKind      `json:"kind"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// EncodeReport serializes a report into its versioned envelope.
func EncodeReport(report ReportData) ([]byte, error) {
	if report == nil {
		return nil, errors.New("report is nil")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return json.Marshal(reportEnvelope{Kind: report.Kind(), Version: ReportSchemaVersion, Data: data})
}

// DecodeReport restores a report from its versioned envelope.
func DecodeReport(raw []byte) (ReportData, error) {
	var envelope reportEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode report envelope: %w", err)
	}
	if envelope.Version != ReportSchemaVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnknownReportKind, envelope.Version)
	}

	var report ReportData
	switch envelope.Kind {
	case ReportKind360:
		report = &Report360Data{}
	case ReportKindLeaderBlocker:
		report = &ReportLeaderBlockerData{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownReportKind, envelope.Kind)
	}
	if err := json.Unmarshal(envelope.Data, report); err != nil {
		return nil, fmt.Errorf("decode %s report: %w", envelope.Kind, err)
	}
	return report, nil
}

// CloneReport returns a deep copy so presentation transforms never touch the canonical structure.
func CloneReport(report ReportData) ReportData {
	switch r := report.(type) {
	case *Report360Data:
		clone := *r
		clone.ReportBase = cloneBase(r.ReportBase)
		return &clone
	case *ReportLeaderBlockerData:
		clone := *r
		clone.ReportBase = cloneBase(r.ReportBase)
		clone.OverallFeedback = append([]string(nil), r.OverallFeedback...)
		return &clone
	default:
		return nil
	}
}

func cloneBase(base ReportBase) ReportBase {
	out := base
	out.Dimensions = make([]DimensionReport, len(base.Dimensions))
	for i, dim := range base.Dimensions {
		copyDim := dim
		copyDim.ParentID = cloneUint(dim.ParentID)
		copyDim.TargetScore = cloneFloat(dim.TargetScore)
		copyDim.Benchmark = cloneFloat(dim.Benchmark)
		copyDim.GEOnorm = cloneFloat(dim.GEOnorm)
		copyDim.Feedback = append([]string(nil), dim.Feedback...)
		if dim.RaterBreakdown != nil {
			b := *dim.RaterBreakdown
			b.Peer = cloneFloat(b.Peer)
			b.DirectReport = cloneFloat(b.DirectReport)
			b.Supervisor = cloneFloat(b.Supervisor)
			b.Self = cloneFloat(b.Self)
			b.Other = cloneFloat(b.Other)
			b.AllRaters = cloneFloat(b.AllRaters)
			copyDim.RaterBreakdown = &b
		}
		out.Dimensions[i] = copyDim
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneUint(v *uint) *uint {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ReportResponse is returned by the report fetch operation. The report carries its own kind tag.
type ReportResponse struct {
	Report ReportData `json:"report"`
	Cached bool       `json:"cached"`
}

// AssignedFeedbackResponse describes one feedback entry attached to a report.
type AssignedFeedbackResponse struct {
	ID              uint   `json:"id"`
	FeedbackEntryID *uint  `json:"feedback_entry_id,omitempty"`
	DimensionID     *uint  `json:"dimension_id"`
	Type            string `json:"type"`
	Content         string `json:"content"`
}

// RenderEnqueueRequest asks for document renders for several assignments.
type RenderEnqueueRequest struct {
	AssignmentIDs []uint `json:"assignment_ids" validate:"required,min=1,max=100,dive,gt=0"`
	Regenerate    bool   `json:"regenerate"`
}

// RenderEnqueueResult reports per-id outcomes of an enqueue call.
type RenderEnqueueResult struct {
	Queued  int      `json:"queued"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// RenderStatusResponse exposes the render job state machine for one assignment.
type RenderStatusResponse struct {
	AssignmentID uint       `json:"assignment_id"`
	Status       string     `json:"status"`
	Version      int        `json:"version"`
	GeneratedAt  *time.Time `json:"generated_at"`
	StoragePath  string     `json:"storage_path,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Message      string     `json:"message,omitempty"`
	DownloadURL  string     `json:"download_url,omitempty"`
}

// RenderStatusEvent is broadcast whenever the worker changes a job's state.
type RenderStatusEvent struct {
	AssignmentID uint      `json:"assignment_id"`
	Status       string    `json:"status"`
	Version      int       `json:"version"`
	StoragePath  string    `json:"storage_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
