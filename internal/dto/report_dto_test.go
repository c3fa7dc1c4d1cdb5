package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportsMarshalWithKindTag(t *testing.T) {
	reports := []ReportData{
		&Report360Data{ReportBase: ReportBase{AssignmentID: 101}, Partial: true},
		&ReportLeaderBlockerData{ReportBase: ReportBase{AssignmentID: 201}},
	}

	for _, report := range reports {
		raw, err := json.Marshal(report)
		require.NoError(t, err)

		var tagged struct {
			Kind         ReportKind `json:"kind"`
			AssignmentID uint       `json:"assignment_id"`
		}
		require.NoError(t, json.Unmarshal(raw, &tagged))
		require.Equal(t, report.Kind(), tagged.Kind)
		require.Equal(t, report.Base().AssignmentID, tagged.AssignmentID)
	}

	raw, err := json.Marshal(ReportResponse{Report: reports[0], Cached: true})
	require.NoError(t, err)
	require.Contains(t, string(raw), `"report":{"kind":"360"`)
}

func TestDecodeReportIgnoresEmbeddedKind(t *testing.T) {
	encoded, err := EncodeReport(&Report360Data{
		ReportBase:                 ReportBase{AssignmentID: 101, Dimensions: []DimensionReport{}},
		ParticipantResponseSummary: ResponseSummary{Completed: 1, Total: 5},
	})
	require.NoError(t, err)

	decoded, err := DecodeReport(encoded)
	require.NoError(t, err)
	report, ok := decoded.(*Report360Data)
	require.True(t, ok)
	require.Equal(t, ResponseSummary{Completed: 1, Total: 5}, report.ParticipantResponseSummary)
}
