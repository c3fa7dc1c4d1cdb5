package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/models"
)

// ApplyTemplate copies the report and resolves component visibility and labels from the template.
// The canonical report is never modified; a nil template enables everything with default labels.
func ApplyTemplate(report dto.ReportData, template *models.ReportTemplate) dto.PresentedReport {
	presented := dto.PresentedReport{
		Report:     dto.CloneReport(report),
		Components: make(map[string]bool, len(dto.ReportComponents)),
		Labels:     map[string]string{},
	}
	for _, component := range dto.ReportComponents {
		presented.Components[component] = true
	}
	if template == nil {
		return presented
	}

	for key, value := range template.Components {
		if enabled, ok := componentFlag(value); ok {
			presented.Components[key] = enabled
		}
	}
	for key, value := range template.Labels {
		if label := strings.TrimSpace(fmt.Sprint(value)); value != nil && label != "" {
			presented.Labels[key] = label
		}
	}
	if len(template.Styling) > 0 {
		presented.Styling = json.RawMessage(append([]byte(nil), template.Styling...))
	}
	return presented
}

func componentFlag(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	case float64:
		return v != 0, true
	}
	return false, false
}
