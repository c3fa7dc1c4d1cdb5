package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/talentscope-api/internal/dto"
)

var sheetNames = map[string]string{
	dto.ComponentSummary:    "Summary",
	dto.ComponentDimensions: "Dimensions",
	dto.ComponentFeedback:   "Feedback",
}

// RenderXLSX writes one worksheet per report section.
func RenderXLSX(p dto.PresentedReport) ([]byte, error) {
	sections, err := buildSections(p)
	if err != nil {
		return nil, err
	}
	base, _ := reportBase(p.Report)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	generated := base.GeneratedAt.UTC().Format(time.RFC3339)
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:    base.AssessmentTitle,
		Subject:  base.TargetName,
		Creator:  "talentscope",
		Created:  generated,
		Modified: generated,
	}); err != nil {
		return nil, fmt.Errorf("set workbook properties: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}

	if len(sections) == 0 {
		sections = []section{{key: dto.ComponentSummary, title: "Report", header: []string{"Message"}, rows: [][]string{{"No report components enabled"}}}}
	}

	for i, sec := range sections {
		name := sheetNames[sec.key]
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, sec, title, bold); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, sec section, titleStyle, headerStyle int) error {
	if err := f.SetCellValue(sheet, "A1", sec.title); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", titleStyle); err != nil {
		return err
	}

	header := make([]interface{}, len(sec.header))
	for i, h := range sec.header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(sec.header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A2", lastCol+"2", headerStyle); err != nil {
		return err
	}

	for r, row := range sec.rows {
		values := make([]interface{}, len(row))
		for c, v := range row {
			values[c] = cellValue(sec.isNumeric(c), v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+3)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 14); err != nil {
		return err
	}
	if len(sec.header) > 1 {
		if err := f.SetColWidth(sheet, "B", "B", 40); err != nil {
			return err
		}
	}
	return nil
}

// cellValue stores numeric columns as numbers; N/A and text columns stay strings.
func cellValue(numeric bool, value string) interface{} {
	if !numeric {
		return value
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return n
	}
	return value
}
