package export

import (
	"bytes"
	"encoding/csv"

	"github.com/noah-isme/talentscope-api/internal/dto"
)

// RenderCSV writes the report sections as comma-separated text, one blank line between sections.
func RenderCSV(p dto.PresentedReport) ([]byte, error) {
	sections, err := buildSections(p)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	for i, sec := range sections {
		if i > 0 {
			if err := w.Write([]string{""}); err != nil {
				return nil, err
			}
		}
		if err := w.Write([]string{sec.title}); err != nil {
			return nil, err
		}
		if err := w.Write(sec.header); err != nil {
			return nil, err
		}
		for _, row := range sec.rows {
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	if len(sections) == 0 {
		if err := w.Write([]string{"No report components enabled"}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
