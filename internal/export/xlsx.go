// Package export renders profiles as a spreadsheet and optionally publishes
// it to S3-compatible storage behind a presigned link.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/schema"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the profiles.
const SheetName = "Profiles"

// Header returns the column titles: the user id, every schema label, then
// the status flags.
func Header(s *schema.Schema) []string {
	h := []string{"User ID"}
	for _, f := range s.Fields() {
		h = append(h, f.Label)
	}
	return append(h, "Signed up", "Verified")
}

// Row returns the cell values of one profile in Header order. Lists are
// joined with ", " and unset values are left blank.
func Row(p *profiles.Profile, s *schema.Schema) []any {
	row := []any{p.UserID}
	for _, f := range s.Fields() {
		v, _ := p.Value(f.Name)
		switch {
		case f.IsEmpty(v):
			row = append(row, "")
		case f.Multi():
			row = append(row, strings.Join(v.([]string), ", "))
		default:
			row = append(row, v)
		}
	}
	return append(row, yesNo(p.IsSignedUp), yesNo(p.IsVerified))
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Build writes one row per profile into a new workbook and returns its
// bytes.
func Build(list []*profiles.Profile, s *schema.Schema) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := Header(s)
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, title); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return nil, fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", last, 20); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, p := range list {
		for col, v := range Row(p, s) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
