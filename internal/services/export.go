package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"survey-bknd/internal/filters"
	"survey-bknd/internal/finance"
	"survey-bknd/internal/models"
)

const (
	OpExportUnits = "exportUnits"
	// MaxExportRows bounds a single workbook.
	MaxExportRows = 5000
	exportSheet   = "Units"
)

var exportHeaders = []string{
	"Survey ID", "ID", "District", "Tehsil", "Area", "Type", "Status", "Surveyor",
	"Total Due", "Total Paid", "Outstanding", "Recovery %", "Last Paid",
}

// ExportUnits writes every unit matching f, up to MaxExportRows, to a workbook.
// Paging in f is ignored; the sort is kept.
func (s *SurveyService) ExportUnits(ctx context.Context, f filters.State, ref models.Month) (file *excelize.File, err error) {
	defer s.observe(OpExportUnits, time.Now(), &err)

	f = f.Normalize(s.defaultSize, 0)
	f.PageIndex = 0
	f.PageSize = MaxExportRows

	page, err := s.fetchUnits(ctx, f)
	if err != nil {
		return nil, err
	}
	return createUnitWorkbook(finance.HydrateAll(page.Records, ref), page.TotalCount)
}

func createUnitWorkbook(units []models.HydratedUnit, total int) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	f.SetCellStyle(exportSheet, "A1", last, headerStyle)

	for r, u := range units {
		row := r + 2
		surveyor := ""
		if u.SurveyorID != nil {
			surveyor = *u.SurveyorID
		}
		lastPaid := ""
		if u.Summary.LastPaidDate != nil {
			lastPaid = u.Summary.LastPaidDate.Format("2006-01-02")
		}
		values := []any{
			u.SurveyID, u.IDNumeric, u.District, u.Tehsil, u.AreaName, u.Category(), u.Status, surveyor,
			u.Summary.TotalDue.InexactFloat64(),
			u.Summary.TotalPaid.InexactFloat64(),
			u.Summary.Outstanding.InexactFloat64(),
			u.Summary.RecoveryRate,
			lastPaid,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
	}

	if total > len(units) {
		cell, _ := excelize.CoordinatesToCellName(1, len(units)+3)
		f.SetCellValue(exportSheet, cell, fmt.Sprintf("Showing %d of %d units", len(units), total))
	}

	f.SetColWidth(exportSheet, "A", "A", 16)
	f.SetColWidth(exportSheet, "C", "H", 14)
	f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	return f, nil
}
