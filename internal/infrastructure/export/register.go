// Package export renders document registers as spreadsheets
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/archive"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

const (
	sheetName  = "Register"
	timeLayout = "2006-01-02 15:04"
)

var headers = []interface{}{
	"Number", "Document Type", "Company", "Fiscal Year", "Stage", "Status", "Requester", "Created", "Updated",
}

// StatusFunc classifies a record as active or archived
type StatusFunc func(record *entity.WorkflowRecord) archive.Status

// RegisterExporter writes workflow records to an XLSX register
type RegisterExporter struct {
	statusOf StatusFunc
	logger   *zap.Logger
}

// NewRegisterExporter creates an exporter
func NewRegisterExporter(statusOf StatusFunc, logger *zap.Logger) *RegisterExporter {
	return &RegisterExporter{
		statusOf: statusOf,
		logger:   logger,
	}
}

// Write renders one row per record, in the given order, and writes the workbook to w
func (e *RegisterExporter) Write(w io.Writer, records []*entity.WorkflowRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "I1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.DocumentNumber,
			string(r.DocumentType),
			r.CompanyID,
			r.FiscalYearID,
			string(r.CurrentStage),
			string(e.statusOf(r)),
			r.RequesterID,
			r.CreatedAt.Format(timeLayout),
			r.UpdatedAt.Format(timeLayout),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "I", 18); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		e.logger.Warn("Failed to freeze header row", zap.Error(err))
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Document register exported", zap.Int("rows", len(records)))
	return nil
}
