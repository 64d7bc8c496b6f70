// Package report renders an instance's audit trail as an Excel workbook
// for accountants and auditors who live in spreadsheets.
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/docuflow/approval-engine/internal/application/activity"
	"github.com/docuflow/approval-engine/internal/domain/entity"
)

const sheetName = "Audit Trail"

// Exporter writes audit-trail workbooks
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new report exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Export renders the activity log for an instance into an xlsx workbook
// and returns its bytes.
func (e *Exporter) Export(instance *entity.WorkflowInstance, entries []activity.Entry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		e.logger.Warn("Failed to drop default sheet", zap.Error(err))
	}

	e.setCell(f, "A1", "Document")
	e.setCell(f, "B1", instance.FileName)
	e.setCell(f, "A2", "Department")
	e.setCell(f, "B2", instance.Department)
	e.setCell(f, "A3", "Submitted by")
	e.setCell(f, "B3", instance.SubmittedBy)
	e.setCell(f, "A4", "Status")
	e.setCell(f, "B4", instance.Status)

	headers := []string{"Step", "Stage", "Actor", "Role", "Action", "Remarks", "Signature serial", "Timestamp", "Status"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 6)
		e.setCell(f, cell, h)
	}

	row := 7
	for _, entry := range entries {
		serial := ""
		if entry.Signature != nil {
			serial = entry.Signature.CertificateSerial
		}
		values := []interface{}{
			entry.StepOrder,
			entry.StepName,
			entry.ActorName,
			string(entry.ActorRole),
			entry.Action,
			entry.Remarks,
			serial,
			entry.Timestamp,
			entry.Status,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				e.logger.Warn("Failed to set cell value",
					zap.String("cell", cell),
					zap.Error(err))
			}
		}
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Audit trail exported",
		zap.Int64("instance_id", instance.ID),
		zap.Int("entries", len(entries)))

	return buf.Bytes(), nil
}

func (e *Exporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
