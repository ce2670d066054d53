package clinic

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// BillingSheet is the worksheet name of the billing statement.
const BillingSheet = "Billing"

// BillingExportHeader is the header row of the billing statement.
var BillingExportHeader = []string{
	"Billing ID", "Patient ID", "Date", "Description", "Total", "Insurance",
	"Patient", "Status", "Related Type", "Related ID",
}

var billingColumnWidths = []float64{12, 12, 12, 44, 12, 12, 12, 18, 14, 12}

// ExportBilling renders billing records as an XLSX statement, optionally
// limited to one patient. The last row carries the outstanding balance.
func (s *Service) ExportBilling(ctx context.Context, patientID string) ([]byte, error) {
	var records []BillingRecord
	var err error
	if patientID != "" {
		if _, err = s.repos.Patients.GetByID(ctx, patientID); err != nil {
			return nil, err
		}
		records, err = s.repos.Billing.ListByPatient(ctx, patientID)
	} else {
		records, err = s.repos.Billing.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	return BillingWorkbook(records)
}

// BillingWorkbook writes records to a single-sheet workbook.
func BillingWorkbook(records []BillingRecord) ([]byte, error) {
	balance, err := OutstandingBalance(records)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(BillingSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	header := make([]interface{}, len(BillingExportHeader))
	for i, h := range BillingExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(BillingSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.ColumnNumberToName(len(BillingExportHeader))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(BillingSheet, "A1", last+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}
	for i, w := range billingColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(BillingSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, r := range records {
		row := []interface{}{
			r.ID, r.PatientID, r.Date, r.Description, string(r.Total), string(r.Insurance),
			string(r.Patient), r.Status, r.RelatedEntityType, r.RelatedEntityID,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(BillingSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	totalRow := len(records) + 3
	labelCell, _ := excelize.CoordinatesToCellName(6, totalRow)
	valueCell, _ := excelize.CoordinatesToCellName(7, totalRow)
	if err := f.SetCellValue(BillingSheet, labelCell, "Outstanding"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(BillingSheet, valueCell, string(balance)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
