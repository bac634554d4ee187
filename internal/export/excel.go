// Package export builds staff-facing spreadsheet reports of
// reservations.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"mesabook/internal/models"
)

var reportColumns = []string{"Date", "Time", "Party", "Status", "Customer", "Phone", "Code", "Overbooked", "Comment"}

// ReservationsReport is an Excel workbook with one sheet of
// reservations and a covers summary row.
type ReservationsReport struct {
	file *excelize.File
}

// BuildReservationsReport renders the reservations into a workbook.
// The slice is expected to be ordered by date and slot.
func BuildReservationsReport(title string, reservations []models.Reservation) (*ReservationsReport, error) {
	f := excelize.NewFile()

	// Sheet names are capped at 31 chars by the format.
	if len(title) > 31 {
		title = title[:31]
	}
	f.SetSheetName("Sheet1", title)

	for i, col := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(title, cell, col); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = f.SetCellStyle(title, start, end, style)
	}

	row := 2
	confirmedCovers := 0
	for _, r := range reservations {
		overbooked := ""
		if r.OverbookWarning {
			overbooked = "yes"
		}
		values := []any{r.Date, r.Time, r.PartySize, r.Status, r.CustomerName, r.CustomerPhone, r.ConfirmationCode, overbooked, r.Comment}
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(title, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
		if r.CountsTowardCapacity() {
			confirmedCovers += r.PartySize
		}
		row++
	}

	summaryCell, err := excelize.CoordinatesToCellName(1, row+1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellValue(title, summaryCell, fmt.Sprintf("Confirmed covers: %d", confirmedCovers)); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	return &ReservationsReport{file: f}, nil
}

// WriteTo streams the workbook.
func (r *ReservationsReport) WriteTo(w io.Writer) (int64, error) {
	return r.file.WriteTo(w)
}

// Close releases the workbook resources.
func (r *ReservationsReport) Close() error {
	return r.file.Close()
}
