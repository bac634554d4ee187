package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"mesabook/internal/models"
)

func TestBuildReservationsReport(t *testing.T) {
	reservations := []models.Reservation{
		{Date: "2025-06-06", Time: "19:00", PartySize: 4, Status: models.StatusConfirmed, CustomerName: "Ada", ConfirmationCode: "c1"},
		{Date: "2025-06-06", Time: "19:30", PartySize: 2, Status: models.StatusConfirmed, CustomerName: "Grace", ConfirmationCode: "c2", OverbookWarning: true},
		{Date: "2025-06-06", Time: "20:00", PartySize: 6, Status: models.StatusCancelled, CustomerName: "Linus", ConfirmationCode: "c3"},
	}

	report, err := BuildReservationsReport("reservations 2025-06-06", reservations)
	require.NoError(t, err)
	defer report.Close()

	var buf bytes.Buffer
	n, err := report.WriteTo(&buf)
	require.NoError(t, err)
	assert.Positive(t, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	assert.Equal(t, "reservations 2025-06-06", sheet)

	header, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Date", header)

	party, err := f.GetCellValue(sheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "4", party)

	overbooked, err := f.GetCellValue(sheet, "H3")
	require.NoError(t, err)
	assert.Equal(t, "yes", overbooked)

	// Cancelled covers stay out of the confirmed summary.
	summary, err := f.GetCellValue(sheet, "A6")
	require.NoError(t, err)
	assert.Equal(t, "Confirmed covers: 6", summary)
}

func TestBuildReservationsReportTruncatesLongTitle(t *testing.T) {
	long := "reservations for a restaurant with a very long name"
	report, err := BuildReservationsReport(long, nil)
	require.NoError(t, err)
	defer report.Close()

	var buf bytes.Buffer
	_, err = report.WriteTo(&buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetName(0), 31)
}
