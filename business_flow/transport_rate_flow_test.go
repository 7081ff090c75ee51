package businessflow

import (
	"bytes"
	"strings"
	"testing"

	"github.com/amirphl/kargo/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Reader {
	t.Helper()
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()
	sheet := xl.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, xl.SetSheetRow(sheet, cell, &row))
	}
	buf, err := xl.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestParseTransportRateWorkbook(t *testing.T) {
	r := workbook(t, [][]any{
		{"Origin_Country", "destination_country", "transport_mode", "rate_per_kg", "rate_per_m3", "notes", "is_active"},
		{"cn", "sn", "sea", 2.5, 180, "weekly", "true"},
		{"FR", "SN", "AIR", 9, "", "", ""},
		{},
		{"FR", "SN", "air", 8, 0, "", ""},
		{"FRA", "SN", "AIR", 8, 0, "", ""},
		{"FR", "SN", "BOAT", 8, 0, "", ""},
		{"FR", "SN", "ROAD", -1, 0, "", ""},
		{"FR", "SN", "RAIL", 1, 0, "", "maybe"},
	})

	rates, rowErrs, err := ParseTransportRateWorkbook(r)
	require.NoError(t, err)

	require.Len(t, rates, 2)
	assert.Equal(t, "CN", rates[0].OriginCountry)
	assert.Equal(t, "SN", rates[0].DestinationCountry)
	assert.Equal(t, models.TransportModeSea, rates[0].TransportMode)
	assert.Equal(t, 2.5, rates[0].RatePerKg)
	assert.Equal(t, 180.0, rates[0].RatePerM3)
	require.NotNil(t, rates[0].Notes)
	assert.Equal(t, "weekly", *rates[0].Notes)
	assert.True(t, *rates[0].IsActive)

	assert.Equal(t, 0.0, rates[1].RatePerM3)
	assert.Nil(t, rates[1].Notes)

	rows := make([]int, 0, len(rowErrs))
	for _, e := range rowErrs {
		rows = append(rows, e.Row)
	}
	assert.Equal(t, []int{5, 6, 7, 8, 9}, rows)
	assert.Equal(t, "duplicate of row 3", rowErrs[0].Message)
	assert.True(t, strings.Contains(rowErrs[1].Message, "origin_country"))
	assert.True(t, strings.Contains(rowErrs[3].Message, "rate_per_kg"))
	assert.True(t, strings.Contains(rowErrs[4].Message, "is_active"))
}

func TestParseTransportRateWorkbookRejectsMissingColumns(t *testing.T) {
	r := workbook(t, [][]any{
		{"origin_country", "destination_country", "rate_per_kg"},
		{"CN", "SN", 2},
	})
	_, _, err := ParseTransportRateWorkbook(r)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "transport_mode")
}

func TestParseTransportRateWorkbookEmpty(t *testing.T) {
	_, _, err := ParseTransportRateWorkbook(workbook(t, [][]any{rateHeaderRow()}))
	assert.ErrorIs(t, err, ErrRateImportEmpty)

	_, _, err = ParseTransportRateWorkbook(workbook(t, [][]any{rateHeaderRow(), {}, {"", ""}}))
	assert.ErrorIs(t, err, ErrRateImportEmpty)
}

func TestParseTransportRateWorkbookRejectsGarbage(t *testing.T) {
	_, _, err := ParseTransportRateWorkbook(strings.NewReader("origin,destination\nCN,SN\n"))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func rateHeaderRow() []any {
	row := make([]any, len(rateSheetHeader))
	for i, h := range rateSheetHeader {
		row[i] = h
	}
	return row
}
