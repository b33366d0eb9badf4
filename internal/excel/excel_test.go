package excel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbookTemplate(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	_, err := f.NewSheet("Summary")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Name"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestFillWritesCells(t *testing.T) {
	out, err := Fill(workbookTemplate(t), []Mutation{
		{Cell: "B1", Value: "Jane Doe"},
		{Cell: "B2", Value: 375.5},
		{Cell: "Summary!A1", Value: "Total"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	name, err := f.GetCellValue("Sheet1", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", name)

	total, err := f.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Total", total)

	kept, err := f.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Name", kept)
}

func TestFillFromEmptyTemplate(t *testing.T) {
	out, err := Fill(nil, []Mutation{{Cell: "A1", Value: 1}})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestFillBadTemplate(t *testing.T) {
	_, err := Fill([]byte("not a workbook"), nil)
	require.Error(t, err)
}

func TestConvertToPDFUnavailable(t *testing.T) {
	_, err := ConvertToPDF(nil)
	assert.ErrorIs(t, err, ErrRendererUnavailable)
}
