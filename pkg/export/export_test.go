package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title: "Accounts",
		Columns: []Column{
			{Key: "name", Title: "Name"},
			{Key: "email", Title: "Email"},
			{Key: "role"},
		},
		Rows: []map[string]string{
			{"name": "Ana, Jr", "email": "ana@example.com", "role": "admin"},
			{"name": "Budi", "email": "budi@example.com"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatCSV, "CSV": FormatCSV, "pdf": FormatPDF, " xlsx ": FormatXLSX, "excel": FormatXLSX}
	for raw, want := range cases {
		got, err := ParseFormat(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseFormat("docx")
	assert.Error(t, err)
}

func TestFormatMetadata(t *testing.T) {
	at := time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, "accounts-20240501.xlsx", FormatXLSX.FileName("accounts", at))
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Contains(t, FormatCSV.ContentType(), "text/csv")
}

func TestCSVExporter(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Name,Email,role\n\"Ana, Jr\",ana@example.com,admin\nBudi,budi@example.com,\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporter(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 60; i++ {
		data.Rows = append(data.Rows, map[string]string{"name": "row", "email": "row@example.com"})
	}
	out, err := RendererFor(FormatPDF).Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporter(t *testing.T) {
	out, err := RendererFor(FormatXLSX).Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Accounts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Email", "role"}, rows[0])
	assert.Equal(t, "Ana, Jr", rows[1][0])
	assert.Equal(t, []string{"Budi", "budi@example.com"}, rows[2][:2])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Leads 2024", sheetName("Leads: 2024"))
	assert.Equal(t, defaultSheet, sheetName("[]"))
	assert.Len(t, []rune(sheetName("a very long export title that exceeds the limit")), 31)
}
