package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVNumbersRowsFromHeader(t *testing.T) {
	input := "\ufeffFirst_Name, last_name ,gender\n" +
		"Ada,Obi,female\n" +
		"\n" +
		"Tunde,,male\n"

	table, err := Read(strings.NewReader(input), FormatCSV)
	require.NoError(t, err)

	assert.True(t, table.HasColumn("first_name"))
	assert.True(t, table.HasColumn("last_name"))
	assert.Equal(t, []string{"class_name"}, table.MissingColumns("gender", "class_name"))

	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Number)
	assert.Equal(t, 3, table.Rows[1].Number)
	assert.Equal(t, "Tunde", table.Value(table.Rows[1], "first_name"))
	assert.Equal(t, "", table.Value(table.Rows[1], "last_name"))
	assert.Equal(t, "", table.Value(table.Rows[1], "address"))
}

func TestReadCSVShortRows(t *testing.T) {
	table, err := Read(strings.NewReader("a,b,c\n1\n"), FormatCSV)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "1", table.Value(table.Rows[0], "a"))
	assert.Equal(t, "", table.Value(table.Rows[0], "c"))
}

func TestReadEmptyInput(t *testing.T) {
	_, err := Read(strings.NewReader(""), FormatCSV)
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	header := []string{"student_id", "first_name"}
	rows := [][]string{{"STU240001", "Ada"}, {"STU240002", "Bola"}}
	require.NoError(t, Write(&buf, FormatXLSX, header, rows))

	table, err := Read(&buf, FormatXLSX)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 3, table.Rows[1].Number)
	assert.Equal(t, "Bola", table.Value(table.Rows[1], "first_name"))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, []string{"a", "b"}, [][]string{{"1", "x,y"}}))
	assert.Equal(t, "a,b\n1,\"x,y\"\n", buf.String())
}

func TestFormatFromFilename(t *testing.T) {
	f, err := FormatFromFilename("students.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = FormatFromFilename("students.xls")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
