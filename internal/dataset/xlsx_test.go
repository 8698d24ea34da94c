package dataset

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

// createTestXLSX writes sheets in order. Cells are strings unless they are
// float64.
func createTestXLSX(t *testing.T, sheets ...[][]any) string {
	t.Helper()
	f := xlsx.NewFile()
	for i, rows := range sheets {
		sheet, err := f.AddSheet("Sheet" + string(rune('1'+i)))
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, v := range rowData {
				cell := row.AddCell()
				switch v := v.(type) {
				case float64:
					cell.SetFloat(v)
				default:
					cell.SetString(v.(string))
				}
			}
		}
	}
	path := filepath.Join(t.TempDir(), "Churn_Modelling.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func readXLSX(t *testing.T, path string) ([][]string, error) {
	t.Helper()
	rowCh, errCh := xlsxRows(context.Background(), path)
	return collectRows(t, rowCh, errCh)
}

func TestXLSXRows_Basic(t *testing.T) {
	path := createTestXLSX(t, [][]any{
		{"CustomerId", "Geography"},
		{"15634602", "France"},
		{"15647311", "Spain"},
	})

	rows, err := readXLSX(t, path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"CustomerId", "Geography"}, rows[0])
	assert.Equal(t, []string{"15647311", "Spain"}, rows[2])
}

func TestXLSXRows_NumericCellsUnformatted(t *testing.T) {
	path := createTestXLSX(t, [][]any{
		{"CustomerId", "Balance"},
		{15634602.0, 83807.86},
	})

	rows, err := readXLSX(t, path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"15634602", "83807.86"}, rows[1])
}

func TestXLSXRows_SkipsEmptySheets(t *testing.T) {
	path := createTestXLSX(t,
		[][]any{},
		[][]any{{"CustomerId"}, {"1"}},
	)

	rows, err := readXLSX(t, path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"CustomerId"}, {"1"}}, rows)
}

func TestXLSXRows_NoRows(t *testing.T) {
	rows, err := readXLSX(t, createTestXLSX(t, [][]any{}))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestXLSXRows_MissingFile(t *testing.T) {
	_, err := readXLSX(t, filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestXLSXRows_ContextCancellation(t *testing.T) {
	sheetData := make([][]any, 1000)
	for i := range sheetData {
		sheetData[i] = []any{"a", "b", "c"}
	}
	path := createTestXLSX(t, sheetData)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rowCh, errCh := xlsxRows(ctx, path)

	count := 0
	for range rowCh {
		count++
		if count >= 5 {
			cancel()
			break
		}
	}
	for range rowCh { //nolint:revive // drain
	}
	for range errCh { //nolint:revive // drain
	}
	assert.GreaterOrEqual(t, count, 5)
}
