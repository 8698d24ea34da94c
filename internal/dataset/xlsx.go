package dataset

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// xlsxRows streams the first worksheet that has rows, header first. Numeric
// cells are sent unformatted so display formats such as "#,##0.00" do not
// leak into the values.
func xlsxRows(ctx context.Context, path string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open file")
			return
		}

		sheet := dataSheet(f)
		if sheet == nil {
			return
		}

		for _, row := range sheet.Rows {
			select {
			case rowCh <- cellValues(row):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func dataSheet(f *xlsx.File) *xlsx.Sheet {
	for _, s := range f.Sheets {
		if len(s.Rows) > 0 {
			return s
		}
	}
	return nil
}

func cellValues(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		if cell.Type() == xlsx.CellTypeNumeric {
			cells[i] = cell.Value
			continue
		}
		cells[i] = cell.String()
	}
	return cells
}
