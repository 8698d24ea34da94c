// Package dataset streams customer records out of CSV and XLSX exports of
// the bank churn dataset.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const utf8BOM = "\ufeff"

// sniffDelimiter picks ',', ';' or tab by counting them in the header line.
// Spreadsheet tools in many locales save "CSV" with semicolons.
func sniffDelimiter(header []byte) rune {
	best, bestN := ',', bytes.Count(header, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(header, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// csvRows streams the records of a CSV export, header first, with fields
// trimmed. Both channels are closed when the reader is exhausted.
func csvRows(ctx context.Context, r io.Reader) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		br := bufio.NewReader(r)
		if bom, err := br.Peek(len(utf8BOM)); err == nil && string(bom) == utf8BOM {
			br.Discard(len(utf8BOM)) //nolint:errcheck
		}
		head, _ := br.Peek(4096)
		if i := bytes.IndexByte(head, '\n'); i >= 0 {
			head = head[:i]
		}

		reader := csv.NewReader(br)
		reader.Comma = sniffDelimiter(head)
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
