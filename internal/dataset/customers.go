package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// optionalColumns may be absent from an export.
var optionalColumns = map[string]bool{"Surname": true}

// StreamCustomers parses a .csv or .xlsx export into customers. The first
// row must name the columns; matching is case-insensitive and extra columns
// such as RowNumber are ignored. The first malformed row stops the stream.
func StreamCustomers(ctx context.Context, path string) (<-chan model.Customer, <-chan error) {
	outCh := make(chan model.Customer, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		rows, rowErrs, closeFn, err := openRows(ctx, path)
		if err != nil {
			errCh <- err
			return
		}
		defer closeFn()

		var cols map[string]int
		row := 0
		for record := range rows {
			row++
			if cols == nil {
				cols, err = headerIndex(record)
				if err != nil {
					errCh <- eris.Wrapf(err, "dataset: %s", filepath.Base(path))
					return
				}
				continue
			}
			if blank(record) {
				continue
			}

			c, err := parseCustomer(record, cols)
			if err != nil {
				errCh <- eris.Wrapf(err, "dataset: %s row %d", filepath.Base(path), row)
				return
			}
			select {
			case outCh <- c:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "dataset: context cancelled")
				return
			}
		}
		if err := <-rowErrs; err != nil {
			errCh <- err
			return
		}
		if cols == nil {
			errCh <- eris.Errorf("dataset: %s has no header row", filepath.Base(path))
		}
	}()

	return outCh, errCh
}

func openRows(ctx context.Context, path string) (<-chan []string, <-chan error, func(), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, nil, eris.Wrapf(err, "dataset: open %s", path)
		}
		rows, errs := csvRows(ctx, f)
		return rows, errs, func() { f.Close() }, nil //nolint:errcheck
	case ".xlsx":
		rows, errs := xlsxRows(ctx, path)
		return rows, errs, func() {}, nil
	default:
		return nil, nil, nil, eris.Errorf("dataset: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

func headerIndex(header []string) (map[string]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))] = i
	}

	cols := make(map[string]int, len(model.CustomerColumns))
	var missing []string
	for _, name := range model.CustomerColumns {
		i, ok := byName[strings.ToLower(name)]
		if !ok {
			if !optionalColumns[name] {
				missing = append(missing, name)
			}
			continue
		}
		cols[name] = i
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("missing columns %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseCustomer(record []string, cols map[string]int) (model.Customer, error) {
	p := rowParser{record: record, cols: cols}
	c := model.Customer{
		CustomerFeatures: model.CustomerFeatures{
			CustomerID:      p.asID("CustomerId"),
			CreditScore:     p.asFloat("CreditScore"),
			Geography:       p.asText("Geography"),
			Gender:          p.asText("Gender"),
			Age:             p.asInt("Age"),
			Tenure:          p.asInt("Tenure"),
			Balance:         p.asFloat("Balance"),
			NumOfProducts:   p.asInt("NumOfProducts"),
			HasCrCard:       p.asBool("HasCrCard"),
			IsActiveMember:  p.asBool("IsActiveMember"),
			EstimatedSalary: p.asFloat("EstimatedSalary"),
		},
		Surname: p.asText("Surname"),
		Exited:  p.asInt("Exited"),
	}
	return c, p.err
}

// rowParser keeps the first conversion error so a row parses in one pass.
type rowParser struct {
	record []string
	cols   map[string]int
	err    error
}

func (p *rowParser) raw(name string) string {
	i, ok := p.cols[name]
	if !ok || i >= len(p.record) {
		return ""
	}
	return strings.TrimSpace(p.record[i])
}

func (p *rowParser) fail(name, v string, err error) {
	if p.err == nil {
		p.err = eris.Wrapf(err, "%s %q", name, v)
	}
}

func (p *rowParser) asText(name string) string {
	return p.raw(name)
}

func (p *rowParser) asID(name string) string {
	v := p.raw(name)
	if _, err := strconv.ParseInt(v, 10, 64); err != nil {
		p.fail(name, v, err)
	}
	return v
}

func (p *rowParser) asFloat(name string) float64 {
	v := p.raw(name)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(name, v, err)
	}
	return f
}

func (p *rowParser) asInt(name string) int {
	v := p.raw(name)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(name, v, err)
		return 0
	}
	if f != float64(int(f)) {
		p.fail(name, v, eris.New("not a whole number"))
	}
	return int(f)
}

func (p *rowParser) asBool(name string) bool {
	v := p.raw(name)
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f != 0
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(name, v, err)
	}
	return b
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
