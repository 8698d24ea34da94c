package churn

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/scoring"
)

// DefaultThreshold applies when the query names no probability.
const DefaultThreshold = 0.5

// ProbabilityColumn is appended to filtered results.
const ProbabilityColumn = "ChurnProbability"

var (
	filterSplit      = regexp.MustCompile(`(?i)with\s*churn\s*probability`)
	thresholdPattern = regexp.MustCompile(`(?i)probability\s*(?:greater than|above)\s*([\d.]+)`)
)

// FilterTool selects customers with SQL and keeps those the model scores
// above a threshold.
type FilterTool struct {
	sql       *SQLTool
	customers CustomerLookup
	model     scoring.Model
	pool      *InferencePool
}

// NewFilterTool creates the tool. pool may be nil.
func NewFilterTool(sql *SQLTool, customers CustomerLookup, m scoring.Model, pool *InferencePool) *FilterTool {
	return &FilterTool{sql: sql, customers: customers, model: m, pool: pool}
}

// SplitFilterQuery returns the row-selection text before "with churn
// probability" and the threshold after "probability above/greater than".
func SplitFilterQuery(query string) (string, float64) {
	condition := strings.TrimSpace(filterSplit.Split(query, 2)[0])

	threshold := DefaultThreshold
	if m := thresholdPattern.FindStringSubmatch(query); m != nil {
		if v, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64); err == nil {
			threshold = v
		}
	}
	return condition, threshold
}

// Filter returns the matching rows with a ChurnProbability column, the
// number of rows the SQL selected, and any failure.
func (t *FilterTool) Filter(ctx context.Context, query string) (*model.Table, int, error) {
	ctx, span := tracer.Start(ctx, "churn.filter")
	defer span.End()

	condition, threshold := SplitFilterQuery(query)
	span.SetAttributes(attribute.Float64("churn.threshold", threshold))

	table, err := t.sql.Execute(ctx, condition)
	if err != nil {
		return nil, 0, err
	}
	if table.Empty() {
		return table, 0, nil
	}

	rows, err := t.rowFeatures(ctx, table)
	if err != nil {
		return nil, len(table.Rows), err
	}
	probs, err := Infer(ctx, t.pool, func(ctx context.Context) ([]float64, error) {
		return scoring.Probabilities(ctx, t.model, rows)
	})
	if err != nil {
		return nil, len(table.Rows), eris.Wrap(err, "churn: score rows")
	}

	col := make([]any, len(probs))
	for i, p := range probs {
		col[i] = math.Round(p*1e4) / 1e4
	}
	if err := table.AppendColumn(ProbabilityColumn, col); err != nil {
		return nil, len(table.Rows), eris.Wrap(err, "churn: append probabilities")
	}
	kept := table.Filter(func(i int) bool { return probs[i] > threshold })
	return kept, len(table.Rows), nil
}

// Run answers query as a markdown table or a localized message.
func (t *FilterTool) Run(ctx context.Context, query, lang string) string {
	kept, selected, err := t.Filter(ctx, query)
	if err != nil {
		return errorText(lang, err)
	}
	if selected == 0 {
		return message(lang, msgNoMatches)
	}
	if kept.Empty() {
		return message(lang, msgNoneAboveThreshold)
	}
	return kept.Markdown()
}

// rowFeatures reads the ten features from each row's columns, falling back
// to a CustomerId lookup when the query did not select them.
func (t *FilterTool) rowFeatures(ctx context.Context, table *model.Table) ([]model.CustomerFeatures, error) {
	idx := make(map[string]int, len(model.FeatureColumns))
	complete := true
	for _, name := range model.FeatureColumns {
		i := table.ColumnIndex(name)
		if i < 0 {
			complete = false
		}
		idx[name] = i
	}
	idCol := table.ColumnIndex("CustomerId")
	if !complete && idCol < 0 {
		return nil, eris.New("churn: result has neither the feature columns nor CustomerId")
	}

	out := make([]model.CustomerFeatures, len(table.Rows))
	for r, row := range table.Rows {
		if complete {
			f, err := featuresFromValues(func(name string) (any, bool) {
				v := row[idx[name]]
				return v, v != nil
			})
			if err != nil {
				return nil, eris.Wrapf(err, "churn: row %d", r)
			}
			out[r] = *f
			continue
		}

		id := toText(row[idCol])
		c, err := t.customers.GetCustomer(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "churn: row %d", r)
		}
		if c == nil {
			return nil, eris.Errorf("churn: row %d: customer %s not found", r, id)
		}
		out[r] = c.CustomerFeatures
	}
	return out, nil
}
