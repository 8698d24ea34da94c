package churn

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

var (
	customerIDPattern = regexp.MustCompile(`\d{8}`)
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// Extractor resolves the customer a query is about.
type Extractor struct {
	oracle    TextOracle
	customers CustomerLookup
}

// NewExtractor creates an extractor.
func NewExtractor(oracle TextOracle, customers CustomerLookup) *Extractor {
	return &Extractor{oracle: oracle, customers: customers}
}

// Extract returns the features named by query, or nil when none can be
// resolved. An eight-digit customer id is authoritative: if the customer
// does not exist the result is nil with no further fallback. Otherwise the
// oracle extracts the ten fields from the text. A query that refers back to
// "this customer" or "the customer" may borrow the most recent user turn in
// history that names an id or an age; that lookback happens at most once.
func (e *Extractor) Extract(ctx context.Context, query string, history []model.Turn) (*model.CustomerFeatures, error) {
	f, authoritative, err := e.resolve(ctx, query)
	if err != nil || f != nil || authoritative {
		return f, err
	}
	if !refersBack(query) {
		return nil, nil
	}
	turn, ok := lastCustomerTurn(history)
	if !ok {
		return nil, nil
	}
	f, _, err = e.resolve(ctx, turn.Content)
	return f, err
}

// resolve looks text up by id or extracts features from it. authoritative
// reports that text carried an id.
func (e *Extractor) resolve(ctx context.Context, text string) (*model.CustomerFeatures, bool, error) {
	if id := customerIDPattern.FindString(text); id != "" {
		c, err := e.customers.GetCustomer(ctx, id)
		if err != nil || c == nil {
			return nil, true, err
		}
		f := c.CustomerFeatures
		if f.CustomerID == "" {
			f.CustomerID = id
		}
		if err := f.Validate(); err != nil {
			zap.L().Warn("churn: stored customer has invalid features",
				zap.String("customer_id", id), zap.Error(err))
			return nil, true, nil
		}
		return &f, true, nil
	}

	out, err := e.oracle.Generate(ctx, extractPrompt, map[string]string{"text": text})
	if err != nil {
		return nil, false, err
	}
	return parseFeatures(out), false, nil
}

func refersBack(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(q, "this customer") || strings.Contains(q, "the customer")
}

func lastCustomerTurn(history []model.Turn) (model.Turn, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if t.Role != model.RoleUser {
			continue
		}
		if customerIDPattern.MatchString(t.Content) || strings.Contains(t.Content, "year-old") {
			return t, true
		}
	}
	return model.Turn{}, false
}

// parseFeatures decodes the first {...} span of oracle output. It returns
// nil unless all ten fields are present and valid.
func parseFeatures(out string) *model.CustomerFeatures {
	span := jsonObjectPattern.FindString(out)
	if span == "" {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		zap.L().Debug("churn: oracle returned malformed features", zap.Error(err))
		return nil
	}

	f, err := featuresFromValues(func(name string) (any, bool) {
		v, ok := raw[name]
		return v, ok && v != nil
	})
	if err != nil {
		zap.L().Debug("churn: extracted features rejected", zap.Error(err))
		return nil
	}
	return f
}
