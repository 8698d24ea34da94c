package churn

import (
	"strings"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// Budget defaults.
const (
	DefaultMaxTokens      = 8000
	DefaultReservedTokens = 1000
	DefaultHistoryWindow  = 4
)

// Budgeter trims conversation history so that history plus query fits the
// usable window (MaxTokens - ReservedTokens).
type Budgeter struct {
	MaxTokens      int
	ReservedTokens int
	HistoryWindow  int
	Counter        TokenCounter
}

// NewBudgeter returns a budgeter with the default limits and the
// character estimate.
func NewBudgeter() *Budgeter {
	return &Budgeter{
		MaxTokens:      DefaultMaxTokens,
		ReservedTokens: DefaultReservedTokens,
		HistoryWindow:  DefaultHistoryWindow,
		Counter:        EstimateCounter{},
	}
}

// Budget is the outcome of truncating one request's history.
type Budget struct {
	Kept          []model.Turn
	QueryTokens   int
	HistoryTokens int
	Total         int
	// Oversized is set when the query cannot be answered within the budget
	// even with no history. Kept is empty in that case.
	Oversized bool
}

// HistoryText renders the kept turns one per line.
func (b Budget) HistoryText() string {
	lines := make([]string, len(b.Kept))
	for i, t := range b.Kept {
		lines[i] = t.String()
	}
	return strings.Join(lines, "\n")
}

// Truncate walks the last HistoryWindow turns newest to oldest, keeping
// each while it fits and stopping at the first that does not. Kept turns
// come back oldest first.
func (b *Budgeter) Truncate(history []model.Turn, query string) Budget {
	counter := b.Counter
	if counter == nil {
		counter = EstimateCounter{}
	}
	usable := b.MaxTokens - b.ReservedTokens

	// History is only added while the total stays within usable, so the
	// query alone decides whether the input is oversized.
	out := Budget{QueryTokens: counter.Count(query)}
	if out.QueryTokens >= usable {
		out.Total = out.QueryTokens
		out.Oversized = true
		return out
	}

	candidates := history
	if b.HistoryWindow >= 0 && len(candidates) > b.HistoryWindow {
		candidates = candidates[len(candidates)-b.HistoryWindow:]
	}

	var kept []model.Turn
	for i := len(candidates) - 1; i >= 0; i-- {
		n := counter.Count(candidates[i].String())
		if out.HistoryTokens+n+out.QueryTokens > usable {
			break
		}
		kept = append(kept, candidates[i])
		out.HistoryTokens += n
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	out.Kept = kept
	out.Total = out.QueryTokens + out.HistoryTokens
	return out
}
