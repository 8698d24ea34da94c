package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/cost"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/resilience"
)

// MetricsSnapshot holds a point-in-time view of chatbot activity.
type MetricsSnapshot struct {
	// Dataset size.
	Customers int `json:"customers"`

	// Audit metrics (within lookback window).
	Predictions        int     `json:"predictions"`
	PredictedChurn     int     `json:"predicted_churn"`
	PredictedChurnRate float64 `json:"predicted_churn_rate"`
	MeanProbability    float64 `json:"mean_probability"`
	Interactions       int     `json:"interactions"`

	// Process-lifetime oracle spend.
	OracleCostUSD float64 `json:"oracle_cost_usd"`

	// Circuit breaker states by service.
	Breakers map[string]string `json:"breakers,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// ActivityReader abstracts the store method needed by the collector.
type ActivityReader interface {
	ActivitySince(ctx context.Context, since time.Time) (*model.ActivityStats, error)
}

// Collector gathers metrics from the audit tables, breakers and cost
// calculator. Breakers and costs are optional.
type Collector struct {
	activity ActivityReader
	breakers *resilience.ServiceBreakers
	costs    *cost.Calculator
	now      func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(activity ActivityReader, breakers *resilience.ServiceBreakers, costs *cost.Calculator) *Collector {
	return &Collector{
		activity: activity,
		breakers: breakers,
		costs:    costs,
		now:      time.Now,
	}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	stats, err := c.activity.ActivitySince(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: activity since")
	}

	snap.Customers = stats.Customers
	snap.Predictions = stats.Predictions
	snap.PredictedChurn = stats.PredictedChurn
	snap.MeanProbability = stats.MeanProbability
	snap.Interactions = stats.Interactions
	if stats.Predictions > 0 {
		snap.PredictedChurnRate = float64(stats.PredictedChurn) / float64(stats.Predictions)
	}

	if c.breakers != nil {
		snap.Breakers = c.breakers.States()
	}
	if c.costs != nil {
		snap.OracleCostUSD = c.costs.Spent()
	}

	return snap, nil
}
