// Package scoring wraps the churn classifier and its preprocessing
// pipeline behind a small batch-oriented interface.
package scoring

import (
	"context"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// Model is a trained churn classifier. Implementations are loaded once at
// startup and are safe for concurrent use.
type Model interface {
	// Transform encodes raw feature records into the model's input space.
	Transform(ctx context.Context, rows []model.CustomerFeatures) ([][]float64, error)
	// Predict returns a 0/1 churn label per transformed row.
	Predict(ctx context.Context, x [][]float64) ([]int, error)
	// PredictProba returns [p(no churn), p(churn)] per transformed row.
	PredictProba(ctx context.Context, x [][]float64) ([][2]float64, error)
	// FeatureAttributions returns signed per-feature contributions.
	FeatureAttributions(ctx context.Context, x [][]float64) (Attributions, error)
	// FeatureNames names the transformed columns in order.
	FeatureNames() []string
}

// Attributions holds per-feature contributions for a batch. Models that
// explain each class separately fill PerClass (class, row, feature); the
// rest fill Values (row, feature) for the positive class directly.
type Attributions struct {
	Values   [][]float64   `json:"values,omitempty"`
	PerClass [][][]float64 `json:"per_class,omitempty"`
}

// Positive returns the positive-class attribution matrix.
func (a Attributions) Positive() [][]float64 {
	switch len(a.PerClass) {
	case 0:
		return a.Values
	case 1:
		return a.PerClass[0]
	default:
		return a.PerClass[1]
	}
}

// Row returns the positive-class attributions of row i flattened to one
// value per transformed feature, or nil when the row is missing.
func (a Attributions) Row(i int) []float64 {
	pos := a.Positive()
	if i < 0 || i >= len(pos) {
		return nil
	}
	return pos[i]
}

// Probabilities is a convenience that transforms rows and returns the
// positive-class probability of each.
func Probabilities(ctx context.Context, m Model, rows []model.CustomerFeatures) ([]float64, error) {
	x, err := m.Transform(ctx, rows)
	if err != nil {
		return nil, err
	}
	proba, err := m.PredictProba(ctx, x)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(proba))
	for i, p := range proba {
		out[i] = p[1]
	}
	return out, nil
}
