package churn

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// Recommender suggests retention actions for a customer.
type Recommender struct {
	oracle TextOracle
}

// NewRecommender creates a recommender.
func NewRecommender(oracle TextOracle) *Recommender {
	return &Recommender{oracle: oracle}
}

// Recommend asks the oracle for three retention actions in lang.
func (r *Recommender) Recommend(ctx context.Context, f model.CustomerFeatures, lang string) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", eris.Wrap(err, "churn: marshal features")
	}
	return r.oracle.Generate(ctx, recommendPrompt, map[string]string{
		"data":     string(data),
		"language": lang,
	})
}

// Run is Recommend with errors rendered as text.
func (r *Recommender) Run(ctx context.Context, f model.CustomerFeatures, lang string) string {
	out, err := r.Recommend(ctx, f, lang)
	if err != nil {
		return errorText(lang, err)
	}
	return out
}
