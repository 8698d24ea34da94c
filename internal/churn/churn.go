// Package churn answers natural-language churn questions by classifying
// each query to a tool and dispatching it.
package churn

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

var tracer = otel.Tracer("github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/churn")

// TextOracle renders a prompt with vars and returns the generated text.
type TextOracle interface {
	Generate(ctx context.Context, prompt model.Prompt, vars map[string]string) (string, error)
}

// CustomerLookup finds a customer by id. A missing customer is (nil, nil).
type CustomerLookup interface {
	GetCustomer(ctx context.Context, customerID string) (*model.Customer, error)
}

// Store is the slice of persistence the tools and router need.
type Store interface {
	CustomerLookup
	Query(ctx context.Context, statement string) (*model.Table, error)
	InsertPrediction(ctx context.Context, rec model.PredictionRecord) error
	InsertInteraction(ctx context.Context, entry model.Interaction) error
}
