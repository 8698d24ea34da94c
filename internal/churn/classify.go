package churn

import (
	"context"
	"strings"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// toolMatchOrder is checked in order; the first substring found wins.
var toolMatchOrder = []struct {
	needle string
	tool   model.Tool
}{
	{"prediction", model.ToolPrediction},
	{"recommendation", model.ToolRecommendation},
	{"sql", model.ToolSQL},
	{"probability_filter", model.ToolProbabilityFilter},
}

// Classifier asks the oracle which tool should answer a query.
type Classifier struct {
	oracle TextOracle
}

// NewClassifier creates a classifier.
func NewClassifier(oracle TextOracle) *Classifier {
	return &Classifier{oracle: oracle}
}

// Classify returns the chosen tool, or model.ToolInvalid when the oracle
// names none of them.
func (c *Classifier) Classify(ctx context.Context, historyText, query string) (model.Tool, error) {
	out, err := c.oracle.Generate(ctx, classifyPrompt, map[string]string{
		"history": historyText,
		"query":   query,
	})
	if err != nil {
		return model.ToolInvalid, err
	}
	return ParseTool(out), nil
}

// ParseTool maps free-form oracle output to a tool.
func ParseTool(out string) model.Tool {
	lower := strings.ToLower(out)
	for _, m := range toolMatchOrder {
		if strings.Contains(lower, m.needle) {
			return m.tool
		}
	}
	return model.ToolInvalid
}
