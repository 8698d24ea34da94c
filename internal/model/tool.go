package model

// Tool is the capability the router selected for a query.
type Tool string

const (
	ToolPrediction        Tool = "prediction_tool"
	ToolRecommendation    Tool = "recommendation_tool"
	ToolSQL               Tool = "sql_tool"
	ToolProbabilityFilter Tool = "probability_filter_tool"
	// ToolInvalid means the classifier output matched no known tool.
	ToolInvalid Tool = ""
)

// Valid reports whether t names one of the four tools.
func (t Tool) Valid() bool {
	switch t {
	case ToolPrediction, ToolRecommendation, ToolSQL, ToolProbabilityFilter:
		return true
	default:
		return false
	}
}
