package model

import "time"

// Interaction is the append-only log entry written for every routed query.
type Interaction struct {
	ID        int64     `json:"id,omitempty"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivityStats summarizes audit activity since a cutoff.
type ActivityStats struct {
	Customers       int     `json:"customers"`
	Predictions     int     `json:"predictions"`
	PredictedChurn  int     `json:"predicted_churn"`
	MeanProbability float64 `json:"mean_probability"`
	Interactions    int     `json:"interactions"`
}
