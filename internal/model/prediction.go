package model

import "time"

// Factor is one feature's signed contribution to a prediction.
type Factor struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
}

// PredictionResult is the outcome of a single churn prediction.
type PredictionResult struct {
	Prediction  int      `json:"prediction"`
	Probability float64  `json:"probability"`
	TopFactors  []Factor `json:"top_factors,omitempty"`
	Explanation string   `json:"explanation"`
	// GroundTruth is set when the outcome came from the stored Exited label
	// rather than model inference.
	GroundTruth bool `json:"ground_truth"`
}

// PredictionRecord is the append-only audit row for an estimated prediction.
type PredictionRecord struct {
	ID          int64     `json:"id,omitempty"`
	CustomerID  string    `json:"customer_id"`
	Features    string    `json:"features"`
	Prediction  int       `json:"prediction"`
	Probability float64   `json:"probability"`
	Timestamp   time.Time `json:"timestamp"`
}

// UnknownCustomer is recorded when a prediction has no customer id.
const UnknownCustomer = "unknown"
