package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/resilience"
)

// HTTPModel calls a scoring sidecar that hosts the trained pipeline. The
// sidecar exposes POST /transform, /predict, /predict_proba, /attributions
// and GET /feature_names. Every call goes through the breaker.
type HTTPModel struct {
	baseURL string
	http    *http.Client
	breaker *resilience.CircuitBreaker
	names   []string
}

// HTTPOption configures an HTTPModel.
type HTTPOption func(*HTTPModel)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(m *HTTPModel) {
		m.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(m *HTTPModel) {
		if d > 0 {
			m.http.Timeout = d
		}
	}
}

// WithScoringBreaker routes calls through cb.
func WithScoringBreaker(cb *resilience.CircuitBreaker) HTTPOption {
	return func(m *HTTPModel) {
		m.breaker = cb
	}
}

// NewHTTPModel connects to the sidecar and fetches the feature names once.
func NewHTTPModel(ctx context.Context, baseURL string, opts ...HTTPOption) (*HTTPModel, error) {
	m := &HTTPModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.breaker == nil {
		m.breaker = resilience.NewCircuitBreaker(resilience.FromSettings(0, 0))
	}

	var resp struct {
		Names []string `json:"names"`
	}
	if err := m.call(ctx, http.MethodGet, "/feature_names", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Names) == 0 {
		return nil, eris.New("scoring: sidecar returned no feature names")
	}
	m.names = resp.Names
	return m, nil
}

// FeatureNames implements Model.
func (m *HTTPModel) FeatureNames() []string {
	return append([]string(nil), m.names...)
}

// Transform implements Model.
func (m *HTTPModel) Transform(ctx context.Context, rows []model.CustomerFeatures) ([][]float64, error) {
	for i, r := range rows {
		if err := r.Validate(); err != nil {
			return nil, eris.Wrapf(err, "scoring: row %d", i)
		}
	}
	var resp struct {
		Processed [][]float64 `json:"processed"`
	}
	if err := m.call(ctx, http.MethodPost, "/transform", map[string]any{"features": rows}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Processed) != len(rows) {
		return nil, eris.Errorf("scoring: transform returned %d rows for %d inputs", len(resp.Processed), len(rows))
	}
	return resp.Processed, nil
}

// Predict implements Model.
func (m *HTTPModel) Predict(ctx context.Context, x [][]float64) ([]int, error) {
	var resp struct {
		Labels []int `json:"labels"`
	}
	if err := m.call(ctx, http.MethodPost, "/predict", map[string]any{"processed": x}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Labels) != len(x) {
		return nil, eris.Errorf("scoring: predict returned %d labels for %d rows", len(resp.Labels), len(x))
	}
	return resp.Labels, nil
}

// PredictProba implements Model.
func (m *HTTPModel) PredictProba(ctx context.Context, x [][]float64) ([][2]float64, error) {
	var resp struct {
		Probabilities [][2]float64 `json:"probabilities"`
	}
	if err := m.call(ctx, http.MethodPost, "/predict_proba", map[string]any{"processed": x}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Probabilities) != len(x) {
		return nil, eris.Errorf("scoring: predict_proba returned %d rows for %d inputs", len(resp.Probabilities), len(x))
	}
	return resp.Probabilities, nil
}

// FeatureAttributions implements Model. The sidecar answers either a
// single (row, feature) matrix or one matrix per class.
func (m *HTTPModel) FeatureAttributions(ctx context.Context, x [][]float64) (Attributions, error) {
	var resp struct {
		Values json.RawMessage `json:"values"`
	}
	if err := m.call(ctx, http.MethodPost, "/attributions", map[string]any{"processed": x}, &resp); err != nil {
		return Attributions{}, err
	}

	var perClass [][][]float64
	if err := json.Unmarshal(resp.Values, &perClass); err == nil {
		return Attributions{PerClass: perClass}, nil
	}
	var values [][]float64
	if err := json.Unmarshal(resp.Values, &values); err != nil {
		return Attributions{}, eris.Wrap(err, "scoring: decode attributions")
	}
	return Attributions{Values: values}, nil
}

func (m *HTTPModel) call(ctx context.Context, method, path string, body, out any) error {
	return m.breaker.Execute(ctx, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return eris.Wrapf(err, "scoring: marshal %s", path)
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
		if err != nil {
			return eris.Wrapf(err, "scoring: create request %s", path)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := m.http.Do(req)
		if err != nil {
			return eris.Wrapf(err, "scoring: %s", path)
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrapf(err, "scoring: read %s response", path)
		}
		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("scoring: %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrapf(err, "scoring: decode %s response", path)
		}
		return nil
	})
}
