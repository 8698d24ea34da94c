package churn

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/scoring"
)

// groundTruthMarker stands in for attributions when the outcome is known.
const groundTruthMarker = "Ground truth from dataset"

const topFactorCount = 3

// Predictor produces churn predictions with explanations.
type Predictor struct {
	oracle TextOracle
	store  Store
	model  scoring.Model
	pool   *InferencePool
	now    func() time.Time
}

// NewPredictor creates a predictor. pool may be nil.
func NewPredictor(oracle TextOracle, store Store, m scoring.Model, pool *InferencePool) *Predictor {
	return &Predictor{
		oracle: oracle,
		store:  store,
		model:  m,
		pool:   pool,
		now:    time.Now,
	}
}

// prediction carries the result plus the record shown to the user.
type prediction struct {
	result  *model.PredictionResult
	display any
}

// Predict answers from the stored Exited label when f names a known
// customer, otherwise estimates with the model and records an audit row.
func (p *Predictor) Predict(ctx context.Context, f model.CustomerFeatures, lang string) (*model.PredictionResult, error) {
	pr, err := p.predict(ctx, f, lang)
	if err != nil {
		return nil, err
	}
	return pr.result, nil
}

// Run is Predict rendered for the chat. Errors become localized text.
func (p *Predictor) Run(ctx context.Context, f model.CustomerFeatures, lang string) string {
	pr, err := p.predict(ctx, f, lang)
	if err != nil {
		return errorText(lang, err)
	}
	info, err := json.MarshalIndent(pr.display, "", "  ")
	if err != nil {
		return errorText(lang, eris.Wrap(err, "churn: marshal customer"))
	}

	res := pr.result
	if res.GroundTruth {
		return fmt.Sprintf("Customer Information:\n%s\n\n%s\n\nActual Churn: %d (1 = Churned, 0 = Retained)",
			info, res.Explanation, res.Prediction)
	}
	return fmt.Sprintf("Customer Information:\n%s\n\n%s\n\nPredicted Churn: %d, Probability: %.2f",
		info, res.Explanation, res.Prediction, res.Probability)
}

func (p *Predictor) predict(ctx context.Context, f model.CustomerFeatures, lang string) (*prediction, error) {
	ctx, span := tracer.Start(ctx, "churn.predict")
	defer span.End()

	if f.CustomerID != "" {
		c, err := p.store.GetCustomer(ctx, f.CustomerID)
		if err != nil {
			return nil, eris.Wrapf(err, "churn: look up customer %s", f.CustomerID)
		}
		if c != nil {
			span.SetAttributes(attribute.Bool("churn.ground_truth", true))
			return p.groundTruth(ctx, c, lang)
		}
	}
	span.SetAttributes(attribute.Bool("churn.ground_truth", false))
	return p.estimate(ctx, f, lang)
}

func (p *Predictor) groundTruth(ctx context.Context, c *model.Customer, lang string) (*prediction, error) {
	res := &model.PredictionResult{Prediction: c.Exited, GroundTruth: true}
	if c.Exited == 1 {
		res.Probability = 1.0
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "churn: marshal customer")
	}
	res.Explanation, err = p.explain(ctx, res, groundTruthMarker, string(data), lang)
	if err != nil {
		return nil, err
	}
	return &prediction{result: res, display: c}, nil
}

type estimate struct {
	label int
	prob  float64
	attr  []float64
}

func (p *Predictor) estimate(ctx context.Context, f model.CustomerFeatures, lang string) (*prediction, error) {
	est, err := Infer(ctx, p.pool, func(ctx context.Context) (estimate, error) {
		rows := []model.CustomerFeatures{f}
		x, err := p.model.Transform(ctx, rows)
		if err != nil {
			return estimate{}, eris.Wrap(err, "churn: transform")
		}
		labels, err := p.model.Predict(ctx, x)
		if err != nil {
			return estimate{}, eris.Wrap(err, "churn: predict")
		}
		proba, err := p.model.PredictProba(ctx, x)
		if err != nil {
			return estimate{}, eris.Wrap(err, "churn: predict proba")
		}
		attr, err := p.model.FeatureAttributions(ctx, x)
		if err != nil {
			return estimate{}, eris.Wrap(err, "churn: attributions")
		}
		if len(labels) == 0 || len(proba) == 0 {
			return estimate{}, eris.New("churn: model returned no prediction")
		}
		return estimate{label: labels[0], prob: proba[0][1], attr: attr.Row(0)}, nil
	})
	if err != nil {
		return nil, err
	}

	res := &model.PredictionResult{
		Prediction:  est.label,
		Probability: est.prob,
		TopFactors:  TopFactors(p.model.FeatureNames(), est.attr, topFactorCount),
	}

	features, err := json.Marshal(f)
	if err != nil {
		return nil, eris.Wrap(err, "churn: marshal features")
	}
	res.Explanation, err = p.explain(ctx, res, formatFactors(res.TopFactors), string(features), lang)
	if err != nil {
		return nil, err
	}

	customerID := f.CustomerID
	if customerID == "" {
		customerID = model.UnknownCustomer
	}
	rec := model.PredictionRecord{
		CustomerID:  customerID,
		Features:    string(features),
		Prediction:  res.Prediction,
		Probability: res.Probability,
		Timestamp:   p.now().UTC(),
	}
	if err := p.store.InsertPrediction(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "churn: record prediction")
	}

	zap.L().Info("churn prediction",
		zap.String("customer_id", customerID),
		zap.Int("prediction", res.Prediction),
		zap.Float64("probability", res.Probability),
	)
	return &prediction{result: res, display: f}, nil
}

func (p *Predictor) explain(ctx context.Context, res *model.PredictionResult, shap, data, lang string) (string, error) {
	return p.oracle.Generate(ctx, explainPrompt, map[string]string{
		"pred":     strconv.Itoa(res.Prediction),
		"prob":     strconv.FormatFloat(res.Probability, 'f', 2, 64),
		"shap":     shap,
		"data":     data,
		"language": lang,
	})
}

// TopFactors pairs names with values and keeps the k largest by absolute
// value. Ties keep feature order.
func TopFactors(names []string, values []float64, k int) []model.Factor {
	n := min(len(names), len(values))
	factors := make([]model.Factor, n)
	for i := 0; i < n; i++ {
		factors[i] = model.Factor{Feature: names[i], Contribution: values[i]}
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].Contribution) > math.Abs(factors[j].Contribution)
	})
	if len(factors) > k {
		factors = factors[:k]
	}
	return factors
}

// formatFactors renders factors as an ordered JSON-like object.
func formatFactors(factors []model.Factor) string {
	parts := make([]string, len(factors))
	for i, f := range factors {
		parts[i] = strconv.Quote(f.Feature) + ": " + strconv.FormatFloat(f.Contribution, 'f', 4, 64)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
