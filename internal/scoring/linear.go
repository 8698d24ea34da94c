package scoring

import (
	"context"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// LinearSpec is the on-disk form of a logistic churn model: standardized
// numeric inputs plus one-hot categoricals.
type LinearSpec struct {
	Name        string              `yaml:"name"`
	Version     int                 `yaml:"version"`
	Intercept   float64             `yaml:"intercept"`
	Threshold   float64             `yaml:"threshold"`
	Numeric     []NumericFeature    `yaml:"numeric"`
	Categorical []CategoricalFeature `yaml:"categorical"`
}

// NumericFeature is a standardized numeric input.
type NumericFeature struct {
	Name  string  `yaml:"name"`
	Mean  float64 `yaml:"mean"`
	Scale float64 `yaml:"scale"`
	Coef  float64 `yaml:"coef"`
}

// CategoricalFeature is a one-hot encoded input. Frequencies are the
// training-set share of each category and serve as the attribution baseline.
type CategoricalFeature struct {
	Name        string    `yaml:"name"`
	Categories  []string  `yaml:"categories"`
	Coefs       []float64 `yaml:"coefs"`
	Frequencies []float64 `yaml:"frequencies"`
}

// Linear is an in-process logistic regression. Attributions are exact:
// coef * (x - E[x]) in log-odds, reported for both classes.
type Linear struct {
	spec  LinearSpec
	names []string
	coefs []float64
	base  []float64
}

// LoadLinear reads and validates a model file.
func LoadLinear(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: read model %s", path)
	}
	var spec LinearSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, eris.Wrapf(err, "scoring: parse model %s", path)
	}
	return NewLinear(spec)
}

// NewLinear builds a model from spec.
func NewLinear(spec LinearSpec) (*Linear, error) {
	if len(spec.Numeric)+len(spec.Categorical) == 0 {
		return nil, eris.New("scoring: model has no features")
	}
	if spec.Threshold <= 0 || spec.Threshold >= 1 {
		spec.Threshold = 0.5
	}

	l := &Linear{spec: spec}
	for _, f := range spec.Numeric {
		if _, ok := numericValue(model.CustomerFeatures{}, f.Name); !ok {
			return nil, eris.Errorf("scoring: unknown numeric feature %q", f.Name)
		}
		if f.Scale == 0 {
			return nil, eris.Errorf("scoring: feature %s has zero scale", f.Name)
		}
		l.names = append(l.names, "num__"+f.Name)
		l.coefs = append(l.coefs, f.Coef)
		l.base = append(l.base, 0)
	}
	for _, f := range spec.Categorical {
		if f.Name != "Geography" && f.Name != "Gender" {
			return nil, eris.Errorf("scoring: unknown categorical feature %q", f.Name)
		}
		if len(f.Coefs) != len(f.Categories) || len(f.Frequencies) != len(f.Categories) {
			return nil, eris.Errorf("scoring: feature %s needs one coef and frequency per category", f.Name)
		}
		for i, c := range f.Categories {
			l.names = append(l.names, "cat__"+f.Name+"_"+c)
			l.coefs = append(l.coefs, f.Coefs[i])
			l.base = append(l.base, f.Frequencies[i])
		}
	}
	return l, nil
}

// FeatureNames implements Model.
func (l *Linear) FeatureNames() []string {
	return append([]string(nil), l.names...)
}

// Transform implements Model. Every row is validated first.
func (l *Linear) Transform(_ context.Context, rows []model.CustomerFeatures) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		if err := r.Validate(); err != nil {
			return nil, eris.Wrapf(err, "scoring: row %d", i)
		}
		x := make([]float64, 0, len(l.names))
		for _, f := range l.spec.Numeric {
			v, _ := numericValue(r, f.Name)
			x = append(x, (v-f.Mean)/f.Scale)
		}
		for _, f := range l.spec.Categorical {
			val := r.Geography
			if f.Name == "Gender" {
				val = r.Gender
			}
			matched := false
			for _, c := range f.Categories {
				if c == val {
					x = append(x, 1)
					matched = true
				} else {
					x = append(x, 0)
				}
			}
			if !matched {
				return nil, eris.Errorf("scoring: row %d: %s %q not in model categories", i, f.Name, val)
			}
		}
		out[i] = x
	}
	return out, nil
}

// PredictProba implements Model.
func (l *Linear) PredictProba(_ context.Context, x [][]float64) ([][2]float64, error) {
	out := make([][2]float64, len(x))
	for i, row := range x {
		z, err := l.logit(row)
		if err != nil {
			return nil, eris.Wrapf(err, "scoring: row %d", i)
		}
		p := 1 / (1 + math.Exp(-z))
		out[i] = [2]float64{1 - p, p}
	}
	return out, nil
}

// Predict implements Model.
func (l *Linear) Predict(ctx context.Context, x [][]float64) ([]int, error) {
	proba, err := l.PredictProba(ctx, x)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(proba))
	for i, p := range proba {
		if p[1] >= l.spec.Threshold {
			labels[i] = 1
		}
	}
	return labels, nil
}

// FeatureAttributions implements Model. PerClass[0] is the negation of
// PerClass[1].
func (l *Linear) FeatureAttributions(_ context.Context, x [][]float64) (Attributions, error) {
	neg := make([][]float64, len(x))
	pos := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != len(l.coefs) {
			return Attributions{}, eris.Errorf("scoring: row %d has %d columns, want %d", i, len(row), len(l.coefs))
		}
		neg[i] = make([]float64, len(row))
		pos[i] = make([]float64, len(row))
		for j, v := range row {
			c := l.coefs[j] * (v - l.base[j])
			pos[i][j] = c
			neg[i][j] = -c
		}
	}
	return Attributions{PerClass: [][][]float64{neg, pos}}, nil
}

func (l *Linear) logit(row []float64) (float64, error) {
	if len(row) != len(l.coefs) {
		return 0, eris.Errorf("scoring: got %d columns, want %d", len(row), len(l.coefs))
	}
	z := l.spec.Intercept
	for j, v := range row {
		z += l.coefs[j] * v
	}
	return z, nil
}

func numericValue(f model.CustomerFeatures, name string) (float64, bool) {
	switch name {
	case "CreditScore":
		return f.CreditScore, true
	case "Age":
		return float64(f.Age), true
	case "Tenure":
		return float64(f.Tenure), true
	case "Balance":
		return f.Balance, true
	case "NumOfProducts":
		return float64(f.NumOfProducts), true
	case "HasCrCard":
		return flag(f.HasCrCard), true
	case "IsActiveMember":
		return flag(f.IsActiveMember), true
	case "EstimatedSalary":
		return f.EstimatedSalary, true
	default:
		return 0, false
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
