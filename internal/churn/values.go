package churn

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// featuresFromValues builds a validated record from a field getter. Every
// one of the ten fields must be present.
func featuresFromValues(get func(name string) (any, bool)) (*model.CustomerFeatures, error) {
	var missing []string
	vals := make(map[string]any, len(model.FeatureColumns))
	for _, name := range model.FeatureColumns {
		v, ok := get(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		vals[name] = v
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("churn: missing fields %s", strings.Join(missing, ", "))
	}

	var (
		f   model.CustomerFeatures
		err error
	)
	if f.CreditScore, err = toFloat(vals["CreditScore"]); err != nil {
		return nil, eris.Wrap(err, "churn: CreditScore")
	}
	if f.Geography, err = toCategory(vals["Geography"], model.Geographies); err != nil {
		return nil, eris.Wrap(err, "churn: Geography")
	}
	if f.Gender, err = toCategory(vals["Gender"], model.Genders); err != nil {
		return nil, eris.Wrap(err, "churn: Gender")
	}
	if f.Age, err = toInt(vals["Age"]); err != nil {
		return nil, eris.Wrap(err, "churn: Age")
	}
	if f.Tenure, err = toInt(vals["Tenure"]); err != nil {
		return nil, eris.Wrap(err, "churn: Tenure")
	}
	if f.Balance, err = toFloat(vals["Balance"]); err != nil {
		return nil, eris.Wrap(err, "churn: Balance")
	}
	if f.NumOfProducts, err = toInt(vals["NumOfProducts"]); err != nil {
		return nil, eris.Wrap(err, "churn: NumOfProducts")
	}
	f.HasCrCard = toBool(vals["HasCrCard"])
	f.IsActiveMember = toBool(vals["IsActiveMember"])
	if f.EstimatedSalary, err = toFloat(vals["EstimatedSalary"]); err != nil {
		return nil, eris.Wrap(err, "churn: EstimatedSalary")
	}

	if err := f.Validate(); err != nil {
		return nil, eris.Wrap(err, "churn: validate")
	}
	return &f, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return toFloat(string(x))
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, eris.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, eris.Errorf("not a number: %v", v)
	}
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, eris.Errorf("not a whole number: %v", v)
	}
	return int(f), nil
}

// toBool follows truthiness: non-zero numbers and affirmative words are true.
func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case []byte:
		return toBool(string(x))
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "0", "false", "no", "n", "f":
			return false
		default:
			return true
		}
	case nil:
		return false
	default:
		f, err := toFloat(x)
		return err == nil && f != 0
	}
}

func toCategory(v any, allowed []string) (string, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return "", eris.Errorf("not text: %v", v)
	}
	s = strings.TrimSpace(s)
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return a, nil
		}
	}
	return s, nil
}

func toText(v any) string {
	return model.FormatValue(v)
}
