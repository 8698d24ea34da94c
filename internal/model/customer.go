package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// FeatureColumns lists the ten scoring inputs in the order the model expects.
var FeatureColumns = []string{
	"CreditScore",
	"Geography",
	"Gender",
	"Age",
	"Tenure",
	"Balance",
	"NumOfProducts",
	"HasCrCard",
	"IsActiveMember",
	"EstimatedSalary",
}

// CustomerColumns lists every column of the customers table.
var CustomerColumns = []string{
	"CustomerId",
	"Surname",
	"CreditScore",
	"Geography",
	"Gender",
	"Age",
	"Tenure",
	"Balance",
	"NumOfProducts",
	"HasCrCard",
	"IsActiveMember",
	"EstimatedSalary",
	"Exited",
}

// Geographies and Genders are the accepted categorical values.
var (
	Geographies = []string{"France", "Germany", "Spain"}
	Genders     = []string{"Male", "Female"}
)

// CustomerFeatures is the structured input to the churn model. JSON keys
// match the dataset column names.
type CustomerFeatures struct {
	CustomerID      string  `json:"CustomerId,omitempty"`
	CreditScore     float64 `json:"CreditScore"`
	Geography       string  `json:"Geography"`
	Gender          string  `json:"Gender"`
	Age             int     `json:"Age"`
	Tenure          int     `json:"Tenure"`
	Balance         float64 `json:"Balance"`
	NumOfProducts   int     `json:"NumOfProducts"`
	HasCrCard       bool    `json:"HasCrCard"`
	IsActiveMember  bool    `json:"IsActiveMember"`
	EstimatedSalary float64 `json:"EstimatedSalary"`
}

// Validate checks every field against the ranges the model was trained on.
func (f CustomerFeatures) Validate() error {
	var problems []string
	if f.CreditScore < 300 || f.CreditScore > 850 {
		problems = append(problems, fmt.Sprintf("CreditScore %.0f outside 300-850", f.CreditScore))
	}
	if !oneOf(f.Geography, Geographies) {
		problems = append(problems, fmt.Sprintf("Geography %q not one of %v", f.Geography, Geographies))
	}
	if !oneOf(f.Gender, Genders) {
		problems = append(problems, fmt.Sprintf("Gender %q not one of %v", f.Gender, Genders))
	}
	if f.Age < 18 || f.Age > 100 {
		problems = append(problems, fmt.Sprintf("Age %d outside 18-100", f.Age))
	}
	if f.Tenure < 0 || f.Tenure > 10 {
		problems = append(problems, fmt.Sprintf("Tenure %d outside 0-10", f.Tenure))
	}
	if f.Balance < 0 {
		problems = append(problems, "Balance is negative")
	}
	if f.NumOfProducts < 1 || f.NumOfProducts > 4 {
		problems = append(problems, fmt.Sprintf("NumOfProducts %d outside 1-4", f.NumOfProducts))
	}
	if f.EstimatedSalary < 0 {
		problems = append(problems, "EstimatedSalary is negative")
	}
	if len(problems) > 0 {
		return eris.Errorf("invalid customer features: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Values returns the features keyed by column name, booleans as 0/1.
func (f CustomerFeatures) Values() map[string]any {
	return map[string]any{
		"CreditScore":     f.CreditScore,
		"Geography":       f.Geography,
		"Gender":          f.Gender,
		"Age":             f.Age,
		"Tenure":          f.Tenure,
		"Balance":         f.Balance,
		"NumOfProducts":   f.NumOfProducts,
		"HasCrCard":       boolToInt(f.HasCrCard),
		"IsActiveMember":  boolToInt(f.IsActiveMember),
		"EstimatedSalary": f.EstimatedSalary,
	}
}

// Customer is one row of the customers table.
type Customer struct {
	CustomerFeatures
	Surname string `json:"Surname"`
	Exited  int    `json:"Exited"`
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
