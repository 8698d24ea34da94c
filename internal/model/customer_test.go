package model

import (
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFeatures() CustomerFeatures {
	return CustomerFeatures{
		CreditScore:     619,
		Geography:       "France",
		Gender:          "Female",
		Age:             42,
		Tenure:          2,
		Balance:         0,
		NumOfProducts:   1,
		HasCrCard:       true,
		IsActiveMember:  true,
		EstimatedSalary: 101348.88,
	}
}

func TestCustomerFeatures_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(f *CustomerFeatures)
		wantErr string
	}{
		{"valid", func(*CustomerFeatures) {}, ""},
		{"credit score low", func(f *CustomerFeatures) { f.CreditScore = 299 }, "CreditScore"},
		{"credit score high", func(f *CustomerFeatures) { f.CreditScore = 851 }, "CreditScore"},
		{"geography", func(f *CustomerFeatures) { f.Geography = "Italy" }, "Geography"},
		{"gender", func(f *CustomerFeatures) { f.Gender = "" }, "Gender"},
		{"age", func(f *CustomerFeatures) { f.Age = 17 }, "Age"},
		{"tenure", func(f *CustomerFeatures) { f.Tenure = 11 }, "Tenure"},
		{"balance", func(f *CustomerFeatures) { f.Balance = -1 }, "Balance"},
		{"products", func(f *CustomerFeatures) { f.NumOfProducts = 0 }, "NumOfProducts"},
		{"salary", func(f *CustomerFeatures) { f.EstimatedSalary = -5 }, "EstimatedSalary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := validFeatures()
			tt.mutate(&f)
			err := f.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCustomerFeatures_JSONKeys(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(validFeatures())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, col := range FeatureColumns {
		assert.Contains(t, raw, col)
	}
	assert.NotContains(t, raw, "CustomerId")
}

func TestCustomer_JSONFlattensFeatures(t *testing.T) {
	t.Parallel()

	c := Customer{CustomerFeatures: validFeatures(), Surname: "Hargrave", Exited: 1}
	c.CustomerID = "15634602"

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"CustomerId":"15634602"`)
	assert.Contains(t, string(data), `"Surname":"Hargrave"`)
	assert.Contains(t, string(data), `"Exited":1`)
}

func TestCustomerFeatures_Values(t *testing.T) {
	t.Parallel()

	v := validFeatures().Values()
	assert.Len(t, v, len(FeatureColumns))
	assert.Equal(t, 1, v["HasCrCard"])
	assert.Equal(t, "France", v["Geography"])
}

func TestCustomerFeatures_ValidateErrorCarriesTrace(t *testing.T) {
	f := validFeatures()
	f.Age = 12

	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, eris.ToString(err, true), "Validate")
}
