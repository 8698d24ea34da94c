package churn

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/scoring"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Generate(ctx context.Context, prompt model.Prompt, vars map[string]string) (string, error) {
	args := m.Called(ctx, prompt, vars)
	return args.String(0), args.Error(1)
}

// named matches a prompt by name.
func named(name string) any {
	return mock.MatchedBy(func(p model.Prompt) bool { return p.Name == name })
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetCustomer(ctx context.Context, customerID string) (*model.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func (m *mockStore) Query(ctx context.Context, statement string) (*model.Table, error) {
	args := m.Called(ctx, statement)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Table), args.Error(1)
}

func (m *mockStore) InsertPrediction(ctx context.Context, rec model.PredictionRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) InsertInteraction(ctx context.Context, entry model.Interaction) error {
	return m.Called(ctx, entry).Error(0)
}

type mockModel struct {
	mock.Mock
}

func (m *mockModel) Transform(ctx context.Context, rows []model.CustomerFeatures) ([][]float64, error) {
	args := m.Called(ctx, rows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float64), args.Error(1)
}

func (m *mockModel) Predict(ctx context.Context, x [][]float64) ([]int, error) {
	args := m.Called(ctx, x)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *mockModel) PredictProba(ctx context.Context, x [][]float64) ([][2]float64, error) {
	args := m.Called(ctx, x)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][2]float64), args.Error(1)
}

func (m *mockModel) FeatureAttributions(ctx context.Context, x [][]float64) (scoring.Attributions, error) {
	args := m.Called(ctx, x)
	return args.Get(0).(scoring.Attributions), args.Error(1)
}

func (m *mockModel) FeatureNames() []string {
	return m.Called().Get(0).([]string)
}

func sampleFeatures() model.CustomerFeatures {
	return model.CustomerFeatures{
		CreditScore:     600,
		Geography:       "France",
		Gender:          "Male",
		Age:             40,
		Tenure:          3,
		Balance:         60000,
		NumOfProducts:   2,
		HasCrCard:       true,
		IsActiveMember:  true,
		EstimatedSalary: 50000,
	}
}

func hargrave() *model.Customer {
	return &model.Customer{
		CustomerFeatures: model.CustomerFeatures{
			CustomerID:      "15634602",
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
		},
		Surname: "Hargrave",
		Exited:  1,
	}
}

const sampleFeaturesJSON = `{"CreditScore": 600, "Geography": "France", "Gender": "Male", "Age": 40, "Tenure": 3,
"Balance": 60000, "NumOfProducts": 2, "HasCrCard": 1, "IsActiveMember": true, "EstimatedSalary": 50000}`
