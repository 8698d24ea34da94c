package churn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRecommendRun(t *testing.T) {
	oracle := &mockOracle{}
	oracle.On("Generate", mock.Anything, named("recommend"), mock.MatchedBy(func(v map[string]string) bool {
		return v["language"] == "ar"
	})).Return("- عرض مكافأة", nil)

	out := NewRecommender(oracle).Run(context.Background(), sampleFeatures(), "ar")
	assert.Equal(t, "- عرض مكافأة", out)
}

func TestRecommendRun_Error(t *testing.T) {
	oracle := &mockOracle{}
	oracle.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	out := NewRecommender(oracle).Run(context.Background(), sampleFeatures(), "en")
	assert.Equal(t, "Error: quota exceeded", out)
}
