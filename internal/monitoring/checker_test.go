package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/config"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	collector := NewCollector(&stubActivity{stats: &model.ActivityStats{}}, nil, nil)
	cfg := config.MonitorConfig{
		CheckIntervalSecs:   1,
		LookbackWindowHours: 24,
		ChurnRateThreshold:  0.5,
	}
	checker := NewChecker(collector, NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	collector := NewCollector(&stubActivity{stats: &model.ActivityStats{}}, nil, nil)
	checker := NewChecker(collector, NewAlerter(config.MonitorConfig{}), config.MonitorConfig{})
	assert.NotNil(t, checker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := config.MonitorConfig{
		WebhookURL:          ts.URL,
		LookbackWindowHours: 24,
		ChurnRateThreshold:  0.3,
	}
	act := &stubActivity{stats: &model.ActivityStats{Predictions: 10, PredictedChurn: 6}}
	checker := NewChecker(NewCollector(act, nil, nil), NewAlerter(cfg), cfg)

	fresh := checker.check(context.Background(), zap.NewNop())
	require.Len(t, fresh, 1)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_CheckDeduplicatesFiringAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := config.MonitorConfig{WebhookURL: ts.URL, LookbackWindowHours: 24, ChurnRateThreshold: 0.3}
	act := &stubActivity{stats: &model.ActivityStats{Predictions: 10, PredictedChurn: 6}}
	checker := NewChecker(NewCollector(act, nil, nil), NewAlerter(cfg), cfg)
	log := zap.NewNop()

	assert.Len(t, checker.check(context.Background(), log), 1)
	assert.Empty(t, checker.check(context.Background(), log), "still firing, not resent")

	act.stats = &model.ActivityStats{Predictions: 10, PredictedChurn: 1}
	assert.Empty(t, checker.check(context.Background(), log))

	act.stats = &model.ActivityStats{Predictions: 10, PredictedChurn: 7}
	assert.Len(t, checker.check(context.Background(), log), 1, "fires again after clearing")
	assert.Equal(t, int32(2), received.Load())
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := config.MonitorConfig{LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(&stubActivity{err: assert.AnError}, nil, nil), NewAlerter(cfg), cfg)

	assert.Nil(t, checker.check(context.Background(), zap.NewNop()))
}

func TestAlertKey(t *testing.T) {
	assert.Equal(t, "cost_overrun", alertKey(Alert{Type: AlertCostOverrun}))
	assert.Equal(t, "breaker_open:oracle", alertKey(Alert{
		Type:    AlertBreakerOpen,
		Details: map[string]any{"service": "oracle"},
	}))
}
