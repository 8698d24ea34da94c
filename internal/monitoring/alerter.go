package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertPredictedChurnRate AlertType = "predicted_churn_rate"
	AlertBreakerOpen        AlertType = "breaker_open"
	AlertCostOverrun        AlertType = "cost_overrun"
)

// minPredictions is the sample size below which the churn rate is noise.
const minPredictions = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitorConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitorConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Check predicted churn rate.
	if a.cfg.ChurnRateThreshold > 0 && snap.Predictions >= minPredictions &&
		snap.PredictedChurnRate > a.cfg.ChurnRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPredictedChurnRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Predicted churn rate %.1f%% exceeds threshold %.1f%% (%d of %d predictions in last %dh)",
				snap.PredictedChurnRate*100, a.cfg.ChurnRateThreshold*100,
				snap.PredictedChurn, snap.Predictions, snap.LookbackHours,
			),
			Details: map[string]any{
				"churn_rate":  snap.PredictedChurnRate,
				"threshold":   a.cfg.ChurnRateThreshold,
				"churners":    snap.PredictedChurn,
				"predictions": snap.Predictions,
			},
			Timestamp: now,
		})
	}

	// Check open breakers.
	var open []string
	for service, state := range snap.Breakers {
		if state == "open" {
			open = append(open, service)
		}
	}
	sort.Strings(open)
	for _, service := range open {
		alerts = append(alerts, Alert{
			Type:      AlertBreakerOpen,
			Severity:  "high",
			Message:   fmt.Sprintf("Circuit breaker for %s is open", service),
			Details:   map[string]any{"service": service},
			Timestamp: now,
		})
	}

	// Check cost overrun.
	if a.cfg.CostThresholdUSD > 0 && snap.OracleCostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"Oracle cost $%.2f exceeds threshold $%.2f",
				snap.OracleCostUSD, a.cfg.CostThresholdUSD,
			),
			Details: map[string]any{
				"cost_usd":      snap.OracleCostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
				"interactions":  snap.Interactions,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
