// Package monitoring summarizes prediction and interaction activity and
// raises webhook alerts when it drifts past configured thresholds.
package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/config"
)

// Checker periodically evaluates a fresh snapshot. An alert is delivered
// when it starts firing and again only after it has cleared.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitorConfig

	// firing holds the keys of alerts raised by the previous check.
	firing map[string]bool
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitorConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		firing:    make(map[string]bool),
	}
}

// Run checks every monitoring.check_interval_secs until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

// check runs one collect/evaluate/send round and returns the alerts that
// were new this round.
func (c *Checker) check(ctx context.Context, log *zap.Logger) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}

	current := make(map[string]bool)
	var fresh []Alert
	for _, a := range c.alerter.Evaluate(snap) {
		k := alertKey(a)
		current[k] = true
		if c.firing[k] {
			continue
		}
		log.Warn("monitoring: alert triggered",
			zap.String("type", string(a.Type)),
			zap.String("message", a.Message),
		)
		fresh = append(fresh, a)
	}
	for k := range c.firing {
		if !current[k] {
			log.Info("monitoring: alert resolved", zap.String("alert", k))
		}
	}
	c.firing = current

	if len(fresh) == 0 {
		log.Debug("monitoring: no new alerts", zap.Int("firing", len(current)))
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, fresh)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(fresh)),
		zap.Int("alerts_sent", sent),
		zap.Int("firing", len(current)),
	)
	return fresh
}

// alertKey distinguishes alerts of one type raised for different services.
func alertKey(a Alert) string {
	if svc, ok := a.Details["service"]; ok {
		return fmt.Sprintf("%s:%v", a.Type, svc)
	}
	return string(a.Type)
}
