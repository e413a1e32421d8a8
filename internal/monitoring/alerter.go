package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertErrorRate          AlertType = "intake_error_rate"
	AlertUnassignedBacklog  AlertType = "unassigned_backlog"
	AlertAdjusterSaturation AlertType = "adjuster_saturation"
)

// minFinishedForRate avoids error-rate alerts off a handful of claims.
const minFinishedForRate = 5

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

// NewAlerter creates a new Alerter with the given monitor config.
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

	// Check intake error rate.
	finished := snap.ClaimsCompleted + snap.ClaimsErrored
	if finished >= minFinishedForRate && snap.ErrorRate > a.cfg.ErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertErrorRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Intake error rate %.1f%% exceeds threshold %.1f%% (%d errored / %d finished in last %dh)",
				snap.ErrorRate*100, a.cfg.ErrorRateThreshold*100,
				snap.ClaimsErrored, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"error_rate": snap.ErrorRate,
				"threshold":  a.cfg.ErrorRateThreshold,
				"errored":    snap.ClaimsErrored,
				"finished":   finished,
			},
			Timestamp: now,
		})
	}

	// Check unassigned backlog.
	if a.cfg.UnassignedBacklog > 0 && snap.ClaimsUnassigned >= a.cfg.UnassignedBacklog {
		alerts = append(alerts, Alert{
			Type:     AlertUnassignedBacklog,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d claim(s) awaiting assignment, threshold is %d",
				snap.ClaimsUnassigned, a.cfg.UnassignedBacklog,
			),
			Details: map[string]any{
				"unassigned": snap.ClaimsUnassigned,
				"threshold":  a.cfg.UnassignedBacklog,
			},
			Timestamp: now,
		})
	}

	// Check adjuster capacity.
	if a.cfg.UtilizationThreshold > 0 && snap.Utilization > a.cfg.UtilizationThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertAdjusterSaturation,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Adjuster utilization %.0f%% exceeds threshold %.0f%% (%d of %d available)",
				snap.Utilization*100, a.cfg.UtilizationThreshold*100,
				snap.AdjustersAvailable, snap.AdjustersTotal,
			),
			Details: map[string]any{
				"utilization": snap.Utilization,
				"threshold":   a.cfg.UtilizationThreshold,
				"available":   snap.AdjustersAvailable,
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

// sendWebhook posts a single alert to the webhook URL.
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
