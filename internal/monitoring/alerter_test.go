package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/claims-triage/internal/config"
)

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		CheckIntervalSecs:    300,
		LookbackWindowHours:  24,
		ErrorRateThreshold:   0.2,
		UnassignedBacklog:    10,
		UtilizationThreshold: 0.9,
	}
}

func TestEvaluate_NoAlertsWhenHealthy(t *testing.T) {
	a := NewAlerter(testMonitorConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		ClaimsTotal:        20,
		ClaimsCompleted:    18,
		ClaimsErrored:      1,
		ClaimsUnassigned:   2,
		AdjustersTotal:     4,
		AdjustersAvailable: 4,
		Utilization:        0.5,
		LookbackHours:      24,
	})
	assert.Empty(t, alerts)
}

func TestEvaluate_ErrorRate(t *testing.T) {
	a := NewAlerter(testMonitorConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		ClaimsCompleted: 6,
		ClaimsErrored:   4,
		ErrorRate:       0.4,
		LookbackHours:   24,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertErrorRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Contains(t, alerts[0].Message, "4 errored")
}

func TestEvaluate_ErrorRateNeedsMinimumVolume(t *testing.T) {
	a := NewAlerter(testMonitorConfig())

	// 1 of 2 finished claims errored, but the sample is too small.
	alerts := a.Evaluate(&MetricsSnapshot{
		ClaimsCompleted: 1,
		ClaimsErrored:   1,
		ErrorRate:       0.5,
	})
	assert.Empty(t, alerts)
}

func TestEvaluate_UnassignedBacklog(t *testing.T) {
	a := NewAlerter(testMonitorConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		ClaimsUnassigned: 12,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertUnassignedBacklog, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "12 claim(s)")
}

func TestEvaluate_AdjusterSaturation(t *testing.T) {
	a := NewAlerter(testMonitorConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		AdjustersTotal:     5,
		AdjustersAvailable: 3,
		Utilization:        0.95,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertAdjusterSaturation, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
}

func TestEvaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(testMonitorConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		ClaimsCompleted:  10,
		ClaimsErrored:    5,
		ErrorRate:        float64(5) / 15,
		ClaimsUnassigned: 15,
		Utilization:      0.95,
	})
	assert.Len(t, alerts, 3)
}

func TestSendAlerts_PostsToWebhook(t *testing.T) {
	var received []Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		received = append(received, alert)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testMonitorConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertErrorRate, Severity: "high", Message: "boom", Timestamp: time.Now().UTC()},
		{Type: AlertUnassignedBacklog, Severity: "high", Message: "backlog", Timestamp: time.Now().UTC()},
	})
	assert.Equal(t, 2, sent)
	require.Len(t, received, 2)
	assert.Equal(t, AlertErrorRate, received[0].Type)
}

func TestSendAlerts_CountsOnlySuccesses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testMonitorConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertErrorRate, Severity: "high", Message: "boom", Timestamp: time.Now().UTC()},
	})
	assert.Zero(t, sent)
}

func TestSendAlerts_NoWebhookConfigured(t *testing.T) {
	a := NewAlerter(testMonitorConfig())

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertErrorRate, Severity: "high", Message: "boom", Timestamp: time.Now().UTC()},
	})
	assert.Zero(t, sent)
}
