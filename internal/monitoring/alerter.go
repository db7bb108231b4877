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

	"github.com/sells-group/holdings-etl/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate  AlertType = "run_failure_rate"
	AlertStaleRun        AlertType = "stale_run"
	AlertNoRecentSuccess AlertType = "no_recent_success"
)

// minFinishedForFailure is the fewest finished runs a failure rate is
// judged on.
const minFinishedForFailure = 3

// Alert is one breached threshold.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// rule inspects a snapshot and reports at most one alert.
type rule func(cfg config.MonitorConfig, snap *MetricsSnapshot) (Alert, bool)

var rules = []rule{failureRate, staleRuns, recentSuccess}

func failureRate(cfg config.MonitorConfig, snap *MetricsSnapshot) (Alert, bool) {
	failed := snap.RunsFailed + snap.RunsStale
	done := snap.RunsOK + failed
	if done < minFinishedForFailure || snap.RunsFailRate <= cfg.FailureRateThreshold {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertRunFailureRate,
		Severity: "high",
		Message: fmt.Sprintf("Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
			snap.RunsFailRate*100, cfg.FailureRateThreshold*100, failed, done, snap.LookbackHours),
		Details: map[string]any{
			"failure_rate": snap.RunsFailRate,
			"threshold":    cfg.FailureRateThreshold,
			"failed":       snap.RunsFailed,
			"stale":        snap.RunsStale,
			"finished":     done,
			"last_error":   snap.LastError,
		},
	}, true
}

// staleRuns flags runs the host killed before they could finish.
func staleRuns(cfg config.MonitorConfig, snap *MetricsSnapshot) (Alert, bool) {
	if snap.RunsStale == 0 {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertStaleRun,
		Severity: "medium",
		Message:  fmt.Sprintf("%d run(s) still marked running after %s", snap.RunsStale, cfg.StaleAfter),
		Details:  map[string]any{"stale_count": snap.RunsStale},
	}, true
}

func recentSuccess(cfg config.MonitorConfig, snap *MetricsSnapshot) (Alert, bool) {
	if cfg.MaxSuccessAge <= 0 {
		return Alert{}, false
	}
	msg := "No successful run recorded"
	if !snap.LastSuccessAt.IsZero() {
		age := snap.CollectedAt.Sub(snap.LastSuccessAt)
		if age <= cfg.MaxSuccessAge {
			return Alert{}, false
		}
		msg = fmt.Sprintf("Last successful run was %s ago (limit %s)", age.Round(time.Minute), cfg.MaxSuccessAge)
	}
	return Alert{
		Type:     AlertNoRecentSuccess,
		Severity: "high",
		Message:  msg,
		Details: map[string]any{
			"last_success_at": snap.LastSuccessAt,
			"max_age":         cfg.MaxSuccessAge.String(),
		},
	}, true
}

// Alerter applies the alert rules to snapshots and posts what fires to a
// webhook.
type Alerter struct {
	cfg    config.MonitorConfig
	client *http.Client
	log    *zap.Logger
}

// NewAlerter creates an Alerter for cfg.
func NewAlerter(cfg config.MonitorConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    zap.L().With(zap.String("component", "monitoring.alerter")),
	}
}

// Evaluate returns the alerts snap triggers, stamped with its collection time.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var out []Alert
	for _, r := range rules {
		if alert, fired := r(a.cfg, snap); fired {
			alert.Timestamp = snap.CollectedAt
			out = append(out, alert)
		}
	}
	return out
}

// SendAlerts posts each alert to the webhook and returns how many were
// accepted. Without a webhook nothing is sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}
	sent := 0
	for _, alert := range alerts {
		if err := a.post(ctx, alert); err != nil {
			a.log.Error("alert delivery failed", zap.String("type", string(alert.Type)), zap.Error(err))
			continue
		}
		a.log.Info("alert sent", zap.String("type", string(alert.Type)), zap.String("severity", alert.Severity))
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "holdings-etl-monitor")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
