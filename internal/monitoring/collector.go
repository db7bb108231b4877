// Package monitoring watches etl_runs and the success watermark and posts
// webhook alerts when ingestion is failing or has stalled.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-etl/internal/model"
)

// runWindow caps how many recent runs one snapshot reads.
const runWindow = 1000

// MetricsSnapshot holds a point-in-time view of ingestion health.
type MetricsSnapshot struct {
	// Runs started within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsOK       int     `json:"runs_ok"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	RunsStale    int     `json:"runs_stale"`
	RunsFailRate float64 `json:"runs_fail_rate"`
	LastError    string  `json:"last_error,omitempty"`

	// Zero when no run has ever succeeded.
	LastSuccessAt time.Time `json:"last_success_at"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Source is the store surface the collector reads.
type Source interface {
	ListRuns(ctx context.Context, limit int) ([]model.EtlRun, error)
	GetState(ctx context.Context, key string) (string, bool, error)
}

// Collector gathers run metrics from the store.
type Collector struct {
	store      Source
	staleAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a new metrics collector. Running rows older than
// staleAfter count as stale.
func NewCollector(st Source, staleAfter time.Duration) *Collector {
	return &Collector{store: st, staleAfter: staleAfter, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, runWindow)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	// Runs arrive newest first.
	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch {
		case r.Status == model.EtlRunOK:
			snap.RunsOK++
		case r.Status == model.EtlRunError:
			snap.RunsFailed++
			if snap.LastError == "" {
				snap.LastError = r.Message
			}
		case c.staleAfter > 0 && r.IsStale(now, c.staleAfter):
			snap.RunsStale++
		default:
			snap.RunsRunning++
		}
	}

	// Stale runs were killed mid-flight and count as failures.
	finished := snap.RunsOK + snap.RunsFailed + snap.RunsStale
	if finished > 0 {
		snap.RunsFailRate = float64(snap.RunsFailed+snap.RunsStale) / float64(finished)
	}

	v, ok, err := c.store.GetState(ctx, model.StateLastSuccessfulRunAt)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: read success watermark")
	}
	if ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			snap.LastSuccessAt = t.UTC()
		}
	}

	return snap, nil
}
