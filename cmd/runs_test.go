//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/holdings-etl/internal/model"
)

func sampleRuns(now time.Time) []model.EtlRun {
	done := now.Add(-58 * time.Minute)
	return []model.EtlRun{
		{ID: "abc12345-6789-0000-0000-000000000000", Status: model.EtlRunOK, Message: "completed", StartedAt: now.Add(-time.Hour), FinishedAt: &done},
		{ID: "def12345-6789-0000-0000-000000000000", Status: model.EtlRunError, Message: "dart: api key is not set", StartedAt: now.Add(-2 * time.Hour), FinishedAt: &done},
		{ID: "aaa12345-6789-0000-0000-000000000000", Status: model.EtlRunRunning, Message: "started", StartedAt: now.Add(-5 * time.Minute)},
		{ID: "bbb12345-6789-0000-0000-000000000000", Status: model.EtlRunRunning, Message: "started", StartedAt: now.Add(-26 * time.Hour)},
	}
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	formatRunsList(&buf, sampleRuns(now), now, 2*time.Hour)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "2025-06-15 09:30")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "dart: api key is not set")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "stale")
}

func TestFormatRunsList_LongMessageTruncated(t *testing.T) {
	now := time.Now()
	runs := []model.EtlRun{{ID: "x", Status: model.EtlRunError, StartedAt: now, Message: string(bytes.Repeat([]byte("e"), 100))}}

	var buf bytes.Buffer
	formatRunsList(&buf, runs, now, time.Hour)
	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), string(bytes.Repeat([]byte("e"), 58)))
}

func TestDisplayStatus_NoThreshold(t *testing.T) {
	now := time.Now()
	r := model.EtlRun{Status: model.EtlRunRunning, StartedAt: now.Add(-48 * time.Hour)}
	assert.Equal(t, "running", displayStatus(r, now, 0))
	assert.Equal(t, "stale", displayStatus(r, now, time.Hour))
}

func TestComputeRunStats(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	s := computeRunStats(sampleRuns(now), now, 2*time.Hour)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.OK)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Running)
	assert.Equal(t, 1, s.Stale)
	assert.InDelta(t, 120.0, s.AvgDurSecs, 0.01)
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{Total: 4, OK: 1, Failed: 1, Running: 1, Stale: 1, AvgDurSecs: 120})

	out := buf.String()
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "Stale:")
	assert.Contains(t, out, "120.0s")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
