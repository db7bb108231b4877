package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/model"
	"github.com/sells-group/holdings-etl/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testNow = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

// mockSource serves canned runs and state.
type mockSource struct {
	runs    []model.EtlRun
	state   map[string]string
	listErr error
}

func (m *mockSource) ListRuns(context.Context, int) ([]model.EtlRun, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.runs, nil
}

func (m *mockSource) GetState(_ context.Context, key string) (string, bool, error) {
	v, ok := m.state[key]
	return v, ok, nil
}

func finished(status model.EtlRunStatus, started time.Time, msg string) model.EtlRun {
	end := started.Add(3 * time.Minute)
	return model.EtlRun{ID: started.String(), Status: status, Message: msg, StartedAt: started, FinishedAt: &end}
}

func newTestCollector(src Source) *Collector {
	c := NewCollector(src, 2*time.Hour)
	c.now = func() time.Time { return testNow }
	return c
}

func TestCollector_Collect(t *testing.T) {
	src := &mockSource{
		runs: []model.EtlRun{
			{ID: "live", Status: model.EtlRunRunning, StartedAt: testNow.Add(-10 * time.Minute)},
			finished(model.EtlRunError, testNow.Add(-1*time.Hour), "sec13f: fetch listing: timeout"),
			finished(model.EtlRunError, testNow.Add(-2*time.Hour), "dart: api key is not set"),
			{ID: "killed", Status: model.EtlRunRunning, StartedAt: testNow.Add(-5 * time.Hour)},
			finished(model.EtlRunOK, testNow.Add(-6*time.Hour), "completed"),
			finished(model.EtlRunOK, testNow.Add(-100*time.Hour), "completed"),
		},
		state: map[string]string{model.StateLastSuccessfulRunAt: "2025-03-04T06:03:00Z"},
	}

	snap, err := newTestCollector(src).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsOK)
	assert.Equal(t, 2, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.Equal(t, 1, snap.RunsStale)
	assert.InDelta(t, 0.75, snap.RunsFailRate, 1e-9)
	assert.Equal(t, "sec13f: fetch listing: timeout", snap.LastError)
	assert.Equal(t, time.Date(2025, 3, 4, 6, 3, 0, 0, time.UTC), snap.LastSuccessAt)
	assert.Equal(t, testNow, snap.CollectedAt)
}

func TestCollector_NoRuns(t *testing.T) {
	snap, err := newTestCollector(&mockSource{}).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.RunsFailRate)
	assert.True(t, snap.LastSuccessAt.IsZero())
}

func TestCollector_ListError(t *testing.T) {
	_, err := newTestCollector(&mockSource{listErr: errors.New("pool closed")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}

func TestCollector_MemoryStore(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	run, err := st.StartRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(ctx, run.ID, model.EtlRunOK, "completed"))

	c := NewCollector(st, time.Hour)
	snap, err := c.Collect(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.RunsOK)
}
