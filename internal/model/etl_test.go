package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEtlRun_IsStale(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	finished := now.Add(-time.Hour)

	cases := []struct {
		name string
		run  EtlRun
		want bool
	}{
		{"running recent", EtlRun{Status: EtlRunRunning, StartedAt: now.Add(-time.Hour)}, false},
		{"running old", EtlRun{Status: EtlRunRunning, StartedAt: now.Add(-3 * time.Hour)}, true},
		{"finished old", EtlRun{Status: EtlRunOK, StartedAt: now.Add(-3 * time.Hour), FinishedAt: &finished}, false},
		{"error old", EtlRun{Status: EtlRunError, StartedAt: now.Add(-3 * time.Hour), FinishedAt: &finished}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.run.IsStale(now, 2*time.Hour))
		})
	}
}
