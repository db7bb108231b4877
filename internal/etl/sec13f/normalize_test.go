package sec13f

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValueMultiplier(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"/files/2021q4_form13f.zip", "1000"},
		{"/files/01dec2022-28feb2023_form13f.zip", "1000"},
		{"/files/2023q1_form13f.zip", "1"},
		{testHref, "1"},
		{"/files/latest_form13f.zip", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ValueMultiplier(tt.label, 2022).String())
		})
	}
}

func TestValueMultiplier_CutoffConfigurable(t *testing.T) {
	assert.Equal(t, "1000", ValueMultiplier("/files/2023q1_form13f.zip", 2023).String())
	assert.Equal(t, "1", ValueMultiplier("/files/2023q1_form13f.zip", 2020).String())
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 5, 6, 23, 30, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"31-DEC-2023", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"1-mar-2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{" 14-Feb-2024 ", time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)},
		{"15-XYZ-2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-02-14", time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC)},
		{"", time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDate(tt.in, now))
		})
	}
}

func TestArchivePath(t *testing.T) {
	at := time.Date(2025, 2, 28, 22, 0, 0, 0, time.FixedZone("EST", -5*60*60))
	assert.Equal(t, filepath.Join("/data", "sec", "13f", "2025-03-01.zip"), ArchivePath("/data", at))
}
