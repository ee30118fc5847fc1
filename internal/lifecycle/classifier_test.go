package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type staticExcluder map[string]bool

func (s staticExcluder) IsExcluded(appURL string) bool { return s[appURL] }

func mkApp(url string, state State, updatedDaysAgo float64, now time.Time) App {
	return App{
		Name:      "app",
		URL:       url,
		State:     state,
		CreatedAt: now.Add(-time.Duration(updatedDaysAgo*24*2) * time.Hour),
		UpdatedAt: now.Add(-time.Duration(updatedDaysAgo*24) * time.Hour),
	}
}

func TestClassify(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	thresholds := Thresholds{MaxAgeBeforeStop: 3, MaxAppAge: 7}

	tests := []struct {
		name     string
		app      App
		excluded bool
		want     Decision
	}{
		{"active stale", mkApp("https://ws/apps/a", StateActive, 5, now), false, DecisionStop},
		{"stopped stale", mkApp("https://ws/apps/b", StateStopped, 10, now), false, DecisionDelete},
		{"active fresh", mkApp("https://ws/apps/c", StateActive, 2, now), false, DecisionNone},
		{"stopped fresh", mkApp("https://ws/apps/d", StateStopped, 5, now), false, DecisionNone},
		{"excluded trumps age", mkApp("https://ws/apps/e", StateActive, 100, now), true, DecisionSkip},
		{"excluded trumps state", mkApp("https://ws/apps/f", StateStopped, 100, now), true, DecisionSkip},
		{"unknown state old", mkApp("https://ws/apps/g", State("STARTING"), 100, now), false, DecisionNone},
		{"unknown state excluded", mkApp("https://ws/apps/h", State("ERROR"), 100, now), true, DecisionSkip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := staticExcluder{}
			if tt.excluded {
				ex[tt.app.URL] = true
			}
			got := Classify(tt.app, ex, thresholds, now)
			assert.Equal(t, tt.want, got.Decision)
		})
	}
}

func TestClassifyBoundaryIsStrict(t *testing.T) {
	now := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	thresholds := Thresholds{MaxAgeBeforeStop: 3, MaxAppAge: 7}

	// Exactly at the stop threshold: no action.
	active := mkApp("https://ws/apps/edge", StateActive, 3, now)
	got := Classify(active, staticExcluder{}, thresholds, now)
	assert.Equal(t, DecisionNone, got.Decision)
	assert.Equal(t, 3, got.AgeDays)

	// One second past three full days is still age 3 (truncation).
	active.UpdatedAt = now.Add(-(3*24*time.Hour + time.Second))
	got = Classify(active, staticExcluder{}, thresholds, now)
	assert.Equal(t, DecisionNone, got.Decision)

	// A full fourth day crosses the strict comparison.
	active.UpdatedAt = now.Add(-4 * 24 * time.Hour)
	got = Classify(active, staticExcluder{}, thresholds, now)
	assert.Equal(t, DecisionStop, got.Decision)

	// Same for delete.
	stopped := mkApp("https://ws/apps/edge2", StateStopped, 7, now)
	got = Classify(stopped, staticExcluder{}, thresholds, now)
	assert.Equal(t, DecisionNone, got.Decision)

	stopped.UpdatedAt = now.Add(-8 * 24 * time.Hour)
	got = Classify(stopped, staticExcluder{}, thresholds, now)
	assert.Equal(t, DecisionDelete, got.Decision)
}

func TestClassifyNilExcluder(t *testing.T) {
	now := time.Now().UTC()
	app := mkApp("https://ws/apps/x", StateActive, 10, now)
	got := Classify(app, nil, DefaultThresholds(), now)
	assert.Equal(t, DecisionStop, got.Decision)
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		then time.Time
		want int
	}{
		{"same instant", now, 0},
		{"half a day", now.Add(-12 * time.Hour), 0},
		{"just under two days", now.Add(-47 * time.Hour), 1},
		{"exactly two days", now.Add(-48 * time.Hour), 2},
		{"future timestamp", now.Add(36 * time.Hour), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeDays(tt.then, now))
		})
	}
}
