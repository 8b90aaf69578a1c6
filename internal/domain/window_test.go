package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var anchor = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestCurrentWindow(t *testing.T) {
	tests := []struct {
		name       string
		windowDays int
		now        time.Time
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{
			name:       "now inside first window",
			windowDays: 30,
			now:        anchor.AddDate(0, 0, 5),
			wantStart:  anchor,
			wantEnd:    anchor.AddDate(0, 0, 30),
		},
		{
			name:       "last instant of first window",
			windowDays: 30,
			now:        anchor.Add(30*24*time.Hour - time.Nanosecond),
			wantStart:  anchor,
			wantEnd:    anchor.AddDate(0, 0, 30),
		},
		{
			name:       "exact boundary belongs to next window",
			windowDays: 30,
			now:        anchor.AddDate(0, 0, 30),
			wantStart:  anchor.AddDate(0, 0, 30),
			wantEnd:    anchor.AddDate(0, 0, 60),
		},
		{
			name:       "third window",
			windowDays: 30,
			now:        anchor.AddDate(0, 0, 65),
			wantStart:  anchor.AddDate(0, 0, 60),
			wantEnd:    anchor.AddDate(0, 0, 90),
		},
		{
			name:       "now before anchor clamps to first window",
			windowDays: 30,
			now:        anchor.AddDate(0, 0, -3),
			wantStart:  anchor,
			wantEnd:    anchor.AddDate(0, 0, 30),
		},
		{
			name:       "now equal to anchor is first window",
			windowDays: 30,
			now:        anchor,
			wantStart:  anchor,
			wantEnd:    anchor.AddDate(0, 0, 30),
		},
		{
			name:       "seven day window",
			windowDays: 7,
			now:        anchor.AddDate(0, 0, 15),
			wantStart:  anchor.AddDate(0, 0, 14),
			wantEnd:    anchor.AddDate(0, 0, 21),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CurrentWindow(anchor, tt.windowDays, tt.now)
			assert.Equal(t, tt.wantStart, got.Start)
			assert.Equal(t, tt.wantEnd, got.End)
		})
	}
}

func TestWindowContains(t *testing.T) {
	w := CurrentWindow(anchor, 30, anchor)

	assert.True(t, w.Contains(anchor), "start instant is inside")
	assert.True(t, w.Contains(anchor.AddDate(0, 0, 29)))
	assert.False(t, w.Contains(w.End), "end instant belongs to the next window")
	assert.False(t, w.Contains(anchor.Add(-time.Second)))
}

func TestWindowDaysUntilReset(t *testing.T) {
	w := CurrentWindow(anchor, 30, anchor)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"whole days remaining", anchor.AddDate(0, 0, 19), 11},
		{"partial day rounds up", anchor.AddDate(0, 0, 29).Add(12 * time.Hour), 1},
		{"one nanosecond left still counts as a day", w.End.Add(-time.Nanosecond), 1},
		{"expired window", w.End, 0},
		{"long past window", w.End.AddDate(0, 0, 10), 0},
		{"full window remaining", anchor, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.DaysUntilReset(tt.now))
		})
	}
}
