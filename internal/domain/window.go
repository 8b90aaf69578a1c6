// Package domain contains core business types and interfaces.
//
// This file implements the quota window calculator: pure functions of
// (anchor, length, now) with no I/O, so every boundary case is unit-testable
// with an injected clock.
package domain

import "time"

// day is the length of one quota day. Windows are measured in whole days.
const day = 24 * time.Hour

// Window is a half-open usage interval [Start, End). An action at the exact
// instant End belongs to the next window.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// DaysUntilReset returns ceil((End - now) / 1 day), or 0 if the window has
// already ended.
func (w Window) DaysUntilReset(now time.Time) int {
	remaining := w.End.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / day)
	if remaining%day != 0 {
		days++
	}
	return days
}

// CurrentWindow computes the active usage window: the k-th successive
// non-overlapping interval of windowDays length starting at anchor, where
// k = floor((now - anchor) / length).
//
// If now precedes the anchor (clock skew, future-dated subscription), k is
// clamped to 0 and the first window applies.
func CurrentWindow(anchor time.Time, windowDays int, now time.Time) Window {
	length := time.Duration(windowDays) * day
	var k int64
	if now.After(anchor) {
		k = int64(now.Sub(anchor) / length)
	}
	start := anchor.Add(time.Duration(k) * length)
	return Window{Start: start, End: start.Add(length)}
}
