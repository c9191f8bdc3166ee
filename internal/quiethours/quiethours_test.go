package quiethours

import (
	"testing"
	"time"
)

// AEST without daylight saving, as used for Queensland.
var aest = time.FixedZone("AEST", 10*60*60)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 10, h, m, 0, 0, aest)
}

func TestIsQuietHoursBoundaries(t *testing.T) {
	g, err := New(20, 8, aest)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	cases := []struct {
		name  string
		now   time.Time
		quiet bool
	}{
		{"19:59 proceeds", at(19, 59), false},
		{"20:00 deferred", at(20, 0), true},
		{"23:30 deferred", at(23, 30), true},
		{"00:00 deferred", at(0, 0), true},
		{"07:59 deferred", at(7, 59), true},
		{"08:00 proceeds", at(8, 0), false},
		{"12:00 proceeds", at(12, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.IsQuietHours(tc.now); got != tc.quiet {
				t.Fatalf("IsQuietHours(%s) = %v, want %v", tc.now.Format("15:04"), got, tc.quiet)
			}
		})
	}
}

func TestIsQuietHoursUsesGateLocation(t *testing.T) {
	g, _ := New(20, 8, aest)

	// 09:59 UTC is 19:59 AEST, 10:00 UTC is 20:00 AEST
	if g.IsQuietHours(time.Date(2026, 3, 10, 9, 59, 0, 0, time.UTC)) {
		t.Fatalf("expected 19:59 local to be open")
	}
	if !g.IsQuietHours(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 20:00 local to be quiet")
	}
}

func TestNonWrappingAndEmptyWindows(t *testing.T) {
	day, _ := New(1, 5, time.UTC)
	if !day.IsQuietHours(time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("03:00 inside 01-05")
	}
	if day.IsQuietHours(time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)) {
		t.Fatalf("05:00 outside 01-05")
	}

	never, _ := New(8, 8, time.UTC)
	if never.IsQuietHours(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("empty window is never quiet")
	}

	if _, err := New(24, 8, time.UTC); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestNextOpen(t *testing.T) {
	g, _ := New(20, 8, aest)

	if got := g.NextOpen(at(12, 0)); !got.Equal(at(12, 0)) {
		t.Fatalf("open gate should return now, got %v", got)
	}
	if got := g.NextOpen(at(21, 0)); !got.Equal(at(8, 0).AddDate(0, 0, 1)) {
		t.Fatalf("expected next morning 08:00, got %v", got)
	}
	if got := g.NextOpen(at(3, 0)); !got.Equal(at(8, 0)) {
		t.Fatalf("expected same morning 08:00, got %v", got)
	}
}
