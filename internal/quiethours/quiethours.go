// Package quiethours decides whether SMS may go out now or must wait.
package quiethours

import (
	"fmt"
	"time"
)

// Gate is a daily local-time window [Start:00, End:00) during which SMS sends
// are deferred. A window with Start > End wraps past midnight.
type Gate struct {
	Start    int
	End      int
	Location *time.Location
}

func New(start, end int, loc *time.Location) (Gate, error) {
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return Gate{}, fmt.Errorf("quiet hours out of range: %d-%d", start, end)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Gate{Start: start, End: end, Location: loc}, nil
}

// IsQuietHours is a pure function of now.
func (g Gate) IsQuietHours(now time.Time) bool {
	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	h := now.In(loc).Hour()
	switch {
	case g.Start == g.End:
		return false
	case g.Start > g.End:
		return h >= g.Start || h < g.End
	default:
		return h >= g.Start && h < g.End
	}
}

// NextOpen returns the first instant at or after now when the gate is open.
func (g Gate) NextOpen(now time.Time) time.Time {
	if !g.IsQuietHours(now) {
		return now
	}
	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), g.End, 0, 0, 0, loc)
	if !open.After(local) {
		open = open.AddDate(0, 0, 1)
	}
	return open
}
