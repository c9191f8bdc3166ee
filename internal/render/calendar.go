package render

import (
	"net/url"
	"strings"
	"time"
)

// Booking describes the calendar entry attached to confirmations.
type Booking struct {
	CustomerName string
	Date         string // 2006-01-02
	Time         string // 15:04 or 15:04:05
	Address      string
}

// stamp returns the booking start as a floating local time, 20060102T150405.
func (b Booking) stamp() string {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(b.Date))
	if err != nil {
		return ""
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, strings.TrimSpace(b.Time)); err == nil {
			d = d.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second)
			break
		}
	}
	return d.Format("20060102T150405")
}

// ICS renders a single-event iCalendar document.
func ICS(b Booking) string {
	start := b.stamp()
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//jobnotify//booking//EN",
		"BEGIN:VEVENT",
		"SUMMARY:Booking Confirmation",
	}
	if start != "" {
		lines = append(lines, "DTSTART:"+start, "DTEND:"+start)
	}
	lines = append(lines,
		"LOCATION:"+icsEscape(b.Address),
		"DESCRIPTION:Booking for "+icsEscape(b.CustomerName),
		"END:VEVENT",
		"END:VCALENDAR",
	)
	return strings.Join(lines, "\r\n") + "\r\n"
}

// GoogleCalendarLink returns an "add event" link, or "" when the booking has no
// usable date.
func GoogleCalendarLink(b Booking) string {
	start := b.stamp()
	if start == "" {
		return ""
	}
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", "Booking Confirmation")
	q.Set("dates", start+"/"+start)
	q.Set("details", "Booking for "+b.CustomerName)
	q.Set("location", b.Address)
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

func icsEscape(s string) string {
	return icsEscaper.Replace(s)
}
