package render

import (
	"strings"
	"testing"

	"jobnotify/internal/domain"
)

func TestSMSSubstitutesFields(t *testing.T) {
	job := domain.Job{
		GeneratedJobID: "1042",
		Address:        "1 Main St",
		StartDate:      "2026-03-01",
		StartTime:      "09:30",
		AllocatedStaff: []domain.Technician{{DisplayName: "Sam", Phone: "+61400000001"}},
	}
	contact := domain.Contact{FirstName: "Ana", LastName: "Lee"}
	fields := SMSFields(job, contact, "https://bit.ly/x")

	got := SMS("Hi [FirstName] [LastName], #[Booking#] at [Address] by [TechnicianName] ([TechnicianPhone]) [TrackingLink] [Unknown]!", fields)
	want := "Hi Ana Lee, #1042 at 1 Main St by Sam (+61400000001) https://bit.ly/x !"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestDefaultSMSTemplateUsesTrackingLink(t *testing.T) {
	tmpl := DefaultSMSTemplate()
	if !UsesField(tmpl, TrackingLinkField) || !UsesField(tmpl, "FirstName") {
		t.Fatalf("default template missing fields: %q", tmpl)
	}
	if strings.HasSuffix(tmpl, "\n") {
		t.Fatalf("default template must be trimmed")
	}
}

func TestTrackingSlug(t *testing.T) {
	cases := map[[2]string]string{
		{"Ana", "1042"}:     "your-portal-ana-1042",
		{"Mary Jane", "77"}: "your-portal-mary-jane-77",
		{"O'Brien!!", "9"}:  "your-portal-o-brien-9",
		{"", "5"}:           "your-portal-5",
		{"Zoë", "12/3"}:     "your-portal-zo-12-3",
	}
	for in, want := range cases {
		if got := TrackingSlug(in[0], in[1]); got != want {
			t.Fatalf("TrackingSlug(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestConfirmationEscapesAndIncludesFields(t *testing.T) {
	body, err := Confirmation(EmailFields{
		CustomerName:       "Ana <b>",
		JobAddress:         "1 Main St",
		BookingID:          "1042",
		GoogleCalendarLink: "https://calendar.google.com/calendar/render?action=TEMPLATE",
		UnsubscribeLink:    UnsubscribeLink("https://hooks.example.au/", "ana@example.com"),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Ana &lt;b&gt;", "1 Main St", "#1042", "calendar.google.com", "/webhook/unsubscribe?email=ana%40example.com"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
	if CompletionSubject("1 Main St") != "Job Completed: 1 Main St" {
		t.Fatalf("unexpected subject")
	}
	if UnsubscribeLink("", "a@b.com") != "" {
		t.Fatalf("expected no unsubscribe link without base url")
	}
}

func TestCalendar(t *testing.T) {
	b := Booking{CustomerName: "Ana", Date: "2026-03-01", Time: "09:30", Address: "1 Main St, Brisbane"}

	ics := ICS(b)
	for _, want := range []string{"BEGIN:VCALENDAR\r\n", "DTSTART:20260301T093000", "LOCATION:1 Main St\\, Brisbane", "DESCRIPTION:Booking for Ana"} {
		if !strings.Contains(ics, want) {
			t.Fatalf("ics missing %q:\n%s", want, ics)
		}
	}

	link := GoogleCalendarLink(b)
	if !strings.Contains(link, "dates=20260301T093000%2F20260301T093000") || !strings.Contains(link, "action=TEMPLATE") {
		t.Fatalf("unexpected calendar link %q", link)
	}
	if GoogleCalendarLink(Booking{Date: "soon"}) != "" {
		t.Fatalf("expected no link for an unparseable date")
	}
	if strings.Contains(ICS(Booking{Date: "soon"}), "DTSTART") {
		t.Fatalf("expected no DTSTART for an unparseable date")
	}
}
