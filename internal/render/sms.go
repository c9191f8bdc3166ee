// Package render fills message templates with job and contact values.
package render

import (
	_ "embed"
	"regexp"
	"strings"

	"jobnotify/internal/domain"
)

//go:embed templates/confirmation.txt
var defaultSMSTemplate string

// DefaultSMSTemplate is the built-in job completion SMS.
func DefaultSMSTemplate() string {
	return strings.TrimSpace(defaultSMSTemplate)
}

const TrackingLinkField = "TrackingLink"

var (
	mergeField  = regexp.MustCompile(`\[([A-Za-z0-9#]+)\]`)
	slugInvalid = regexp.MustCompile(`[^a-zA-Z0-9-]`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// SMSFields builds the [Field] values for a job completion SMS.
func SMSFields(job domain.Job, contact domain.Contact, trackingLink string) map[string]string {
	tech := job.LeadTechnician()
	return map[string]string{
		"FirstName":       contact.FirstName,
		"LastName":        contact.LastName,
		"Booking#":        job.GeneratedJobID,
		"BookingDate":     job.StartDate,
		"BookingTime":     job.StartTime,
		"Address":         job.Address,
		"TechnicianName":  tech.DisplayName,
		"TechnicianPhone": tech.Phone,
		TrackingLinkField: trackingLink,
	}
}

// UsesField reports whether tmpl references [name].
func UsesField(tmpl, name string) bool {
	return strings.Contains(tmpl, "["+name+"]")
}

// SMS substitutes every [Field] in tmpl. Unknown fields render empty.
func SMS(tmpl string, fields map[string]string) string {
	return mergeField.ReplaceAllStringFunc(tmpl, func(m string) string {
		return fields[m[1:len(m)-1]]
	})
}

// TrackingSlug is the requested short-link back-half for a job's portal link.
func TrackingSlug(firstName, generatedJobID string) string {
	s := "your-portal-" + strings.ToLower(strings.TrimSpace(firstName)) + "-" + generatedJobID
	s = slugInvalid.ReplaceAllString(s, "-")
	return slugDashes.ReplaceAllString(s, "-")
}
