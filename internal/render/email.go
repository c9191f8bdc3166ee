package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

//go:embed templates/confirmation.html
var confirmationHTML string

var confirmation = template.Must(template.New("confirmation").Parse(confirmationHTML))

// EmailFields are the merge fields of the completion email.
type EmailFields struct {
	CustomerName       string
	CustomerEmail      string
	JobAddress         string
	CompletedDate      string
	BookingID          string
	BookingDate        string
	BookingTime        string
	TechnicianName     string
	TechnicianPhone    string
	GoogleCalendarLink string
	UnsubscribeLink    string
}

// Confirmation renders the completion email body.
func Confirmation(f EmailFields) (string, error) {
	var buf bytes.Buffer
	if err := confirmation.Execute(&buf, f); err != nil {
		return "", fmt.Errorf("render confirmation: %w", err)
	}
	return buf.String(), nil
}

func CompletionSubject(address string) string {
	return "Job Completed: " + address
}

// UnsubscribeLink points at the email opt-out endpoint. Empty when no public
// base URL is configured.
func UnsubscribeLink(publicBaseURL, email string) string {
	if publicBaseURL == "" || email == "" {
		return ""
	}
	return strings.TrimRight(publicBaseURL, "/") + "/webhook/unsubscribe?email=" + url.QueryEscape(email)
}
