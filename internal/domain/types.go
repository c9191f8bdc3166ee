package domain

import (
	"errors"
	"strings"
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// JobStatusCompleted is the only upstream status that triggers a notification.
const JobStatusCompleted = "Completed"

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrInvalidEvent  = errors.New("invalid completion event")
)

// TokenPair is the persisted OAuth credential set for the upstream API.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type CompletionEvent struct {
	JobID string
}

type Technician struct {
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
}

type Job struct {
	ID             string       `json:"uuid"`
	GeneratedJobID string       `json:"generated_job_id"`
	Status         string       `json:"status"`
	Address        string       `json:"job_address"`
	StartDate      string       `json:"start_date"`
	StartTime      string       `json:"start_time"`
	AllocatedStaff []Technician `json:"allocated_staff"`
}

// LeadTechnician returns the first allocated staff member, or a zero value.
func (j Job) LeadTechnician() Technician {
	if len(j.AllocatedStaff) == 0 {
		return Technician{}
	}
	return j.AllocatedStaff[0]
}

type Contact struct {
	FirstName string `json:"first"`
	LastName  string `json:"last"`
	Email     string `json:"email"`
	Mobile    string `json:"mobile"`
	Phone     string `json:"phone"`
}

func (c Contact) Reachable() bool {
	return strings.TrimSpace(c.Email) != "" || strings.TrimSpace(c.Mobile) != "" || strings.TrimSpace(c.Phone) != ""
}

// SMSNumber prefers the mobile number over the landline.
func (c Contact) SMSNumber() string {
	if m := strings.TrimSpace(c.Mobile); m != "" {
		return m
	}
	return strings.TrimSpace(c.Phone)
}

// PrimaryContact returns the first contact exposing an email, mobile or phone.
// Upstream ordering is taken as-is.
func PrimaryContact(contacts []Contact) (Contact, bool) {
	for _, c := range contacts {
		if c.Reachable() {
			return c, true
		}
	}
	return Contact{}, false
}

// QueuedSMS is a fully rendered SMS deferred by the quiet-hours gate.
type QueuedSMS struct {
	ID             string    `json:"id"`
	To             string    `json:"to"`
	Message        string    `json:"message"`
	RegardingJobID string    `json:"regardingJobUUID"`
	EnqueuedAt     time.Time `json:"enqueuedAt"`
}

type EmailMessage struct {
	To             string
	Subject        string
	HTMLBody       string
	RegardingJobID string
}

type SMSMessage struct {
	To             string
	Body           string
	RegardingJobID string
}
