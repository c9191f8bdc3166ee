// Package dispatch turns a job completion event into customer notifications.
//
// A dispatch runs as a fixed sequence of stages: fetch the job, select the
// contact, then the email and SMS branches. Each stage reports what it did in
// the returned Outcome; only failures to fetch upstream data are errors.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobnotify/internal/domain"
	"jobnotify/internal/observability"
	"jobnotify/internal/ratelimit"
	"jobnotify/internal/render"
	"jobnotify/internal/util"
)

type Upstream interface {
	GetJob(ctx context.Context, jobID string) (domain.Job, error)
	ListJobContacts(ctx context.Context, jobID string) ([]domain.Contact, error)
	SendEmail(ctx context.Context, msg domain.EmailMessage) error
}

type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, identity string) (bool, error)
}

type QuietHours interface {
	IsQuietHours(now time.Time) bool
}

type Shortener interface {
	Shorten(ctx context.Context, longURL, slug string) string
}

type Enqueuer interface {
	Enqueue(ctx context.Context, to, message, jobID string) (domain.QueuedSMS, error)
}

type SMSDeliverer interface {
	Send(ctx context.Context, msg domain.SMSMessage) error
}

// SeenFilter reports whether a job completion is being notified for the first
// time.
type SeenFilter interface {
	FirstSeen(ctx context.Context, jobID string) (bool, error)
}

type Status string

const (
	StatusNotCompleted Status = "not_completed"
	StatusDuplicate    Status = "duplicate"
	StatusNoContact    Status = "no_contact"
	StatusProcessed    Status = "processed"
)

// Result is what a channel branch did for the selected contact.
type Result string

const (
	ResultNone        Result = ""
	ResultSent        Result = "sent"
	ResultFailed      Result = "failed"
	ResultNoAddress   Result = "no_address"
	ResultSuppressed  Result = "suppressed"
	ResultInvalid     Result = "invalid_number"
	ResultRateLimited Result = "rate_limited"
	ResultDeferred    Result = "deferred"
)

type Outcome struct {
	JobID  string `json:"jobId"`
	Status Status `json:"status"`
	Email  Result `json:"email,omitempty"`
	SMS    Result `json:"sms,omitempty"`
}

type Dispatcher struct {
	Upstream         Upstream
	EmailSuppression SuppressionChecker
	SMSSuppression   SuppressionChecker
	RateLimit        ratelimit.Limiter
	QuietHours       QuietHours
	Queue            Enqueuer
	SMS              SMSDeliverer
	Shortener        Shortener
	Seen             SeenFilter

	SMSTemplate   string
	TrackingURL   string
	PublicBaseURL string
	// Location is used for the completion date shown to customers.
	Location *time.Location
	Now      func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return util.NowUTC()
}

// Dispatch runs one completion event to the end. Recipient-level problems are
// absorbed into the Outcome; errors mean the job or contacts could not be read.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.CompletionEvent) (Outcome, error) {
	out := Outcome{JobID: ev.JobID}
	log := slog.With("job_id", ev.JobID)

	job, err := d.fetchJob(ctx, ev.JobID)
	if err != nil {
		observability.WebhookEvents.WithLabelValues("fetch_error").Inc()
		return out, err
	}
	if job.Status != domain.JobStatusCompleted {
		log.Info("job not completed, nothing to send", "status", job.Status)
		out.Status = StatusNotCompleted
		observability.WebhookEvents.WithLabelValues(string(out.Status)).Inc()
		return out, nil
	}

	contact, ok, err := d.selectContact(ctx, ev.JobID)
	if err != nil {
		observability.WebhookEvents.WithLabelValues("fetch_error").Inc()
		return out, err
	}
	if !ok {
		log.Info("no reachable contact on job")
		out.Status = StatusNoContact
		observability.WebhookEvents.WithLabelValues(string(out.Status)).Inc()
		return out, nil
	}

	// taken after every upstream read succeeded, so a failed run can be redelivered
	if d.Seen != nil {
		first, err := d.Seen.FirstSeen(ctx, ev.JobID)
		if err != nil {
			// fail open: a redis outage must not silence notifications
			log.Warn("dedup check failed, continuing", "err", err)
		} else if !first {
			log.Info("completion already notified", "reason", "duplicate")
			out.Status = StatusDuplicate
			observability.WebhookEvents.WithLabelValues(string(out.Status)).Inc()
			return out, nil
		}
	}

	out.Status = StatusProcessed
	out.Email = d.emailBranch(ctx, log, job, contact)
	out.SMS = d.smsBranch(ctx, log, job, contact)
	observability.WebhookEvents.WithLabelValues(string(out.Status)).Inc()
	log.Info("completion dispatched", "email", out.Email, "sms", out.SMS)
	return out, nil
}

func (d *Dispatcher) fetchJob(ctx context.Context, jobID string) (domain.Job, error) {
	job, err := d.Upstream.GetJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("fetch job %s: %w", jobID, err)
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return job, nil
}

func (d *Dispatcher) selectContact(ctx context.Context, jobID string) (domain.Contact, bool, error) {
	contacts, err := d.Upstream.ListJobContacts(ctx, jobID)
	if err != nil {
		return domain.Contact{}, false, fmt.Errorf("fetch contacts for job %s: %w", jobID, err)
	}
	c, ok := domain.PrimaryContact(contacts)
	return c, ok, nil
}

func (d *Dispatcher) emailBranch(ctx context.Context, log *slog.Logger, job domain.Job, c domain.Contact) Result {
	to := util.NormalizeEmail(c.Email)
	if to == "" {
		return ResultNoAddress
	}
	if d.EmailSuppression != nil {
		suppressed, err := d.EmailSuppression.IsSuppressed(ctx, to)
		if err != nil {
			log.Error("email suppression check failed", "err", err)
			observability.ChannelSend.WithLabelValues("email", "error").Inc()
			return ResultFailed
		}
		if suppressed {
			log.Info("email held", "reason", "suppressed")
			observability.PolicyHolds.WithLabelValues("email", "suppressed").Inc()
			return ResultSuppressed
		}
	}

	html, err := render.Confirmation(d.emailFields(job, c))
	if err != nil {
		log.Error("render email failed", "err", err)
		observability.ChannelSend.WithLabelValues("email", "error").Inc()
		return ResultFailed
	}

	start := time.Now()
	err = d.Upstream.SendEmail(ctx, domain.EmailMessage{
		To:             c.Email,
		Subject:        render.CompletionSubject(job.Address),
		HTMLBody:       html,
		RegardingJobID: job.ID,
	})
	observability.SendLatency.WithLabelValues("email").Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("email send failed", "err", err)
		observability.ChannelSend.WithLabelValues("email", "error").Inc()
		return ResultFailed
	}
	observability.ChannelSend.WithLabelValues("email", "ok").Inc()
	return ResultSent
}

func (d *Dispatcher) emailFields(job domain.Job, c domain.Contact) render.EmailFields {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	tech := job.LeadTechnician()
	return render.EmailFields{
		CustomerName:    c.FirstName,
		CustomerEmail:   c.Email,
		JobAddress:      job.Address,
		CompletedDate:   d.now().In(loc).Format("02/01/2006"),
		BookingID:       job.GeneratedJobID,
		BookingDate:     job.StartDate,
		BookingTime:     job.StartTime,
		TechnicianName:  tech.DisplayName,
		TechnicianPhone: tech.Phone,
		GoogleCalendarLink: render.GoogleCalendarLink(render.Booking{
			CustomerName: c.FirstName,
			Date:         job.StartDate,
			Time:         job.StartTime,
			Address:      job.Address,
		}),
		UnsubscribeLink: render.UnsubscribeLink(d.PublicBaseURL, util.NormalizeEmail(c.Email)),
	}
}

func (d *Dispatcher) smsBranch(ctx context.Context, log *slog.Logger, job domain.Job, c domain.Contact) Result {
	number := c.SMSNumber()
	if number == "" {
		return ResultNoAddress
	}
	if !util.ValidE164(number) {
		log.Info("sms held", "reason", "invalid_number")
		observability.PolicyHolds.WithLabelValues("sms", "invalid_number").Inc()
		return ResultInvalid
	}
	if d.SMSSuppression != nil {
		suppressed, err := d.SMSSuppression.IsSuppressed(ctx, number)
		if err != nil {
			log.Error("sms suppression check failed", "err", err)
			observability.ChannelSend.WithLabelValues("sms", "error").Inc()
			return ResultFailed
		}
		if suppressed {
			log.Info("sms held", "reason", "suppressed")
			observability.PolicyHolds.WithLabelValues("sms", "suppressed").Inc()
			return ResultSuppressed
		}
	}
	if d.RateLimit != nil {
		allowed, err := d.RateLimit.Allow(ctx, number, d.now())
		if err != nil {
			log.Error("rate limit check failed, holding sms", "err", err)
			observability.PolicyHolds.WithLabelValues("sms", "rate_limit_error").Inc()
			return ResultRateLimited
		}
		if !allowed {
			log.Info("sms held", "reason", "rate_limited")
			observability.PolicyHolds.WithLabelValues("sms", "rate_limited").Inc()
			return ResultRateLimited
		}
	}

	body := d.renderSMS(ctx, job, c)

	if d.QuietHours != nil && d.QuietHours.IsQuietHours(d.now()) {
		item, err := d.Queue.Enqueue(ctx, number, body, job.ID)
		if err != nil {
			log.Error("defer sms failed", "err", err)
			observability.ChannelSend.WithLabelValues("sms", "error").Inc()
			return ResultFailed
		}
		log.Info("sms held", "reason", "quiet_hours", "sms_id", item.ID)
		observability.PolicyHolds.WithLabelValues("sms", "quiet_hours").Inc()
		return ResultDeferred
	}

	if err := d.SMS.Send(ctx, domain.SMSMessage{To: number, Body: body, RegardingJobID: job.ID}); err != nil {
		log.Error("sms send failed", "err", err)
		return ResultFailed
	}
	if d.RateLimit != nil {
		if err := d.RateLimit.Consume(ctx, number, d.now()); err != nil {
			log.Warn("rate limit consume failed", "err", err)
		}
	}
	return ResultSent
}

// renderSMS resolves every merge field, shortening the tracking link first so
// a deferred message needs nothing more at replay time.
func (d *Dispatcher) renderSMS(ctx context.Context, job domain.Job, c domain.Contact) string {
	tmpl := d.SMSTemplate
	if tmpl == "" {
		tmpl = render.DefaultSMSTemplate()
	}
	var link string
	if render.UsesField(tmpl, render.TrackingLinkField) && d.TrackingURL != "" {
		link = d.TrackingURL
		if d.Shortener != nil {
			link = d.Shortener.Shorten(ctx, d.TrackingURL, render.TrackingSlug(c.FirstName, job.GeneratedJobID))
		}
	}
	return render.SMS(tmpl, render.SMSFields(job, c, link))
}
