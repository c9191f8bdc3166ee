// Package brevo sends transactional email through the Brevo SMTP API.
package brevo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"jobnotify/internal/domain"
	"jobnotify/internal/render"
	"jobnotify/internal/util"
)

const DefaultBaseURL = "https://api.brevo.com"

var ErrNotConfigured = errors.New("brevo: api key not set")

type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Attachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Email is the /v3/smtp/email request body.
type Email struct {
	Sender      Address           `json:"sender"`
	To          []Address         `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent,omitempty"`
	TemplateID  int64             `json:"templateId,omitempty"`
	Params      map[string]any    `json:"params,omitempty"`
	ReplyTo     *Address          `json:"replyTo,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Attachment  []Attachment      `json:"attachment,omitempty"`
}

// SendRequest is what callers ask for; Build turns it into an Email.
type SendRequest struct {
	To             string         `json:"to"`
	Subject        string         `json:"subject"`
	Name           string         `json:"name"`
	UseTemplate    bool           `json:"useBrevoTemplate"`
	TemplateID     int64          `json:"brevoTemplateId"`
	TemplateParams map[string]any `json:"templateParams"`
}

type SendResult struct {
	MessageID string `json:"messageId"`
}

type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brevo: status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

type Client struct {
	APIKey  string
	BaseURL string
	Sender  Address
	ReplyTo Address
	HTTP    *http.Client
}

func (c *Client) Configured() bool { return c.APIKey != "" }

// Build assembles the outbound email. Template sends pass params through;
// otherwise the built-in confirmation is rendered for the recipient name.
// Subjects mentioning a booking get an .ics attachment.
func (c *Client) Build(req SendRequest) (Email, error) {
	if req.To == "" || req.Subject == "" {
		return Email{}, domain.ErrMissingFields
	}
	e := Email{
		Sender:  c.Sender,
		To:      []Address{{Email: req.To, Name: req.Name}},
		Subject: req.Subject,
		Headers: map[string]string{"X-Client": "asap-app", "X-Ref": util.NewID("ref")},
		Tags:    []string{"asap-test"},
	}
	if c.ReplyTo.Email != "" {
		replyTo := c.ReplyTo
		e.ReplyTo = &replyTo
	}

	if req.UseTemplate && req.TemplateID != 0 {
		e.TemplateID = req.TemplateID
		e.Params = map[string]any{}
		for k, v := range req.TemplateParams {
			e.Params[k] = v
		}
	} else {
		html, err := render.Confirmation(render.EmailFields{CustomerName: req.Name})
		if err != nil {
			return Email{}, err
		}
		e.HTMLContent = html
	}

	if strings.Contains(strings.ToLower(req.Subject), "booking") {
		ics := render.ICS(render.Booking{
			CustomerName: req.Name,
			Date:         param(req.TemplateParams, "bookingDate"),
			Time:         param(req.TemplateParams, "bookingTime"),
			Address:      param(req.TemplateParams, "jobAddress"),
		})
		e.Attachment = []Attachment{{Name: "booking.ics", Content: base64.StdEncoding.EncodeToString([]byte(ics))}}
	}
	return e, nil
}

func (c *Client) Send(ctx context.Context, e Email) (SendResult, error) {
	if !c.Configured() {
		return SendResult{}, ErrNotConfigured
	}
	b, err := json.Marshal(e)
	if err != nil {
		return SendResult{}, fmt.Errorf("brevo: encode: %w", err)
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v3/smtp/email", bytes.NewReader(b))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("brevo: send: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{}, &APIError{StatusCode: resp.StatusCode, Body: raw}
	}
	var out SendResult
	_ = json.Unmarshal(raw, &out)
	return out, nil
}

func param(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
