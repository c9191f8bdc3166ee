package servicem8

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"jobnotify/internal/domain"
	"jobnotify/internal/oauth"
)

const DefaultBaseURL = "https://api.servicem8.com"

// Authorizer decorates an outbound request with credentials.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// APIKey authenticates with a static account key.
type APIKey string

func (k APIKey) Authorize(ctx context.Context, req *http.Request) error {
	req.Header.Set("X-API-KEY", string(k))
	return nil
}

// Bearer authenticates with a fixed OAuth access token.
type Bearer string

func (b Bearer) Authorize(ctx context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+string(b))
	return nil
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Auth    Authorizer
}

// APIError is a non-2xx upstream response.
type APIError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("servicem8 %s: status %d: %s", e.Op, e.StatusCode, body)
}

// Is reports a 401 as a rejected access token.
func (e *APIError) Is(target error) bool {
	return target == oauth.ErrTokenRejected && e.StatusCode == http.StatusUnauthorized
}

func (c *Client) GetJob(ctx context.Context, jobID string) (domain.Job, error) {
	var job domain.Job
	err := c.do(ctx, "get job", c.Auth, http.MethodGet, "/api_1.0/job/"+url.PathEscape(jobID)+".json", nil, &job)
	return job, err
}

func (c *Client) ListJobContacts(ctx context.Context, jobID string) ([]domain.Contact, error) {
	q := url.Values{}
	q.Set("$filter", "job_uuid eq "+jobID)
	var contacts []domain.Contact
	err := c.do(ctx, "list job contacts", c.Auth, http.MethodGet, "/api_1.0/jobcontact.json?"+q.Encode(), nil, &contacts)
	return contacts, err
}

func (c *Client) SendEmail(ctx context.Context, msg domain.EmailMessage) error {
	body := map[string]string{
		"to":               msg.To,
		"subject":          msg.Subject,
		"htmlBody":         msg.HTMLBody,
		"regardingJobUUID": msg.RegardingJobID,
	}
	return c.do(ctx, "send email", c.Auth, http.MethodPost, "/platform_service_email", body, nil)
}

func (c *Client) SendSMS(ctx context.Context, msg domain.SMSMessage) error {
	body := map[string]string{
		"to":               msg.To,
		"message":          msg.Body,
		"regardingJobUUID": msg.RegardingJobID,
	}
	return c.do(ctx, "send sms", c.Auth, http.MethodPost, "/platform_service_sms", body, nil)
}

// Probe makes a cheap authorized read with the given access token.
func (c *Client) Probe(ctx context.Context, accessToken string) error {
	return c.do(ctx, "probe", Bearer(accessToken), http.MethodGet, "/api_1.0/company.json", nil, nil)
}

// Customers returns the raw company list.
func (c *Client) Customers(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, "list customers", c.Auth, http.MethodGet, "/api_1.0/company.json", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op string, auth Authorizer, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("servicem8 %s: encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, body)
	if err != nil {
		return fmt.Errorf("servicem8 %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != nil {
		if err := auth.Authorize(ctx, req); err != nil {
			return err
		}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("servicem8 %s: %w", op, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: raw}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("servicem8 %s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
