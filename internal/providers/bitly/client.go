// Package bitly rewrites long links into branded short links.
package bitly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"jobnotify/internal/observability"
)

const (
	DefaultBaseURL = "https://api-ssl.bitly.com"
	DefaultDomain  = "bit.ly"
)

type Client struct {
	Token   string
	Domain  string
	BaseURL string
	HTTP    *http.Client
}

type APIError struct {
	StatusCode  int
	Description string
	Body        []byte
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("bitly: status %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("bitly: status %d", e.StatusCode)
}

type shortenRequest struct {
	LongURL       string `json:"long_url"`
	Domain        string `json:"domain"`
	CustomBitlink string `json:"custom_bitlink,omitempty"`
}

type shortenResponse struct {
	Link        string `json:"link"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

// Shorten returns a short link for longURL, requesting slug as the back-half
// when given. It never fails: without a token, or on any provider error, the
// original URL comes back unchanged.
func (c *Client) Shorten(ctx context.Context, longURL, slug string) string {
	if c.Token == "" {
		observability.Shorten.WithLabelValues("disabled").Inc()
		slog.Warn("bitly token not set, using original url")
		return longURL
	}
	short, err := c.shorten(ctx, longURL, slug)
	if err != nil {
		observability.Shorten.WithLabelValues("fallback").Inc()
		slog.Error("bitly shortening failed", "slug", slug, "err", err)
		return longURL
	}
	observability.Shorten.WithLabelValues("ok").Inc()
	return short
}

func (c *Client) shorten(ctx context.Context, longURL, slug string) (string, error) {
	domain := c.Domain
	if domain == "" {
		domain = DefaultDomain
	}
	in := shortenRequest{LongURL: longURL, Domain: domain}
	if slug != "" {
		in.CustomBitlink = domain + "/" + slug
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", err
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, baseURL+"/v4/shorten", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var out shortenResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		desc := out.Description
		if desc == "" {
			desc = out.Message
		}
		return "", &APIError{StatusCode: resp.StatusCode, Description: desc, Body: raw}
	}
	if out.Link == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Description: "empty link in response", Body: raw}
	}
	return out.Link, nil
}
