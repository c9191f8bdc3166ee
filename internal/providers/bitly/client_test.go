package bitly

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestShortenSendsCustomBitlink(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/shorten" || r.Header.Get("Authorization") != "Bearer tk" {
			t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"link":"https://go.example.au/your-portal-ana-1042"}`))
	}))
	defer srv.Close()

	c := &Client{Token: "tk", Domain: "go.example.au", BaseURL: srv.URL}
	short := c.Shorten(context.Background(), "https://portal.example.au/track", "your-portal-ana-1042")
	if short != "https://go.example.au/your-portal-ana-1042" {
		t.Fatalf("unexpected short link %q", short)
	}
	if got["long_url"] != "https://portal.example.au/track" || got["domain"] != "go.example.au" ||
		got["custom_bitlink"] != "go.example.au/your-portal-ana-1042" {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestShortenFallsBackToOriginal(t *testing.T) {
	long := "https://portal.example.au/track?r=%2F&y=1"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"ALREADY_A_BITLY_LINK","description":"custom bitlink taken"}`))
	}))
	defer srv.Close()

	cases := map[string]*Client{
		"provider error": {Token: "tk", BaseURL: srv.URL},
		"no token":       {BaseURL: srv.URL},
		"unreachable":    {Token: "tk", BaseURL: "http://127.0.0.1:1"},
	}
	for name, c := range cases {
		if got := c.Shorten(context.Background(), long, "slug"); got != long {
			t.Fatalf("%s: expected original url back, got %q", name, got)
		}
	}
}

func TestShortenWithoutSlugUsesDefaultDomain(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"link":"https://bit.ly/abc"}`))
	}))
	defer srv.Close()

	c := &Client{Token: "tk", BaseURL: srv.URL}
	if short := c.Shorten(context.Background(), "https://example.com", ""); short != "https://bit.ly/abc" {
		t.Fatalf("unexpected short link %q", short)
	}
	if got["domain"] != DefaultDomain {
		t.Fatalf("expected default domain, got %v", got)
	}
	if _, ok := got["custom_bitlink"]; ok {
		t.Fatalf("custom_bitlink must be omitted without a slug: %v", got)
	}
}
