package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobnotify/internal/domain"
)

type fakeAuthorizer struct {
	codes []string
	err   error
}

func (f *fakeAuthorizer) AuthCodeURL() string {
	return "https://go.servicem8.com/oauth/authorize?response_type=code&client_id=cid"
}

func (f *fakeAuthorizer) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return domain.ErrMissingFields
	}
	f.codes = append(f.codes, code)
	return f.err
}

type fakeCustomers struct {
	data json.RawMessage
	err  error
}

func (f *fakeCustomers) Customers(ctx context.Context) (json.RawMessage, error) {
	return f.data, f.err
}

func oauthHandler(a *fakeAuthorizer, c *fakeCustomers) http.Handler {
	s := New()
	(&OAuth{Manager: a, Customers: c}).Register(s.Mux)
	return s.Handler()
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestAuthRedirects(t *testing.T) {
	h := oauthHandler(&fakeAuthorizer{}, &fakeCustomers{})
	rec := get(h, "/auth")
	if rec.Code != http.StatusFound || !strings.HasPrefix(rec.Header().Get("Location"), "https://go.servicem8.com/oauth/authorize") {
		t.Fatalf("unexpected redirect %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestCallback(t *testing.T) {
	a := &fakeAuthorizer{}
	h := oauthHandler(a, &fakeCustomers{})

	rec := get(h, "/callback?code=c1")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Connected Successfully!") {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}
	if len(a.codes) != 1 || a.codes[0] != "c1" {
		t.Fatalf("code not exchanged: %v", a.codes)
	}

	if rec := get(h, "/callback"); rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Connection Failed") {
		t.Fatalf("missing code: unexpected %d", rec.Code)
	}

	a.err = errors.New("invalid_grant")
	if rec := get(h, "/callback?code=c2"); rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "Connection Failed") {
		t.Fatalf("failed exchange: unexpected %d", rec.Code)
	}
}

func TestCustomers(t *testing.T) {
	c := &fakeCustomers{data: json.RawMessage(`[{"uuid":"c1","name":"Acme"}]`)}
	h := oauthHandler(&fakeAuthorizer{}, c)

	rec := get(h, "/customers")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Acme"`) {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}

	c.err = errors.New("oauth: no refresh token available, authorization required")
	rec = get(h, "/customers")
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), ErrCustomers) {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}
}
