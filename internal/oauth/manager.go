// Package oauth owns the upstream access/refresh token pair.
//
// State machine: NoToken -> Active -> (probe rejected) -> Refreshing -> Active.
// Refreshing without a refresh token ends in Unauthenticated, which only the
// authorization-code flow (/auth, /callback) can leave.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"jobnotify/internal/domain"
	"jobnotify/internal/observability"
	"jobnotify/internal/store"
)

var (
	// ErrUnauthenticated means no usable refresh token exists; run /auth again.
	ErrUnauthenticated = errors.New("oauth: no refresh token available, authorization required")
	// ErrTokenRejected is reported by a Prober when the upstream answers 401.
	ErrTokenRejected = errors.New("oauth: access token rejected")
)

type State string

const (
	StateNoToken         State = "no_token"
	StateActive          State = "active"
	StateRefreshing      State = "refreshing"
	StateUnauthenticated State = "unauthenticated"
)

// Prober makes a cheap authorized call with the given access token. It must
// return an error matching ErrTokenRejected when the token is refused.
type Prober interface {
	Probe(ctx context.Context, accessToken string) error
}

type Manager struct {
	config *oauth2.Config
	store  store.TokenStore
	prober Prober

	// HTTPClient is used for token endpoint calls when set.
	HTTPClient *http.Client

	mu    sync.Mutex
	state State
}

func NewManager(cfg *oauth2.Config, st store.TokenStore, p Prober) *Manager {
	return &Manager{config: cfg, store: st, prober: p, state: StateNoToken}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AuthCodeURL is where /auth redirects the operator.
func (m *Manager) AuthCodeURL() string {
	return m.config.AuthCodeURL("")
}

// Exchange completes the authorization-code flow and persists the new pair.
func (m *Manager) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return domain.ErrMissingFields
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.config.Exchange(m.clientContext(ctx), code)
	if err != nil {
		return fmt.Errorf("oauth: exchange code: %w", err)
	}
	pair := domain.TokenPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if err := m.store.SaveToken(ctx, pair); err != nil {
		return fmt.Errorf("oauth: persist token: %w", err)
	}
	m.state = StateActive
	slog.Info("oauth authorization completed", "has_refresh_token", pair.RefreshToken != "")
	return nil
}

// AccessToken returns a token the upstream currently accepts, refreshing it
// when the probe is rejected. Probe errors other than a rejection are
// returned unchanged.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair, err := m.store.LoadToken(ctx)
	if err != nil {
		return "", fmt.Errorf("oauth: load token: %w", err)
	}

	if pair.AccessToken != "" {
		err := m.prober.Probe(ctx, pair.AccessToken)
		if err == nil {
			m.state = StateActive
			return pair.AccessToken, nil
		}
		if !errors.Is(err, ErrTokenRejected) {
			return "", err
		}
		slog.Info("oauth access token rejected, refreshing")
	}
	return m.refresh(ctx, pair)
}

// Authorize sets a bearer token on an outbound upstream request.
func (m *Manager) Authorize(ctx context.Context, req *http.Request) error {
	tok, err := m.AccessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

// refresh must be called with m.mu held.
func (m *Manager) refresh(ctx context.Context, pair domain.TokenPair) (string, error) {
	if pair.RefreshToken == "" {
		m.state = StateUnauthenticated
		observability.TokenRefresh.WithLabelValues("no_refresh_token").Inc()
		return "", ErrUnauthenticated
	}
	m.state = StateRefreshing

	// an empty access token forces the source to hit the token endpoint
	src := m.config.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: pair.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		observability.TokenRefresh.WithLabelValues("error").Inc()
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			m.state = StateUnauthenticated
			return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return "", fmt.Errorf("oauth: refresh: %w", err)
	}

	next := domain.TokenPair{AccessToken: tok.AccessToken, RefreshToken: pair.RefreshToken}
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	// persisted before returning so a crash right after refresh keeps the new pair
	if err := m.store.SaveToken(ctx, next); err != nil {
		observability.TokenRefresh.WithLabelValues("persist_error").Inc()
		return "", fmt.Errorf("oauth: persist refreshed token: %w", err)
	}

	m.state = StateActive
	observability.TokenRefresh.WithLabelValues("ok").Inc()
	slog.Info("oauth token refreshed", "refresh_token_rotated", next.RefreshToken != pair.RefreshToken)
	return next.AccessToken, nil
}

func (m *Manager) clientContext(ctx context.Context) context.Context {
	if m.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.HTTPClient)
}

// Config builds the oauth2 configuration for the upstream provider.
func Config(clientID, clientSecret, redirectURI, authURL, tokenURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
