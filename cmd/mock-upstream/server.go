package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

type sentMessage struct {
	Channel string            `json:"channel"`
	Body    map[string]string `json:"body"`
	At      time.Time         `json:"at"`
}

type server struct {
	cfg    config
	idx    uint64
	client *http.Client

	rngMu sync.Mutex
	rng   *rand.Rand

	mu   sync.Mutex
	sent []sentMessage
}

func newServer(cfg config, rng *rand.Rand) *server {
	return &server{cfg: cfg, rng: rng, client: &http.Client{Timeout: 5 * time.Second}}
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api_1.0").Subrouter()
	api.Use(s.requireAuth)
	api.HandleFunc("/job/{uuid}.json", s.handleJob).Methods(http.MethodGet)
	api.HandleFunc("/jobcontact.json", s.handleContacts).Methods(http.MethodGet)
	api.HandleFunc("/company.json", s.handleCompanies).Methods(http.MethodGet)

	r.Handle("/platform_service_email", s.requireAuth(http.HandlerFunc(s.handleEmail))).Methods(http.MethodPost)
	r.Handle("/platform_service_sms", s.requireAuth(http.HandlerFunc(s.handleSMS))).Methods(http.MethodPost)
	r.HandleFunc("/oauth/token", s.handleToken).Methods(http.MethodPost)

	r.HandleFunc("/mock/complete/{uuid}", s.handleFireCompletion).Methods(http.MethodPost)
	r.HandleFunc("/mock/sent", s.handleSent).Methods(http.MethodGet)
	return loggingMiddleware(r)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("mock upstream request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// requireAuth accepts the static key or any bearer token handed out by /oauth/token.
func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") == s.cfg.APIKey || strings.HasPrefix(r.Header.Get("Authorization"), "Bearer mock_access_") {
			next.ServeHTTP(w, r)
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Authentication Error"})
	})
}

func (s *server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]
	writeJSON(w, http.StatusOK, map[string]any{
		"uuid":             id,
		"generated_job_id": fmt.Sprintf("%d", 1000+atomic.LoadUint64(&s.idx)),
		"status":           s.cfg.JobStatus,
		"job_address":      "1 Test St, Brisbane QLD",
		"start_date":       time.Now().Format("2006-01-02"),
		"start_time":       "09:00",
		"allocated_staff":  []map[string]string{{"display_name": s.cfg.TechnicianName}},
	})
}

func (s *server) handleContacts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]string{{
		"first":  s.cfg.ContactFirst,
		"email":  s.cfg.ContactEmail,
		"mobile": s.cfg.ContactMobile,
	}})
}

func (s *server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]string{{"uuid": "company_1", "name": "Mock Customer Pty Ltd"}})
}

func (s *server) handleToken(w http.ResponseWriter, r *http.Request) {
	n := atomic.AddUint64(&s.idx, 1)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  fmt.Sprintf("mock_access_%d", n),
		"refresh_token": fmt.Sprintf("mock_refresh_%d", n),
		"token_type":    "bearer",
		"expires_in":    3600,
	})
}

func (s *server) handleEmail(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r, "to", "subject")
	if !ok {
		return
	}
	s.record("email", body)
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func (s *server) handleSMS(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r, "to", "message")
	if !ok {
		return
	}
	if s.cfg.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.cfg.Delay):
		}
	}

	status := outcomeStatus(s.nextOutcome())
	if status == http.StatusGatewayTimeout {
		time.Sleep(s.cfg.TimeoutDelay)
	}
	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}
	s.record("sms", body)
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func (s *server) handleSent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]sentMessage(nil), s.sent...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// handleFireCompletion posts a signed completion event for the job to the
// configured webhook URL, retrying on 429 and 5xx.
func (s *server) handleFireCompletion(w http.ResponseWriter, r *http.Request) {
	token, err := completionToken(s.cfg.WebhookSecret, mux.Vars(r)["uuid"])
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	status, err := s.postWithRetry(r.Context(), s.cfg.WebhookURL, token)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"message": err.Error(), "status": status})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func completionToken(secret, jobID string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"eventName": "job.updated",
		"eventArgs": map[string]any{"entry": []any{map[string]any{"uuid": jobID}}},
		"iat":       time.Now().Unix(),
	}).SignedString([]byte(secret))
}

func (s *server) postWithRetry(ctx context.Context, target, token string) (int, error) {
	body, _ := json.Marshal(map[string]string{token: ""})
	attempts := s.cfg.WebhookRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	status := 0
	for attempt := 0; attempt < attempts; attempt++ {
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err == nil {
			status = resp.StatusCode
			_ = resp.Body.Close()
			if status >= 200 && status < 300 {
				return status, nil
			}
			if !isRetryableStatus(status) {
				return status, fmt.Errorf("webhook post non-retryable: status=%d", status)
			}
		}
		if attempt == attempts-1 {
			if err != nil {
				return status, err
			}
			break
		}

		wait := s.cfg.WebhookBackoff * time.Duration(1<<attempt)
		slog.Warn("mock webhook post retrying", "url", target, "attempt", attempt+1, "status", status, "wait_ms", wait.Milliseconds())
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(wait):
		}
	}
	return status, fmt.Errorf("webhook post failed: status=%d", status)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func (s *server) nextOutcome() string {
	switch s.cfg.OutcomeMode {
	case "round_robin":
		idx := atomic.AddUint64(&s.idx, 1) - 1
		return s.cfg.Outcomes[int(idx)%len(s.cfg.Outcomes)]
	case "random":
		s.rngMu.Lock()
		i := s.rng.Intn(len(s.cfg.Outcomes))
		s.rngMu.Unlock()
		return s.cfg.Outcomes[i]
	default:
		return s.cfg.Outcomes[0]
	}
}

func outcomeStatus(outcome string) int {
	switch strings.TrimSpace(outcome) {
	case "", "ok", "success":
		return http.StatusOK
	case "400", "bad_request":
		return http.StatusBadRequest
	case "401", "unauthorized":
		return http.StatusUnauthorized
	case "429", "rate_limit":
		return http.StatusTooManyRequests
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) record(channel string, body map[string]string) {
	s.mu.Lock()
	s.sent = append(s.sent, sentMessage{Channel: channel, Body: body, At: time.Now().UTC()})
	s.mu.Unlock()
}

func decodeBody(w http.ResponseWriter, r *http.Request, required ...string) (map[string]string, bool) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON"})
		return nil, false
	}
	for _, k := range required {
		if body[k] == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing " + k})
			return nil, false
		}
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
