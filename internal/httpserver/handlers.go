package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"jobnotify/internal/deferred"
	"jobnotify/internal/dispatch"
	"jobnotify/internal/domain"
	"jobnotify/internal/providers/brevo"
)

const maxBodyBytes = 1 << 20

type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.CompletionEvent) (dispatch.Outcome, error)
}

type EmailSender interface {
	Configured() bool
	Build(req brevo.SendRequest) (brevo.Email, error)
	Send(ctx context.Context, e brevo.Email) (brevo.SendResult, error)
}

type EmailSuppression interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
	Suppress(ctx context.Context, email string) error
}

type InboundSMS interface {
	HandleInbound(ctx context.Context, from, body string) (string, error)
}

type Shortener interface {
	Shorten(ctx context.Context, longURL, slug string) string
}

type Replayer interface {
	ReplayAll(ctx context.Context) (deferred.ReplayResult, error)
}

// API serves the webhook surface under /webhook plus /shorten-url.
type API struct {
	Dispatcher       Dispatcher
	Email            EmailSender
	EmailSuppression EmailSuppression
	InboundSMS       InboundSMS
	Shortener        Shortener
	Queue            Replayer
}

func (a *API) Register(r *mux.Router) {
	wh := r.PathPrefix("/webhook").Subrouter()
	wh.HandleFunc("/handleSendEmailIfCompleted", a.handleJobCompleted).Methods(http.MethodPost)
	wh.HandleFunc("/handleBrevoEmail", a.handleBrevoEmail).Methods(http.MethodPost)
	wh.HandleFunc("/sms-inbound", a.handleInboundSMS).Methods(http.MethodPost)
	wh.HandleFunc("/unsubscribe", a.handleUnsubscribe).Methods(http.MethodGet)
	wh.HandleFunc("/shorten-url", a.handleShorten).Methods(http.MethodPost)
	wh.HandleFunc("/process-sms-queue", a.handleProcessQueue).Methods(http.MethodPost)

	r.HandleFunc("/shorten-url", a.handleShorten).Methods(http.MethodPost)
}

type errorBody struct {
	Error string `json:"error"`
}

type brevoResponse struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message,omitempty"`
	Response *brevo.SendResult `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func (a *API) handleBrevoEmail(w http.ResponseWriter, r *http.Request) {
	var req brevo.SendRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, brevoResponse{Error: ErrInvalidJSON})
		return
	}
	if a.Email == nil || !a.Email.Configured() {
		writeJSON(w, http.StatusInternalServerError, brevoResponse{Error: ErrEmailNotEnabled})
		return
	}
	if req.To == "" || req.Subject == "" {
		writeJSON(w, http.StatusBadRequest, brevoResponse{Error: ErrMissingEmailField})
		return
	}

	suppressed, err := a.EmailSuppression.IsSuppressed(r.Context(), req.To)
	if err != nil {
		slog.Error("email suppression check failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, brevoResponse{Error: ErrDependency})
		return
	}
	if suppressed {
		writeJSON(w, http.StatusOK, brevoResponse{Error: ErrRecipientOptedOut})
		return
	}

	email, err := a.Email.Build(req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, brevoResponse{Error: err.Error()})
		return
	}
	res, err := a.Email.Send(r.Context(), email)
	if err != nil {
		slog.Error("brevo send failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, brevoResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, brevoResponse{Success: true, Message: "Email sent successfully", Response: &res})
}

func (a *API) handleInboundSMS(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		http.Error(w, ErrBadForm, http.StatusBadRequest)
		return
	}
	reply, err := a.InboundSMS.HandleInbound(r.Context(), fields["from"], fields["message"])
	if errors.Is(err, domain.ErrMissingFields) {
		http.Error(w, ErrMissingSMSFields, http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("inbound sms failed", "err", err)
		http.Error(w, ErrDependency, http.StatusInternalServerError)
		return
	}
	writeText(w, http.StatusOK, reply)
}

func (a *API) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		http.Error(w, ErrMissingEmail, http.StatusBadRequest)
		return
	}
	if err := a.EmailSuppression.Suppress(r.Context(), email); err != nil {
		slog.Error("unsubscribe failed", "err", err)
		http.Error(w, ErrDependency, http.StatusInternalServerError)
		return
	}
	writeText(w, http.StatusOK, "You have been unsubscribed.")
}

func (a *API) handleShorten(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ErrInvalidJSON})
		return
	}
	longURL := strings.TrimSpace(fields["longUrl"])
	if longURL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ErrMissingLongURL})
		return
	}
	short := a.Shortener.Shorten(r.Context(), longURL, strings.TrimSpace(fields["name"]))
	writeJSON(w, http.StatusOK, map[string]string{"shortUrl": short})
}

func (a *API) handleProcessQueue(w http.ResponseWriter, r *http.Request) {
	res, err := a.Queue.ReplayAll(r.Context())
	if err != nil {
		slog.Error("manual sms replay failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// readFields accepts a flat JSON object or a url-encoded form.
func readFields(r *http.Request) (map[string]string, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		out := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			out[k] = r.PostForm.Get(k)
		}
		return out, nil
	}

	var raw map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, s)
}
