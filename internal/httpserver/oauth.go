package httpserver

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type Authorizer interface {
	AuthCodeURL() string
	Exchange(ctx context.Context, code string) error
}

type CustomerLister interface {
	Customers(ctx context.Context) (json.RawMessage, error)
}

// OAuth serves the authorization-code flow and the customer list proxy.
type OAuth struct {
	Manager   Authorizer
	Customers CustomerLister
}

func (o *OAuth) Register(r *mux.Router) {
	r.HandleFunc("/auth", o.handleAuth).Methods(http.MethodGet)
	r.HandleFunc("/callback", o.handleCallback).Methods(http.MethodGet)
	r.HandleFunc("/customers", o.handleCustomers).Methods(http.MethodGet)
}

func (o *OAuth) handleAuth(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, o.Manager.AuthCodeURL(), http.StatusFound)
}

func (o *OAuth) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if err := o.Manager.Exchange(r.Context(), code); err != nil {
		slog.Error("oauth callback failed", "err", err)
		status := http.StatusInternalServerError
		if code == "" {
			status = http.StatusBadRequest
		}
		writePage(w, status, callbackFailed)
		return
	}
	writePage(w, http.StatusOK, callbackOK)
}

func (o *OAuth) handleCustomers(w http.ResponseWriter, r *http.Request) {
	data, err := o.Customers.Customers(r.Context())
	if err != nil {
		slog.Error("customer fetch failed", "err", err)
		http.Error(w, ErrCustomers, http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		data = json.RawMessage("[]")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type page struct {
	Title   string
	Heading string
	Body    string
	Color   template.CSS
}

var (
	callbackOK = page{
		Title:   "OAuth Successful",
		Heading: "Connected Successfully!",
		Body:    "Your ServiceM8 account is now linked.",
		Color:   "#16a34a",
	}
	callbackFailed = page{
		Title:   "OAuth Failed",
		Heading: "Connection Failed",
		Body:    "We couldn't complete the connection. Please try again.",
		Color:   "#dc2626",
	}
)

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0"/>
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; background: #f9fafb; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
    .card { background: white; padding: 2rem; border-radius: 12px; box-shadow: 0 4px 12px rgba(0,0,0,0.1); text-align: center; max-width: 400px; }
    h1 { color: {{.Color}}; }
    p { margin: 1rem 0; color: #374151; }
  </style>
</head>
<body>
  <div class="card">
    <h1>{{.Heading}}</h1>
    <p>{{.Body}}</p>
  </div>
</body>
</html>
`))

func writePage(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, p); err != nil {
		slog.Error("render page failed", "err", err)
	}
}
