package httpserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobnotify/internal/observability"
)

type Server struct {
	Mux *mux.Router
}

func New() *Server {
	return &Server{Mux: mux.NewRouter()}
}

// Handler wraps the router with the standard middleware chain.
func (s *Server) Handler() http.Handler {
	s.Mux.Use(Metrics(observability.APIRequests))
	return Recover(Logging(s.Mux))
}

// MetricsHandler serves Prometheus metrics on the separate metrics listener.
func MetricsHandler() http.Handler {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	return m
}
