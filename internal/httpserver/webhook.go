package httpserver

import (
	"io"
	"log/slog"
	"net/http"

	"jobnotify/internal/dispatch"
)

// handleJobCompleted always acknowledges with 200 once the job was read;
// per-recipient send problems are logged, not returned.
func (a *API) handleJobCompleted(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ErrBadForm})
		return
	}
	ev, err := dispatch.DecodeEvent(r.Header.Get("Content-Type"), body)
	if err != nil {
		slog.Warn("invalid completion event", "err", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	if _, err := a.Dispatcher.Dispatch(r.Context(), ev); err != nil {
		slog.Error("completion dispatch failed", "job_id", ev.JobID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeText(w, http.StatusOK, "OK")
}
