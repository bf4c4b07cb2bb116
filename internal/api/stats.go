package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"pong/internal/stats"
)

// StatsReader is the read side of a stats store.
type StatsReader interface {
	Get(ctx context.Context, username string) (stats.Stats, error)
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateStatsHandler serves GET /api/stats/{username}.
func CreateStatsHandler(store StatsReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := mux.Vars(r)["username"]
		if username == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "username required"})
			return
		}

		st, err := store.Get(r.Context(), username)
		switch {
		case errors.Is(err, stats.ErrNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no stats for " + username})
		case err != nil:
			logger.Error("stats lookup failed", "username", username, "error", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "stats unavailable"})
		default:
			writeJSON(w, http.StatusOK, st)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
