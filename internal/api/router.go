// Package api mounts the HTTP surface of the session server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// Routes lists what the router serves. Nil fields are not mounted.
type Routes struct {
	WebSocket http.Handler
	Health    http.Handler
	Stats     StatsReader
	Matches   MatchLister
	StaticDir string
	Logger    *slog.Logger
}

// NewRouter builds the gorilla/mux router for the session server.
func NewRouter(rt Routes) *mux.Router {
	if rt.Logger == nil {
		rt.Logger = slog.Default()
	}
	r := mux.NewRouter()

	if rt.WebSocket != nil {
		r.Handle("/ws", rt.WebSocket).Methods(http.MethodGet)
	}
	if rt.Health != nil {
		r.Handle("/health", rt.Health).Methods(http.MethodGet)
	}

	apiRouter := r.PathPrefix("/api").Subrouter()
	if rt.Stats != nil {
		apiRouter.HandleFunc("/stats/{username}", CreateStatsHandler(rt.Stats, rt.Logger)).Methods(http.MethodGet)
	}
	if rt.Matches != nil {
		apiRouter.HandleFunc("/matches", CreateMatchesHandler(rt.Matches)).Methods(http.MethodGet)
	}

	if rt.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(rt.StaticDir)))
	}
	return r
}
