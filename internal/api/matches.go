package api

import (
	"net/http"

	"pong/internal/session"
)

// MatchLister exposes the coordinator's live state.
type MatchLister interface {
	Counters() session.Counters
	Rooms() []session.RoomInfo
}

// MatchesResponse is the body of GET /api/matches.
type MatchesResponse struct {
	session.Counters
	Rooms []session.RoomInfo `json:"rooms"`
}

// CreateMatchesHandler serves GET /api/matches.
func CreateMatchesHandler(lister MatchLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, MatchesResponse{
			Counters: lister.Counters(),
			Rooms:    lister.Rooms(),
		})
	}
}
