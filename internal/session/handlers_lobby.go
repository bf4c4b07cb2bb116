package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"pong/internal/game"
	"pong/internal/session/message"
	"pong/internal/simulation"
)

func handleJoinGame(h *GameHandler, s *PlayerSession, payload json.RawMessage) {
	var req message.JoinGamePayload
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &req); err != nil {
			message.SendError(s, "invalid join_game payload: %v", err)
			return
		}
	}

	h.closeMu.RLock()
	defer h.closeMu.RUnlock()
	if h.closed {
		message.SendError(s, "server is shutting down")
		return
	}

	j := joinRequest{h: h, s: s, name: strings.TrimSpace(req.PlayerName)}
	opponent, status := h.matchmaker.Pair(s.ID, j)
	switch status {
	case Queued:
		h.logger.Info("waiting for opponent", "conn", s.ID, "position", h.matchmaker.Position(s.ID))
	case Paired:
		h.logger.Debug("paired", "conn", s.ID, "opponent", opponent)
	case Rejected:
		h.logger.Debug("join ignored, already in a match", "conn", s.ID, "match", s.MatchID())
	}
}

// joinRequest is the coordinator side of Matchmaker.Pair for one join_game.
type joinRequest struct {
	h    *GameHandler
	s    *PlayerSession
	name string
}

func (j joinRequest) Eligible(string) bool {
	if j.s.MatchID() != "" {
		return false
	}
	if j.name != "" {
		j.s.SetName(j.name)
	}
	return true
}

func (j joinRequest) Bind(_, opponentID string) bool {
	opponent, ok := j.h.sessions.Get(opponentID)
	if !ok || opponent.MatchID() != "" {
		return false
	}
	j.h.startMatch(opponent, j.s)
	return true
}

func (j joinRequest) Waiting(string) {
	j.s.Send(message.Waiting())
}

// startMatch runs under the queue lock and a read hold of closeMu. The waiting
// opponent takes slot 1.
func (h *GameHandler) startMatch(opponent, joiner *PlayerSession) *Room {
	id := uuid.NewString()
	m := game.NewMatch(id, opponent.ID, opponent.Name(), h.now(), h.newRand())
	if err := m.AddPlayer(joiner.ID, joiner.Name()); err != nil {
		// A fresh match always has slot 2 free.
		panic(err)
	}
	room := newRoom(m, opponent, joiner)

	room.mu.Lock()
	defer room.mu.Unlock()

	opponent.bind(id)
	joiner.bind(id)
	h.matches.Add(room)

	var out outbox
	room.start(&out)
	out.send()

	if h.tickRate > 0 {
		room.loop = simulation.NewLoop(h.tickRate, func(time.Time) bool {
			return h.advance(room, "")
		})
		room.loop.Start(h.ctx)
		h.loops.Go(room.loop.Wait)
	}

	h.logger.Info("match started", "match", id,
		"player1", opponent.Name(), "player2", joiner.Name(), "matches", h.matches.Len())
	return room
}

func (h *GameHandler) registerLobbyHandlers() {
	h.router[message.TypeJoinGame] = handleJoinGame
}
