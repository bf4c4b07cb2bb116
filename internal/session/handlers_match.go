package session

import (
	"encoding/json"

	"pong/internal/session/message"
	"pong/internal/stats"
)

func handlePaddleMove(h *GameHandler, s *PlayerSession, payload json.RawMessage) {
	var req message.PaddleMovePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Y == nil {
		message.SendError(s, "invalid paddle_move payload: 'y' is required and must be a number")
		return
	}

	room, ok := h.roomOf(s)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	var out outbox
	room.movePaddle(s.ID, *req.Y, &out)
	out.send()
}

func handleGameTick(h *GameHandler, s *PlayerSession, _ json.RawMessage) {
	if h.tickRate > 0 {
		return
	}
	if room, ok := h.roomOf(s); ok {
		h.advance(room, s.ID)
	}
}

// advance steps the room once. connID is the sender of a client tick, or ""
// for the server loop. It reports whether the match is still active.
func (h *GameHandler) advance(room *Room, connID string) bool {
	room.mu.Lock()
	if connID != "" && !room.participant(connID) {
		room.mu.Unlock()
		return false
	}

	var out outbox
	winner, ended := room.step(h.now(), &out)
	active := room.match.Active()

	var result stats.Outcome
	if ended {
		result = room.outcome(winner, h.now())
		room.release()
		h.matches.Remove(room.ID)
	}
	out.send()
	room.mu.Unlock()

	if ended {
		h.logger.Info("match finished", "match", room.ID, "winner", winner,
			"score1", result.Score1, "score2", result.Score2)
		h.reporter.Report(result)
	}
	return active
}

// abortRoom tears the room down after leaverID disconnected.
func (h *GameHandler) abortRoom(room *Room, leaverID string) {
	room.mu.Lock()
	defer room.mu.Unlock()

	var out outbox
	if !room.abort(leaverID, &out) {
		return
	}
	room.release()
	h.matches.Remove(room.ID)
	out.send()
	h.logger.Info("match aborted", "match", room.ID, "leaver", leaverID)
}

func (h *GameHandler) registerMatchHandlers() {
	h.router[message.TypePaddleMove] = handlePaddleMove
	h.router[message.TypeGameTick] = handleGameTick
}
