package session

import (
	"sync"
	"time"

	"pong/internal/game"
	"pong/internal/network"
	"pong/internal/session/message"
	"pong/internal/simulation"
	"pong/internal/stats"
)

// Room is a live match plus the two sessions bound to it. mu serializes every
// event for the match; rooms never share a lock.
type Room struct {
	ID string

	mu      sync.Mutex
	match   *game.Match
	players [2]*PlayerSession
	loop    *simulation.Loop
}

// RoomInfo is a read-only view of a room.
type RoomInfo struct {
	ID      string     `json:"id"`
	Players [2]string  `json:"players"`
	Phase   game.Phase `json:"phase"`
	State   game.State `json:"state"`
}

func newRoom(m *game.Match, p1, p2 *PlayerSession) *Room {
	return &Room{ID: m.ID, match: m, players: [2]*PlayerSession{p1, p2}}
}

// Info takes the room lock.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := RoomInfo{ID: r.ID, Phase: r.match.Phase(), State: r.match.State()}
	for i := range r.players {
		if s, ok := r.match.Slot(i + 1); ok {
			info.Players[i] = s.Name
		}
	}
	return info
}

// The methods below expect r.mu to be held.

func (r *Room) broadcast(out *outbox, msg network.Message) {
	for _, p := range r.players {
		out.add(p, msg)
	}
}

func (r *Room) participant(connID string) bool {
	return r.match.SlotOf(connID) != 0
}

func (r *Room) start(out *outbox) {
	p1, p2 := r.players[0], r.players[1]
	out.add(p1, message.GameStart(r.ID, p2.Name(), 1))
	out.add(p2, message.GameStart(r.ID, p1.Name(), 2))
	r.broadcast(out, message.GameState(r.match.State()))
}

func (r *Room) movePaddle(connID string, y float64, out *outbox) bool {
	if !r.match.SetPaddle(connID, y) {
		return false
	}
	r.broadcast(out, message.GameState(r.match.State()))
	return true
}

// step advances the match. When it returns ended, the match is Finished and
// out already holds the game over signal; no state follows it.
func (r *Room) step(now time.Time, out *outbox) (winner int, ended bool) {
	if !r.match.Active() {
		return 0, false
	}
	res := r.match.Step(now)
	if res != game.ScoreNone {
		r.broadcast(out, message.PointScored(res.Slot()))
		if w, over := r.match.Over(); over {
			r.match.Finish()
			r.broadcast(out, message.GameOver(w))
			return w, true
		}
	}
	r.broadcast(out, message.GameState(r.match.State()))
	return 0, false
}

// abort ends the match because leaverID disconnected and tells the other side.
func (r *Room) abort(leaverID string, out *outbox) bool {
	if !r.participant(leaverID) || !r.match.Abort() {
		return false
	}
	for _, p := range r.players {
		if p.ID != leaverID {
			out.add(p, message.OpponentDisconnected())
		}
	}
	return true
}

// release clears both bindings and stops the server loop.
func (r *Room) release() {
	for _, p := range r.players {
		p.unbind(r.ID)
	}
	if r.loop != nil {
		r.loop.Stop()
	}
}

func (r *Room) outcome(winner int, now time.Time) stats.Outcome {
	st := r.match.State()
	o := stats.Outcome{
		MatchID: r.ID,
		Winner:  winner,
		Score1:  st.Score1,
		Score2:  st.Score2,
		EndedAt: now,
	}
	for i, p := range r.players {
		slot, _ := r.match.Slot(i + 1)
		o.Players[i] = stats.Participant{Name: slot.Name, Username: p.Username}
	}
	return o
}
