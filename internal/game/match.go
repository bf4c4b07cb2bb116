package game

import (
	"errors"
	"math/rand/v2"
	"time"
)

var (
	// ErrSlotTaken is returned when a second opponent tries to join a match.
	ErrSlotTaken = errors.New("match already has two players")
	// ErrNotForming is returned when a player joins a match that is past the Forming phase.
	ErrNotForming = errors.New("match is not accepting players")
)

// Phase is the lifecycle position of a match. Transitions only move forward.
type Phase string

const (
	PhaseForming  Phase = "forming"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
	PhaseAborted  Phase = "aborted"
)

// ScoreResult reports whether a Step produced a point.
type ScoreResult int

const (
	ScoreNone ScoreResult = iota
	ScoreSlot1
	ScoreSlot2
)

// Slot returns the slot number (1 or 2) that scored, or 0.
func (r ScoreResult) Slot() int {
	switch r {
	case ScoreSlot1:
		return 1
	case ScoreSlot2:
		return 2
	default:
		return 0
	}
}

// Slot is one side of the court.
type Slot struct {
	ConnID string
	Name   string
	Score  int
	Paddle float64
}

// State is the outward-facing snapshot broadcast to both players.
type State struct {
	Paddle1Y float64 `json:"paddle1_y"`
	Paddle2Y float64 `json:"paddle2_y"`
	BallX    float64 `json:"ball_x"`
	BallY    float64 `json:"ball_y"`
	Score1   int     `json:"score1"`
	Score2   int     `json:"score2"`
}

// Match owns the physics and scoring of one game. It is not safe for concurrent
// use; callers serialize access (see session.Room).
type Match struct {
	ID string

	slots    [2]*Slot
	ball     Ball
	phase    Phase
	lastTick time.Time
	rng      *rand.Rand
}

// NewMatch creates a match in the Forming phase with slot 1 filled and the ball served.
func NewMatch(id, connID, name string, now time.Time, rng *rand.Rand) *Match {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), 1))
	}
	m := &Match{
		ID:       id,
		slots:    [2]*Slot{{ConnID: connID, Name: name, Paddle: PaddleStart}},
		phase:    PhaseForming,
		lastTick: now,
		rng:      rng,
	}
	m.ResetBall()
	return m
}

// AddPlayer fills slot 2 and activates the match.
func (m *Match) AddPlayer(connID, name string) error {
	if m.slots[1] != nil {
		return ErrSlotTaken
	}
	if m.phase != PhaseForming {
		return ErrNotForming
	}
	m.slots[1] = &Slot{ConnID: connID, Name: name, Paddle: PaddleStart}
	m.phase = PhaseActive
	return nil
}

// Phase reports the current lifecycle phase.
func (m *Match) Phase() Phase { return m.phase }

// Active is true only while both slots are filled and no terminal state was reached.
func (m *Match) Active() bool { return m.phase == PhaseActive }

// Slot returns a copy of slot n (1 or 2). ok is false for an empty or invalid slot.
func (m *Match) Slot(n int) (Slot, bool) {
	if n < 1 || n > 2 || m.slots[n-1] == nil {
		return Slot{}, false
	}
	return *m.slots[n-1], true
}

// SlotOf returns the slot number held by connID, or 0.
func (m *Match) SlotOf(connID string) int {
	for i, s := range m.slots {
		if s != nil && s.ConnID == connID {
			return i + 1
		}
	}
	return 0
}

// Participants returns the connection ids bound to the match, slot 1 first.
func (m *Match) Participants() []string {
	ids := make([]string, 0, 2)
	for _, s := range m.slots {
		if s != nil {
			ids = append(ids, s.ConnID)
		}
	}
	return ids
}

// Ball returns a copy of the ball.
func (m *Match) Ball() Ball { return m.ball }

// SetPaddle moves the paddle owned by connID. It reports false when the match is
// not active or connID is not a participant.
func (m *Match) SetPaddle(connID string, y float64) bool {
	if !m.Active() {
		return false
	}
	n := m.SlotOf(connID)
	if n == 0 {
		return false
	}
	m.slots[n-1].Paddle = ClampPaddle(y)
	return true
}

// ResetBall serves a new ball from the center of the court.
func (m *Match) ResetBall() {
	m.ball.serve(m.rng)
}

// Step advances the simulation by the wall-clock time elapsed since the previous
// step and reports a point if one was scored.
func (m *Match) Step(now time.Time) ScoreResult {
	elapsed := now.Sub(m.lastTick).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	m.lastTick = now

	m.ball.advance(elapsed)
	m.ball.bounceWalls()

	// A point short-circuits the paddle checks for this step.
	switch {
	case m.ball.X <= 0:
		if s := m.slots[1]; s != nil {
			s.Score++
		}
		m.ResetBall()
		return ScoreSlot2
	case m.ball.X >= CourtWidth:
		m.slots[0].Score++
		m.ResetBall()
		return ScoreSlot1
	}

	if p := m.slots[0]; m.ball.VX < 0 && m.ball.X <= PaddleWidth && m.onPaddle(p) {
		m.ball.deflect(p.Paddle, 1)
	}
	if p := m.slots[1]; p != nil && m.ball.VX > 0 && m.ball.X >= CourtWidth-PaddleWidth && m.onPaddle(p) {
		m.ball.deflect(p.Paddle, -1)
	}
	return ScoreNone
}

func (m *Match) onPaddle(s *Slot) bool {
	return s.Paddle <= m.ball.Y && m.ball.Y <= s.Paddle+PaddleHeight
}

// Over reports whether the win-by-two condition holds and which slot won.
func (m *Match) Over() (winner int, ok bool) {
	s1, s2 := m.scores()
	winner = Winner(s1, s2)
	return winner, winner != 0
}

// Finish moves an active match to Finished. It reports false if the match was not active.
func (m *Match) Finish() bool {
	if m.phase != PhaseActive {
		return false
	}
	m.phase = PhaseFinished
	return true
}

// Abort ends a forming or active match because a participant left.
// It reports false if the match had already ended.
func (m *Match) Abort() bool {
	if m.phase == PhaseFinished || m.phase == PhaseAborted {
		return false
	}
	m.phase = PhaseAborted
	return true
}

// State projects the match into the broadcast snapshot.
func (m *Match) State() State {
	s1, s2 := m.scores()
	st := State{
		Paddle1Y: m.slots[0].Paddle,
		Paddle2Y: PaddleStart,
		BallX:    m.ball.X,
		BallY:    m.ball.Y,
		Score1:   s1,
		Score2:   s2,
	}
	if p := m.slots[1]; p != nil {
		st.Paddle2Y = p.Paddle
	}
	return st
}

func (m *Match) scores() (int, int) {
	s1 := m.slots[0].Score
	s2 := 0
	if p := m.slots[1]; p != nil {
		s2 = p.Score
	}
	return s1, s2
}
