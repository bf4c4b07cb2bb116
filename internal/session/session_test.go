package session

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pong/internal/auth"
	"pong/internal/game"
	"pong/internal/network"
	"pong/internal/session/message"
	"pong/internal/stats"
)

type fakePeer struct {
	id    string
	token string

	mu   sync.Mutex
	msgs []network.Message
}

func (p *fakePeer) ID() string    { return p.id }
func (p *fakePeer) Token() string { return p.token }

func (p *fakePeer) Send(msg network.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return true
}

// take returns and clears the messages received so far.
func (p *fakePeer) take() []network.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.msgs
	p.msgs = nil
	return msgs
}

func types(msgs []network.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func decode[T any](t *testing.T, msg network.Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	return v
}

type recordingReporter struct {
	mu       sync.Mutex
	outcomes []stats.Outcome
}

func (r *recordingReporter) Report(o stats.Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

// steppingClock moves forward by step on every read.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// serveScript drives Ball serves: each serve draws a direction (low bit 1 sends
// the ball right, towards slot 2) and then a vertical speed, which is always 0 here.
type serveScript struct {
	dirs  []uint64
	calls int
}

func (s *serveScript) Uint64() uint64 {
	s.calls++
	if s.calls%2 == 0 {
		return 0
	}
	i := s.calls / 2
	if i >= len(s.dirs) {
		return 0
	}
	return s.dirs[i]
}

func newTestHandler(t *testing.T, opts ...Option) *GameHandler {
	t.Helper()
	base := []Option{WithTickRate(0)}
	h := NewGameHandler(append(base, opts...)...)
	t.Cleanup(func() { h.Close(context.Background()) })
	return h
}

func connect(h *GameHandler, id string) *fakePeer {
	p := &fakePeer{id: id}
	h.OnConnect(context.Background(), p)
	return p
}

func send(t *testing.T, h *GameHandler, p *fakePeer, msgType string, payload any) {
	t.Helper()
	msg, err := network.NewMessage(msgType, payload)
	require.NoError(t, err)
	h.OnMessage(p, msg)
}

func pair(t *testing.T, h *GameHandler) (*fakePeer, *fakePeer) {
	t.Helper()
	g1 := connect(h, "aaaaaaaa-0001")
	g2 := connect(h, "bbbbbbbb-0002")
	send(t, h, g1, message.TypeJoinGame, message.JoinGamePayload{PlayerName: "G1"})
	send(t, h, g2, message.TypeJoinGame, message.JoinGamePayload{PlayerName: "G2"})
	g1.take()
	g2.take()
	return g1, g2
}

func TestTwoGuestsArePaired(t *testing.T) {
	h := newTestHandler(t)
	g1 := connect(h, "aaaaaaaa-0001")
	g2 := connect(h, "bbbbbbbb-0002")

	send(t, h, g1, message.TypeJoinGame, message.JoinGamePayload{PlayerName: "G1"})
	assert.Equal(t, []string{message.TypeWaiting}, types(g1.take()))
	assert.Equal(t, Counters{Connections: 2, Waiting: 1}, h.Counters())

	send(t, h, g2, message.TypeJoinGame, message.JoinGamePayload{PlayerName: "G2"})

	m1, m2 := g1.take(), g2.take()
	require.Equal(t, []string{message.TypeGameStart, message.TypeGameState}, types(m1))
	require.Equal(t, []string{message.TypeGameStart, message.TypeGameState}, types(m2))

	start1 := decode[message.GameStartPayload](t, m1[0])
	start2 := decode[message.GameStartPayload](t, m2[0])
	assert.Equal(t, 1, start1.PlayerNumber)
	assert.Equal(t, "G2", start1.Opponent)
	assert.Equal(t, 2, start2.PlayerNumber)
	assert.Equal(t, "G1", start2.Opponent)
	assert.Equal(t, start1.GameID, start2.GameID)

	st := decode[game.State](t, m1[1])
	assert.Equal(t, 0, st.Score1)
	assert.Equal(t, 0, st.Score2)
	assert.Equal(t, 170.0, st.Paddle1Y)
	assert.Equal(t, 170.0, st.Paddle2Y)
	assert.Equal(t, m1[1], m2[1])

	assert.Equal(t, Counters{Connections: 2, Waiting: 0, Matches: 1}, h.Counters())
	rooms := h.Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, [2]string{"G1", "G2"}, rooms[0].Players)
	assert.Equal(t, game.PhaseActive, rooms[0].Phase)
}

func TestJoinWithoutNameUsesGuestName(t *testing.T) {
	h := newTestHandler(t)
	g1 := connect(h, "aaaaaaaa-0001")
	g2 := connect(h, "bbbbbbbb-0002")

	h.OnMessage(g1, network.Message{Type: message.TypeJoinGame})
	send(t, h, g2, message.TypeJoinGame, map[string]string{})

	start := decode[message.GameStartPayload](t, g1.take()[1])
	assert.Equal(t, "Guest-bbbbbbbb", start.Opponent)
}

func TestPaddleMoveClamps(t *testing.T) {
	h := newTestHandler(t)
	g1, g2 := pair(t, h)

	send(t, h, g1, message.TypePaddleMove, map[string]float64{"y": 500})

	for _, p := range []*fakePeer{g1, g2} {
		msgs := p.take()
		require.Equal(t, []string{message.TypeGameState}, types(msgs))
		st := decode[game.State](t, msgs[0])
		assert.Equal(t, 340.0, st.Paddle1Y)
		assert.Equal(t, 170.0, st.Paddle2Y)
	}

	send(t, h, g2, message.TypePaddleMove, map[string]float64{"y": -5})
	st := decode[game.State](t, g1.take()[0])
	assert.Equal(t, 0.0, st.Paddle2Y)
}

func TestPaddleMoveRequiresY(t *testing.T) {
	h := newTestHandler(t)
	g1, g2 := pair(t, h)

	send(t, h, g1, message.TypePaddleMove, map[string]string{"x": "1"})

	msgs := g1.take()
	require.Equal(t, []string{message.TypeError}, types(msgs))
	assert.Contains(t, decode[message.ErrorPayload](t, msgs[0]).Message, "'y' is required")
	assert.Empty(t, g2.take())
}

func TestPaddleMoveOutsideMatchIsIgnored(t *testing.T) {
	h := newTestHandler(t)
	g1 := connect(h, "aaaaaaaa-0001")

	send(t, h, g1, message.TypePaddleMove, map[string]float64{"y": 10})
	assert.Empty(t, g1.take())

	send(t, h, g1, message.TypeJoinGame, nil)
	g1.take()
	send(t, h, g1, message.TypePaddleMove, map[string]float64{"y": 10})
	assert.Empty(t, g1.take())
}

func TestTicksUntilGameOver(t *testing.T) {
	// Five serves to the left (slot 2 scores), then eleven to the right.
	dirs := make([]uint64, 17)
	for i := 5; i < len(dirs); i++ {
		dirs[i] = 1
	}
	reporter := &recordingReporter{}
	clock := &steppingClock{now: time.Unix(1_700_000_000, 0), step: 10 * time.Second}
	h := newTestHandler(t,
		WithClock(clock.Now),
		WithReporter(reporter),
		WithRand(func() *rand.Rand { return rand.New(&serveScript{dirs: dirs}) }),
	)
	g1, g2 := pair(t, h)

	for i := range 16 {
		send(t, h, g1, message.TypeGameTick, nil)
		msgs := g2.take()
		require.Len(t, msgs, 2, "tick %d", i+1)
		require.Equal(t, message.TypePointScored, msgs[0].Type)
		if i < 5 {
			assert.Equal(t, 2, decode[message.PointScoredPayload](t, msgs[0]).Player)
		} else {
			assert.Equal(t, 1, decode[message.PointScoredPayload](t, msgs[0]).Player)
		}
		if i < 15 {
			require.Equal(t, message.TypeGameState, msgs[1].Type)
			continue
		}
		require.Equal(t, message.TypeGameOver, msgs[1].Type)
		assert.Equal(t, 1, decode[message.GameOverPayload](t, msgs[1]).Winner)
	}

	final := g1.take()
	require.NotEmpty(t, final)
	assert.Equal(t, message.TypeGameOver, final[len(final)-1].Type)

	send(t, h, g1, message.TypeGameTick, nil)
	send(t, h, g2, message.TypeGameTick, nil)
	send(t, h, g2, message.TypePaddleMove, map[string]float64{"y": 1})
	assert.Empty(t, g1.take())
	assert.Empty(t, g2.take())

	assert.Equal(t, 0, h.Counters().Matches)
	require.Len(t, reporter.outcomes, 1)
	o := reporter.outcomes[0]
	assert.Equal(t, 1, o.Winner)
	assert.Equal(t, 11, o.Score1)
	assert.Equal(t, 5, o.Score2)
	assert.Equal(t, "G1", o.Players[0].Name)
	assert.Empty(t, o.Players[0].Username)

	// Both players are free to queue again.
	send(t, h, g2, message.TypeJoinGame, nil)
	assert.Equal(t, []string{message.TypeWaiting}, types(g2.take()))
}

func TestDisconnectDuringMatch(t *testing.T) {
	h := newTestHandler(t)
	g1, g2 := pair(t, h)

	h.OnDisconnect(g1)

	assert.Equal(t, []string{message.TypeOpponentDisconnected}, types(g2.take()))
	assert.Empty(t, g1.take())
	assert.Equal(t, Counters{Connections: 1}, h.Counters())

	send(t, h, g2, message.TypeGameTick, nil)
	send(t, h, g2, message.TypePaddleMove, map[string]float64{"y": 1})
	assert.Empty(t, g2.take())

	h.OnDisconnect(g1)
	assert.Empty(t, g2.take())

	send(t, h, g2, message.TypeJoinGame, nil)
	assert.Equal(t, []string{message.TypeWaiting}, types(g2.take()))
}

func TestDisconnectWhileQueued(t *testing.T) {
	h := newTestHandler(t)
	g1 := connect(h, "aaaaaaaa-0001")
	g2 := connect(h, "bbbbbbbb-0002")

	send(t, h, g1, message.TypeJoinGame, nil)
	h.OnDisconnect(g1)
	assert.Equal(t, Counters{Connections: 1}, h.Counters())

	send(t, h, g2, message.TypeJoinGame, nil)
	assert.Equal(t, []string{message.TypeWaiting}, types(g2.take()))
	assert.Equal(t, 0, h.Counters().Matches)
}

func TestJoinTwice(t *testing.T) {
	h := newTestHandler(t)
	g1 := connect(h, "aaaaaaaa-0001")

	send(t, h, g1, message.TypeJoinGame, nil)
	send(t, h, g1, message.TypeJoinGame, nil)
	assert.Equal(t, []string{message.TypeWaiting, message.TypeWaiting}, types(g1.take()))
	assert.Equal(t, 1, h.Counters().Waiting)

	g2 := connect(h, "bbbbbbbb-0002")
	send(t, h, g2, message.TypeJoinGame, nil)
	g1.take()
	g2.take()

	send(t, h, g1, message.TypeJoinGame, nil)
	assert.Empty(t, g1.take())
	assert.Equal(t, Counters{Connections: 2, Matches: 1}, h.Counters())
}

func TestMalformedInput(t *testing.T) {
	h := newTestHandler(t)
	g1 := connect(h, "aaaaaaaa-0001")

	h.OnMessage(g1, network.Message{Type: "serve_ball"})
	h.OnInvalid(g1, fmt.Errorf("decode message: boom"))
	h.OnMessage(g1, network.Message{Type: message.TypeJoinGame, Payload: json.RawMessage(`"ana"`)})

	msgs := g1.take()
	assert.Equal(t, []string{message.TypeError, message.TypeError, message.TypeError}, types(msgs))
	assert.Contains(t, decode[message.ErrorPayload](t, msgs[0]).Message, "serve_ball")
	assert.Equal(t, 0, h.Counters().Waiting)
}

func TestMessagesFromUnknownPeerAreIgnored(t *testing.T) {
	h := newTestHandler(t)
	ghost := &fakePeer{id: "ghost"}

	send(t, h, ghost, message.TypeJoinGame, nil)
	h.OnDisconnect(ghost)

	assert.Empty(t, ghost.take())
	assert.Equal(t, Counters{}, h.Counters())
}

func TestAuthenticatedPlayersAreReported(t *testing.T) {
	resolver := auth.ResolverFunc(func(_ context.Context, token string) (string, error) {
		if token == "tok-ana" {
			return "ana", nil
		}
		return "", auth.ErrNoSession
	})
	dirs := make([]uint64, 12)
	for i := range dirs {
		dirs[i] = 1
	}
	reporter := &recordingReporter{}
	clock := &steppingClock{now: time.Unix(0, 0), step: 10 * time.Second}
	h := newTestHandler(t,
		WithResolver(resolver),
		WithReporter(reporter),
		WithClock(clock.Now),
		WithRand(func() *rand.Rand { return rand.New(&serveScript{dirs: dirs}) }),
	)

	ana := &fakePeer{id: "aaaaaaaa-0001", token: "tok-ana"}
	h.OnConnect(context.Background(), ana)
	guest := &fakePeer{id: "bbbbbbbb-0002", token: "tok-unknown"}
	h.OnConnect(context.Background(), guest)

	h.OnMessage(ana, network.Message{Type: message.TypeJoinGame})
	h.OnMessage(guest, network.Message{Type: message.TypeJoinGame})
	start := decode[message.GameStartPayload](t, guest.take()[0])
	assert.Equal(t, "ana", start.Opponent)

	for range 11 {
		h.OnMessage(guest, network.Message{Type: message.TypeGameTick})
	}

	require.Len(t, reporter.outcomes, 1)
	o := reporter.outcomes[0]
	assert.Equal(t, 1, o.Winner)
	assert.Equal(t, stats.Participant{Name: "ana", Username: "ana"}, o.Players[0])
	assert.Equal(t, stats.Participant{Name: "Guest-bbbbbbbb"}, o.Players[1])
}

func TestServerTickLoop(t *testing.T) {
	h := NewGameHandler(WithTickRate(200))
	g1, g2 := pair(t, h)

	require.Eventually(t, func() bool {
		g2.mu.Lock()
		defer g2.mu.Unlock()
		return len(g2.msgs) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	g1.take()
	h.OnDisconnect(g2)
	msgs := g1.take()
	require.NotEmpty(t, msgs)
	assert.Equal(t, message.TypeOpponentDisconnected, msgs[len(msgs)-1].Type)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Close(ctx))
	assert.Empty(t, g1.take())
}

func TestConcurrentJoinsAndDisconnects(t *testing.T) {
	h := newTestHandler(t)
	const players = 64

	var wg sync.WaitGroup
	peers := make([]*fakePeer, players)
	for i := range players {
		peers[i] = connect(h, fmt.Sprintf("player-%03d", i))
	}
	for i, p := range peers {
		wg.Go(func() {
			send(t, h, p, message.TypeJoinGame, nil)
			send(t, h, p, message.TypePaddleMove, map[string]float64{"y": float64(i)})
			send(t, h, p, message.TypeGameTick, nil)
			if i%3 == 0 {
				h.OnDisconnect(p)
			}
		})
	}
	wg.Wait()

	// No connection may be both queued and bound to a match.
	for _, p := range peers {
		s, ok := h.sessions.Get(p.id)
		if !ok {
			continue
		}
		queued := h.matchmaker.Position(p.id) > 0
		assert.False(t, queued && s.MatchID() != "", "%s is queued and in a match", p.id)
	}

	for i, p := range peers {
		if i%3 != 0 {
			h.OnDisconnect(p)
		}
	}
	assert.Equal(t, Counters{}, h.Counters())
}

func TestCloseWhilePlayersJoin(t *testing.T) {
	h := NewGameHandler(WithTickRate(1000))
	const pairs = 8

	var wg sync.WaitGroup
	peers := make([]*fakePeer, 0, 2*pairs)
	for i := range pairs {
		a := connect(h, fmt.Sprintf("left-%02d", i))
		b := connect(h, fmt.Sprintf("right-%02d", i))
		peers = append(peers, a, b)
		wg.Go(func() {
			send(t, h, a, message.TypeJoinGame, nil)
			send(t, h, b, message.TypeJoinGame, nil)
		})
	}
	wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, h.Close(ctx))
	})
	wg.Wait()

	// Loops started before Close are cancelled with it; none start afterwards.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Close(ctx))

	late := connect(h, "late-01")
	send(t, h, late, message.TypeJoinGame, nil)
	msgs := late.take()
	require.Len(t, msgs, 1)
	assert.Equal(t, message.TypeError, msgs[0].Type)
	assert.Zero(t, h.matchmaker.Position(late.id))

	for _, p := range peers {
		h.OnDisconnect(p)
	}
	h.OnDisconnect(late)
	assert.Equal(t, Counters{}, h.Counters())
}
