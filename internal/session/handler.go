package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"pong/internal/auth"
	"pong/internal/network"
	"pong/internal/session/message"
	"pong/internal/stats"
)

// CommandHandlerFunc handles one inbound message type for a session.
type CommandHandlerFunc func(h *GameHandler, session *PlayerSession, payload json.RawMessage)

// Reporter receives finished matches. Report must not block.
type Reporter interface {
	Report(o stats.Outcome)
}

// Counters is a snapshot of the coordinator's registries.
type Counters struct {
	Connections int `json:"connections"`
	Waiting     int `json:"waiting"`
	Matches     int `json:"matches"`
}

// GameHandler implements network.EventHandler for pong. Events from one
// connection arrive in order; events from different connections run in
// parallel and only meet on the queue lock or a room lock.
//
// Lock order: closeMu -> matchmaker -> room -> registries -> session.
type GameHandler struct {
	sessions   *Registry
	matchmaker *Matchmaker
	matches    *MatchRegistry
	router     map[string]CommandHandlerFunc

	resolver auth.Resolver
	reporter Reporter
	tickRate float64
	now      func() time.Time
	newRand  func() *rand.Rand
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loops  sync.WaitGroup

	// closeMu is read-held by every join_game while it may start a loop, so no
	// loops.Go can run once Close has set closed.
	closeMu sync.RWMutex
	closed  bool
}

// Option configures a GameHandler.
type Option func(*GameHandler)

// WithResolver resolves session tokens at connect time. Without one every
// connection is a guest.
func WithResolver(r auth.Resolver) Option {
	return func(h *GameHandler) { h.resolver = r }
}

// WithReporter receives every finished match.
func WithReporter(r Reporter) Option {
	return func(h *GameHandler) { h.reporter = r }
}

// WithTickRate sets the server tick frequency in Hz. Zero leaves ticking to
// the clients' game_tick messages.
func WithTickRate(hz float64) Option {
	return func(h *GameHandler) {
		if hz >= 0 {
			h.tickRate = hz
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *GameHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithRand supplies the random source of each new match.
func WithRand(newRand func() *rand.Rand) Option {
	return func(h *GameHandler) {
		if newRand != nil {
			h.newRand = newRand
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *GameHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

type discardReporter struct{}

func (discardReporter) Report(stats.Outcome) {}

// NewGameHandler builds the coordinator and registers the message handlers.
func NewGameHandler(opts ...Option) *GameHandler {
	h := &GameHandler{
		sessions:   NewRegistry(),
		matchmaker: NewMatchmaker(),
		matches:    NewMatchRegistry(),
		router:     make(map[string]CommandHandlerFunc),
		reporter:   discardReporter{},
		tickRate:   60,
		now:        time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "session")
	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.registerLobbyHandlers()
	h.registerMatchHandlers()
	return h
}

// OnConnect registers a session, authenticated when the token resolves.
func (h *GameHandler) OnConnect(ctx context.Context, p network.Peer) {
	username := ""
	if token := p.Token(); token != "" && h.resolver != nil {
		u, err := h.resolver.Resolve(ctx, token)
		switch {
		case err == nil:
			username = u
		case errors.Is(err, auth.ErrNoSession):
			h.logger.Debug("session token not recognized", "conn", p.ID())
		default:
			h.logger.Warn("session lookup failed, connecting as guest", "conn", p.ID(), "error", err)
		}
	}

	s := NewPlayerSession(p, username)
	h.sessions.Add(s)
	h.logger.Info("session created", "conn", s.ID, "name", s.Name(), "guest", s.Guest(), "sessions", h.sessions.Len())
}

// OnDisconnect leaves the queue, tears down the match and only then forgets the session.
func (h *GameHandler) OnDisconnect(p network.Peer) {
	s, ok := h.sessions.Get(p.ID())
	if !ok {
		return
	}

	if h.matchmaker.Remove(s.ID) {
		h.logger.Info("left matchmaking queue", "conn", s.ID, "waiting", h.matchmaker.Len())
	}
	if room, ok := h.roomOf(s); ok {
		h.abortRoom(room, s.ID)
	}

	h.sessions.Remove(s.ID)
	h.logger.Info("session removed", "conn", s.ID, "sessions", h.sessions.Len())
}

// OnMessage dispatches by message type.
func (h *GameHandler) OnMessage(p network.Peer, msg network.Message) {
	s, ok := h.sessions.Get(p.ID())
	if !ok {
		return
	}

	handler, found := h.router[msg.Type]
	if !found {
		message.SendError(s, "unknown message type: %s", msg.Type)
		return
	}
	handler(h, s, msg.Payload)
}

// OnInvalid answers frames that are not a message envelope.
func (h *GameHandler) OnInvalid(p network.Peer, err error) {
	h.logger.Debug("malformed message", "conn", p.ID(), "error", err)
	message.SendError(p, "malformed message: %v", err)
}

// Counters reports the size of each registry.
func (h *GameHandler) Counters() Counters {
	return Counters{
		Connections: h.sessions.Len(),
		Waiting:     h.matchmaker.Len(),
		Matches:     h.matches.Len(),
	}
}

// Rooms lists the live matches.
func (h *GameHandler) Rooms() []RoomInfo {
	rooms := h.matches.All()
	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, r.Info())
	}
	return infos
}

// Close refuses further join_game requests, stops every server tick loop and
// waits for them, or for ctx.
func (h *GameHandler) Close(ctx context.Context) error {
	h.closeMu.Lock()
	h.closed = true
	h.closeMu.Unlock()

	h.cancel()
	done := make(chan struct{})
	go func() {
		h.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *GameHandler) roomOf(s *PlayerSession) (*Room, bool) {
	id := s.MatchID()
	if id == "" {
		return nil, false
	}
	return h.matches.Get(id)
}
