package session

import (
	"sync"

	"pong/internal/network"
)

// PlayerSession is one connected client and the match it is bound to, if any.
type PlayerSession struct {
	ID       string
	Username string // empty for guests

	peer network.Peer

	mu      sync.Mutex
	name    string
	matchID string
}

// NewPlayerSession creates a session for peer. An empty username makes a guest.
func NewPlayerSession(peer network.Peer, username string) *PlayerSession {
	name := username
	if name == "" {
		name = GuestName(peer.ID())
	}
	return &PlayerSession{
		ID:       peer.ID(),
		Username: username,
		peer:     peer,
		name:     name,
	}
}

// GuestName derives a display name from a connection id.
func GuestName(connID string) string {
	if len(connID) > 8 {
		connID = connID[:8]
	}
	return "Guest-" + connID
}

func (s *PlayerSession) Guest() bool { return s.Username == "" }

func (s *PlayerSession) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *PlayerSession) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// MatchID returns the match the session is bound to, or "".
func (s *PlayerSession) MatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchID
}

func (s *PlayerSession) bind(matchID string) {
	s.mu.Lock()
	s.matchID = matchID
	s.mu.Unlock()
}

// unbind clears the binding only if it still points at matchID.
func (s *PlayerSession) unbind(matchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matchID != matchID {
		return false
	}
	s.matchID = ""
	return true
}

// Send forwards msg to the connection without blocking.
func (s *PlayerSession) Send(msg network.Message) bool {
	return s.peer.Send(msg)
}

// Registry maps connection ids to sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*PlayerSession
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*PlayerSession)}
}

func (r *Registry) Add(s *PlayerSession) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*PlayerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
