package stats

import (
	"context"
	"sync"
)

// MemoryStore keeps counters in process memory. Data is lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]Stats)}
}

func (m *MemoryStore) RecordResult(_ context.Context, username string, won bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.users[username]
	s.Username = username
	s.GamesPlayed++
	if won {
		s.GamesWon++
		s.MultiplayerWins++
	}
	m.users[username] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, username string) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.users[username]
	if !ok {
		return Stats{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }
