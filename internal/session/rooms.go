package session

import "sync"

// MatchRegistry maps match ids to live rooms. A room is removed as soon as its
// match reaches a terminal phase.
type MatchRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewMatchRegistry() *MatchRegistry {
	return &MatchRegistry{rooms: make(map[string]*Room)}
}

func (r *MatchRegistry) Add(room *Room) {
	r.mu.Lock()
	r.rooms[room.ID] = room
	r.mu.Unlock()
}

func (r *MatchRegistry) Get(id string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

func (r *MatchRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.rooms, id)
	r.mu.Unlock()
}

func (r *MatchRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// All returns a snapshot of the live rooms.
func (r *MatchRegistry) All() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
