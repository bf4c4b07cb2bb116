package session

import "sync"

// PairStatus is the result of a Matchmaker.Pair call.
type PairStatus int

const (
	// Queued means no opponent was available and the joiner now waits at the tail.
	Queued PairStatus = iota
	// Paired means bind accepted an opponent popped from the head.
	Paired
	// AlreadyQueued means the joiner was already waiting. The queue is unchanged.
	AlreadyQueued
	// Rejected means the eligibility check failed. The queue is unchanged.
	Rejected
)

// Matchmaker is the FIFO of connections waiting for an opponent.
// A connection id appears at most once.
type Matchmaker struct {
	mu     sync.Mutex
	queue  []string
	queued map[string]struct{}
}

func NewMatchmaker() *Matchmaker {
	return &Matchmaker{queued: make(map[string]struct{})}
}

// Enqueue appends id unless it is already waiting.
func (m *Matchmaker) Enqueue(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enqueue(id)
}

func (m *Matchmaker) enqueue(id string) bool {
	if _, ok := m.queued[id]; ok {
		return false
	}
	m.queue = append(m.queue, id)
	m.queued[id] = struct{}{}
	return true
}

// Remove drops id from the queue. It reports whether id was waiting.
func (m *Matchmaker) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queued[id]; !ok {
		return false
	}
	delete(m.queued, id)
	for i, waiting := range m.queue {
		if waiting == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of waiting connections.
func (m *Matchmaker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Position returns the 1-based place of id in the queue, or 0.
func (m *Matchmaker) Position(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, waiting := range m.queue {
		if waiting == id {
			return i + 1
		}
	}
	return 0
}

// Pairing supplies the coordinator side of a Pair call. Its methods run under
// the queue lock and must not call back into the Matchmaker.
type Pairing interface {
	// Eligible reports whether the joiner may wait or be matched at all.
	Eligible(joiner string) bool
	// Bind tries to start a match between joiner and opponent. It returns false
	// when the opponent is gone.
	Bind(joiner, opponent string) bool
	// Waiting is called whenever the joiner is left in the queue.
	Waiting(joiner string)
}

// Pair serves joiner. It pops heads and offers each to p.Bind until one is
// accepted. A head that Bind refuses is discarded. If nobody accepts, joiner is
// enqueued, so a joiner is never dropped.
func (m *Matchmaker) Pair(joiner string, p Pairing) (string, PairStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.queued[joiner]; ok {
		p.Waiting(joiner)
		return "", AlreadyQueued
	}
	if !p.Eligible(joiner) {
		return "", Rejected
	}

	for len(m.queue) > 0 {
		head := m.queue[0]
		m.queue = m.queue[1:]
		delete(m.queued, head)
		if p.Bind(joiner, head) {
			return head, Paired
		}
	}

	m.enqueue(joiner)
	p.Waiting(joiner)
	return "", Queued
}
