package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuestName(t *testing.T) {
	assert.Equal(t, "Guest-12345678", GuestName("12345678-abcd-ef00"))
	assert.Equal(t, "Guest-abc", GuestName("abc"))
}

func TestNewPlayerSession(t *testing.T) {
	guest := NewPlayerSession(&fakePeer{id: "0123456789"}, "")
	assert.True(t, guest.Guest())
	assert.Equal(t, "Guest-01234567", guest.Name())

	user := NewPlayerSession(&fakePeer{id: "0123456789"}, "ana")
	assert.False(t, user.Guest())
	assert.Equal(t, "ana", user.Name())
}

func TestUnbindOnlyMatchingMatch(t *testing.T) {
	s := NewPlayerSession(&fakePeer{id: "c-1"}, "")
	s.bind("m-2")

	assert.False(t, s.unbind("m-1"))
	assert.Equal(t, "m-2", s.MatchID())
	assert.True(t, s.unbind("m-2"))
	assert.Empty(t, s.MatchID())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	s := NewPlayerSession(&fakePeer{id: "c-1"}, "")
	r.Add(s)

	got, ok := r.Get("c-1")
	assert.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	r.Remove("c-1")
	_, ok = r.Get("c-1")
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}
