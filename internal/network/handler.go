package network

import "context"

// Peer is the handle the game logic keeps for a connected client.
type Peer interface {
	// ID is unique per connection and never reused.
	ID() string
	// Token is the session token presented at connect time, or "".
	Token() string
	// Send queues msg for delivery without blocking. It reports false when the
	// peer is gone or cannot keep up.
	Send(msg Message) bool
}

// EventHandler connects the transport to the game logic.
//
// For a single peer, calls are sequential: OnConnect first, then any number of
// OnMessage/OnInvalid, then OnDisconnect exactly once. Calls for different peers
// run concurrently.
type EventHandler interface {
	// OnConnect runs before the peer's first message is read.
	OnConnect(ctx context.Context, p Peer)

	// OnMessage is called for every well-formed envelope.
	OnMessage(p Peer, msg Message)

	// OnInvalid is called for frames that are not a valid envelope.
	OnInvalid(p Peer, err error)

	// OnDisconnect is called once, after the last OnMessage of the peer.
	OnDisconnect(p Peer)
}
