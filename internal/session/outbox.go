package session

import "pong/internal/network"

type envelope struct {
	to  *PlayerSession
	msg network.Message
}

// outbox collects the messages produced by one event so they can be sent in a
// separate step, after every state change for that event is done.
type outbox []envelope

func (o *outbox) add(to *PlayerSession, msg network.Message) {
	*o = append(*o, envelope{to: to, msg: msg})
}

// send delivers in order. Delivery never blocks; a slow peer loses its connection.
func (o outbox) send() {
	for _, e := range o {
		e.to.Send(e.msg)
	}
}
