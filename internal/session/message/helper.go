package message

import "pong/internal/network"

// MessageSender is anything that can take an outbound message.
type MessageSender interface {
	Send(msg network.Message) bool
}

// SendError sends a single error message.
func SendError(sender MessageSender, format string, args ...any) {
	sender.Send(Error(format, args...))
}
