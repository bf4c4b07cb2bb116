package message

// Client -> server messages.

// Inbound message types.
const (
	TypeJoinGame   = "join_game"
	TypePaddleMove = "paddle_move"
	TypeGameTick   = "game_tick"
)

// JoinGamePayload is optional; an empty name falls back to the connection's name.
type JoinGamePayload struct {
	PlayerName string `json:"player_name"`
}

// PaddleMovePayload uses a pointer so that a missing y can be told apart from 0.
type PaddleMovePayload struct {
	Y *float64 `json:"y"`
}
