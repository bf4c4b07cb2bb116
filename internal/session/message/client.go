package message

// Server -> client messages.
import (
	"fmt"

	"pong/internal/game"
	"pong/internal/network"
)

// Outbound message types.
const (
	TypeWaiting              = "waiting_for_opponent"
	TypeGameStart            = "game_start"
	TypeGameState            = "game_state"
	TypePointScored          = "point_scored"
	TypeGameOver             = "game_over"
	TypeOpponentDisconnected = "opponent_disconnected"
	TypeError                = "error"
)

// GameStartPayload is sent individually; opponent and player_number differ per recipient.
type GameStartPayload struct {
	GameID       string `json:"game_id"`
	Opponent     string `json:"opponent"`
	PlayerNumber int    `json:"player_number"`
}

type PointScoredPayload struct {
	Player int `json:"player"`
}

type GameOverPayload struct {
	Winner int `json:"winner"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// must is only used with payload types that always marshal.
func must(msgType string, payload any) network.Message {
	msg, err := network.NewMessage(msgType, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

func Waiting() network.Message {
	return network.Message{Type: TypeWaiting}
}

func GameStart(gameID, opponent string, playerNumber int) network.Message {
	return must(TypeGameStart, GameStartPayload{GameID: gameID, Opponent: opponent, PlayerNumber: playerNumber})
}

func GameState(st game.State) network.Message {
	return must(TypeGameState, st)
}

func PointScored(player int) network.Message {
	return must(TypePointScored, PointScoredPayload{Player: player})
}

func GameOver(winner int) network.Message {
	return must(TypeGameOver, GameOverPayload{Winner: winner})
}

func OpponentDisconnected() network.Message {
	return network.Message{Type: TypeOpponentDisconnected}
}

// Error builds an error message from a format string.
func Error(format string, args ...any) network.Message {
	return must(TypeError, ErrorPayload{Message: fmt.Sprintf(format, args...)})
}
