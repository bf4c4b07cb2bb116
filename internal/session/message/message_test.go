package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pong/internal/game"
	"pong/internal/network"
)

func TestOutboundShapes(t *testing.T) {
	cases := []struct {
		msg  network.Message
		want string
	}{
		{Waiting(), `{"type":"waiting_for_opponent"}`},
		{OpponentDisconnected(), `{"type":"opponent_disconnected"}`},
		{GameStart("g-1", "bob", 2), `{"type":"game_start","payload":{"game_id":"g-1","opponent":"bob","player_number":2}}`},
		{PointScored(1), `{"type":"point_scored","payload":{"player":1}}`},
		{GameOver(2), `{"type":"game_over","payload":{"winner":2}}`},
		{Error("bad %s", "input"), `{"type":"error","payload":{"message":"bad input"}}`},
		{
			GameState(game.State{Paddle1Y: 170, Paddle2Y: 340, BallX: 400, BallY: 200, Score1: 3, Score2: 1}),
			`{"type":"game_state","payload":{"paddle1_y":170,"paddle2_y":340,"ball_x":400,"ball_y":200,"score1":3,"score2":1}}`,
		},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.msg)
		require.NoError(t, err)
		assert.JSONEq(t, tc.want, string(raw))
	}
}

func TestPaddleMovePayloadMissingY(t *testing.T) {
	var p PaddleMovePayload
	require.NoError(t, json.Unmarshal([]byte(`{}`), &p))
	assert.Nil(t, p.Y)

	require.NoError(t, json.Unmarshal([]byte(`{"y":0}`), &p))
	require.NotNil(t, p.Y)
	assert.Equal(t, 0.0, *p.Y)
}
