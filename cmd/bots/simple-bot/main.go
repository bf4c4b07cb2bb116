// simple-bot joins a match and follows the ball until the game ends.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"pong/internal/auth"
	"pong/internal/cluster"
	"pong/internal/game"
	"pong/internal/network"
	"pong/internal/session/message"
)

type options struct {
	addr       string
	consulAddr string
	service    string
	name       string
	username   string
	secret     string
	tickHz     float64
}

func main() {
	var o options
	flag.StringVar(&o.addr, "addr", "localhost:8080", "session server host:port")
	flag.StringVar(&o.consulAddr, "consul", os.Getenv("PONG_CONSUL_ADDR"), "discover the server through these Consul agents instead of -addr")
	flag.StringVar(&o.service, "service", "pong-session", "Consul service name")
	flag.StringVar(&o.name, "name", "", "display name sent in join_game")
	flag.StringVar(&o.username, "user", "", "log in as this user (needs -secret)")
	flag.StringVar(&o.secret, "secret", os.Getenv("PONG_JWT_SECRET"), "JWT secret shared with the server")
	flag.Float64Var(&o.tickHz, "tick", 0, "send game_tick at this rate, for servers running with PONG_TICK_RATE=0")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("bot", o.name)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := play(ctx, o, logger); err != nil {
		logger.Error("bot failed", "error", err)
		os.Exit(1)
	}
}

func play(ctx context.Context, o options, logger *slog.Logger) error {
	addr := o.addr
	if o.consulAddr != "" {
		client, err := cluster.NewConsulClient(o.consulAddr, logger)
		if err != nil {
			return err
		}
		if addr, err = cluster.Discover(client, o.service); err != nil {
			return err
		}
	}

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	if o.username != "" {
		if o.secret == "" {
			return errors.New("-user needs -secret")
		}
		token, err := auth.IssueToken(o.secret, o.username, time.Hour)
		if err != nil {
			return err
		}
		u.RawQuery = url.Values{network.SessionCookie: {token}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.Host, err)
	}
	defer conn.Close()
	logger.Info("connected", "addr", u.Host)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// out is never closed; the writer and ticker stop with ctx.
	out := make(chan network.Message, 16)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-out:
				if err := conn.WriteJSON(msg); err != nil {
					logger.Warn("write failed", "error", err)
					return
				}
			}
		}
	}()

	join, _ := network.NewMessage(message.TypeJoinGame, message.JoinGamePayload{PlayerName: o.name})
	out <- join

	if o.tickHz > 0 {
		go tick(ctx, o.tickHz, out)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	b := &bot{}
	for {
		var msg network.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		reply, done := b.handle(msg, logger)
		if reply != nil {
			select {
			case out <- *reply:
			default:
			}
		}
		if done {
			return nil
		}
	}
}

func tick(ctx context.Context, hz float64, out chan<- network.Message) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / hz))
	defer ticker.Stop()
	msg := network.Message{Type: message.TypeGameTick}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case out <- msg:
			default:
			}
		}
	}
}

// bot tracks the ball with its own paddle.
type bot struct {
	slot   int
	paddle float64
}

// handle returns the paddle_move to send, if any, and whether the bot is done.
func (b *bot) handle(msg network.Message, logger *slog.Logger) (*network.Message, bool) {
	switch msg.Type {
	case message.TypeWaiting:
		logger.Info("waiting for an opponent")
	case message.TypeGameStart:
		var p message.GameStartPayload
		json.Unmarshal(msg.Payload, &p)
		b.slot, b.paddle = p.PlayerNumber, game.PaddleStart
		logger.Info("match started", "game", p.GameID, "opponent", p.Opponent, "player", p.PlayerNumber)
	case message.TypeGameState:
		var st game.State
		if err := json.Unmarshal(msg.Payload, &st); err != nil || b.slot == 0 {
			return nil, false
		}
		target := game.ClampPaddle(st.BallY - game.PaddleHeight/2)
		if abs(target-b.paddle) < 1 {
			return nil, false
		}
		b.paddle = target
		y := target
		move, _ := network.NewMessage(message.TypePaddleMove, message.PaddleMovePayload{Y: &y})
		return &move, false
	case message.TypePointScored:
		var p message.PointScoredPayload
		json.Unmarshal(msg.Payload, &p)
		logger.Info("point", "player", p.Player)
	case message.TypeGameOver:
		var p message.GameOverPayload
		json.Unmarshal(msg.Payload, &p)
		logger.Info("game over", "winner", p.Winner, "won", p.Winner == b.slot)
		return nil, true
	case message.TypeOpponentDisconnected:
		logger.Info("opponent left")
		return nil, true
	case message.TypeError:
		logger.Warn("server error", "payload", string(msg.Payload))
	}
	return nil, false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
