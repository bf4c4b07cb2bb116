// Package redis stores player stats and login sessions in Redis.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pong/internal/stats"
)

const statsPrefix = "pong:stats:"

// StatsStore keeps one hash per user under pong:stats:<username>.
type StatsStore struct {
	client *redis.Client
}

func NewStatsStore(client *redis.Client) *StatsStore {
	return &StatsStore{client: client}
}

type statsHash struct {
	GamesPlayed       int `redis:"games_played"`
	GamesWon          int `redis:"games_won"`
	MultiplayerWins   int `redis:"multiplayer_wins"`
	AchievementPoints int `redis:"achievement_points"`
}

// RecordResult increments the counters atomically.
func (s *StatsStore) RecordResult(ctx context.Context, username string, won bool) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	key := statsPrefix + username
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "games_played", 1)
		if won {
			pipe.HIncrBy(ctx, key, "games_won", 1)
			pipe.HIncrBy(ctx, key, "multiplayer_wins", 1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record result for %s: %w", username, err)
	}
	return nil
}

func (s *StatsStore) Get(ctx context.Context, username string) (stats.Stats, error) {
	res := s.client.HGetAll(ctx, statsPrefix+username)
	fields, err := res.Result()
	if err != nil {
		return stats.Stats{}, fmt.Errorf("get stats for %s: %w", username, err)
	}
	if len(fields) == 0 {
		return stats.Stats{}, stats.ErrNotFound
	}
	var h statsHash
	if err := res.Scan(&h); err != nil {
		return stats.Stats{}, fmt.Errorf("decode stats for %s: %w", username, err)
	}
	return stats.Stats{
		Username:          username,
		GamesPlayed:       h.GamesPlayed,
		GamesWon:          h.GamesWon,
		MultiplayerWins:   h.MultiplayerWins,
		AchievementPoints: h.AchievementPoints,
	}, nil
}

func (s *StatsStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the client is shared and closed by its owner.
func (s *StatsStore) Close() error { return nil }
