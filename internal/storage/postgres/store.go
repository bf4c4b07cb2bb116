// Package postgres provides the PostgreSQL-backed stats store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pong/internal/stats"
)

const schema = `
CREATE TABLE IF NOT EXISTS player_stats (
    username TEXT PRIMARY KEY,
    games_played INTEGER NOT NULL DEFAULT 0,
    games_won INTEGER NOT NULL DEFAULT 0,
    multiplayer_wins INTEGER NOT NULL DEFAULT 0,
    achievement_points INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store persists player stats in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and creates the table if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) RecordResult(ctx context.Context, username string, won bool) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	wins := 0
	if won {
		wins = 1
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO player_stats (username, games_played, games_won, multiplayer_wins)
VALUES ($1, 1, $2, $2)
ON CONFLICT (username) DO UPDATE SET
    games_played = player_stats.games_played + 1,
    games_won = player_stats.games_won + EXCLUDED.games_won,
    multiplayer_wins = player_stats.multiplayer_wins + EXCLUDED.multiplayer_wins,
    updated_at = now()`, username, wins)
	if err != nil {
		return fmt.Errorf("record result for %s: %w", username, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, username string) (stats.Stats, error) {
	st := stats.Stats{Username: username}
	err := s.pool.QueryRow(ctx, `
SELECT games_played, games_won, multiplayer_wins, achievement_points
FROM player_stats WHERE username = $1`, username,
	).Scan(&st.GamesPlayed, &st.GamesWon, &st.MultiplayerWins, &st.AchievementPoints)
	if errors.Is(err, pgx.ErrNoRows) {
		return stats.Stats{}, stats.ErrNotFound
	}
	if err != nil {
		return stats.Stats{}, fmt.Errorf("get stats for %s: %w", username, err)
	}
	return st, nil
}
