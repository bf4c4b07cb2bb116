// Package sqlite provides the SQLite-backed stats store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pong/internal/stats"
	"pong/internal/storage/sqlite/migrations"
)

// Store persists player stats in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer avoids SQLITE_BUSY between the reporter and the HTTP API.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordResult upserts the counters for username.
func (s *Store) RecordResult(ctx context.Context, username string, won bool) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("username is required")
	}
	wins := 0
	if won {
		wins = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO player_stats (username, games_played, games_won, multiplayer_wins, updated_at)
		 VALUES (?, 1, ?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET
		   games_played = games_played + 1,
		   games_won = games_won + excluded.games_won,
		   multiplayer_wins = multiplayer_wins + excluded.multiplayer_wins,
		   updated_at = excluded.updated_at`,
		username, wins, wins, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record result for %s: %w", username, err)
	}
	return nil
}

// Get returns the stats of username or stats.ErrNotFound.
func (s *Store) Get(ctx context.Context, username string) (stats.Stats, error) {
	st := stats.Stats{Username: username}
	err := s.db.QueryRowContext(ctx,
		`SELECT games_played, games_won, multiplayer_wins, achievement_points
		 FROM player_stats WHERE username = ?`, username,
	).Scan(&st.GamesPlayed, &st.GamesWon, &st.MultiplayerWins, &st.AchievementPoints)
	if errors.Is(err, sql.ErrNoRows) {
		return stats.Stats{}, stats.ErrNotFound
	}
	if err != nil {
		return stats.Stats{}, fmt.Errorf("get stats for %s: %w", username, err)
	}
	return st, nil
}
