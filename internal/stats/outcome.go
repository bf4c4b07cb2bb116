package stats

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Store.Get for a user without recorded games.
var ErrNotFound = errors.New("stats not found")

// Participant is one side of a finished match. Username is empty for guests.
type Participant struct {
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
}

// Outcome is the end-of-match record handed to the reporter.
type Outcome struct {
	MatchID string         `json:"match_id"`
	Winner  int            `json:"winner"`
	Score1  int            `json:"score1"`
	Score2  int            `json:"score2"`
	Players [2]Participant `json:"players"`
	EndedAt time.Time      `json:"ended_at"`
}

// Stats is the per-user read model.
type Stats struct {
	Username          string `json:"username"`
	GamesPlayed       int    `json:"games_played"`
	GamesWon          int    `json:"games_won"`
	MultiplayerWins   int    `json:"multiplayer_wins"`
	AchievementPoints int    `json:"achievement_points"`
}

// Store persists per-user counters.
type Store interface {
	// RecordResult adds one game played, and one win plus one multiplayer win when won is true.
	RecordResult(ctx context.Context, username string, won bool) error
	Get(ctx context.Context, username string) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Publisher forwards outcomes to other services.
type Publisher interface {
	Publish(ctx context.Context, o Outcome) error
}

// Apply records o for every authenticated participant. Guests are skipped.
func Apply(ctx context.Context, store Store, o Outcome) error {
	var errs []error
	for i, p := range o.Players {
		if p.Username == "" {
			continue
		}
		if err := store.RecordResult(ctx, p.Username, o.Winner == i+1); err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", p.Username, err))
		}
	}
	return errors.Join(errs...)
}
