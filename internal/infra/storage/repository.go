// Package storage provides the persistence layer for the game server.
// This package implements the repository pattern to keep the engine pure.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// GameEvent mirrors the domain event structure for persistence. The payload
// is kept as raw JSON; events.DecodePayload restores its type.
type GameEvent struct {
	ID        string          `json:"id" db:"id"`
	GameID    string          `json:"game_id" db:"game_id"`
	Seq       int             `json:"seq" db:"seq"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	EventType string          `json:"event_type" db:"event_type"`
	Turn      int             `json:"turn" db:"turn"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
}

// EventRepository defines the interface for event persistence.
// The engine never sees this interface; sessions wire it in through an EventSink.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event GameEvent) error

	// GetByGameID retrieves all events for a specific game in log order (for replay).
	GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error)

	// GetByTurn retrieves all events recorded during one turn.
	GetByTurn(ctx context.Context, gameID string, turn int) ([]GameEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, gameID string, eventType string) ([]GameEvent, error)
}

// GameStatus is the lifecycle state of a stored game.
type GameStatus string

const (
	StatusActive GameStatus = "active"
	StatusWon    GameStatus = "won"
	StatusLost   GameStatus = "lost"
)

// GameSummary is the current state of a game for quick reads.
type GameSummary struct {
	GameID        string     `json:"game_id" db:"game_id"`
	Status        GameStatus `json:"status" db:"status"`
	Turn          int        `json:"turn" db:"turn"`
	Cured         int        `json:"cured" db:"cured"`
	PanicLevel    int        `json:"panic_level" db:"panic_level"`
	InfectionRate int        `json:"infection_rate" db:"infection_rate"`
	Seed          int64      `json:"seed" db:"seed"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// GameStats aggregates every stored game.
type GameStats struct {
	Played       int     `json:"played"`
	Active       int     `json:"active"`
	Won          int     `json:"won"`
	Lost         int     `json:"lost"`
	AvgTurnsWon  float64 `json:"avg_turns_won"`
	AvgTurnsLost float64 `json:"avg_turns_lost"`
}

// GameRepository defines the interface for game summaries.
type GameRepository interface {
	// Upsert updates or inserts a game summary. CreatedAt is kept from the first insert.
	Upsert(ctx context.Context, summary GameSummary) error

	// Get retrieves one game, or ErrNotFound.
	Get(ctx context.Context, gameID string) (*GameSummary, error)

	// ListRecent returns the most recently updated games first.
	ListRecent(ctx context.Context, limit int) ([]GameSummary, error)

	// Stats aggregates outcomes across all games.
	Stats(ctx context.Context) (GameStats, error)
}
