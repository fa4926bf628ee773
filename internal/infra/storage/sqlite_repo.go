package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event GameEvent) error {
	payload := string(event.Payload)
	if payload == "" {
		payload = "null"
	}

	query := `
		INSERT INTO events (id, game_id, seq, timestamp, event_type, turn, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.GameID, event.Seq, event.Timestamp.UTC(), event.EventType, event.Turn, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const eventColumns = `id, game_id, seq, timestamp, event_type, turn, payload`

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]GameEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []GameEvent
	for rows.Next() {
		var e GameEvent
		var payloadStr string
		err := rows.Scan(&e.ID, &e.GameID, &e.Seq, &e.Timestamp, &e.EventType, &e.Turn, &payloadStr)
		if err != nil {
			return nil, err
		}
		e.Payload = []byte(payloadStr)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE game_id = ? ORDER BY seq ASC`
	return r.getMany(ctx, query, gameID)
}

func (r *SQLiteEventRepository) GetByTurn(ctx context.Context, gameID string, turn int) ([]GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE game_id = ? AND turn = ? ORDER BY seq ASC`
	return r.getMany(ctx, query, gameID, turn)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, gameID string, eventType string) ([]GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE game_id = ? AND event_type = ? ORDER BY seq ASC`
	return r.getMany(ctx, query, gameID, eventType)
}

// ---------------------------------------------------------
// SQLiteGameRepository
// ---------------------------------------------------------

type SQLiteGameRepository struct {
	db *sql.DB
}

func NewSQLiteGameRepository(db *sql.DB) *SQLiteGameRepository {
	return &SQLiteGameRepository{db: db}
}

func (r *SQLiteGameRepository) Upsert(ctx context.Context, s GameSummary) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	query := `
		INSERT INTO games (game_id, status, turn, cured, panic_level, infection_rate, seed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			status=excluded.status,
			turn=excluded.turn,
			cured=excluded.cured,
			panic_level=excluded.panic_level,
			infection_rate=excluded.infection_rate,
			updated_at=excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		s.GameID, string(s.Status), s.Turn, s.Cured, s.PanicLevel, s.InfectionRate, s.Seed, s.CreatedAt.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert game %s: %w", s.GameID, err)
	}
	return nil
}

const gameColumns = `game_id, status, turn, cured, panic_level, infection_rate, seed, created_at, updated_at`

func scanGame(row interface{ Scan(...interface{}) error }) (GameSummary, error) {
	var g GameSummary
	var status string
	err := row.Scan(&g.GameID, &status, &g.Turn, &g.Cured, &g.PanicLevel, &g.InfectionRate, &g.Seed, &g.CreatedAt, &g.UpdatedAt)
	g.Status = GameStatus(status)
	return g, err
}

func (r *SQLiteGameRepository) Get(ctx context.Context, gameID string) (*GameSummary, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE game_id = ?`
	g, err := scanGame(r.db.QueryRowContext(ctx, query, gameID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
		}
		return nil, err
	}
	return &g, nil
}

func (r *SQLiteGameRepository) ListRecent(ctx context.Context, limit int) ([]GameSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + gameColumns + ` FROM games ORDER BY updated_at DESC, game_id ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []GameSummary
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (r *SQLiteGameRepository) Stats(ctx context.Context) (GameStats, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(AVG(turn), 0)
		FROM games
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return GameStats{}, err
	}
	defer rows.Close()

	var stats GameStats
	for rows.Next() {
		var status string
		var count int
		var avgTurns float64
		if err := rows.Scan(&status, &count, &avgTurns); err != nil {
			return GameStats{}, err
		}
		stats.Played += count
		switch GameStatus(status) {
		case StatusActive:
			stats.Active = count
		case StatusWon:
			stats.Won = count
			stats.AvgTurnsWon = avgTurns
		case StatusLost:
			stats.Lost = count
			stats.AvgTurnsLost = avgTurns
		}
	}
	return stats, rows.Err()
}
