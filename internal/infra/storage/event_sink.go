package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/epidemicexpress/server/internal/events"
	"github.com/epidemicexpress/server/internal/platform/logger"
)

// EventSink adapts an EventRepository to events.EventPersister so an
// EventLog can write through to the database.
type EventSink struct {
	repo    EventRepository
	log     *logger.Logger
	timeout time.Duration
	onWrite func(latency time.Duration, err error)
}

// NewEventSink creates a sink. onWrite, when set, is told the latency and
// outcome of every write.
func NewEventSink(repo EventRepository, log *logger.Logger, onWrite func(latency time.Duration, err error)) *EventSink {
	return &EventSink{repo: repo, log: log, timeout: 5 * time.Second, onWrite: onWrite}
}

// Append implements events.EventPersister.
func (s *EventSink) Append(event events.GameEvent) error {
	start := time.Now()
	record, err := ToRecord(event)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err = s.repo.Append(ctx, record)
		cancel()
	}
	if err != nil {
		s.log.Errorf("persist event %s #%d of game %s: %v", event.Type, event.Seq, event.GameID, err)
	}
	if s.onWrite != nil {
		s.onWrite(time.Since(start), err)
	}
	return err
}

// ToRecord converts a domain event into its stored form.
func ToRecord(event events.GameEvent) (GameEvent, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return GameEvent{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return GameEvent{
		ID:        event.ID,
		GameID:    event.GameID,
		Seq:       event.Seq,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		Turn:      event.Turn,
		Payload:   payload,
	}, nil
}

// ToDomain restores a stored event with its typed payload.
func ToDomain(record GameEvent) (events.GameEvent, error) {
	t := events.EventType(record.EventType)
	payload, err := events.DecodePayload(t, record.Payload)
	if err != nil {
		return events.GameEvent{}, fmt.Errorf("event %s: %w", record.ID, err)
	}
	return events.GameEvent{
		ID:        record.ID,
		GameID:    record.GameID,
		Seq:       record.Seq,
		Timestamp: record.Timestamp,
		Type:      t,
		Turn:      record.Turn,
		Payload:   payload,
	}, nil
}

// LoadHistory reads a game's full event history in log order.
func LoadHistory(ctx context.Context, repo EventRepository, gameID string) ([]events.GameEvent, error) {
	records, err := repo.GetByGameID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events of game %s: %w", gameID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	history := make([]events.GameEvent, 0, len(records))
	for _, rec := range records {
		ev, err := ToDomain(rec)
		if err != nil {
			return nil, err
		}
		history = append(history, ev)
	}
	return history, nil
}
