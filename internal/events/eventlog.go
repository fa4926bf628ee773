// Package events provides the Event Sourcing system for the game.
// Every game owns an append-only log of the actions taken and the dice drawn,
// which is enough to rebuild the game exactly.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeGameCreated      EventType = "GAME_CREATED"
	EventTypePlayerAction     EventType = "PLAYER_ACTION"
	EventTypeTurnStarted      EventType = "TURN_STARTED"
	EventTypeInfectionApplied EventType = "INFECTION_APPLIED"
	EventTypeTreatmentRolled  EventType = "TREATMENT_ROLLED"
	EventTypeDieToggled       EventType = "DIE_TOGGLED"
	EventTypeTreatmentApplied EventType = "TREATMENT_APPLIED"
	EventTypeDiseaseCured     EventType = "DISEASE_CURED"
	EventTypeGameWon          EventType = "GAME_WON"
	EventTypeGameLost         EventType = "GAME_LOST"
)

// GameEvent represents an immutable record of something that happened in a game.
type GameEvent struct {
	ID        string      `json:"id"`
	GameID    string      `json:"game_id"`
	Seq       int         `json:"seq"` // 1-based position in the game's log
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	Turn      int         `json:"turn"`
	Payload   interface{} `json:"payload"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of one game's events.
type EventLog struct {
	mu        sync.RWMutex
	gameID    string
	events    []GameEvent
	persister EventPersister
	pending   sync.WaitGroup
	failures  atomic.Int64
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(gameID string, persister EventPersister) *EventLog {
	return &EventLog{
		gameID:    gameID,
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// RestoreEventLog rebuilds the log of a game from its stored history. Only
// events appended afterwards are written through to the persister.
func RestoreEventLog(gameID string, history []GameEvent, persister EventPersister) *EventLog {
	el := NewEventLog(gameID, persister)
	el.events = append(el.events, history...)
	return el
}

// GameID returns the game this log belongs to.
func (el *EventLog) GameID() string {
	return el.gameID
}

// Append adds a new event to the log and returns it as stored. Events are
// immutable once appended.
func (el *EventLog) Append(event GameEvent) GameEvent {
	el.mu.Lock()
	defer el.mu.Unlock()

	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.GameID = el.gameID
	event.Seq = len(el.events) + 1
	el.events = append(el.events, event)

	if el.persister != nil {
		// Write through to persistent storage; Seq keeps the order.
		el.pending.Add(1)
		go func(e GameEvent) {
			defer el.pending.Done()
			// The persister logs its own errors; the log only keeps count.
			if err := el.persister.Append(e); err != nil {
				el.failures.Add(1)
			}
		}(event)
	}
	return event
}

// Flush blocks until every write-through started so far has finished.
func (el *EventLog) Flush() {
	el.pending.Wait()
}

// Failures returns how many write-throughs the persister has rejected. The
// in-memory log still holds those events.
func (el *EventLog) Failures() int64 {
	return el.failures.Load()
}

// Len returns the number of events in the log.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// ByType returns all events of a specific type.
func (el *EventLog) ByType(t EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the full history of events for state reconstruction.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]GameEvent, len(el.events))
	copy(out, el.events)
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
