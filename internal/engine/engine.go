package engine

import (
	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/domain/rules"
	"github.com/epidemicexpress/server/internal/events"
	"github.com/epidemicexpress/server/internal/platform/logger"
)

// Engine is the turn engine of one game. It is not safe for concurrent use;
// callers that share an engine across goroutines must serialise access.
type Engine struct {
	rules  rules.Ruleset
	roller dice.Roller
	state  GameState

	subscribers []subscriber
	nextSubID   int

	eventLog *events.EventLog
	logger   *logger.Logger
}

type subscriber struct {
	id int
	fn func(GameState)
}

// Option configures an Engine.
type Option func(*Engine)

// WithEventLog records every action and outcome in el.
func WithEventLog(el *events.EventLog) Option {
	return func(e *Engine) {
		e.eventLog = el
	}
}

// WithLogger sets the logger used for game milestones.
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) {
		e.logger = log
	}
}

// New builds an engine holding a fresh game. No turn is started; call
// ResetGame or StartTurn to begin play.
func New(rs rules.Ruleset, roller dice.Roller, opts ...Option) *Engine {
	e := &Engine{
		rules:  rs,
		roller: roller,
		state:  initialState(rs),
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.record(events.EventTypeGameCreated, events.GameCreatedPayload{Ruleset: rs})
	return e
}

// Rules returns the rule set the engine plays under.
func (e *Engine) Rules() rules.Ruleset {
	return e.rules
}

// State returns an immutable copy of the current game state.
func (e *Engine) State() GameState {
	return e.state.Clone()
}

// Subscribe registers fn to receive a snapshot after every mutating
// operation. Callbacks run synchronously, in subscription order, and must
// not call back into the engine. The returned function unsubscribes.
func (e *Engine) Subscribe(fn func(GameState)) (unsubscribe func()) {
	e.nextSubID++
	id := e.nextSubID
	e.subscribers = append(e.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range e.subscribers {
			if s.id == id {
				e.subscribers = append(e.subscribers[:i:i], e.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) notify() {
	subs := append([]subscriber(nil), e.subscribers...)
	for _, s := range subs {
		s.fn(e.state.Clone())
	}
}

func (e *Engine) record(t events.EventType, payload interface{}) {
	if e.eventLog == nil {
		return
	}
	e.eventLog.Append(events.GameEvent{
		Type:    t,
		Turn:    e.state.Turn,
		Payload: payload,
	})
}

func (e *Engine) recordAction(action string, index int) {
	e.record(events.EventTypePlayerAction, events.PlayerActionPayload{Action: action, Index: index})
}

func (e *Engine) gameID() string {
	if e.eventLog == nil {
		return "-"
	}
	return e.eventLog.GameID()
}
