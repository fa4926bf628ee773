// Package session keeps live games in memory and serialises access to them.
//
// Each game is owned by one engine guarded by its own mutex. Games leave
// memory when the cache evicts them; with storage configured they are
// flushed first and restored from their event log on the next access.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/domain/rules"
	"github.com/epidemicexpress/server/internal/engine"
	"github.com/epidemicexpress/server/internal/events"
	"github.com/epidemicexpress/server/internal/infra/cache"
	"github.com/epidemicexpress/server/internal/infra/storage"
	"github.com/epidemicexpress/server/internal/platform/logger"
	"github.com/epidemicexpress/server/internal/platform/metrics"
	"github.com/epidemicexpress/server/internal/platform/random"
)

var (
	// ErrGameNotFound is returned for a game id that is neither live nor stored.
	ErrGameNotFound = errors.New("game not found")
	// ErrClosed is returned once the manager has been closed.
	ErrClosed = errors.New("session manager closed")
)

// Publisher receives every snapshot of every live game.
type Publisher interface {
	Publish(gameID string, state engine.GameState)
}

// Options configures a Manager. Events and Games are optional; without them
// games only live in memory.
type Options struct {
	Rules       rules.Ruleset
	MaxSessions int
	TTL         time.Duration
	Seeds       *random.Source
	Events      storage.EventRepository
	Games       storage.GameRepository
	Publisher   Publisher
	Metrics     *metrics.Collector
	Logger      *logger.Logger
}

type session struct {
	id        string
	seed      int64
	createdAt time.Time

	mu     sync.Mutex
	engine *engine.Engine
	log    *events.EventLog
	last   engine.GameState
	closed bool
	// retired is closed once the session's events and summary are stored.
	retired chan struct{}
}

func newSession(id string, seed int64, createdAt time.Time, log *events.EventLog) *session {
	return &session{id: id, seed: seed, createdAt: createdAt, log: log, retired: make(chan struct{})}
}

// Manager owns the live games.
type Manager struct {
	rules     rules.Ruleset
	seeds     *random.Source
	events    storage.EventRepository
	games     storage.GameRepository
	publisher Publisher
	metrics   *metrics.Collector
	logger    *logger.Logger

	// mu orders cache writes against restores.
	mu       sync.Mutex
	cache    *cache.Cache[*session]
	retiring sync.WaitGroup
	closing  atomic.Bool

	pendingMu sync.Mutex
	pending   map[string]*session
}

// NewManager creates a manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		rules:     opts.Rules,
		seeds:     opts.Seeds,
		events:    opts.Events,
		games:     opts.Games,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		pending:   make(map[string]*session),
	}
	if m.seeds == nil {
		m.seeds = random.NewSource(0)
	}
	if m.metrics == nil {
		m.metrics = metrics.Get()
	}
	if m.logger == nil {
		m.logger = logger.Discard()
	}
	size := opts.MaxSessions
	if size <= 0 {
		size = 1024
	}
	m.cache = cache.New[*session](size, opts.TTL, m.onEvict)
	return m
}

// Create starts a new game and its first turn.
func (m *Manager) Create(ctx context.Context) (string, engine.GameState, error) {
	if m.closing.Load() {
		return "", engine.GameState{}, ErrClosed
	}
	seed, err := m.seeds.Seed()
	if err != nil {
		return "", engine.GameState{}, err
	}

	id := uuid.NewString()
	log := events.NewEventLog(id, m.persister())
	s := newSession(id, seed, time.Now().UTC(), log)
	s.engine = engine.New(m.rules, dice.NewRandRoller(seed), engine.WithEventLog(log), engine.WithLogger(m.logger))
	m.attach(s)
	m.metrics.RecordGameCreated()

	s.mu.Lock()
	s.engine.ResetGame()
	state := s.engine.State()
	if err := m.saveSummary(ctx, s); err != nil {
		m.logger.Warnf("save summary of new game %s: %v", id, err)
	}
	s.mu.Unlock()

	m.mu.Lock()
	m.cache.Set(id, s)
	m.mu.Unlock()

	m.logger.Infof("game %s created with seed %d", id, seed)
	return id, state, nil
}

// Do runs fn against the engine of a game while holding the game's lock, and
// returns the state fn left behind.
func (m *Manager) Do(ctx context.Context, gameID string, fn func(*engine.Engine) error) (engine.GameState, error) {
	s, err := m.acquire(ctx, gameID)
	if err != nil {
		return engine.GameState{}, err
	}

	start := time.Now()
	before := s.engine.State()
	err = fn(s.engine)
	m.metrics.RecordAction(time.Since(start))
	after := s.engine.State()

	if after.Turn != before.Turn || after.Terminal() != before.Terminal() {
		if serr := m.saveSummary(ctx, s); serr != nil {
			m.logger.Warnf("save summary of game %s: %v", gameID, serr)
		}
	}
	s.mu.Unlock()

	m.touch(s)
	return after, err
}

// Apply runs a named engine action on a game.
func (m *Manager) Apply(ctx context.Context, gameID, action string, index int) (engine.GameState, error) {
	return m.Do(ctx, gameID, func(e *engine.Engine) error {
		return e.Dispatch(action, index)
	})
}

// State returns the current state of a game.
func (m *Manager) State(ctx context.Context, gameID string) (engine.GameState, error) {
	s, err := m.acquire(ctx, gameID)
	if err != nil {
		return engine.GameState{}, err
	}
	defer s.mu.Unlock()
	return s.engine.State(), nil
}

// History returns the event log of a game, live or stored.
func (m *Manager) History(ctx context.Context, gameID string) ([]events.GameEvent, error) {
	if s, ok := m.cache.Get(gameID); ok {
		return s.log.Replay(), nil
	}
	if m.events == nil {
		return nil, ErrGameNotFound
	}
	history, err := storage.LoadHistory(ctx, m.events, gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	return history, err
}

// Live returns the ids of the games held in memory, oldest first.
func (m *Manager) Live() []string {
	return m.cache.GameIDs()
}

// Len returns the number of games held in memory.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Close takes every game out of memory, flushing its events and summary.
func (m *Manager) Close() {
	m.closing.Store(true)
	m.mu.Lock()
	m.cache.Purge()
	m.mu.Unlock()
	m.retiring.Wait()
}

// acquire returns the session of a game with its lock held.
func (m *Manager) acquire(ctx context.Context, gameID string) (*session, error) {
	for {
		s, err := m.lookup(ctx, gameID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if !s.closed {
			return s, nil
		}
		// Retired between lookup and lock; drop the stale entry and restore.
		s.mu.Unlock()
		m.drop(s)
	}
}

func (m *Manager) lookup(ctx context.Context, gameID string) (*session, error) {
	if s, ok := m.cache.Get(gameID); ok {
		return s, nil
	}
	if m.closing.Load() {
		return nil, ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.cache.Get(gameID); ok {
		return s, nil
	}
	return m.restore(ctx, gameID)
}

// restore rebuilds a stored game. m.mu must be held.
func (m *Manager) restore(ctx context.Context, gameID string) (*session, error) {
	if m.events == nil || m.games == nil {
		return nil, ErrGameNotFound
	}
	if err := m.awaitRetired(ctx, gameID); err != nil {
		return nil, err
	}
	summary, err := m.games.Get(ctx, gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	history, err := storage.LoadHistory(ctx, m.events, gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}

	log := events.RestoreEventLog(gameID, history, m.persister())
	e, err := engine.Restore(history, dice.NewRandRoller(summary.Seed), engine.WithEventLog(log), engine.WithLogger(m.logger))
	if err != nil {
		return nil, fmt.Errorf("restore game %s: %w", gameID, err)
	}

	s := newSession(gameID, summary.Seed, summary.CreatedAt, log)
	s.engine = e
	s.last = e.State()
	m.attach(s)
	m.cache.Set(gameID, s)
	m.metrics.RecordSessionRestored()
	m.logger.Infof("game %s restored at turn %d from %d events", gameID, s.last.Turn, len(history))
	return s, nil
}

func (m *Manager) touch(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.cache.Get(s.id); ok && cur == s {
		m.cache.Touch(s.id)
	}
}

func (m *Manager) drop(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.cache.Get(s.id); ok && cur == s {
		m.cache.Delete(s.id)
	}
}

// awaitRetired waits until an evicted session of the game has been stored.
func (m *Manager) awaitRetired(ctx context.Context, gameID string) error {
	m.pendingMu.Lock()
	s := m.pending[gameID]
	m.pendingMu.Unlock()
	if s == nil {
		return nil
	}
	select {
	case <-s.retired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onEvict runs under the cache lock, so retiring happens elsewhere.
func (m *Manager) onEvict(gameID string, s *session) {
	evicted := !m.closing.Load()
	m.pendingMu.Lock()
	m.pending[gameID] = s
	m.pendingMu.Unlock()
	m.retiring.Add(1)
	go func() {
		defer m.retiring.Done()
		m.retire(s, evicted)
	}()
}

func (m *Manager) retire(s *session, evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.log.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.saveSummary(ctx, s); err != nil {
		m.logger.Errorf("save summary of game %s: %v", s.id, err)
	}
	m.metrics.RecordSessionClosed(evicted)
	m.logger.Infof("game %s left memory at turn %d", s.id, s.last.Turn)

	close(s.retired)
	m.pendingMu.Lock()
	if m.pending[s.id] == s {
		delete(m.pending, s.id)
	}
	m.pendingMu.Unlock()
}

// attach forwards every snapshot of the session's engine to the publisher
// and turns state changes into metrics.
func (m *Manager) attach(s *session) {
	s.engine.Subscribe(func(st engine.GameState) {
		if st.Turn != s.last.Turn {
			m.metrics.RecordTurn()
		}
		for i := s.last.CuredCount(); i < st.CuredCount(); i++ {
			m.metrics.RecordCure()
		}
		if st.Terminal() && !s.last.Terminal() {
			m.metrics.RecordGameEnded(st.HasWon)
		}
		s.last = st
		if m.publisher != nil {
			m.publisher.Publish(s.id, st)
		}
	})
}

func (m *Manager) persister() events.EventPersister {
	if m.events == nil {
		return nil
	}
	return storage.NewEventSink(m.events, m.logger, m.metrics.RecordEventWrite)
}

func (m *Manager) saveSummary(ctx context.Context, s *session) error {
	if m.games == nil {
		return nil
	}
	st := s.engine.State()
	return m.games.Upsert(ctx, storage.GameSummary{
		GameID:        s.id,
		Status:        statusOf(st),
		Turn:          st.Turn,
		Cured:         st.CuredCount(),
		PanicLevel:    st.PanicLevel,
		InfectionRate: st.InfectionRate,
		Seed:          s.seed,
		CreatedAt:     s.createdAt,
	})
}

func statusOf(st engine.GameState) storage.GameStatus {
	switch {
	case st.HasWon:
		return storage.StatusWon
	case st.HasLost:
		return storage.StatusLost
	default:
		return storage.StatusActive
	}
}
