// Package metrics provides observability for the game server.
// Counters are lock-free; the JSON and Prometheus handlers read a consistent-enough view.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Collector gathers performance and gameplay metrics.
type Collector struct {
	// Action metrics
	ActionCount      int64
	ActionLatencySum int64 // nanoseconds
	ActionLatencyMax int64
	lastAction       atomic.Int64 // unix nanoseconds

	// Game metrics
	GamesCreated     int64
	GamesWon         int64
	GamesLost        int64
	TurnsStarted     int64
	DiseasesCured    int64
	SessionsActive   int64
	SessionsEvicted  int64
	SessionsRestored int64

	// Event metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
}

// Global collector instance
var collector = New()

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// New returns an empty collector. Tests use their own instead of the global one.
func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// RecordAction records one player action applied to a game.
func (c *Collector) RecordAction(latency time.Duration) {
	atomic.AddInt64(&c.ActionCount, 1)
	atomic.AddInt64(&c.ActionLatencySum, int64(latency))
	storeMax(&c.ActionLatencyMax, int64(latency))
	c.lastAction.Store(time.Now().UnixNano())
}

// RecordGameCreated records a new game and its session.
func (c *Collector) RecordGameCreated() {
	atomic.AddInt64(&c.GamesCreated, 1)
	atomic.AddInt64(&c.SessionsActive, 1)
}

// RecordGameEnded records a terminal outcome.
func (c *Collector) RecordGameEnded(won bool) {
	if won {
		atomic.AddInt64(&c.GamesWon, 1)
	} else {
		atomic.AddInt64(&c.GamesLost, 1)
	}
}

// RecordTurn records a turn started.
func (c *Collector) RecordTurn() {
	atomic.AddInt64(&c.TurnsStarted, 1)
}

// RecordCure records a disease cured.
func (c *Collector) RecordCure() {
	atomic.AddInt64(&c.DiseasesCured, 1)
}

// RecordSessionRestored records a stored game brought back into memory.
func (c *Collector) RecordSessionRestored() {
	atomic.AddInt64(&c.SessionsActive, 1)
	atomic.AddInt64(&c.SessionsRestored, 1)
}

// RecordSessionClosed records a session leaving memory.
func (c *Collector) RecordSessionClosed(evicted bool) {
	atomic.AddInt64(&c.SessionsActive, -1)
	if evicted {
		atomic.AddInt64(&c.SessionsEvicted, 1)
	}
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))
	storeMax(&c.EventWriteLatMax, int64(latency))

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	actions := atomic.LoadInt64(&c.ActionCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)

	// Calculate averages
	var actionAvg, eventAvg float64
	if actions > 0 {
		actionAvg = float64(atomic.LoadInt64(&c.ActionLatencySum)) / float64(actions) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}
	lastAction := ""
	if ns := c.lastAction.Load(); ns > 0 {
		lastAction = time.Unix(0, ns).Format(time.RFC3339)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"actions": map[string]interface{}{
			"count":          actions,
			"avg_latency_ms": actionAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.ActionLatencyMax)) / 1e6,
			"last_action":    lastAction,
		},

		"games": map[string]interface{}{
			"created":           atomic.LoadInt64(&c.GamesCreated),
			"won":               atomic.LoadInt64(&c.GamesWon),
			"lost":              atomic.LoadInt64(&c.GamesLost),
			"turns":             atomic.LoadInt64(&c.TurnsStarted),
			"diseases_cured":    atomic.LoadInt64(&c.DiseasesCured),
			"sessions_active":   atomic.LoadInt64(&c.SessionsActive),
			"sessions_evicted":  atomic.LoadInt64(&c.SessionsEvicted),
			"sessions_restored": atomic.LoadInt64(&c.SessionsRestored),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}
		gauge := func(name, help, format string, v interface{}) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s gauge\n", name)
			fmt.Fprintf(w, "%s "+format+"\n\n", name, v)
		}

		// Action metrics
		counter("epidemic_actions_total", "Total player actions applied", atomic.LoadInt64(&c.ActionCount))
		gauge("epidemic_action_latency_max_ms", "Maximum action latency", "%.2f", float64(atomic.LoadInt64(&c.ActionLatencyMax))/1e6)

		// Game metrics
		counter("epidemic_games_created_total", "Total games created", atomic.LoadInt64(&c.GamesCreated))
		fmt.Fprintf(w, "# HELP epidemic_games_ended_total Total games finished by outcome\n")
		fmt.Fprintf(w, "# TYPE epidemic_games_ended_total counter\n")
		fmt.Fprintf(w, "epidemic_games_ended_total{outcome=\"won\"} %d\n", atomic.LoadInt64(&c.GamesWon))
		fmt.Fprintf(w, "epidemic_games_ended_total{outcome=\"lost\"} %d\n\n", atomic.LoadInt64(&c.GamesLost))
		counter("epidemic_turns_total", "Total turns started", atomic.LoadInt64(&c.TurnsStarted))
		counter("epidemic_diseases_cured_total", "Total diseases cured", atomic.LoadInt64(&c.DiseasesCured))
		gauge("epidemic_sessions_active", "Games held in memory", "%d", atomic.LoadInt64(&c.SessionsActive))

		// Event metrics
		counter("epidemic_events_written", "Total events written", atomic.LoadInt64(&c.EventsWritten))
		counter("epidemic_event_write_errors", "Total event write errors", atomic.LoadInt64(&c.EventWriteErrors))

		// WebSocket metrics
		gauge("epidemic_ws_connections", "Active WebSocket connections", "%d", atomic.LoadInt64(&c.WSConnectionsActive))
		fmt.Fprintf(w, "# HELP epidemic_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE epidemic_ws_messages_total counter\n")
		fmt.Fprintf(w, "epidemic_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "epidemic_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
