// Package optimization provides concurrency tuning for load profiles.
// A profile sizes channel buffers, the database pool and client rate limits.
package optimization

import (
	"fmt"
	"runtime"
	"sort"
	"time"
)

// Config holds tuned parameters for one load profile.
type Config struct {
	Name string

	// Channel buffer sizes
	BroadcastChannelBuffer int
	ClientSendBuffer       int

	// Connection pools
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Simulation workers
	SimWorkers int

	// Rate limiting
	MaxMessagesPerSecond int
	MaxClientsPerGame    int
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		Name: "default",

		// Channel buffers - larger = more memory, less blocking
		BroadcastChannelBuffer: 256, // Hub fan-out
		ClientSendBuffer:       64,  // Per WebSocket

		// SQLite serialises writers; a few connections cover readers.
		DBMaxOpenConns:    4,
		DBMaxIdleConns:    2,
		DBConnMaxLifetime: time.Hour,

		SimWorkers: numCPU,

		// Rate limits
		MaxMessagesPerSecond: 20, // Per client
		MaxClientsPerGame:    16, // Spectators included
	}
}

// StressTestConfig returns aggressive settings for stress testing.
func StressTestConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		Name: "stress",

		BroadcastChannelBuffer: 1024,
		ClientSendBuffer:       256,

		DBMaxOpenConns:    8,
		DBMaxIdleConns:    4,
		DBConnMaxLifetime: time.Hour,

		SimWorkers: numCPU * 2,

		MaxMessagesPerSecond: 500,
		MaxClientsPerGame:    64,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		Name: "low",

		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,

		DBMaxOpenConns:    2,
		DBMaxIdleConns:    1,
		DBConnMaxLifetime: 10 * time.Minute,

		SimWorkers: 2,

		MaxMessagesPerSecond: 10,
		MaxClientsPerGame:    4,
	}
}

var profiles = map[string]func() *Config{
	"default": DefaultConfig,
	"stress":  StressTestConfig,
	"low":     LowResourceConfig,
}

// ByName returns the named profile.
func ByName(name string) (*Config, error) {
	build, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (want one of %v)", name, Names())
	}
	return build(), nil
}

// Names lists the known profiles.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Recommendations provides suggestions based on observed metrics.
type Recommendations struct {
	IncreaseBroadcastBuffer bool
	IncreaseDBConnections   bool
	Notes                   []string
}

// Analyze examines a metrics snapshot and returns tuning recommendations.
func Analyze(metrics map[string]interface{}) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	// Check action latency
	if actions, ok := metrics["actions"].(map[string]interface{}); ok {
		if maxLat, ok := actions["max_latency_ms"].(float64); ok && maxLat > 100 {
			rec.IncreaseDBConnections = true
			rec.Notes = append(rec.Notes, "Action latency exceeds 100ms - check event persistence")
		}
	}

	// Check event write latency
	if events, ok := metrics["events"].(map[string]interface{}); ok {
		if maxLat, ok := events["max_write_lat_ms"].(float64); ok && maxLat > 50 {
			rec.IncreaseDBConnections = true
			rec.Notes = append(rec.Notes, "Event write latency exceeds 50ms - increase DB connections")
		}
		if errors, ok := events["errors"].(int64); ok && errors > 0 {
			rec.IncreaseDBConnections = true
			rec.Notes = append(rec.Notes, "Event write errors detected - check DB connection pool")
		}
	}

	// Check WebSocket backpressure
	if ws, ok := metrics["websocket"].(map[string]interface{}); ok {
		if errors, ok := ws["errors"].(int64); ok && errors > 0 {
			rec.IncreaseBroadcastBuffer = true
			rec.Notes = append(rec.Notes, "WebSocket errors detected - increase client send buffer")
		}
	}

	return rec
}

// ApplyRecommendations returns a copy of config adjusted by rec.
func ApplyRecommendations(config *Config, rec *Recommendations) *Config {
	out := *config
	if rec.IncreaseBroadcastBuffer {
		out.BroadcastChannelBuffer *= 2
		out.ClientSendBuffer *= 2
	}
	if rec.IncreaseDBConnections {
		out.DBMaxOpenConns = int(float64(out.DBMaxOpenConns) * 1.5)
		out.DBMaxIdleConns = int(float64(out.DBMaxIdleConns) * 1.5)
	}
	return &out
}
