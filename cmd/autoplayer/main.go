// Package main - autoplayer
// Load generator: many concurrent WebSocket clients, each playing games to
// the end with the greedy strategy and starting a new one when a game ends.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/epidemicexpress/server/internal/engine"
	"github.com/epidemicexpress/server/internal/events"
	"github.com/epidemicexpress/server/internal/platform/config"
	"github.com/epidemicexpress/server/internal/platform/logger"
	"github.com/epidemicexpress/server/internal/sim"
)

// Config for the autoplayer
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Output         string
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	Errors           int64
	GamesWon         int64
	GamesLost        int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *Stats) recordLatency(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

// serverMessage is the subset of the server's messages the autoplayer reads.
type serverMessage struct {
	Type   string            `json:"type"`
	GameID string            `json:"game_id"`
	State  *engine.GameState `json:"state"`
	Error  string            `json:"error"`
}

type clientAction struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// wireActions maps the engine actions the greedy strategy uses onto the
// actions the WebSocket API accepts.
var wireActions = map[string]string{
	events.ActionApplyInfection:   "CONFIRM_INFECTION",
	events.ActionToggleSaveDie:    "TOGGLE_SAVE",
	events.ActionConfirmTreatment: "CONFIRM_TREATMENT",
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent clients")
	interval := flag.Duration("interval", 100*time.Millisecond, "Minimum time between actions per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	output := flag.String("out", "", "Write the results as JSON to this file")
	flag.Parse()

	cfg := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		Output:         *output,
	}
	if cfg.NumClients <= 0 {
		config.Exitf("autoplayer: -clients must be positive")
	}
	if _, err := url.Parse(cfg.ServerURL); err != nil {
		config.Exitf("autoplayer: bad -url: %v", err)
	}

	log := logger.NewLogger()
	log.Infof("Autoplayer: %d clients against %s for %v", cfg.NumClients, cfg.ServerURL, cfg.TestDuration)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	start := time.Now()
	stats := run(ctx, cfg, log)
	if err := report(stats, cfg, time.Since(start)); err != nil {
		config.Exitf("autoplayer: %v", err)
	}
}

func run(ctx context.Context, cfg Config, log *logger.Logger) *Stats {
	stats := &Stats{latencies: make([]time.Duration, 0, 10000)}
	var wg sync.WaitGroup

	for i := 0; i < cfg.NumClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := play(ctx, id, cfg, stats); err != nil && ctx.Err() == nil {
				log.Warnf("client %d: %v", id, err)
				atomic.AddInt64(&stats.Errors, 1)
			}
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			return stats
		case <-ticker.C:
			log.Infof("Progress: sent=%d recv=%d won=%d lost=%d errors=%d",
				atomic.LoadInt64(&stats.MessagesSent), atomic.LoadInt64(&stats.MessagesReceived),
				atomic.LoadInt64(&stats.GamesWon), atomic.LoadInt64(&stats.GamesLost),
				atomic.LoadInt64(&stats.Errors))
		}
	}
}

// play connects one client and answers every state it receives with the
// strategy's next action, until ctx ends.
func play(ctx context.Context, id int, cfg Config, stats *Stats) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	strategy := sim.Greedy{}
	var sentAt, last time.Time
	// next is resent after an ERROR: a refused action leaves the game as it was.
	next := clientAction{Type: "NEW_GAME"}
	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		atomic.AddInt64(&stats.MessagesReceived, 1)

		switch msg.Type {
		case "ERROR":
			atomic.AddInt64(&stats.Errors, 1)
		case "STATE":
			if !sentAt.IsZero() {
				stats.recordLatency(time.Since(sentAt))
			}
			var err error
			if next, err = choose(strategy, msg, stats); err != nil {
				return err
			}
		default:
			continue
		}

		if wait := cfg.ActionInterval - time.Since(last); wait > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
		}
		last = time.Now()
		sentAt = last
		if err := send(conn, next, stats); err != nil {
			return err
		}
	}
}

// choose picks the reply to a state: the strategy's move, or a new game once
// the game is over.
func choose(s sim.Strategy, msg serverMessage, stats *Stats) (clientAction, error) {
	st := msg.State
	if st.Terminal() {
		if st.HasWon {
			atomic.AddInt64(&stats.GamesWon, 1)
		} else {
			atomic.AddInt64(&stats.GamesLost, 1)
		}
		return clientAction{Type: "NEW_GAME"}, nil
	}
	action, index := s.Next(*st)
	wire, ok := wireActions[action]
	if !ok {
		return clientAction{}, fmt.Errorf("game %s: no client action for %s", msg.GameID, action)
	}
	return clientAction{Type: wire, Index: index}, nil
}

func send(conn *websocket.Conn, action clientAction, stats *Stats) error {
	if err := conn.WriteJSON(action); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	atomic.AddInt64(&stats.MessagesSent, 1)
	return nil
}

func report(stats *Stats, cfg Config, elapsed time.Duration) error {
	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)
	won := atomic.LoadInt64(&stats.GamesWon)
	lost := atomic.LoadInt64(&stats.GamesLost)
	throughput := float64(sent) / elapsed.Seconds()

	fmt.Println("=========================================")
	fmt.Println("AUTOPLAYER RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Messages Sent:     %d\n", sent)
	fmt.Printf("Messages Received: %d\n", recv)
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Games:             %d won, %d lost\n", won, lost)
	fmt.Printf("Throughput:        %.2f actions/sec\n", throughput)

	results := map[string]interface{}{
		"messages_sent":      sent,
		"messages_received":  recv,
		"errors":             errs,
		"games_won":          won,
		"games_lost":         lost,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"clients":  cfg.NumClients,
			"interval": cfg.ActionInterval.String(),
			"duration": cfg.TestDuration.String(),
		},
	}

	stats.mu.Lock()
	lat := append([]time.Duration(nil), stats.latencies...)
	stats.mu.Unlock()
	if len(lat) > 0 {
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
		p := func(q float64) time.Duration { return lat[int(q*float64(len(lat)-1))] }
		fmt.Printf("\nRound trip:\n  Min: %v\n  P50: %v\n  P99: %v\n  Max: %v\n", lat[0], p(0.5), p(0.99), lat[len(lat)-1])
		results["latency_p50_ms"] = float64(p(0.5)) / float64(time.Millisecond)
		results["latency_p99_ms"] = float64(p(0.99)) / float64(time.Millisecond)
	}

	if cfg.Output == "" {
		return nil
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Output, data, 0644); err != nil {
		return err
	}
	fmt.Printf("\nResults saved to %s\n", cfg.Output)
	return nil
}
