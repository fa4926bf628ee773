package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/epidemicexpress/server/internal/domain/rules"
	"github.com/epidemicexpress/server/internal/infra/storage"
	"github.com/epidemicexpress/server/internal/platform/logger"
	"github.com/epidemicexpress/server/internal/platform/metrics"
	"github.com/epidemicexpress/server/internal/platform/optimization"
	"github.com/epidemicexpress/server/internal/platform/random"
	"github.com/epidemicexpress/server/internal/session"
)

type testServer struct {
	*httptest.Server
	hub     *Hub
	games   *session.Manager
	metrics *metrics.Collector
}

// newTestServer starts the full HTTP surface over an in-memory manager.
// withStore adds a temporary SQLite database.
func newTestServer(t *testing.T, tuning optimization.Config, withStore bool) *testServer {
	t.Helper()
	mc := metrics.New()
	log := logger.Discard()

	opts := session.Options{Rules: rules.Default(), Seeds: random.NewSource(3), Metrics: mc, Logger: log}
	var summaries storage.GameRepository
	if withStore {
		db, err := storage.InitSQLite(filepath.Join(t.TempDir(), "epidemic.db"), storage.PoolConfig{MaxOpenConns: 4})
		if err != nil {
			t.Fatalf("InitSQLite failed: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		gameRepo := storage.NewSQLiteGameRepository(db)
		opts.Events = storage.NewSQLiteEventRepository(db)
		opts.Games = gameRepo
		summaries = gameRepo
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(log, mc, &tuning)
	go hub.Run(ctx)
	opts.Publisher = hub
	games := session.NewManager(opts)

	mux := http.NewServeMux()
	NewGameAPI(games, summaries, hub, &tuning, mc, log).RegisterRoutes(mux)
	NewReplayHandler(games, log).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		games.Close()
		cancel()
	})
	return &testServer{Server: srv, hub: hub, games: games, metrics: mc}
}

// unlimited is the default profile without the per-client rate limit.
func unlimited() optimization.Config {
	cfg := *optimization.DefaultConfig()
	cfg.MaxMessagesPerSecond = 0
	return cfg
}

func (s *testServer) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

// readUntil reads messages until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) Message {
	t.Helper()
	for i := 0; i < 20; i++ {
		if msg := readMessage(t, conn); msg.Type == msgType {
			return msg
		}
	}
	t.Fatalf("no %s message received", msgType)
	return Message{}
}

func send(t *testing.T, conn *websocket.Conn, action PlayerAction) {
	t.Helper()
	if err := conn.WriteJSON(action); err != nil {
		t.Fatalf("write action: %v", err)
	}
}
