package network

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/epidemicexpress/server/internal/engine"
	"github.com/epidemicexpress/server/internal/platform/logger"
	"github.com/epidemicexpress/server/internal/platform/metrics"
	"github.com/epidemicexpress/server/internal/platform/optimization"
)

// subscription moves a client into the room of a game. greeting is sent to
// the client right after it joins; admitted receives whether it did.
type subscription struct {
	client   *Client
	gameID   string
	greeting [][]byte
	admitted chan bool
}

// outbound is a message for every client of a game, or for one client.
type outbound struct {
	gameID string
	client *Client
	data   []byte
}

// Hub maintains the clients watching each game and broadcasts to them.
// All client send channels are written and closed by the Run goroutine only.
type Hub struct {
	rooms      map[string]map[*Client]bool
	clientGame map[*Client]string

	broadcast  chan outbound
	register   chan subscription
	unregister chan *Client
	done       chan struct{}

	maxClientsPerGame int

	mu      sync.Mutex
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewHub initializes a new WebSocket Hub sized by the tuning profile.
func NewHub(log *logger.Logger, m *metrics.Collector, tuning *optimization.Config) *Hub {
	return &Hub{
		rooms:             make(map[string]map[*Client]bool),
		clientGame:        make(map[*Client]string),
		broadcast:         make(chan outbound, tuning.BroadcastChannelBuffer),
		register:          make(chan subscription),
		unregister:        make(chan *Client),
		done:              make(chan struct{}),
		maxClientsPerGame: tuning.MaxClientsPerGame,
		logger:            log,
		metrics:           m,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			h.mu.Lock()
			for client := range h.clientGame {
				h.remove(client)
			}
			h.mu.Unlock()
			return
		case sub := <-h.register:
			h.join(sub)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clientGame[client]; ok {
				h.remove(client)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case out := <-h.broadcast:
			h.deliver(out)
		}
	}
}

func (h *Hub) join(sub subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub.admitted <- h.admitLocked(sub)
}

// admitLocked places a client in a room. h.mu must be held.
func (h *Hub) admitLocked(sub subscription) bool {
	c := sub.client
	if c.dropped {
		// Its send channel is closed; the connection is on its way out.
		return false
	}
	old, joined := h.clientGame[c]
	if joined && old == sub.gameID {
		h.sendLocked(c, sub.greeting...)
		return true
	}

	room := h.rooms[sub.gameID]
	if h.maxClientsPerGame > 0 && len(room) >= h.maxClientsPerGame {
		h.logger.Warnf("game %s is full, refusing client", sub.gameID)
		if !joined {
			// Not in any room yet: keep it reachable for the refusal.
			h.clientGame[c] = ""
		}
		h.sendLocked(c, h.encode(errorMessage(sub.gameID, "Game is full")))
		return false
	}
	if joined {
		delete(h.rooms[old], c)
		if len(h.rooms[old]) == 0 {
			delete(h.rooms, old)
		}
	}
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[sub.gameID] = room
	}
	room[c] = true
	h.clientGame[c] = sub.gameID
	h.logger.Infof("WebSocket client joined game %s (%d watching)", sub.gameID, len(room))
	h.sendLocked(c, sub.greeting...)
	return !c.dropped
}

func (h *Hub) deliver(out outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if out.client != nil {
		if _, ok := h.clientGame[out.client]; ok {
			h.sendLocked(out.client, out.data)
		}
		return
	}
	for client := range h.rooms[out.gameID] {
		h.sendLocked(client, out.data)
	}
}

// sendLocked queues messages for a client, dropping the client when its
// buffer is full. h.mu must be held.
func (h *Hub) sendLocked(c *Client, msgs ...[]byte) {
	for _, data := range msgs {
		if data == nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping slow WebSocket client")
			h.metrics.RecordWSError()
			h.remove(c)
			return
		}
	}
}

// remove forgets a client and closes its send channel for good. h.mu must
// be held.
func (h *Hub) remove(c *Client) {
	game, ok := h.clientGame[c]
	if !ok {
		return
	}
	c.dropped = true
	delete(h.clientGame, c)
	if room := h.rooms[game]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, game)
		}
	}
	close(c.send)
}

// Publish implements session.Publisher: it broadcasts a state snapshot to
// every client watching the game.
func (h *Hub) Publish(gameID string, state engine.GameState) {
	h.BroadcastToGame(gameID, stateMessage(gameID, state))
}

// BroadcastToGame sends a message to every client watching a game. It never
// blocks; when the hub is backed up the message is dropped.
func (h *Hub) BroadcastToGame(gameID string, msg Message) {
	h.enqueue(outbound{gameID: gameID, data: h.encode(msg)})
}

// SendTo sends a message to one client.
func (h *Hub) SendTo(c *Client, msg Message) {
	h.enqueue(outbound{client: c, data: h.encode(msg)})
}

func (h *Hub) enqueue(out outbound) {
	if out.data == nil {
		return
	}
	select {
	case h.broadcast <- out:
	case <-h.done:
	default:
		h.logger.Warnf("hub backlog full, dropping message for game %s", out.gameID)
		h.metrics.RecordWSError()
	}
}

// Join moves a client into a game's room and sends it the given messages.
// It reports whether the client was admitted: a full game, a dropped client
// or a stopped hub refuse it, and the client stays where it was.
func (h *Hub) Join(c *Client, gameID string, greeting ...Message) bool {
	sub := subscription{client: c, gameID: gameID, admitted: make(chan bool, 1)}
	for _, msg := range greeting {
		sub.greeting = append(sub.greeting, h.encode(msg))
	}
	select {
	case h.register <- sub:
		return <-sub.admitted
	case <-h.done:
		return false
	}
}

// Leave removes a client from the hub.
func (h *Hub) Leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Watchers returns the number of clients watching a game.
func (h *Hub) Watchers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[gameID])
}

func (h *Hub) encode(msg Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("Failed to serialize %s message for WebSocket: %v", msg.Type, err)
		return nil
	}
	return data
}
