package network

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/epidemicexpress/server/internal/engine"
	"github.com/epidemicexpress/server/internal/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Time allowed for one action against the game service.
	actionTimeout = 5 * time.Second
)

// GameService is the game store the network layer drives.
type GameService interface {
	Create(ctx context.Context) (string, engine.GameState, error)
	State(ctx context.Context, gameID string) (engine.GameState, error)
	Apply(ctx context.Context, gameID, action string, index int) (engine.GameState, error)
	History(ctx context.Context, gameID string) ([]events.GameEvent, error)
}

// Client is one WebSocket connection playing or watching a game.
type Client struct {
	hub   *Hub
	games GameService
	conn  *websocket.Conn
	send  chan []byte

	// Set by the hub, under its lock, once send is closed.
	dropped bool

	// Only touched by ReadPump.
	gameID         string
	minInterval    time.Duration
	lastActionTime time.Time
}

// NewClient creates a new WebSocket client. Actions closer together than
// one per second divided by maxPerSecond are refused.
func NewClient(hub *Hub, games GameService, conn *websocket.Conn, sendBuffer, maxPerSecond int) *Client {
	c := &Client{
		hub:   hub,
		games: games,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
	}
	if maxPerSecond > 0 {
		c.minInterval = time.Second / time.Duration(maxPerSecond)
	}
	return c
}

// Start attaches the client to a game, creating one when gameID is empty or
// unknown, and sends it the catalog and the game's state.
func (c *Client) Start(gameID string) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if gameID != "" {
		state, err := c.games.State(ctx, gameID)
		if err == nil {
			c.join(gameID, state, catalogMessage())
			return
		}
		c.hub.logger.Warnf("client asked for game %s: %v", gameID, err)
		// Join a fresh game, then tell the client why.
		defer c.hub.SendTo(c, errorMessage(gameID, "Unknown game, started a new one"))
	}
	c.newGame(ctx, catalogMessage())
}

// join plays gameID from now on if the hub admits the client. A refused
// client keeps playing the game it had.
func (c *Client) join(gameID string, state engine.GameState, greeting ...Message) {
	if c.hub.Join(c, gameID, append(greeting, stateMessage(gameID, state))...) {
		c.gameID = gameID
	}
}

func (c *Client) newGame(ctx context.Context, greeting ...Message) {
	id, state, err := c.games.Create(ctx)
	if err != nil {
		c.hub.logger.Errorf("create game for client: %v", err)
		c.hub.Join(c, "", append(greeting, errorMessage("", "Could not start a game"))...)
		return
	}
	c.join(id, state, greeting...)
}

// ReadPump pumps messages from the websocket connection to the game service.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Leave(c)
		c.conn.Close()
		c.hub.metrics.RecordWSConnection(-1)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warnf("websocket read: %v", err)
				c.hub.metrics.RecordWSError()
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warnf("Failed to parse PlayerAction from WebSocket: %v", err)
			c.hub.metrics.RecordWSError()
			c.hub.SendTo(c, errorMessage(c.gameID, "Malformed action"))
			continue
		}

		c.handlePlayerAction(action)
	}
}

func (c *Client) handlePlayerAction(action PlayerAction) {
	if time.Since(c.lastActionTime) < c.minInterval {
		c.hub.logger.Warnf("Rate limit exceeded for client of game %s", c.gameID)
		c.hub.SendTo(c, errorMessage(c.gameID, "Too many actions, slow down"))
		return
	}
	c.lastActionTime = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if action.Type == ActionNewGame {
		c.newGame(ctx)
		return
	}
	name, ok := engineAction(action.Type)
	if !ok {
		c.hub.logger.Warnf("Unknown PlayerAction type: %s", action.Type)
		c.hub.SendTo(c, errorMessage(c.gameID, "Unknown action "+action.Type))
		return
	}
	if c.gameID == "" {
		c.hub.SendTo(c, errorMessage("", "No game joined"))
		return
	}

	// The resulting state reaches every watcher, this client included,
	// through the hub.
	if _, err := c.games.Apply(ctx, c.gameID, name, action.Index); err != nil {
		c.hub.logger.Errorf("apply %s to game %s: %v", name, c.gameID, err)
		text := "Action failed"
		if errors.Is(err, context.DeadlineExceeded) {
			text = "Game is busy, try again"
		}
		c.hub.SendTo(c, errorMessage(c.gameID, text))
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
			c.hub.metrics.RecordWSMessage(false)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
