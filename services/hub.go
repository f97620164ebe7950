package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"partygame/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Feed message types.
const (
	EventJoinSuccess    = "join_success"
	EventPlayerJoined   = "player_joined"
	EventQuestionsAdded = "questions_added"
	EventAnswerRecorded = "answer_recorded"
	EventGameEnded      = "game_ended"
	EventGameState      = "game_state"
	EventPong           = "pong"
	EventError          = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// RosterSource loads the game snapshot sent to feed clients.
type RosterSource interface {
	GetGame(ctx context.Context, gameID string) (*GameDetail, error)
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub fans game events out to the WebSocket clients of each game. Only Run
// closes a client's send channel, and senders hold the read lock while checking
// membership, so a send never hits a closed channel.
type Hub struct {
	clients    map[*Client]bool
	unregister chan *Client
	done       chan struct{}
	stopped    bool
	mutex      sync.RWMutex
	games      RosterSource
}

type Client struct {
	hub      *Hub
	id       string
	socket   *websocket.Conn
	send     chan []byte
	gameID   string
	playerID string
}

func NewHub(games RosterSource) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		games:      games,
	}
}

// Run serves unregistrations until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			logger.L().Info("feed client unregistered",
				zap.String("client_id", client.id),
				zap.String("game_id", client.gameID),
				zap.Int("clients", total),
			)

		case <-ctx.Done():
			h.mutex.Lock()
			h.stopped = true
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// BroadcastToGame sends one message to every client connected to the game.
// Clients whose buffer is full are dropped.
func (h *Hub) BroadcastToGame(gameID string, messageType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: messageType, Payload: payload})
	if err != nil {
		logger.L().Error("marshal feed message", zap.String("type", messageType), zap.Error(err))
		return
	}

	var slow []*Client
	sent := 0
	h.mutex.RLock()
	for client := range h.clients {
		if client.gameID != gameID {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		logger.L().Warn("feed client too slow, dropping", zap.String("client_id", client.id))
		h.UnregisterClient(client)
	}
	logger.L().Debug("broadcast",
		zap.String("game_id", gameID),
		zap.String("type", messageType),
		zap.Int("recipients", sent),
	)
}

// sendTo delivers a message to one client if it is still registered.
func (h *Hub) sendTo(client *Client, messageType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: messageType, Payload: payload})
	if err != nil {
		logger.L().Error("marshal feed message", zap.String("type", messageType), zap.Error(err))
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
		logger.L().Warn("feed client buffer full", zap.String("client_id", client.id))
	}
}

// ConnectedPlayers lists the player ids currently connected to a game.
func (h *Hub) ConnectedPlayers(gameID string) []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	playerIDs := []string{}
	for client := range h.clients {
		if client.gameID == gameID {
			playerIDs = append(playerIDs, client.playerID)
		}
	}
	return playerIDs
}

func (h *Hub) IsPlayerConnected(gameID, playerID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.gameID == gameID && client.playerID == playerID {
			return true
		}
	}
	return false
}

// RegisterClient attaches an upgraded connection to a game and greets it with
// the current roster.
func (h *Hub) RegisterClient(ctx context.Context, conn *websocket.Conn, gameID, playerID string) *Client {
	client := &Client{
		hub:      h,
		id:       uuid.NewString(),
		socket:   conn,
		send:     make(chan []byte, sendBuffer),
		gameID:   gameID,
		playerID: playerID,
	}

	h.mutex.Lock()
	if h.stopped {
		h.mutex.Unlock()
		_ = conn.Close()
		return client
	}
	h.clients[client] = true
	total := len(h.clients)
	h.mutex.Unlock()
	logger.L().Info("feed client registered",
		zap.String("client_id", client.id),
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
		zap.Int("clients", total),
	)

	go client.writePump()
	go client.readPump()

	h.sendState(ctx, client, EventJoinSuccess)
	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) sendState(ctx context.Context, client *Client, messageType string) {
	if h.games == nil {
		return
	}
	detail, err := h.games.GetGame(ctx, client.gameID)
	if err != nil {
		logger.L().Warn("load game for feed", zap.String("game_id", client.gameID), zap.Error(err))
		h.sendTo(client, EventError, map[string]string{"error": "game unavailable"})
		return
	}
	h.sendTo(client, messageType, map[string]interface{}{
		"game":      detail,
		"players":   detail.Players,
		"connected": h.ConnectedPlayers(client.gameID),
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().Warn("feed read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.L().Debug("bad feed message", zap.String("client_id", c.id), zap.Error(err))
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		c.hub.sendTo(c, EventPong, "pong")
	case "request_game_state":
		c.hub.sendState(context.Background(), c, EventGameState)
	default:
		logger.L().Debug("unknown feed message",
			zap.String("type", msg.Type),
			zap.String("client_id", c.id),
		)
	}
}
