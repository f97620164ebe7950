package handlers

import (
	"errors"
	"net/http"

	"partygame/logger"
	"partygame/middleware"
	"partygame/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FeedHandler upgrades players to the per-game WebSocket feed.
type FeedHandler struct {
	gameService *services.GameService
	hub         *services.Hub
	upgrader    websocket.Upgrader
}

func NewFeedHandler(gameService *services.GameService, hub *services.Hub, allowedOrigins []string) *FeedHandler {
	h := &FeedHandler{
		gameService: gameService,
		hub:         hub,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if middleware.AllowsAnyOrigin(allowed) {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

func (h *FeedHandler) Connect(c *gin.Context) {
	gameID := services.NormalizeGameID(c.Param("gameId"))
	playerID := c.Param("playerId")

	// only players of this game may listen in
	player, err := h.gameService.GetPlayerByID(c.Request.Context(), playerID)
	if err != nil {
		if errors.Is(err, services.ErrPlayerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
			return
		}
		respondError(c, err)
		return
	}
	if player.GameID != gameID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Player not found in game"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		logger.L().Warn("websocket upgrade failed",
			zap.String("game_id", gameID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
		return
	}

	h.hub.RegisterClient(c.Request.Context(), conn, gameID, playerID)
}
