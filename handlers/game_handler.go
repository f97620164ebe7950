package handlers

import (
	"net/http"
	"time"

	"partygame/logger"
	"partygame/models"
	"partygame/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GameHandler struct {
	gameService *services.GameService
	tokens      *services.HostTokens
	hub         *services.Hub
}

func NewGameHandler(gameService *services.GameService, tokens *services.HostTokens, hub *services.Hub) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		tokens:      tokens,
		hub:         hub,
	}
}

type CreateGameResponse struct {
	ID        string    `json:"id"`
	HostID    string    `json:"host_id"`
	GameModes []string  `json:"game_modes"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
	HostToken string    `json:"host_token,omitempty"`
}

type PlayerResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	GameID   string    `json:"game_id"`
	IsHost   bool      `json:"is_host"`
	JoinedAt time.Time `json:"joined_at"`
}

func newPlayerResponse(p *models.Player) PlayerResponse {
	return PlayerResponse{
		ID:       p.ID,
		Name:     p.Name,
		GameID:   p.GameID,
		IsHost:   p.IsHost,
		JoinedAt: p.JoinedAt,
	}
}

func (h *GameHandler) CreateGame(c *gin.Context) {
	var req services.CreateGameRequest
	if !bindJSON(c, &req, msgMissingParams) {
		return
	}

	game, err := h.gameService.CreateGame(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := CreateGameResponse{
		ID:        game.ID,
		HostID:    game.HostID,
		GameModes: game.Modes(),
		CreatedAt: game.CreatedAt,
		IsActive:  game.IsActive,
	}
	if h.tokens != nil {
		token, err := h.tokens.Issue(game.ID, game.HostID)
		if err != nil {
			logger.L().Error("issue host token", zap.String("game_id", game.ID), zap.Error(err))
		} else {
			resp.HostToken = token
		}
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *GameHandler) JoinGame(c *gin.Context) {
	gameID := services.NormalizeGameID(c.Param("id"))

	var req services.JoinGameRequest
	if !bindJSON(c, &req, msgMissingParams) {
		return
	}

	player, created, err := h.gameService.JoinGame(c.Request.Context(), gameID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := newPlayerResponse(player)
	if created && h.hub != nil {
		payload := gin.H{"player": resp}
		if detail, err := h.gameService.GetGame(c.Request.Context(), gameID); err == nil {
			payload["players"] = detail.Players
		}
		h.hub.BroadcastToGame(gameID, services.EventPlayerJoined, payload)
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *GameHandler) ListGames(c *gin.Context) {
	games, err := h.gameService.ListActiveGames(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, games)
}

func (h *GameHandler) GetGame(c *gin.Context) {
	game, err := h.gameService.GetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) EndGame(c *gin.Context) {
	gameID := services.NormalizeGameID(c.Param("id"))

	ended, err := h.gameService.EndGame(c.Request.Context(), gameID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ended {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	if h.hub != nil {
		h.hub.BroadcastToGame(gameID, services.EventGameEnded, gin.H{"game_id": gameID})
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
