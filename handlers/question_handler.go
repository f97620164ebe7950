package handlers

import (
	"net/http"

	"partygame/services"

	"github.com/gin-gonic/gin"
)

type QuestionHandler struct {
	questionService *services.QuestionService
	hub             *services.Hub
}

func NewQuestionHandler(questionService *services.QuestionService, hub *services.Hub) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		hub:             hub,
	}
}

func (h *QuestionHandler) AddQuestions(c *gin.Context) {
	gameID := services.NormalizeGameID(c.Param("id"))

	var req services.AddQuestionsRequest
	if !bindJSON(c, &req, "No questions provided") {
		return
	}

	questions, err := h.questionService.AddQuestions(c.Request.Context(), gameID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastToGame(gameID, services.EventQuestionsAdded, gin.H{
			"game_id": gameID,
			"count":   len(questions),
		})
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "count": len(questions)})
}

func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	questions, err := h.questionService.ListQuestions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}
