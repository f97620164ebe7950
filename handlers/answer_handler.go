package handlers

import (
	"net/http"
	"strconv"

	"partygame/services"

	"github.com/gin-gonic/gin"
)

type AnswerHandler struct {
	answerService *services.AnswerService
	hub           *services.Hub
}

func NewAnswerHandler(answerService *services.AnswerService, hub *services.Hub) *AnswerHandler {
	return &AnswerHandler{
		answerService: answerService,
		hub:           hub,
	}
}

func (h *AnswerHandler) SubmitAnswer(c *gin.Context) {
	var req services.SubmitAnswerRequest
	if !bindJSON(c, &req, msgMissingParams) {
		return
	}

	answer, err := h.answerService.RecordAnswer(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	// the value stays private until the host reveals results
	if h.hub != nil {
		h.hub.BroadcastToGame(answer.GameID, services.EventAnswerRecorded, gin.H{
			"player_id":   answer.PlayerID,
			"question_id": answer.QuestionID,
		})
	}

	c.JSON(http.StatusCreated, answer)
}

// parseQuestionID accepts ids in the range of the bigint question key.
func parseQuestionID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 63)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// ListAnswers always answers 200; an unknown or malformed question id gives [].
func (h *AnswerHandler) ListAnswers(c *gin.Context) {
	questionID, err := parseQuestionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusOK, []services.AnswerView{})
		return
	}

	c.JSON(http.StatusOK, h.answerService.ListAnswers(c.Request.Context(), questionID))
}

func (h *AnswerHandler) Summary(c *gin.Context) {
	questionID, err := parseQuestionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question ID"})
		return
	}

	summary, err := h.answerService.Summarize(c.Request.Context(), questionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
