package routes

import (
	"partygame/handlers"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	gameHandler *handlers.GameHandler,
	questionHandler *handlers.QuestionHandler,
	answerHandler *handlers.AnswerHandler,
	feedHandler *handlers.FeedHandler,
	healthHandler *handlers.HealthHandler,
	hostAuth gin.HandlerFunc,
) {
	// API routes
	api := router.Group("/api")
	{
		games := api.Group("/games")
		{
			games.POST("", gameHandler.CreateGame)
			games.GET("", gameHandler.ListGames)
			games.GET("/:id", gameHandler.GetGame)
			games.POST("/:id/players", gameHandler.JoinGame)
			games.GET("/:id/questions", questionHandler.ListQuestions)

			// Host-only routes
			games.POST("/:id/questions", hostAuth, questionHandler.AddQuestions)
			games.POST("/:id/end", hostAuth, gameHandler.EndGame)
		}

		api.POST("/answers", answerHandler.SubmitAnswer)

		questions := api.Group("/questions")
		{
			questions.GET("/:id/answers", answerHandler.ListAnswers)
			questions.GET("/:id/summary", answerHandler.Summary)
		}
	}

	// WebSocket endpoint for live game events
	router.GET("/ws/:gameId/:playerId", feedHandler.Connect)

	// Health check endpoint
	router.GET("/health", healthHandler.Check)
}
