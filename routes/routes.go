package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vnkhanh/companion-tutor-backend/controllers"
	"github.com/vnkhanh/companion-tutor-backend/middleware"
	"github.com/vnkhanh/companion-tutor-backend/utils"
	"github.com/vnkhanh/companion-tutor-backend/ws"
)

// Handlers gom các controller đã được dựng sẵn trong main
type Handlers struct {
	Verifier   *utils.TokenVerifier
	Health     *controllers.HealthController
	Companions *controllers.CompanionController
	PDFs       *controllers.PDFController
	Sessions   *controllers.SessionController
	Quizzes    *controllers.QuizController
	Journey    *controllers.JourneyController
	WebSocket  *ws.Handler
}

func SetupRouter(r *gin.Engine, h Handlers) *gin.Engine {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", h.Health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// token đi qua query nên không dùng AuthMiddleware
	r.GET("/ws/sessions/:id", h.WebSocket.HandleSessionWebSocket)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(h.Verifier))

	companions := api.Group("/companions")
	{
		companions.POST("", h.Companions.Create)
		companions.GET("", h.Companions.List)
		companions.GET("/permissions", h.Companions.Permissions)
		companions.GET("/:id", h.Companions.Get)
		companions.DELETE("/:id", h.Companions.Delete)
		companions.GET("/:id/assistant", h.Companions.Assistant)
		companions.POST("/:id/pdf", h.PDFs.UploadCompanionPDF)
	}
	api.POST("/extract-pdf-text", h.PDFs.ExtractText)

	sessions := api.Group("/sessions")
	{
		sessions.POST("", h.Sessions.Start)
		sessions.GET("", h.Sessions.List)
		sessions.GET("/recent", h.Sessions.Recent)
		sessions.GET("/transcripts", h.Sessions.Transcripts)
		sessions.PATCH("/:id/call", h.Sessions.LinkCall)
		sessions.GET("/:id/transcript", h.Sessions.Transcript)
		sessions.GET("/:id/quiz-results", h.Sessions.QuizResults)
	}

	// Quiz
	api.GET("/generate-quiz", h.Quizzes.Generate)
	api.GET("/quizzes/:id", h.Quizzes.Get)
	api.POST("/submit-quiz", h.Quizzes.Submit)
	api.GET("/quiz-results", h.Quizzes.ListResults)
	api.GET("/quiz-results/:id", h.Quizzes.GetResult)
	api.GET("/progress", h.Quizzes.Progress)
	api.GET("/journey", h.Journey.Get)

	return r
}
