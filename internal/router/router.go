package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/prepnest/exam-engine/internal/auth"
	"github.com/prepnest/exam-engine/internal/config"
	"github.com/prepnest/exam-engine/internal/handler"
	"github.com/prepnest/exam-engine/internal/middleware"
	"github.com/prepnest/exam-engine/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(verifier *auth.Verifier, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(verifier))
	{
		studentAPI.POST("/logout", handlers.Session.Logout)

		examGroup := studentAPI.Group("/exams/:exam_id")
		{
			examGroup.POST("/session", handlers.Session.EnsureSession)
			examGroup.GET("/session", handlers.Session.GetSession)
			examGroup.DELETE("/session", handlers.Session.AbandonSession)

			examGroup.POST("/answer", handlers.Session.SelectOption)
			examGroup.POST("/mark", handlers.Session.ToggleMark)
			examGroup.POST("/code", handlers.Session.SaveCode)
			examGroup.POST("/run", handlers.Session.RunStandard)
			examGroup.POST("/run-custom", handlers.Session.RunCustom)
			examGroup.GET("/results/:question_id", handlers.Session.GetResults)

			examGroup.POST("/navigate", handlers.Session.Navigate)
			examGroup.POST("/position", handlers.Session.Jump)
			examGroup.POST("/pause", handlers.Session.Pause)
			examGroup.POST("/resume", handlers.Session.Resume)
			examGroup.POST("/submit", handlers.Session.Submit)
		}
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(middleware.RequireStudentWSAuth(verifier))
	{
		wsGroup.GET("/student/exams/:exam_id/stream", handlers.WS.SessionStream)
	}

	return router
}
