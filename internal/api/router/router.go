package router

import (
	"github.com/cuongbtq/transcribe-be/internal/api/auth"
	"github.com/cuongbtq/transcribe-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", handler.Health(deps))

	transcriptionHandler := handler.NewTranscriptionHandler(deps)
	callbackHandler := handler.NewCallbackHandler(deps)

	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/process-callback - Worker stage/result update
		v1.POST("/process-callback", auth.CallbackSecret(deps.CallbackSecret), callbackHandler.ProcessCallback)

		authed := v1.Group("", auth.Middleware(deps.Verifier, deps.Logger))

		transcriptions := authed.Group("/transcriptions")
		{
			// POST /api/v1/transcriptions - Submit an uploaded recording
			transcriptions.POST("", transcriptionHandler.CreateTranscription)

			// GET /api/v1/transcriptions - List the caller's transcriptions
			transcriptions.GET("", transcriptionHandler.ListTranscriptions)

			// GET /api/v1/transcriptions/:id - Job status
			transcriptions.GET("/:id", transcriptionHandler.GetTranscription)

			// GET /api/v1/transcriptions/:id/result - Transcript and summary
			transcriptions.GET("/:id/result", transcriptionHandler.GetTranscriptionResult)
		}

		// GET /api/v1/usage - Minutes used in a ledger period
		authed.GET("/usage", transcriptionHandler.GetUsage)
	}

	return r
}
