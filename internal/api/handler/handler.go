package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/auth"
	"github.com/cuongbtq/transcribe-be/internal/api/service"
	"github.com/cuongbtq/transcribe-be/internal/api/storage"
	"github.com/gin-gonic/gin"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Store          storage.Store
	Dispatcher     *service.Dispatcher
	Ingest         *service.Ingest
	Verifier       *auth.Verifier
	ServiceName    string
	CallbackSecret string
	Now            func() time.Time
}

func (d *Dependencies) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

// TranscriptionHandler handles client-facing transcription requests
type TranscriptionHandler struct {
	logger     *slog.Logger
	store      storage.Store
	dispatcher *service.Dispatcher
	now        func() time.Time
}

// NewTranscriptionHandler creates a new TranscriptionHandler instance
func NewTranscriptionHandler(deps *Dependencies) *TranscriptionHandler {
	return &TranscriptionHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		now:        deps.clock(),
	}
}

// CallbackHandler handles worker callbacks
type CallbackHandler struct {
	logger *slog.Logger
	ingest *service.Ingest
}

// NewCallbackHandler creates a new CallbackHandler instance
func NewCallbackHandler(deps *Dependencies) *CallbackHandler {
	return &CallbackHandler{
		logger: deps.Logger,
		ingest: deps.Ingest,
	}
}

// Health handles GET /health and reports store reachability
func Health(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Store.Ping(ctx); err != nil {
			deps.Logger.Warn("Health check failed", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": deps.ServiceName,
				"store":   "unreachable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": deps.ServiceName,
			"store":   "ok",
		})
	}
}
