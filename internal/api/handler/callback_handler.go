package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/dto"
	"github.com/cuongbtq/transcribe-be/internal/api/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProcessCallback handles POST /api/v1/process-callback
// Applies a stage or result update reported by the worker
func (h *CallbackHandler) ProcessCallback(c *gin.Context) {
	var req dto.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid callback body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.JobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return
	}
	if _, err := uuid.Parse(req.JobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}
	if req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	status, err := domain.ParseStatus(req.Status)
	if err != nil || status == domain.StatusPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	_, err = h.ingest.Handle(c.Request.Context(), service.Callback{
		JobID:           req.JobID,
		Status:          status,
		Result:          req.Result,
		ErrorMessage:    req.ErrorMessage,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		st, msg := ingestErrorResponse(err)
		c.JSON(st, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, dto.CallbackResponse{Success: true})
}

func ingestErrorResponse(err error) (int, string) {
	if errors.Is(err, domain.ErrTranscriptionNotFound) {
		return http.StatusNotFound, "Transcription not found"
	}

	var ie *service.IngestError
	if errors.As(err, &ie) {
		switch ie.Step {
		case service.StepSaveTranscript:
			return http.StatusInternalServerError, "Failed to save transcript"
		case service.StepFinalize:
			return http.StatusInternalServerError, "Failed to finalize transcription"
		case service.StepUpdate:
			return http.StatusInternalServerError, "Failed to update transcription"
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}
