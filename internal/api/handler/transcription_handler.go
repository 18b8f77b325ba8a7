package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/transcribe-be/internal/api/auth"
	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/dto"
	"github.com/cuongbtq/transcribe-be/internal/api/model"
	"github.com/cuongbtq/transcribe-be/internal/api/service"
	"github.com/cuongbtq/transcribe-be/internal/api/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateTranscription handles POST /api/v1/transcriptions
// Creates a job and hands it off to the processing worker
func (h *TranscriptionHandler) CreateTranscription(c *gin.Context) {
	ownerID, ok := auth.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req dto.CreateTranscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "file_name and file_path are required",
		})
		return
	}

	res, err := h.dispatcher.Submit(c.Request.Context(), service.SubmitRequest{
		OwnerID:  ownerID,
		FileName: req.FileName,
		FilePath: req.FilePath,
	})
	if err != nil {
		status, body := dispatchErrorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, dto.CreateTranscriptionResponse{
		ID:     res.ID,
		Status: res.Status,
	})
}

func dispatchErrorResponse(err error) (int, gin.H) {
	var de *service.DispatchError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, gin.H{"error": "Internal server error"}
	}

	var msg string
	switch de.Kind {
	case service.DispatchStore:
		return http.StatusInternalServerError, gin.H{"error": "Failed to create transcription"}
	case service.DispatchSignedURL:
		msg = "Failed to create access URL for audio file"
	case service.DispatchRejected:
		msg = "Processing server rejected request"
	default:
		msg = "Processing server unreachable"
	}
	return http.StatusBadGateway, gin.H{"error": msg, "id": de.JobID}
}

// GetTranscription handles GET /api/v1/transcriptions/:id
// Returns the status fields the poller needs
func (h *TranscriptionHandler) GetTranscription(c *gin.Context) {
	t, ok := h.ownedTranscription(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.NewStatusResponse(t))
}

// GetTranscriptionResult handles GET /api/v1/transcriptions/:id/result
// Returns the stored transcript and summary
func (h *TranscriptionHandler) GetTranscriptionResult(c *gin.Context) {
	t, ok := h.ownedTranscription(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.TranscriptionResultResponse{
		TranscriptionDTO: dto.NewTranscriptionDTO(t),
		Result:           t.Result.Result,
	})
}

func (h *TranscriptionHandler) ownedTranscription(c *gin.Context) (*model.Transcription, bool) {
	ownerID, ok := auth.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "id must be a valid UUID",
		})
		return nil, false
	}

	t, err := h.store.GetOwnedTranscription(c.Request.Context(), id, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrTranscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transcription not found"})
			return nil, false
		}
		h.logger.Error("Failed to get transcription",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get transcription"})
		return nil, false
	}
	return t, true
}

// ListTranscriptions handles GET /api/v1/transcriptions
// Lists the caller's transcriptions, newest first, with keyset pagination
func (h *TranscriptionHandler) ListTranscriptions(c *gin.Context) {
	ownerID, ok := auth.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req dto.ListTranscriptionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	var status domain.Status
	if req.Status != "" {
		s, err := domain.ParseStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		status = s
	}

	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	rows, err := h.store.ListTranscriptions(c.Request.Context(), storage.TranscriptionFilter{
		UserID:   ownerID,
		Status:   status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list transcriptions", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list transcriptions",
		})
		return
	}

	hasMore := len(rows) > req.PageSize
	if hasMore {
		rows = rows[:req.PageSize]
	}

	items := make([]dto.TranscriptionDTO, len(rows))
	for i := range rows {
		items[i] = dto.NewTranscriptionDTO(&rows[i])
	}

	var nextCursor string
	if hasMore {
		last := rows[len(rows)-1]
		nextCursor = EncodeCursor(&storage.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	c.JSON(http.StatusOK, dto.ListTranscriptionsResponse{
		Transcriptions: items,
		NextCursor:     nextCursor,
	})
}

// GetUsage handles GET /api/v1/usage
// Returns the caller's accumulated minutes for a ledger period
func (h *TranscriptionHandler) GetUsage(c *gin.Context) {
	ownerID, ok := auth.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	period := domain.Period(h.now())
	if p := c.Query("period"); p != "" {
		parsed, err := domain.ParsePeriod(p)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period must be YYYY-MM"})
			return
		}
		period = parsed
	}

	minutes, err := h.store.GetUsage(c.Request.Context(), ownerID, period)
	if err != nil {
		h.logger.Error("Failed to get usage",
			slog.String("owner_id", ownerID),
			slog.String("period", period),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get usage"})
		return
	}

	c.JSON(http.StatusOK, dto.UsageResponse{Period: period, MinutesUsed: minutes})
}
