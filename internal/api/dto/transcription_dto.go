package dto

import (
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/model"
)

type CreateTranscriptionRequest struct {
	FileName string `json:"file_name" binding:"required"`
	FilePath string `json:"file_path" binding:"required"`
}

type CreateTranscriptionResponse struct {
	ID     string        `json:"id"`
	Status domain.Status `json:"status"`
}

// TranscriptionStatusResponse is what the poller reads on every tick
type TranscriptionStatusResponse struct {
	ID              string        `json:"id"`
	Status          domain.Status `json:"status"`
	ErrorMessage    *string       `json:"error_message,omitempty"`
	DurationSeconds *int          `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

type TranscriptionDTO struct {
	ID              string        `json:"id"`
	FileName        string        `json:"file_name"`
	Status          domain.Status `json:"status"`
	ErrorMessage    *string       `json:"error_message,omitempty"`
	DurationSeconds *int          `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

type TranscriptionResultResponse struct {
	TranscriptionDTO
	Result *domain.Result `json:"result,omitempty"`
}

type ListTranscriptionsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListTranscriptionsResponse struct {
	Transcriptions []TranscriptionDTO `json:"transcriptions"`
	NextCursor     string             `json:"next_cursor,omitempty"`
}

type UsageResponse struct {
	Period      string  `json:"period"`
	MinutesUsed float64 `json:"minutes_used"`
}

// CallbackRequest is the worker's stage/result update. Required fields are
// checked by the handler so each gets its own error message.
type CallbackRequest struct {
	JobID           string         `json:"job_id"`
	Status          string         `json:"status"`
	Result          *domain.Result `json:"result,omitempty"`
	ErrorMessage    *string        `json:"error_message,omitempty"`
	DurationSeconds *float64       `json:"duration_seconds,omitempty"`
}

type CallbackResponse struct {
	Success bool `json:"success"`
}

// NewStatusResponse maps a row to the status endpoint payload
func NewStatusResponse(t *model.Transcription) TranscriptionStatusResponse {
	d := NewTranscriptionDTO(t)
	return TranscriptionStatusResponse{
		ID:              d.ID,
		Status:          d.Status,
		ErrorMessage:    d.ErrorMessage,
		DurationSeconds: d.DurationSeconds,
		CreatedAt:       d.CreatedAt,
		CompletedAt:     d.CompletedAt,
	}
}

// NewTranscriptionDTO maps a row to its list entry
func NewTranscriptionDTO(t *model.Transcription) TranscriptionDTO {
	d := TranscriptionDTO{
		ID:        t.ID,
		FileName:  t.FileName,
		Status:    t.Status,
		CreatedAt: t.CreatedAt.UTC(),
	}
	if t.ErrorMessage.Valid {
		msg := t.ErrorMessage.String
		d.ErrorMessage = &msg
	}
	if t.DurationSeconds.Valid {
		secs := int(t.DurationSeconds.Int64)
		d.DurationSeconds = &secs
	}
	if t.CompletedAt.Valid {
		at := t.CompletedAt.Time.UTC()
		d.CompletedAt = &at
	}
	return d
}
