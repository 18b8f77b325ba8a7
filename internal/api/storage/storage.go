package storage

import (
	"context"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/model"
)

// Store is the Job Store and Usage Ledger contract shared by the Postgres and
// in-memory implementations.
type Store interface {
	CreateTranscription(ctx context.Context, t *model.Transcription) error
	GetTranscription(ctx context.Context, id string) (*model.Transcription, error)
	GetOwnedTranscription(ctx context.Context, id, userID string) (*model.Transcription, error)
	ListTranscriptions(ctx context.Context, filter TranscriptionFilter) ([]model.Transcription, error)
	TransitionTranscription(ctx context.Context, id string, u model.Update) (*TransitionResult, error)

	CreditUsage(ctx context.Context, userID, month string, minutes float64) (float64, error)
	GetUsage(ctx context.Context, userID, month string) (float64, error)

	Ping(ctx context.Context) error
}

// TransitionResult reports the outcome of a conditional transition. When
// Applied is false the row was left untouched because the transition graph
// does not allow moving from Previous to the requested status.
type TransitionResult struct {
	Transcription *model.Transcription
	Previous      domain.Status
	Applied       bool
}

// TranscriptionFilter selects a page of an owner's transcriptions
type TranscriptionFilter struct {
	UserID   string
	Status   domain.Status
	PageSize int
	Cursor   *Cursor
}

// Cursor is the keyset position of the last row of the previous page
type Cursor struct {
	CreatedAt time.Time
	ID        string
}
