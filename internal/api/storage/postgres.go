package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/model"
	"github.com/cuongbtq/transcribe-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

const transcriptionColumns = `
	id, user_id, file_name, file_url, status, result,
	error_message, duration_seconds, created_at, updated_at, completed_at
`

var _ Store = (*Storage)(nil)

// Storage is the PostgreSQL-backed Store
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the tables if they do not exist
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Info("Database schema applied")
	return nil
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) CreateTranscription(ctx context.Context, t *model.Transcription) error {
	query := `
		INSERT INTO transcriptions (
			id, user_id, file_name, file_url, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.UserID,
		t.FileName,
		t.FileURL,
		t.Status,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transcription: %w", err)
	}

	return nil
}

func (s *Storage) GetTranscription(ctx context.Context, id string) (*model.Transcription, error) {
	var t model.Transcription
	query := `SELECT ` + transcriptionColumns + ` FROM transcriptions WHERE id = $1`

	if err := s.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTranscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get transcription: %w", err)
	}

	return &t, nil
}

func (s *Storage) GetOwnedTranscription(ctx context.Context, id, userID string) (*model.Transcription, error) {
	var t model.Transcription
	query := `SELECT ` + transcriptionColumns + ` FROM transcriptions WHERE id = $1 AND user_id = $2`

	if err := s.db.GetContext(ctx, &t, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTranscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get transcription: %w", err)
	}

	return &t, nil
}

func (s *Storage) ListTranscriptions(ctx context.Context, filter TranscriptionFilter) ([]model.Transcription, error) {
	query := `SELECT ` + transcriptionColumns + ` FROM transcriptions WHERE user_id = $1`
	args := []interface{}{filter.UserID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	// Order by created_at DESC, id DESC for consistent pagination
	query += " ORDER BY created_at DESC, id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []model.Transcription
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transcriptions: %w", err)
	}

	return rows, nil
}

// TransitionTranscription locks the row, checks the transition graph against
// the locked status and writes the merged row. Concurrent callbacks for the
// same job serialize on the row lock, so a terminal row is never overwritten.
func (s *Storage) TransitionTranscription(ctx context.Context, id string, u model.Update) (*TransitionResult, error) {
	var result *TransitionResult

	err := postgresql.RunInTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		var current model.Transcription
		query := `SELECT ` + transcriptionColumns + ` FROM transcriptions WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &current, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrTranscriptionNotFound
			}
			return fmt.Errorf("failed to lock transcription: %w", err)
		}

		if !domain.CanTransition(current.Status, u.Status) {
			result = &TransitionResult{Transcription: &current, Previous: current.Status}
			return nil
		}

		next := model.Apply(current, u, s.now())

		update := `
			UPDATE transcriptions
			SET status = $2,
				result = $3,
				error_message = $4,
				duration_seconds = $5,
				completed_at = $6,
				updated_at = $7
			WHERE id = $1 AND status = $8
		`
		res, err := tx.ExecContext(ctx, update,
			id,
			next.Status,
			next.Result,
			next.ErrorMessage,
			next.DurationSeconds,
			next.CompletedAt,
			next.UpdatedAt,
			current.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to update transcription: %w", err)
		}

		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("failed to update transcription: row %s changed under lock", id)
		}

		result = &TransitionResult{Transcription: &next, Previous: current.Status, Applied: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Applied {
		s.logger.Info("Transcription status updated",
			slog.String("job_id", id),
			slog.String("from", result.Previous.String()),
			slog.String("to", u.Status.String()),
		)
	}

	return result, nil
}

// CreditUsage adds minutes to the (user, month) accumulator in a single
// upsert and returns the new total.
func (s *Storage) CreditUsage(ctx context.Context, userID, month string, minutes float64) (float64, error) {
	query := `
		INSERT INTO usage (user_id, month, minutes_used, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, month) DO UPDATE
		SET minutes_used = usage.minutes_used + EXCLUDED.minutes_used,
			updated_at = NOW()
		RETURNING minutes_used
	`

	var total float64
	if err := s.db.GetContext(ctx, &total, query, userID, month, minutes); err != nil {
		return 0, fmt.Errorf("failed to credit usage: %w", err)
	}

	return total, nil
}

func (s *Storage) GetUsage(ctx context.Context, userID, month string) (float64, error) {
	var total float64
	query := `SELECT minutes_used FROM usage WHERE user_id = $1 AND month = $2`

	if err := s.db.GetContext(ctx, &total, query, userID, month); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}

	return total, nil
}
