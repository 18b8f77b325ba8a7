package model

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
)

// Transcription is a persisted job row
type Transcription struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	FileName        string         `db:"file_name"`
	FileURL         string         `db:"file_url"`
	Status          domain.Status  `db:"status"`
	Result          ResultJSON     `db:"result"`
	ErrorMessage    sql.NullString `db:"error_message"`
	DurationSeconds sql.NullInt64  `db:"duration_seconds"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
}

// Usage is a per-owner, per-period minutes accumulator
type Usage struct {
	UserID      string    `db:"user_id"`
	Month       string    `db:"month"`
	MinutesUsed float64   `db:"minutes_used"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ResultJSON stores a domain.Result in a jsonb column. A nil Result maps to NULL.
type ResultJSON struct {
	Result *domain.Result
}

// Value implements driver.Valuer
func (r ResultJSON) Value() (driver.Value, error) {
	if r.Result == nil {
		return nil, nil
	}
	b, err := json.Marshal(r.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner
func (r *ResultJSON) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		r.Result = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported result column type %T", src)
	}

	var result domain.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	r.Result = &result
	return nil
}

// Update describes the fields a single transition wants to change.
// Nil fields are left untouched.
type Update struct {
	Status          domain.Status
	Result          *domain.Result
	ErrorMessage    *string
	DurationSeconds *int
}

// Apply returns a copy of t with u applied at time now. It keeps the row
// invariants: the payload only grows, duration is set at most once,
// completed_at is stamped only on entering complete, and error_message is
// only kept for failed jobs. The caller has already checked the transition.
func Apply(t Transcription, u Update, now time.Time) Transcription {
	out := t
	out.Status = u.Status
	out.UpdatedAt = now

	if u.Result != nil {
		out.Result = ResultJSON{Result: t.Result.Result.Merge(u.Result)}
	}

	if u.DurationSeconds != nil && !t.DurationSeconds.Valid {
		out.DurationSeconds = sql.NullInt64{Int64: int64(*u.DurationSeconds), Valid: true}
	}

	switch u.Status {
	case domain.StatusFailed:
		msg := domain.DefaultFailureMessage
		if u.ErrorMessage != nil && *u.ErrorMessage != "" {
			msg = *u.ErrorMessage
		}
		out.ErrorMessage = sql.NullString{String: msg, Valid: true}
	case domain.StatusComplete:
		out.ErrorMessage = sql.NullString{}
		if !t.CompletedAt.Valid {
			out.CompletedAt = sql.NullTime{Time: now, Valid: true}
		}
	default:
		out.ErrorMessage = sql.NullString{}
	}

	return out
}

// Duration returns the stored duration or 0 when unset
func (t *Transcription) Duration() int {
	if !t.DurationSeconds.Valid {
		return 0
	}
	return int(t.DurationSeconds.Int64)
}
