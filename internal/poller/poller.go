// Package poller follows a submitted transcription until it reaches a
// terminal state or is judged stale. Staleness is a local verdict only: the
// poller never writes to the server, and a later read of the job always
// reflects the server record.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
)

const (
	DefaultInterval          = 3 * time.Second
	DefaultFetchTimeout      = 10 * time.Second
	DefaultPendingStaleAfter = 30 * time.Second
	DefaultActiveStaleAfter  = 5 * time.Minute
)

const (
	MsgFailedDefault = "Processing failed"
	MsgUnreachable   = "Processing server not responding"
	MsgTimedOut      = "Processing timed out"
)

// Snapshot is the job status as returned by the server
type Snapshot struct {
	ID              string
	Status          domain.Status
	ErrorMessage    *string
	DurationSeconds *int
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// Fetcher reads the current job status
type Fetcher interface {
	Status(ctx context.Context, id string) (*Snapshot, error)
}

// Kind is how polling ended
type Kind int

const (
	KindCompleted Kind = iota + 1
	KindFailed
	KindUnreachable
	KindTimedOut
	KindAborted
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindCompleted:
		return "completed"
	case KindFailed:
		return "failed"
	case KindUnreachable:
		return "unreachable"
	case KindTimedOut:
		return "timed_out"
	case KindAborted:
		return "aborted"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Outcome is the final result of Wait. Snapshot is the last status read, nil
// if no fetch ever succeeded.
type Outcome struct {
	Kind     Kind
	Snapshot *Snapshot
	Message  string
	Err      error
}

// Stale reports whether the outcome is a locally declared failure
func (o Outcome) Stale() bool {
	return o.Kind == KindUnreachable || o.Kind == KindTimedOut
}

// Succeeded reports whether the job completed
func (o Outcome) Succeeded() bool {
	return o.Kind == KindCompleted
}

// Config holds poller settings. Zero durations take the defaults.
// IsPermanent marks fetch errors that end polling instead of being retried.
type Config struct {
	Interval          time.Duration
	FetchTimeout      time.Duration
	PendingStaleAfter time.Duration
	ActiveStaleAfter  time.Duration
	Now               func() time.Time
	OnProgress        func(Snapshot)
	IsPermanent       func(error) bool
	Logger            *slog.Logger
}

// Poller polls one job at a time; it holds no per-job state between calls
type Poller struct {
	fetcher Fetcher
	cfg     Config
}

// New creates a poller over fetcher
func New(fetcher Fetcher, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.PendingStaleAfter <= 0 {
		cfg.PendingStaleAfter = DefaultPendingStaleAfter
	}
	if cfg.ActiveStaleAfter <= 0 {
		cfg.ActiveStaleAfter = DefaultActiveStaleAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IsPermanent == nil {
		cfg.IsPermanent = func(error) bool { return false }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{fetcher: fetcher, cfg: cfg}
}

// Wait polls job id until it is terminal, stale, aborted by a permanent
// fetch error, or ctx is done. The first fetch happens immediately.
func (p *Poller) Wait(ctx context.Context, id string) Outcome {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var last *Snapshot
	for {
		snap, err := p.fetch(ctx, id)
		switch {
		case err != nil && ctx.Err() != nil:
			return Outcome{Kind: KindCanceled, Snapshot: last, Err: ctx.Err()}
		case err != nil && p.cfg.IsPermanent(err):
			return Outcome{Kind: KindAborted, Snapshot: last, Message: err.Error(), Err: err}
		case err != nil:
			p.cfg.Logger.Debug("Status fetch failed, retrying",
				slog.String("job_id", id),
				slog.Any("error", err),
			)
		default:
			if last == nil || last.Status != snap.Status {
				if p.cfg.OnProgress != nil {
					p.cfg.OnProgress(*snap)
				}
			}
			last = snap
			if out, done := Evaluate(snap, p.cfg.Now(), p.cfg.PendingStaleAfter, p.cfg.ActiveStaleAfter); done {
				return out
			}
		}

		select {
		case <-ctx.Done():
			return Outcome{Kind: KindCanceled, Snapshot: last, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (p *Poller) fetch(ctx context.Context, id string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	snap, err := p.fetcher.Status(ctx, id)
	if err == nil && snap == nil {
		return nil, errors.New("empty status response")
	}
	return snap, err
}

// Evaluate decides whether polling should stop for snap observed at now.
// A pending job older than pendingStale is unreachable; any non-terminal
// job older than activeStale has timed out.
func Evaluate(snap *Snapshot, now time.Time, pendingStale, activeStale time.Duration) (Outcome, bool) {
	switch snap.Status {
	case domain.StatusComplete:
		return Outcome{Kind: KindCompleted, Snapshot: snap}, true
	case domain.StatusFailed:
		msg := MsgFailedDefault
		if snap.ErrorMessage != nil && *snap.ErrorMessage != "" {
			msg = *snap.ErrorMessage
		}
		return Outcome{Kind: KindFailed, Snapshot: snap, Message: msg}, true
	}

	if snap.CreatedAt.IsZero() {
		return Outcome{}, false
	}

	elapsed := now.Sub(snap.CreatedAt)
	if snap.Status == domain.StatusPending && elapsed > pendingStale {
		return Outcome{Kind: KindUnreachable, Snapshot: snap, Message: MsgUnreachable}, true
	}
	if elapsed > activeStale {
		return Outcome{Kind: KindTimedOut, Snapshot: snap, Message: MsgTimedOut}, true
	}
	return Outcome{}, false
}
