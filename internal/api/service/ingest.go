package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/model"
	"github.com/cuongbtq/transcribe-be/internal/api/storage"
	"github.com/cuongbtq/transcribe-be/internal/events"
	"github.com/cuongbtq/transcribe-be/internal/summary"
)

// Callback is a validated worker update
type Callback struct {
	JobID           string
	Status          domain.Status
	Result          *domain.Result
	ErrorMessage    *string
	DurationSeconds *float64
}

// IngestResult describes what a callback changed
type IngestResult struct {
	Transcription *model.Transcription
	Applied       bool
	Summary       summary.Kind
	Credited      bool
}

// IngestConfig wires an Ingest
type IngestConfig struct {
	Store      storage.Store
	Summarizer summary.Generator
	Publisher  events.Publisher
	Logger     *slog.Logger
	Now        func() time.Time
}

// Ingest applies worker callbacks to the job store
type Ingest struct {
	store      storage.Store
	summarizer summary.Generator
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewIngest creates a new Ingest
func NewIngest(cfg IngestConfig) *Ingest {
	in := &Ingest{
		store:      cfg.Store,
		summarizer: cfg.Summarizer,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if in.summarizer == nil {
		in.summarizer = summary.Noop{}
	}
	if in.publisher == nil {
		in.publisher = events.Noop{}
	}
	if in.now == nil {
		in.now = func() time.Time { return time.Now().UTC() }
	}
	return in
}

// Handle applies cb. A completion carrying transcript segments runs the
// save transcript, summarize, finalize sequence; everything else is a single
// conditional update. Updates for terminal jobs and backward stages are
// accepted as no-ops. Store write failures are returned as *IngestError.
func (in *Ingest) Handle(ctx context.Context, cb Callback) (*IngestResult, error) {
	var duration *int
	if cb.DurationSeconds != nil {
		if d, ok := domain.RoundDuration(*cb.DurationSeconds); ok {
			duration = &d
		}
	}

	if cb.Status == domain.StatusComplete && cb.Result.HasSegments() {
		return in.complete(ctx, cb, duration)
	}

	res, err := in.store.TransitionTranscription(ctx, cb.JobID, model.Update{
		Status:          cb.Status,
		Result:          cb.Result,
		ErrorMessage:    cb.ErrorMessage,
		DurationSeconds: duration,
	})
	if err != nil {
		in.logger.Error("Failed to update transcription",
			slog.String("job_id", cb.JobID),
			slog.String("step", string(StepUpdate)),
			slog.String("status", cb.Status.String()),
			slog.Any("error", err),
		)
		return nil, &IngestError{Step: StepUpdate, JobID: cb.JobID, Err: err}
	}

	out := &IngestResult{Transcription: res.Transcription, Applied: res.Applied, Summary: summary.KindSkipped}
	if !res.Applied {
		in.logIgnored(cb, res.Previous)
		return out, nil
	}

	in.afterTerminal(ctx, res.Transcription, out)
	return out, nil
}

func (in *Ingest) complete(ctx context.Context, cb Callback, duration *int) (*IngestResult, error) {
	logger := in.logger.With(slog.String("job_id", cb.JobID))

	// Step 1: the transcript is durable before the summary is attempted
	saved, err := in.store.TransitionTranscription(ctx, cb.JobID, model.Update{
		Status:          domain.StatusSummarizing,
		Result:          cb.Result,
		DurationSeconds: duration,
	})
	if err != nil {
		logger.Error("Failed to save transcript",
			slog.String("step", string(StepSaveTranscript)),
			slog.Any("error", err),
		)
		return nil, &IngestError{Step: StepSaveTranscript, JobID: cb.JobID, Err: err}
	}
	if !saved.Applied {
		in.logIgnored(cb, saved.Previous)
		return &IngestResult{Transcription: saved.Transcription, Summary: summary.KindSkipped}, nil
	}

	// Step 2: best-effort
	transcript := saved.Transcription.Result.Result
	outcome := in.summarizer.Generate(ctx, transcript.Segments)

	final := *transcript
	switch outcome.Kind {
	case summary.KindGenerated:
		final.Summary = outcome.Summary
	case summary.KindFailed:
		logger.Warn("Summary generation failed, finalizing with transcript only",
			slog.Any("error", outcome.Err),
		)
	default:
		logger.Info("Summary generation skipped",
			slog.String("reason", outcome.Reason),
		)
	}

	// Step 3
	done, err := in.store.TransitionTranscription(ctx, cb.JobID, model.Update{
		Status: domain.StatusComplete,
		Result: &final,
	})
	if err != nil {
		logger.Error("Failed to finalize transcription",
			slog.String("step", string(StepFinalize)),
			slog.Any("error", err),
		)
		return nil, &IngestError{Step: StepFinalize, JobID: cb.JobID, Err: err}
	}

	out := &IngestResult{Transcription: done.Transcription, Applied: done.Applied, Summary: outcome.Kind}
	if !done.Applied {
		// a concurrent callback finalized or failed the job first
		in.logIgnored(cb, done.Previous)
		return out, nil
	}

	in.afterTerminal(ctx, done.Transcription, out)
	return out, nil
}

// afterTerminal runs the side effects owned by the transition that made t
// terminal. It is only called when that transition was applied, which is what
// keeps the usage credit at most once per job.
func (in *Ingest) afterTerminal(ctx context.Context, t *model.Transcription, out *IngestResult) {
	if !t.Status.IsTerminal() {
		return
	}

	if t.Status == domain.StatusComplete {
		out.Credited = in.creditUsage(ctx, t)
	}
	publishTerminal(ctx, in.publisher, in.logger, t, in.now())
}

func (in *Ingest) creditUsage(ctx context.Context, t *model.Transcription) bool {
	seconds := t.Duration()
	if seconds <= 0 || t.UserID == "" {
		return false
	}

	period := domain.Period(in.now())
	minutes := domain.UsageMinutes(seconds)

	total, err := in.store.CreditUsage(context.WithoutCancel(ctx), t.UserID, period, minutes)
	if err != nil {
		in.logger.Error("Failed to credit usage",
			slog.String("job_id", t.ID),
			slog.String("owner_id", t.UserID),
			slog.String("period", period),
			slog.Float64("minutes", minutes),
			slog.Any("error", err),
		)
		return false
	}

	in.logger.Info("Usage credited",
		slog.String("job_id", t.ID),
		slog.String("owner_id", t.UserID),
		slog.String("period", period),
		slog.Float64("minutes", minutes),
		slog.Float64("total", total),
	)
	return true
}

func (in *Ingest) logIgnored(cb Callback, current domain.Status) {
	in.logger.Info("Ignoring callback",
		slog.String("job_id", cb.JobID),
		slog.String("status", cb.Status.String()),
		slog.String("current", current.String()),
	)
}
