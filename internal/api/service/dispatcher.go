package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/model"
	"github.com/cuongbtq/transcribe-be/internal/api/storage"
	"github.com/cuongbtq/transcribe-be/internal/events"
	"github.com/cuongbtq/transcribe-be/internal/worker"
	"github.com/google/uuid"
)

// Messages stored on jobs that fail during dispatch
const (
	MsgSignedURLFailed    = "Failed to create access URL for audio file"
	MsgWorkerUnreachable  = "Processing server unreachable"
	MsgWorkerRejectedTmpl = "Processing server rejected request (status %d)"
)

// DispatcherConfig wires a Dispatcher
type DispatcherConfig struct {
	Store        storage.Store
	Signer       URLSigner
	Worker       WorkerClient
	Publisher    events.Publisher
	Logger       *slog.Logger
	SignedURLTTL time.Duration
	Now          func() time.Time
	NewID        func() string
}

// Dispatcher creates jobs and hands them off to the worker
type Dispatcher struct {
	store        storage.Store
	signer       URLSigner
	worker       WorkerClient
	publisher    events.Publisher
	logger       *slog.Logger
	signedURLTTL time.Duration
	now          func() time.Time
	newID        func() string
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		store:        cfg.Store,
		signer:       cfg.Signer,
		worker:       cfg.Worker,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
		signedURLTTL: cfg.SignedURLTTL,
		now:          cfg.Now,
		newID:        cfg.NewID,
	}
	if d.publisher == nil {
		d.publisher = events.Noop{}
	}
	if d.signedURLTTL <= 0 {
		d.signedURLTTL = time.Hour
	}
	if d.now == nil {
		d.now = func() time.Time { return time.Now().UTC() }
	}
	if d.newID == nil {
		d.newID = func() string { return uuid.New().String() }
	}
	return d
}

// SubmitRequest is a new transcription for an authenticated owner
type SubmitRequest struct {
	OwnerID  string
	FileName string
	FilePath string
}

// SubmitResult is returned once the worker has accepted the job
type SubmitResult struct {
	ID     string
	Status domain.Status
}

// Submit creates a pending job, signs the audio path and hands the job to the
// worker. Any failure after creation moves the job to failed before the
// *DispatchError is returned, so a job is never left pending when the worker
// is known not to have it.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	now := d.now()
	row := &model.Transcription{
		ID:        d.newID(),
		UserID:    req.OwnerID,
		FileName:  req.FileName,
		FileURL:   req.FilePath,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := d.store.CreateTranscription(ctx, row); err != nil {
		d.logger.Error("Failed to create transcription",
			slog.String("owner_id", req.OwnerID),
			slog.String("step", string(DispatchStore)),
			slog.Any("error", err),
		)
		return nil, &DispatchError{Kind: DispatchStore, Err: err}
	}

	audioURL, err := d.signer.SignedURL(ctx, req.FilePath, d.signedURLTTL)
	if err != nil {
		d.logger.Error("Failed to sign audio URL",
			slog.String("job_id", row.ID),
			slog.String("step", string(DispatchSignedURL)),
			slog.Any("error", err),
		)
		d.markFailed(ctx, row.ID, MsgSignedURLFailed)
		return nil, &DispatchError{Kind: DispatchSignedURL, JobID: row.ID, Err: err}
	}

	if err := d.worker.Process(ctx, row.ID, audioURL); err != nil {
		kind, msg := classifyHandoff(err)
		d.logger.Error("Failed to hand off job",
			slog.String("job_id", row.ID),
			slog.String("step", string(kind)),
			slog.Bool("transport", worker.IsUnreachable(err)),
			slog.Any("error", err),
		)
		d.markFailed(ctx, row.ID, msg)
		return nil, &DispatchError{Kind: kind, JobID: row.ID, Err: err}
	}

	d.logger.Info("Transcription submitted",
		slog.String("job_id", row.ID),
		slog.String("owner_id", req.OwnerID),
		slog.String("file_name", req.FileName),
	)

	return &SubmitResult{ID: row.ID, Status: row.Status}, nil
}

// classifyHandoff maps a worker error to a dispatch kind. Anything that is
// not a rejection counts as unreachable.
func classifyHandoff(err error) (DispatchKind, string) {
	var he *worker.HandoffError
	if worker.IsRejected(err) && errors.As(err, &he) {
		return DispatchRejected, fmt.Sprintf(MsgWorkerRejectedTmpl, he.StatusCode)
	}
	return DispatchUnreachable, MsgWorkerUnreachable
}

// markFailed records a dispatch failure. The write is detached from the
// request context so a disconnecting client cannot leave the job pending.
func (d *Dispatcher) markFailed(ctx context.Context, id, msg string) {
	ctx = context.WithoutCancel(ctx)

	res, err := d.store.TransitionTranscription(ctx, id, model.Update{
		Status:       domain.StatusFailed,
		ErrorMessage: &msg,
	})
	if err != nil {
		d.logger.Error("Failed to mark transcription as failed",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		return
	}
	if res.Applied {
		publishTerminal(ctx, d.publisher, d.logger, res.Transcription, d.now())
	}
}
