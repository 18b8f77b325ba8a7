// Package service holds the job lifecycle orchestration: submission dispatch
// and callback ingest. Both operate on storage.Store and report failures as
// typed errors that handlers map to HTTP responses.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/model"
	"github.com/cuongbtq/transcribe-be/internal/events"
)

// URLSigner creates worker-readable handles for uploaded audio
type URLSigner interface {
	SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// WorkerClient hands a job to the external processing worker
type WorkerClient interface {
	Process(ctx context.Context, jobID, audioURL string) error
}

// DispatchKind identifies the failed submission step
type DispatchKind string

const (
	DispatchStore       DispatchKind = "store"
	DispatchSignedURL   DispatchKind = "signed_url"
	DispatchUnreachable DispatchKind = "unreachable"
	DispatchRejected    DispatchKind = "rejected"
)

// DispatchError is returned by Dispatcher.Submit. JobID is empty when the
// job could not be created.
type DispatchError struct {
	Kind  DispatchKind
	JobID string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// IngestStep identifies the failed callback write
type IngestStep string

const (
	StepSaveTranscript IngestStep = "save_transcript"
	StepFinalize       IngestStep = "finalize"
	StepUpdate         IngestStep = "update"
)

// IngestError is returned by Ingest.Handle when a store write fails
type IngestError struct {
	Step  IngestStep
	JobID string
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s for job %s: %v", e.Step, e.JobID, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// publishTerminal emits a lifecycle event for a job that just became terminal.
// Broker failures are logged only.
func publishTerminal(ctx context.Context, pub events.Publisher, logger *slog.Logger, t *model.Transcription, now time.Time) {
	if pub == nil || !t.Status.IsTerminal() {
		return
	}

	e := events.NewEvent(t, now)
	if err := pub.Publish(context.WithoutCancel(ctx), e); err != nil {
		logger.Warn("Failed to publish lifecycle event",
			slog.String("job_id", t.ID),
			slog.String("routing_key", e.RoutingKey()),
			slog.Any("error", err),
		)
	}
}
