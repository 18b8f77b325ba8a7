package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(store *flakyStore, signer *fakeSigner, w *fakeWorker, pub *recordingPublisher) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		Store:     store,
		Signer:    signer,
		Worker:    w,
		Publisher: pub,
		Logger:    discardLogger(),
		Now:       fixedClock(time.Date(2025, time.October, 3, 9, 0, 0, 0, time.UTC)),
		NewID:     func() string { return "job-1" },
	})
}

func TestDispatcher_Submit(t *testing.T) {
	store := newFlakyStore()
	w := &fakeWorker{}
	pub := &recordingPublisher{}
	d := newTestDispatcher(store, &fakeSigner{url: "https://signed"}, w, pub)

	res, err := d.Submit(context.Background(), SubmitRequest{OwnerID: "user-1", FileName: "Standup", FilePath: "user-1/a.webm"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", res.ID)
	assert.Equal(t, domain.StatusPending, res.Status)
	assert.Equal(t, []string{"job-1 https://signed"}, w.calls)

	row, err := store.GetTranscription(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, row.Status)
	assert.Equal(t, "user-1/a.webm", row.FileURL)
	assert.Empty(t, pub.Events())
}

func TestDispatcher_SubmitFailures(t *testing.T) {
	tests := []struct {
		name      string
		signerErr error
		workerErr error
		wantKind  DispatchKind
		wantMsg   string
	}{
		{
			name:      "signed url",
			signerErr: errors.New("object not found"),
			wantKind:  DispatchSignedURL,
			wantMsg:   MsgSignedURLFailed,
		},
		{
			name:      "worker timeout",
			workerErr: &worker.HandoffError{Kind: worker.KindUnreachable, Err: context.DeadlineExceeded},
			wantKind:  DispatchUnreachable,
			wantMsg:   MsgWorkerUnreachable,
		},
		{
			name:      "worker rejected",
			workerErr: &worker.HandoffError{Kind: worker.KindRejected, StatusCode: http.StatusServiceUnavailable},
			wantKind:  DispatchRejected,
			wantMsg:   "Processing server rejected request (status 503)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFlakyStore()
			w := &fakeWorker{err: tt.workerErr}
			pub := &recordingPublisher{}
			d := newTestDispatcher(store, &fakeSigner{err: tt.signerErr}, w, pub)

			res, err := d.Submit(context.Background(), SubmitRequest{OwnerID: "user-1", FileName: "f", FilePath: "user-1/a.webm"})
			assert.Nil(t, res)

			var de *DispatchError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantKind, de.Kind)
			assert.Equal(t, "job-1", de.JobID)

			row, err := store.GetTranscription(context.Background(), "job-1")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusFailed, row.Status, "job must never stay pending")
			assert.Equal(t, tt.wantMsg, row.ErrorMessage.String)

			evs := pub.Events()
			require.Len(t, evs, 1)
			assert.Equal(t, "transcription.failed", evs[0].RoutingKey())
		})
	}
}

func TestClassifyHandoff(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind DispatchKind
		wantMsg  string
	}{
		{
			name:     "wrapped rejection",
			err:      fmt.Errorf("process: %w", &worker.HandoffError{Kind: worker.KindRejected, StatusCode: http.StatusBadRequest}),
			wantKind: DispatchRejected,
			wantMsg:  "Processing server rejected request (status 400)",
		},
		{
			name:     "transport failure",
			err:      &worker.HandoffError{Kind: worker.KindUnreachable, Err: errors.New("connection refused")},
			wantKind: DispatchUnreachable,
			wantMsg:  MsgWorkerUnreachable,
		},
		{
			name:     "plain error",
			err:      context.Canceled,
			wantKind: DispatchUnreachable,
			wantMsg:  MsgWorkerUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, msg := classifyHandoff(tt.err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestDispatcher_SignerFailureSkipsWorker(t *testing.T) {
	w := &fakeWorker{}
	d := newTestDispatcher(newFlakyStore(), &fakeSigner{err: errors.New("denied")}, w, &recordingPublisher{})

	_, err := d.Submit(context.Background(), SubmitRequest{OwnerID: "user-1", FileName: "f", FilePath: "p"})
	require.Error(t, err)
	assert.Empty(t, w.calls)
}

func TestDispatcher_StoreFailure(t *testing.T) {
	store := newFlakyStore()
	store.failCreate = true
	w := &fakeWorker{}
	d := newTestDispatcher(store, &fakeSigner{}, w, &recordingPublisher{})

	_, err := d.Submit(context.Background(), SubmitRequest{OwnerID: "user-1", FileName: "f", FilePath: "p"})

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, DispatchStore, de.Kind)
	assert.Empty(t, de.JobID)
	assert.Empty(t, w.calls)
}

func TestDispatcher_CanceledRequestStillMarksFailed(t *testing.T) {
	store := newFlakyStore()
	w := &fakeWorker{err: &worker.HandoffError{Kind: worker.KindUnreachable, Err: context.Canceled}}
	d := newTestDispatcher(store, &fakeSigner{}, w, &recordingPublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Submit(ctx, SubmitRequest{OwnerID: "user-1", FileName: "f", FilePath: "p"})
	require.Error(t, err)

	row, err := store.GetTranscription(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, row.Status)
}
