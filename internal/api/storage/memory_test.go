package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRow(id, userID string, createdAt time.Time) *model.Transcription {
	return &model.Transcription{
		ID:        id,
		UserID:    userID,
		FileName:  id + ".webm",
		FileURL:   userID + "/" + id + ".webm",
		Status:    domain.StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	row := newRow("job-1", "user-1", time.Now())

	require.NoError(t, store.CreateTranscription(ctx, row))
	assert.Error(t, store.CreateTranscription(ctx, row), "duplicate ids are rejected")

	got, err := store.GetTranscription(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)

	_, err = store.GetOwnedTranscription(ctx, "job-1", "user-2")
	assert.ErrorIs(t, err, domain.ErrTranscriptionNotFound)

	_, err = store.GetTranscription(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTranscriptionNotFound)
}

func TestMemoryStore_TransitionRespectsGraph(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateTranscription(ctx, newRow("job-1", "user-1", time.Now())))

	res, err := store.TransitionTranscription(ctx, "job-1", model.Update{Status: domain.StatusTranscribing})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, domain.StatusPending, res.Previous)

	res, err = store.TransitionTranscription(ctx, "job-1", model.Update{Status: domain.StatusConverting})
	require.NoError(t, err)
	assert.False(t, res.Applied, "backward stage is ignored")
	assert.Equal(t, domain.StatusTranscribing, res.Transcription.Status)

	res, err = store.TransitionTranscription(ctx, "job-1", model.Update{Status: domain.StatusComplete})
	require.NoError(t, err)
	require.True(t, res.Applied)
	completedAt := res.Transcription.CompletedAt

	for _, next := range []domain.Status{domain.StatusProcessing, domain.StatusFailed, domain.StatusComplete} {
		res, err = store.TransitionTranscription(ctx, "job-1", model.Update{Status: next})
		require.NoError(t, err)
		assert.False(t, res.Applied, "terminal job must not move to %s", next)
	}

	got, err := store.GetTranscription(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, got.Status)
	assert.Equal(t, completedAt, got.CompletedAt)

	_, err = store.TransitionTranscription(ctx, "missing", model.Update{Status: domain.StatusFailed})
	assert.ErrorIs(t, err, domain.ErrTranscriptionNotFound)
}

func TestMemoryStore_ConcurrentCompletionAppliesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateTranscription(ctx, newRow("job-1", "user-1", time.Now())))

	var applied int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.TransitionTranscription(ctx, "job-1", model.Update{Status: domain.StatusComplete})
			if err == nil && res.Applied {
				atomic.AddInt32(&applied, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied)
}

func TestMemoryStore_CreditUsage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	total, err := store.GetUsage(ctx, "user-1", "2025-10")
	require.NoError(t, err)
	assert.Zero(t, total)

	total, err = store.CreditUsage(ctx, "user-1", "2025-10", 10)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, total, 1e-9)

	total, err = store.CreditUsage(ctx, "user-1", "2025-10", 2)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, total, 1e-9)

	other, err := store.GetUsage(ctx, "user-1", "2025-11")
	require.NoError(t, err)
	assert.Zero(t, other, "periods are independent")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.CreditUsage(ctx, "user-2", "2025-10", 0.5)
		}()
	}
	wg.Wait()

	total, err = store.GetUsage(ctx, "user-2", "2025-10")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, total, 1e-9)
}

func TestMemoryStore_ListTranscriptions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateTranscription(ctx, newRow(fmt.Sprintf("job-%d", i), "user-1", base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, store.CreateTranscription(ctx, newRow("other", "user-2", base)))

	page, err := store.ListTranscriptions(ctx, TranscriptionFilter{UserID: "user-1", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page, 3, "one extra row signals another page")
	assert.Equal(t, "job-4", page[0].ID)
	assert.Equal(t, "job-3", page[1].ID)

	next, err := store.ListTranscriptions(ctx, TranscriptionFilter{
		UserID:   "user-1",
		PageSize: 2,
		Cursor:   &Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID},
	})
	require.NoError(t, err)
	require.Len(t, next, 3)
	assert.Equal(t, "job-2", next[0].ID)

	_, err = store.TransitionTranscription(ctx, "job-0", model.Update{Status: domain.StatusFailed})
	require.NoError(t, err)

	failed, err := store.ListTranscriptions(ctx, TranscriptionFilter{UserID: "user-1", Status: domain.StatusFailed, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "job-0", failed[0].ID)
}
