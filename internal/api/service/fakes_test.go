package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/model"
	"github.com/cuongbtq/transcribe-be/internal/api/storage"
	"github.com/cuongbtq/transcribe-be/internal/events"
	"github.com/cuongbtq/transcribe-be/internal/summary"
)

var errStoreDown = errors.New("store unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeSigner struct {
	url string
	err error
}

func (f *fakeSigner) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.url != "" {
		return f.url, nil
	}
	return "https://storage.example.com/" + path + "?token=t", nil
}

type fakeWorker struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeWorker) Process(_ context.Context, jobID, audioURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, jobID+" "+audioURL)
	return f.err
}

type fakeSummarizer struct {
	mu      sync.Mutex
	outcome summary.Outcome
	calls   int
}

func (f *fakeSummarizer) Generate(_ context.Context, _ []domain.Segment) summary.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.outcome
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// flakyStore wraps a MemoryStore and fails selected writes
type flakyStore struct {
	*storage.MemoryStore

	mu          sync.Mutex
	failCreate  bool
	failStatus  map[domain.Status]bool
	failCredit  bool
	creditCalls int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		MemoryStore: storage.NewMemoryStore(),
		failStatus:  make(map[domain.Status]bool),
	}
}

func (s *flakyStore) failOn(status domain.Status, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus[status] = fail
}

func (s *flakyStore) CreateTranscription(ctx context.Context, t *model.Transcription) error {
	if s.failCreate {
		return errStoreDown
	}
	return s.MemoryStore.CreateTranscription(ctx, t)
}

func (s *flakyStore) TransitionTranscription(ctx context.Context, id string, u model.Update) (*storage.TransitionResult, error) {
	s.mu.Lock()
	fail := s.failStatus[u.Status]
	s.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return s.MemoryStore.TransitionTranscription(ctx, id, u)
}

func (s *flakyStore) CreditUsage(ctx context.Context, userID, month string, minutes float64) (float64, error) {
	s.mu.Lock()
	s.creditCalls++
	fail := s.failCredit
	s.mu.Unlock()
	if fail {
		return 0, errStoreDown
	}
	return s.MemoryStore.CreditUsage(ctx, userID, month, minutes)
}

func seedPending(s storage.Store, id, owner string, createdAt time.Time) {
	_ = s.CreateTranscription(context.Background(), &model.Transcription{
		ID:        id,
		UserID:    owner,
		FileName:  "meeting.webm",
		FileURL:   owner + "/meeting.webm",
		Status:    domain.StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
}
