package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/model"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store. Safe for concurrent access.
// Intended for tests and local development without PostgreSQL.
type MemoryStore struct {
	mu sync.RWMutex

	transcriptions map[string]model.Transcription
	usage          map[usageKey]float64

	now func() time.Time
}

type usageKey struct {
	userID string
	month  string
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transcriptions: make(map[string]model.Transcription),
		usage:          make(map[usageKey]float64),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used to stamp updates
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) CreateTranscription(_ context.Context, t *model.Transcription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transcriptions[t.ID]; exists {
		return fmt.Errorf("failed to create transcription: duplicate id %s", t.ID)
	}
	m.transcriptions[t.ID] = *t
	return nil
}

func (m *MemoryStore) GetTranscription(_ context.Context, id string) (*model.Transcription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transcriptions[id]
	if !ok {
		return nil, domain.ErrTranscriptionNotFound
	}
	return &t, nil
}

func (m *MemoryStore) GetOwnedTranscription(ctx context.Context, id, userID string) (*model.Transcription, error) {
	t, err := m.GetTranscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, domain.ErrTranscriptionNotFound
	}
	return t, nil
}

func (m *MemoryStore) ListTranscriptions(_ context.Context, filter TranscriptionFilter) ([]model.Transcription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []model.Transcription
	for _, t := range m.transcriptions {
		if t.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Cursor != nil && !before(t, filter.Cursor) {
			continue
		}
		rows = append(rows, t)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})

	if limit := filter.PageSize + 1; len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// before reports (created_at, id) < cursor, matching the SQL row comparison
func before(t model.Transcription, c *Cursor) bool {
	if t.CreatedAt.Before(c.CreatedAt) {
		return true
	}
	return t.CreatedAt.Equal(c.CreatedAt) && t.ID < c.ID
}

func (m *MemoryStore) TransitionTranscription(_ context.Context, id string, u model.Update) (*TransitionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.transcriptions[id]
	if !ok {
		return nil, domain.ErrTranscriptionNotFound
	}

	if !domain.CanTransition(current.Status, u.Status) {
		return &TransitionResult{Transcription: &current, Previous: current.Status}, nil
	}

	next := model.Apply(current, u, m.now())
	m.transcriptions[id] = next

	return &TransitionResult{Transcription: &next, Previous: current.Status, Applied: true}, nil
}

func (m *MemoryStore) CreditUsage(_ context.Context, userID, month string, minutes float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := usageKey{userID: userID, month: month}
	m.usage[key] += minutes
	return m.usage[key], nil
}

func (m *MemoryStore) GetUsage(_ context.Context, userID, month string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.usage[usageKey{userID: userID, month: month}], nil
}
