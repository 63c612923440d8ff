package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"alexandria/internal/util"
	"alexandria/pkg/domain"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemorySessionStore keeps encoded sessions in-process. It is meant for
// single-instance deployments and tests.
type MemorySessionStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	sess map[string]memoryEntry
}

// NewMemorySessionStore builds an in-memory store; ttl <= 0 disables expiry.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:  ttl,
		now:  func() time.Time { return time.Now().UTC() },
		sess: make(map[string]memoryEntry),
	}
}

func (m *MemorySessionStore) Create(_ context.Context, user domain.User) (domain.SessionRecord, error) {
	rec, err := newRecord(util.NewID(), user, m.now())
	if err != nil {
		return domain.SessionRecord{}, err
	}
	if err := m.put(rec); err != nil {
		return domain.SessionRecord{}, err
	}
	return rec, nil
}

func (m *MemorySessionStore) Get(ctx context.Context, id string) (domain.SessionRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sess[id]
	if !ok {
		return domain.SessionRecord{}, false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.sess, id)
		return domain.SessionRecord{}, false, nil
	}
	rec, err := decodeRecord(entry.data)
	if err != nil {
		delete(m.sess, id)
		util.LoggerFromContext(ctx).Warn("session record cleared", slog.String("reason", err.Error()))
		return domain.SessionRecord{}, false, nil
	}
	return rec, true, nil
}

func (m *MemorySessionStore) Update(ctx context.Context, id string, user domain.User) (domain.SessionRecord, error) {
	rec, ok, err := m.Get(ctx, id)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	if !ok {
		return domain.SessionRecord{}, ErrSessionNotFound
	}
	if user.UserID <= 0 {
		return domain.SessionRecord{}, ErrInvalidUser
	}
	rec.User = user
	rec.UpdatedAt = m.now()
	if err := m.put(rec); err != nil {
		return domain.SessionRecord{}, err
	}
	return rec, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, id)
	return nil
}

func (m *MemorySessionStore) put(rec domain.SessionRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	entry := memoryEntry{data: data}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.sess[rec.ID] = entry
	m.mu.Unlock()
	return nil
}

// putRaw stores bytes verbatim; tests use it to plant corrupt records.
func (m *MemorySessionStore) putRaw(id string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess[id] = memoryEntry{data: data}
}
