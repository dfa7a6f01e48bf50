package memory

import (
	"context"
	"sort"
	"sync"

	id "donations/pkg/domain"
	audit "donations/pkg/platform/audit"
	"donations/pkg/platform/sentinel"
)

// InMemoryStore keeps the audit log in a slice. Clone lets an in-memory unit
// of work stage appends and discard them on rollback.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
	nextID  id.AuditEntryID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

// Clone returns an independent copy of the log.
func (s *InMemoryStore) Clone() *InMemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &InMemoryStore{
		entries: append([]audit.Entry(nil), s.entries...),
		nextID:  s.nextID,
	}
}

func (s *InMemoryStore) Append(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, entryID id.AuditEntryID) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.entries {
		if s.entries[i].ID == entryID {
			e := s.entries[i]
			return &e, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListByEntity returns entries for one entity in append order.
func (s *InMemoryStore) ListByEntity(_ context.Context, entityKind string, entityID int64) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if e.EntityKind == entityKind && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListRecent returns up to limit entries, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]audit.Entry(nil), s.entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Len reports how many entries the log holds.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
