package session

import (
	"context"
	"sync"
)

// MemoryStore is the dev/test fallback when no database is configured.
// Sessions then only live as long as the process, which matches how the
// dashboard behaves in a private browsing window.
type MemoryStore struct {
	mu     sync.Mutex
	fields map[string]string
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fields: make(map[string]string)}
}

// Load decodes the current record. It never fails with I/O errors; the only
// possible error is ErrCorruptRecord.
func (s *MemoryStore) Load(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	snap := make(map[string]string, len(s.fields))
	for k, v := range s.fields {
		snap[k] = v
	}
	s.mu.Unlock()

	return decodeRecord(snap)
}

// Save atomically replaces the written fields with the given session.
func (s *MemoryStore) Save(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sess.Validate(); err != nil {
		return err
	}

	rec := encodeRecord(sess)

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range rec {
		if v == "" {
			delete(s.fields, k)
			continue
		}
		s.fields[k] = v
	}
	return nil
}

// Clear removes every key the store may ever have written.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range StoreKeys {
		delete(s.fields, k)
	}
	return nil
}

// put seeds a raw field, bypassing Save validation. Used by tests to build
// partial and legacy records.
func (s *MemoryStore) put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[key] = value
}

// raw returns a copy of the underlying fields. Used by tests.
func (s *MemoryStore) raw() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string]string, len(s.fields))
	for k, v := range s.fields {
		snap[k] = v
	}
	return snap
}
