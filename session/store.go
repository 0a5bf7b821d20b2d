package session

import (
	"errors"
	"sync"
)

// ErrNoSnapshot is returned by a Store that has nothing persisted.
var ErrNoSnapshot = errors.New("no persisted session")

// Store is the durable client storage behind a Manager.
type Store interface {
	Load() (Session, error)
	Save(Session) error
	Delete() error
}

// MemoryStore keeps the snapshot in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	saved *Session
	saves int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return Session{}, ErrNoSnapshot
	}
	return m.saved.clone(), nil
}

func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := s.clone()
	m.saved = &c
	m.saves++
	return nil
}

func (m *MemoryStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = nil
	m.saves++
	return nil
}

// Writes returns how many times the store was written.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
