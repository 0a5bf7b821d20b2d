package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// fileSnapshot is the on-disk layout: one session per namespace, so the
// three portals (and several backends) can share a single file.
type fileSnapshot struct {
	Sessions map[string]*Session `json:"sessions"`
}

// FileStore persists a session as JSON in a 0600 file.
type FileStore struct {
	path      string
	namespace string
}

// NewFileStore returns a store for namespace inside the file at path.
func NewFileStore(path, namespace string) *FileStore {
	return &FileStore{path: path, namespace: namespace}
}

// Path returns the file backing the store.
func (f *FileStore) Path() string {
	return f.path
}

// Load returns the namespace's session, or ErrNoSnapshot.
func (f *FileStore) Load() (Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSnapshot
	}
	if err != nil {
		return Session{}, err
	}

	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Session{}, fmt.Errorf("failed to parse session file: %w", err)
	}

	s, ok := snap.Sessions[f.namespace]
	if !ok || s == nil {
		return Session{}, ErrNoSnapshot
	}
	return *s, nil
}

// Save writes s for the namespace, preserving the other namespaces.
func (f *FileStore) Save(s Session) error {
	return f.update(func(snap *fileSnapshot) {
		snap.Sessions[f.namespace] = &s
	})
}

// Delete removes the namespace's session from the file.
func (f *FileStore) Delete() error {
	return f.update(func(snap *fileSnapshot) {
		delete(snap.Sessions, f.namespace)
	})
}

// update runs a read-modify-write cycle under the file lock.
func (f *FileStore) update(mutate func(*fileSnapshot)) (err error) {
	lock, err := acquireFileLock(f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil && err == nil {
			err = fmt.Errorf("failed to release lock: %w", releaseErr)
		}
	}()

	var snap fileSnapshot
	if existing, readErr := os.ReadFile(f.path); readErr == nil {
		// a corrupt file is replaced rather than blocking every write
		_ = json.Unmarshal(existing, &snap)
	}
	if snap.Sessions == nil {
		snap.Sessions = make(map[string]*Session)
	}

	mutate(&snap)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, f.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
