package service

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"dtgate/core/cache"
)

// aggregatorPrefixes are the cache namespaces invalidated when the
// selected management zone changes, so the next request observes the new
// zone.
var aggregatorPrefixes = []string{
	"services:",
	"hosts:",
	"processes:",
	"summary:",
	"problems:",
}

type selectionRecord struct {
	CurrentMZ string `json:"current_mz"`
}

// SelectionStore holds the currently selected management zone, persisted
// as a single JSON record on disk with a configured default as fallback.
// It is read-mostly; writes replace the file atomically.
type SelectionStore struct {
	mu          sync.Mutex
	path        string
	defaultZone string
	cache       *cache.Cache
}

// NewSelectionStore creates a selection store backed by the given file.
func NewSelectionStore(path, defaultZone string, c *cache.Cache) *SelectionStore {
	return &SelectionStore{
		path:        path,
		defaultZone: defaultZone,
		cache:       c,
	}
}

// Current returns the selected management zone, falling back to the
// configured default when no selection has been persisted.
func (s *SelectionStore) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s.defaultZone
	}
	var record selectionRecord
	if err := json.Unmarshal(data, &record); err != nil || record.CurrentMZ == "" {
		log.Printf("Ignoring unreadable selection file %s: %v", s.path, err)
		return s.defaultZone
	}
	return record.CurrentMZ
}

// Set persists the new selection and invalidates every aggregator cache
// namespace.
func (s *SelectionStore) Set(name string) error {
	if name == "" {
		return fmt.Errorf("management zone name is required")
	}

	s.mu.Lock()
	if err := s.write(name); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	removed := 0
	for _, prefix := range aggregatorPrefixes {
		removed += s.cache.Invalidate(prefix)
	}
	log.Printf("Management zone set to %q (%d cache entries invalidated)", name, removed)
	return nil
}

// write replaces the selection file atomically via temp file + rename.
func (s *SelectionStore) write(name string) error {
	data, err := json.Marshal(selectionRecord{CurrentMZ: name})
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create selection directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".selection-*")
	if err != nil {
		return fmt.Errorf("create selection temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write selection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close selection temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace selection file: %w", err)
	}
	return nil
}
