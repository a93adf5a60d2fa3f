// Package fs provides a file system-based Storage for the mddclient token store.
package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FSStorage stores key/value items as a JSON file on the filesystem.
// Every write is flushed to disk atomically; a failed flush leaves the
// in-memory state unchanged.
type FSStorage struct {
	mu    sync.RWMutex
	path  string
	items map[string]string
}

// storageFile is the JSON structure stored on disk
type storageFile struct {
	Items map[string]string `json:"items"`
}

// NewFSStorage creates a new FS-based storage.
// If path is empty, defaults to ~/.config/<appName>/credentials.json
func NewFSStorage(path string, appName string) (*FSStorage, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "mdd"
		}
		path = filepath.Join(configDir, appName, "credentials.json")
	}

	s := &FSStorage{
		path:  path,
		items: make(map[string]string),
	}

	// Load existing items if file exists
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

// load reads items from disk
func (s *FSStorage) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var file storageFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}

	if file.Items != nil {
		s.items = file.Items
	}
	return nil
}

// GetItem returns the value stored under key
func (s *FSStorage) GetItem(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	return value, ok, nil
}

// SetItem stores value under key and persists the file
func (s *FSStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyItems()
	next[key] = value
	if err := s.flush(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// RemoveItem deletes key and persists the file. Removing a missing key writes nothing.
func (s *FSStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; !ok {
		return nil
	}

	next := s.copyItems()
	delete(next, key)
	if err := s.flush(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// Path returns the path to the credentials file
func (s *FSStorage) Path() string {
	return s.path
}

func (s *FSStorage) copyItems() map[string]string {
	out := make(map[string]string, len(s.items)+1)
	for k, v := range s.items {
		out[k] = v
	}
	return out
}

// flush writes items to disk. Caller must hold s.mu.
func (s *FSStorage) flush(items map[string]string) error {
	// Ensure directory exists with restricted permissions
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(storageFile{Items: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	return writeAtomicFile(s.path, data)
}

// writeAtomicFile writes data to a temp file in the same directory, restricts it
// to owner read/write and renames it over path
func writeAtomicFile(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
