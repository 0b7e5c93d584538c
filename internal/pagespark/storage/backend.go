package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// MemoryBackend keeps values in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]string)}
}

func (m *MemoryBackend) GetItem(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *MemoryBackend) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryBackend) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len reports the number of stored items.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// FileBackend persists values as a JSON object on disk. Every write replaces
// the file atomically so a crash never leaves a truncated state file behind.
type FileBackend struct {
	path string

	mu    sync.Mutex
	items map[string]string
}

// OpenFileBackend loads path, treating a missing file as empty.
func OpenFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("storage: file path is required")
	}
	b := &FileBackend{path: path, items: make(map[string]string)}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(raw, &b.items); err != nil {
		return nil, fmt.Errorf("storage: parse %s: %w", path, err)
	}
	if b.items == nil {
		b.items = make(map[string]string)
	}
	return b, nil
}

// Path returns the backing file location.
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) GetItem(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.items[key]
	return v, ok
}

func (b *FileBackend) SetItem(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, had := b.items[key]
	b.items[key] = value
	if err := b.flushLocked(); err != nil {
		if had {
			b.items[key] = prev
		} else {
			delete(b.items, key)
		}
		return err
	}
	return nil
}

func (b *FileBackend) RemoveItem(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, had := b.items[key]
	if !had {
		return nil
	}
	delete(b.items, key)
	if err := b.flushLocked(); err != nil {
		b.items[key] = prev
		return err
	}
	return nil
}

func (b *FileBackend) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("storage: create state dir: %w", err)
	}
	raw, err := json.MarshalIndent(b.items, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode state: %w", err)
	}
	if err := atomic.WriteFile(b.path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("storage: write %s: %w", b.path, err)
	}
	if err := os.Chmod(b.path, 0o600); err != nil {
		return fmt.Errorf("storage: chmod %s: %w", b.path, err)
	}
	return nil
}
