package store

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Backend stores opaque document bodies by key. Writes replace the whole
// body atomically: a reader sees the previous body or the new one, never a
// mix.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Mode       string // file (default), memory, sqlite, postgres, badger
	Dir        string
	SQLitePath string
	DSN        string
	BadgerDir  string
}

const (
	defaultDir       = "data"
	defaultLocalName = "bluff_local.db"
)

// Open builds the backend named by opts.Mode and returns it with the
// resolved mode name.
func Open(opts Options) (Backend, string, error) {
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		dir = defaultDir
	}

	switch mode {
	case "", "file":
		b, err := NewFileBackend(dir)
		if err != nil {
			return nil, "", err
		}
		return b, "file", nil
	case "memory":
		return NewMemoryBackend(), "memory", nil
	case "sqlite", "local":
		path := strings.TrimSpace(opts.SQLitePath)
		if path == "" {
			path = filepath.Join(dir, defaultLocalName)
		}
		b, err := NewSQLiteBackend(path)
		if err != nil {
			return nil, "", err
		}
		return b, "sqlite", nil
	case "postgres":
		b, err := NewPostgresBackend(opts.DSN)
		if err != nil {
			return nil, "", err
		}
		return b, "postgres", nil
	case "badger":
		bdir := strings.TrimSpace(opts.BadgerDir)
		if bdir == "" {
			bdir = filepath.Join(dir, "badger")
		}
		b, err := NewBadgerBackend(bdir)
		if err != nil {
			return nil, "", err
		}
		return b, "badger", nil
	default:
		return nil, "", fmt.Errorf("unknown store mode %q", opts.Mode)
	}
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const maxKeyLength = 128

// ValidateKey enforces the document key alphabet [A-Za-z0-9_-].
func ValidateKey(key string) error {
	if len(key) == 0 || len(key) > maxKeyLength || !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

type memoryBackend struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryBackend keeps documents in process memory.
func NewMemoryBackend() Backend {
	return &memoryBackend{docs: make(map[string][]byte)}
}

func (m *memoryBackend) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), body...), nil
}

func (m *memoryBackend) Write(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = append([]byte(nil), body...)
	return nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
	return nil
}

func (m *memoryBackend) Close() error { return nil }
