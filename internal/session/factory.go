package session

import (
	"fmt"

	"moneybook/internal/log"
)

// Backend names a session store implementation.
type Backend string

const (
	MemoryBackend Backend = "memory"
	SQLiteBackend Backend = "sqlite"
)

func (b Backend) String() string {
	return string(b)
}

func (b Backend) IsValid() bool {
	switch b {
	case MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// Backends returns all valid backend names.
func Backends() []string {
	return []string{MemoryBackend.String(), SQLiteBackend.String()}
}

// StoreConfig selects and configures the session store.
type StoreConfig struct {
	Backend    Backend
	SQLitePath string
}

func (c StoreConfig) Validate() error {
	if !c.Backend.IsValid() {
		return fmt.Errorf("invalid session backend: %s", c.Backend)
	}
	if c.Backend == SQLiteBackend && c.SQLitePath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	return nil
}

// CleanupFunc releases the resources held by a store.
type CleanupFunc func() error

// NewStore creates the store selected by cfg. The returned cleanup func is
// never nil.
func NewStore(cfg StoreConfig, logger *log.Logger) (Store, CleanupFunc, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSession)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	switch cfg.Backend {
	case SQLiteBackend:
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize sqlite session store: %w", err)
		}
		logger.Info("Initialized SQLite session store", "db_path", cfg.SQLitePath)
		return store, store.Close, nil
	default:
		logger.Info("Initialized memory session store")
		return NewMemoryStore(), func() error { return nil }, nil
	}
}
