// Package store is the key-value persistence collaborator. The calendar
// engine reads and writes whole JSON documents under a handful of named keys
// and does not care what sits behind them; backends here cover tests
// (memory), single-host deployments (json files) and the dashboard's shared
// sqlite database.
package store

import (
	"context"
	"sync"
)

// Keys the calendar subsystem and its collaborating streams persist under.
const (
	KeySources   = "calendar.sources"
	KeyCache     = "calendar.cache"
	KeyManual    = "notes.manual-events"
	KeyDeadlines = "projects.deadlines"
)

// Store is get/set over named keys. Get reports found=false for a key that
// was never written; that is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Memory is an in-process Store, used by tests and as a fallback when no
// persistence is configured.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *Memory) Close() error { return nil }
