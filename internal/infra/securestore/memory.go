// Package securestore provides the per-device secure key-value slot.
package securestore

import (
	"context"
	"sync"

	"github.com/yndnr/tokpass/internal/core/domain"
)

// Memory is a process-local Storage. It backs --ephemeral mode and tests.
//
// Failure hooks run before the corresponding operation; a non-nil error
// aborts it. Hooks may block to simulate slow storage.
type Memory struct {
	mu     sync.Mutex
	data   map[string]string
	closed bool

	BeforeGet    func(key string) error
	BeforeSet    func(key, value string) error
	BeforeDelete func(key string) error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if hook := m.hookGet(); hook != nil {
		if err := hook(key); err != nil {
			return "", false, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, domain.ErrStorageClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	if hook := m.hookSet(); hook != nil {
		if err := hook(key, value); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.ErrStorageClosed
	}
	m.data[key] = value
	return nil
}

// Delete removes key.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if hook := m.hookDelete(); hook != nil {
		if err := hook(key); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.ErrStorageClosed
	}
	delete(m.data, key)
	return nil
}

// Close marks the store closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Snapshot returns a copy of the stored values.
func (m *Memory) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// SetHooks replaces the failure hooks under the lock.
func (m *Memory) SetHooks(get func(string) error, set func(string, string) error, del func(string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BeforeGet, m.BeforeSet, m.BeforeDelete = get, set, del
}

func (m *Memory) hookGet() func(string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.BeforeGet
}

func (m *Memory) hookSet() func(string, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.BeforeSet
}

func (m *Memory) hookDelete() func(string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.BeforeDelete
}
