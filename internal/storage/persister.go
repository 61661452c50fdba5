// Package storage provides the snapshot persistence layer: a named blob
// holding the serialized ledger state, loaded once at startup and overwritten
// wholesale on every mutation.
package storage

import (
	"context"
	"sync"
)

// Persister is the durability contract for the ledger snapshot. Load returns
// (nil, nil) when no snapshot has been written yet.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, snapshot []byte) error
}

// MemoryPersister keeps the snapshot in process memory. It backs tests and the
// "memory" data backend.
type MemoryPersister struct {
	mu    sync.Mutex
	blob  []byte
	saves int
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (m *MemoryPersister) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, nil
	}
	out := make([]byte, len(m.blob))
	copy(out, m.blob)
	return out, nil
}

func (m *MemoryPersister) Save(_ context.Context, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = make([]byte, len(snapshot))
	copy(m.blob, snapshot)
	m.saves++
	return nil
}

// Saves returns how many times Save has been called. Tests use it to assert
// the one-write-per-mutation and one-write-per-reconciliation-batch rules.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
