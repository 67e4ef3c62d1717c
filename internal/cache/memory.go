package cache

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/roach88/jmapc/internal/shape"
)

type entityKey struct {
	account, typeName, id string
}

type stateKey struct {
	account, typeName string
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	states   map[stateKey]string
	entities map[entityKey][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		states:   make(map[stateKey]string),
		entities: make(map[entityKey][]byte),
	}
}

// Apply merges d. A failed merge leaves the store unchanged.
func (m *Memory) Apply(_ context.Context, d shape.Delta) error {
	if err := validateDelta(d); err != nil {
		return writeFailure(err, "invalid delta")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := make(map[string]bool, len(d.Removed))
	for _, id := range d.Removed {
		removed[id] = true
	}

	ids := make(map[string]bool, len(d.Upserts)+len(d.Patches))
	for id := range d.Upserts {
		ids[id] = true
	}
	for id := range d.Patches {
		ids[id] = true
	}

	merged := make(map[entityKey][]byte, len(ids))
	for id := range ids {
		key := entityKey{d.AccountID, d.TypeName, id}
		var existing []byte
		if !removed[id] {
			existing = m.entities[key]
		}
		data, err := nextRecord(existing, d.Patches[id], d.Upserts[id])
		if err != nil {
			return writeFailure(err, "merge %s %s", d.TypeName, id)
		}
		merged[key] = data
	}

	for _, id := range d.Removed {
		delete(m.entities, entityKey{d.AccountID, d.TypeName, id})
	}
	for key, data := range merged {
		if data == nil {
			delete(m.entities, key)
			continue
		}
		m.entities[key] = data
	}
	sk := stateKey{d.AccountID, d.TypeName}
	if advanceState(d, m.states[sk]) {
		m.states[sk] = d.State
	}
	return nil
}

func (m *Memory) State(_ context.Context, accountID, typeName string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[stateKey{accountID, typeName}], nil
}

func (m *Memory) Entity(_ context.Context, accountID, typeName, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.entities[entityKey{accountID, typeName, id}]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

// IDs returns the stored ids of a type, sorted.
func (m *Memory) IDs(_ context.Context, accountID, typeName string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for key := range m.entities {
		if key.account == accountID && key.typeName == typeName {
			ids = append(ids, key.id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
