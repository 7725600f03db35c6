// Package store implements a simple key-value store scoped to one
// pipeline run. The driver records stage results in it and the service
// manager uses it to fail fast on duplicate service names.
package store

import (
	"errors"
	"sync"
)

var (
	ErrKeyExists      = errors.New("store: key already exists")
	ErrKeyDoesntExist = errors.New("store: key does not exist")
)

type Store interface {
	Set(key string, value interface{}) error
	Get(key string) (interface{}, error)
	Delete(key string) error
	Update(key string, newValue interface{}) error
	Keys() []string
}

type MemStore struct {
	lock  sync.Mutex
	store map[string]interface{}
	order []string
}

// NewMemStore returns an empty store. Every pipeline run owns its own
// instance; nothing is shared between runs.
func NewMemStore() *MemStore {
	return &MemStore{
		store: make(map[string]interface{}),
	}
}

// Set is used to set a value to a key.
func (m *MemStore) Set(key string, value interface{}) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.store[key]; ok {
		return ErrKeyExists
	}
	m.store[key] = value
	m.order = append(m.order, key)
	return nil
}

// Get is used to get a value from a key.
func (m *MemStore) Get(key string) (interface{}, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.store[key]; !ok {
		return nil, ErrKeyDoesntExist
	}
	return m.store[key], nil
}

// Delete removes the specified key and value.
func (m *MemStore) Delete(key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.store[key]; !ok {
		return ErrKeyDoesntExist
	}
	delete(m.store, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Update can be used to change the value for a given key.
func (m *MemStore) Update(key string, value interface{}) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.store[key]; !ok {
		return ErrKeyDoesntExist
	}
	m.store[key] = value
	return nil
}

// Keys returns the stored keys in insertion order, so a run report can
// list stages in the order they happened.
func (m *MemStore) Keys() []string {
	m.lock.Lock()
	defer m.lock.Unlock()

	keys := make([]string, len(m.order))
	copy(keys, m.order)
	return keys
}
