// Package storage loads and saves the event document used by the local platform.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Load when no document has been saved yet.
var ErrNotFound = errors.New("event document not found")

type EventState interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// TestEventState is a simple in-memory implementation for testing
type TestEventState struct {
	mu      sync.Mutex
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func NewTestEventState(data []byte) *TestEventState {
	return &TestEventState{data: data}
}

func NewTestEventStateWithError() *TestEventState {
	return &TestEventState{loadErr: errors.New("not found"), saveErr: errors.New("read only")}
}

func (t *TestEventState) Load(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loadErr != nil {
		return nil, t.loadErr
	}
	if t.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), t.data...), nil
}

func (t *TestEventState) Save(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.saveErr != nil {
		return t.saveErr
	}
	t.data = append([]byte(nil), data...)
	t.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (t *TestEventState) Saves() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saves
}
