package state

import (
	"context"
	"sync"
)

// MemoryBackend keeps the document in memory. Used by tests and dry runs.
type MemoryBackend struct {
	mu     sync.Mutex
	data   []byte
	exists bool

	// Writes counts successful writes.
	Writes int
	// FailWrite, when set, is returned by Write.
	FailWrite error
}

// NewMemoryBackend returns an empty backend; pass initial bytes to seed it.
func NewMemoryBackend(initial []byte) *MemoryBackend {
	b := &MemoryBackend{}
	if initial != nil {
		b.data = append([]byte(nil), initial...)
		b.exists = true
	}
	return b
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Read(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.exists {
		return nil, ErrNotExist
	}
	return append([]byte(nil), b.data...), nil
}

func (b *MemoryBackend) Write(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailWrite != nil {
		return b.FailWrite
	}
	b.data = append([]byte(nil), data...)
	b.exists = true
	b.Writes++
	return nil
}

// Bytes returns a copy of the stored document.
func (b *MemoryBackend) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

func (b *MemoryBackend) Close() error { return nil }
