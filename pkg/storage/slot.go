package storage

import (
	"context"
	"errors"
	"sync"
)

// Key names the single slot the task collection lives in.
const Key = "taskflow-tasks"

// ErrEmpty is returned by Slot.Read when nothing has been stored yet.
var ErrEmpty = errors.New("storage slot is empty")

// Slot is one named durable value. Write replaces the stored value
// entirely; a failed Write must leave the previous value readable.
type Slot interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// MemorySlot keeps the value in process memory.
type MemorySlot struct {
	mu   sync.Mutex
	data []byte
	set  bool

	// FailWrites makes every Write fail with this error, e.g. to simulate a
	// full disk.
	FailWrites error
	writes     int
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (m *MemorySlot) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return nil, ErrEmpty
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemorySlot) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.data = append([]byte(nil), data...)
	m.set = true
	m.writes++
	return nil
}

// Writes reports how many writes succeeded.
func (m *MemorySlot) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// SetRaw stores data as-is, bypassing FailWrites.
func (m *MemorySlot) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.set = true
}
