// Package undo holds the most recently deleted task until it is restored or
// its undo window runs out.
package undo

import (
	"errors"
	"sync"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

// ErrExpired means the hold a caller refers to is gone: its window ran out
// or a later delete replaced it.
var ErrExpired = errors.New("undo window has expired")

// Ticket identifies one hold.
type Ticket struct {
	Token uint64
	Task  model.Task
	// Expired is closed once the hold ends without being taken.
	Expired <-chan struct{}
}

type hold struct {
	token   uint64
	task    model.Task
	timer   *time.Timer
	expired chan struct{}
}

// Buffer keeps at most one pending hold. Holding a new task evicts the
// previous one, so only the last delete can be undone.
type Buffer struct {
	mu      sync.Mutex
	next    uint64
	pending *hold
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Hold stores task and returns its ticket. With window > 0 the hold expires
// on its own after window; with window == 0 it lasts until Expire, Take or
// the next Hold.
func (b *Buffer) Hold(task model.Task, window time.Duration) Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.endLocked()
	b.next++
	h := &hold{token: b.next, task: task, expired: make(chan struct{})}
	if window > 0 {
		token := h.token
		h.timer = time.AfterFunc(window, func() { b.Expire(token) })
	}
	b.pending = h
	return Ticket{Token: h.token, Task: task, Expired: h.expired}
}

// Take hands back the held task if token still names the pending hold.
func (b *Buffer) Take(token uint64) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.pending
	if h == nil || h.token != token {
		return model.Task{}, false
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	b.pending = nil
	return h.task, true
}

// Peek returns the held task without ending the hold.
func (b *Buffer) Peek(token uint64) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil || b.pending.token != token {
		return model.Task{}, false
	}
	return b.pending.task, true
}

// Expire discards the hold named by token. It reports whether anything was
// discarded.
func (b *Buffer) Expire(token uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == nil || b.pending.token != token {
		return false
	}
	b.endLocked()
	return true
}

// Pending returns the task currently held, if any.
func (b *Buffer) Pending() (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return model.Task{}, false
	}
	return b.pending.task, true
}

func (b *Buffer) endLocked() {
	h := b.pending
	if h == nil {
		return
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	close(h.expired)
	b.pending = nil
}
