package store

import "github.com/harrisonrobin/taskflow/pkg/model"

type EventKind string

const (
	Added         EventKind = "added"
	Updated       EventKind = "updated"
	Deleted       EventKind = "deleted"
	CompletedKind EventKind = "completed"
	Reopened      EventKind = "reopened"
	Restored      EventKind = "restored"
	RestoreFailed EventKind = "restore_failed"
)

// Event tells subscribers what changed. Task is the record after the change,
// or the removed record for Deleted.
type Event struct {
	Kind EventKind
	Task model.Task
}

// Subscribe registers fn for every future event. Handlers run synchronously
// on the mutating goroutine, after the store lock is released.
func (s *Store) Subscribe(fn func(Event)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) emit(e Event) {
	s.subMu.RLock()
	subs := make([]func(Event), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
