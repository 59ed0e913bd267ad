package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/undo"
	"github.com/harrisonrobin/taskflow/pkg/view"
)

var (
	ErrNotFound      = errors.New("task not found")
	ErrNotLoaded     = errors.New("task store is not loaded")
	ErrAlreadyLoaded = errors.New("task store is already loaded")
	ErrDuplicateID   = errors.New("task id already exists")
)

// DefaultUndoWindow matches how long the delete notification stays up.
const DefaultUndoWindow = 3 * time.Second

// Persister is the durable side of the store.
type Persister interface {
	Load(ctx context.Context) []model.Task
	Save(ctx context.Context, tasks []model.Task) error
}

// Store owns the task collection. It is the only writer; every successful
// mutation is followed by exactly one full save.
type Store struct {
	mu     sync.Mutex
	tasks  []model.Task
	loaded bool

	persist    Persister
	undo       *undo.Buffer
	undoWindow time.Duration

	now    func() time.Time
	newID  func() string
	logger *log.Logger

	subMu       sync.RWMutex
	subscribers []func(Event)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDFunc(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithUndoWindow sets how long a deleted task can be restored. Zero keeps
// deletions restorable until Deletion.Discard or the next delete.
func WithUndoWindow(d time.Duration) Option {
	return func(s *Store) { s.undoWindow = d }
}

func New(p Persister, opts ...Option) *Store {
	s := &Store{
		persist:    p,
		undo:       undo.NewBuffer(),
		undoWindow: DefaultUndoWindow,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the collection from the persister. It must run once before any
// mutation is accepted.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return ErrAlreadyLoaded
	}
	s.tasks = s.persist.Load(ctx)
	s.loaded = true
	return nil
}

// Add finalises draft with a fresh id and creation time and appends it.
func (s *Store) Add(ctx context.Context, draft model.Draft) (model.Task, error) {
	if err := draft.Validate(); err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return model.Task{}, ErrNotLoaded
	}
	task := model.Task{
		ID:          s.freshIDLocked(),
		Title:       draft.Title,
		Description: draft.Description,
		DueDate:     model.FormatTime(draft.DueDate),
		Category:    draft.Category,
		Priority:    draft.Priority,
		CreatedAt:   model.FormatTime(s.now()),
	}
	s.tasks = append(s.tasks, task)
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.emit(Event{Kind: Added, Task: task})
	return task, nil
}

// Update replaces the stored task with the same id. ID and CreatedAt of the
// stored record are kept whatever the caller passes.
func (s *Store) Update(ctx context.Context, task model.Task) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	i := s.indexLocked(task.ID)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Printf("Task not found for update: %s", task.ID)
		return fmt.Errorf("update %s: %w", task.ID, ErrNotFound)
	}
	task.CreatedAt = s.tasks[i].CreatedAt
	if err := task.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.tasks[i] = task
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.emit(Event{Kind: Updated, Task: task})
	return nil
}

// ToggleComplete flips the completed flag and returns the updated task.
func (s *Store) ToggleComplete(ctx context.Context, id string) (model.Task, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return model.Task{}, ErrNotLoaded
	}
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Printf("Task not found for toggle: %s", id)
		return model.Task{}, fmt.Errorf("toggle %s: %w", id, ErrNotFound)
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	task := s.tasks[i]
	s.saveLocked(ctx)
	s.mu.Unlock()

	kind := Reopened
	if task.Completed {
		kind = CompletedKind
	}
	s.emit(Event{Kind: kind, Task: task})
	return task, nil
}

// Delete removes the task and parks a copy in the undo buffer. The returned
// Deletion restores it until the undo window closes.
func (s *Store) Delete(ctx context.Context, id string) (*Deletion, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Printf("Task not found for deletion: %s", id)
		return nil, fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	removed := s.tasks[i]
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	ticket := s.undo.Hold(removed, s.undoWindow)
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.emit(Event{Kind: Deleted, Task: removed})
	return &Deletion{Removed: removed, Expired: ticket.Expired, token: ticket.Token, store: s}, nil
}

// Restore puts a previously deleted task back, keeping its id and creation
// time. Candidates missing a required field are refused with
// model.ErrInvalidTask and leave the collection untouched.
func (s *Store) Restore(ctx context.Context, task model.Task) error {
	if err := task.CheckRequired(); err != nil {
		s.logger.Printf("Restore failed for task %q: %v", task.ID, err)
		s.emit(Event{Kind: RestoreFailed, Task: task})
		return err
	}

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if s.indexLocked(task.ID) >= 0 {
		s.mu.Unlock()
		s.emit(Event{Kind: RestoreFailed, Task: task})
		return fmt.Errorf("restore %s: %w", task.ID, ErrDuplicateID)
	}
	s.tasks = append(s.tasks, task)
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.emit(Event{Kind: Restored, Task: task})
	return nil
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i], true
	}
	return model.Task{}, false
}

// Snapshot returns a copy of the collection in storage order.
func (s *Store) Snapshot() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Store) View(kind view.Kind) []model.Task {
	return view.Of(kind, s.Snapshot(), s.now())
}

func (s *Store) All() []model.Task       { return s.View(view.KindAll) }
func (s *Store) Today() []model.Task     { return s.View(view.KindToday) }
func (s *Store) Upcoming() []model.Task  { return s.View(view.KindUpcoming) }
func (s *Store) Completed() []model.Task { return s.View(view.KindCompleted) }

func (s *Store) Overdue() []model.Task {
	return view.Overdue(s.Snapshot(), s.now())
}

func (s *Store) Stats() view.Stats {
	return view.Summarize(s.Snapshot(), s.now())
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) freshIDLocked() string {
	for {
		id := s.newID()
		if id != "" && s.indexLocked(id) < 0 {
			return id
		}
	}
}

// saveLocked writes the collection. A failed write is logged; the in-memory
// collection stays authoritative for the rest of the session.
func (s *Store) saveLocked(ctx context.Context) {
	if err := s.persist.Save(ctx, s.tasks); err != nil {
		s.logger.Printf("Error saving tasks: %v", err)
	}
}

// Deletion is handed to the caller of Delete.
type Deletion struct {
	Removed model.Task
	// Expired is closed when the task can no longer be restored.
	Expired <-chan struct{}

	token uint64
	store *Store
}

// Restore re-inserts the removed task. It fails with undo.ErrExpired once
// the window has closed or a later delete took its place. A refused
// restore keeps the hold, so it can be retried while the window is open.
func (d *Deletion) Restore(ctx context.Context) error {
	task, ok := d.store.undo.Peek(d.token)
	if !ok {
		return undo.ErrExpired
	}
	if err := d.store.Restore(ctx, task); err != nil {
		return err
	}
	d.store.undo.Take(d.token)
	return nil
}

// Discard ends the undo window now, making the delete permanent.
func (d *Deletion) Discard() {
	d.store.undo.Expire(d.token)
}
