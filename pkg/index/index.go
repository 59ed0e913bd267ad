package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const indexFile = "calendar_events.json"

// Entry records the calendar event that mirrors one task.
type Entry struct {
	EventID  string    `json:"event_id"`
	SyncedAt time.Time `json:"synced_at"`
}

// EventIndex maps task ids to the calendar events published for them.
// It is local bookkeeping only; the task slot never reads it.
type EventIndex struct {
	Path string

	mu      sync.RWMutex
	entries map[string]Entry
	dirty   bool
	now     func() time.Time
}

// Open loads the index kept in dir, starting empty when there is none yet.
func Open(dir string) (*EventIndex, error) {
	idx := &EventIndex{
		Path:    filepath.Join(dir, indexFile),
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	data, err := os.ReadFile(idx.Path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &idx.entries); err != nil {
		return nil, err
	}
	if idx.entries == nil {
		idx.entries = make(map[string]Entry)
	}
	return idx, nil
}

// Save writes the index if anything changed since the last save.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	data, err := json.MarshalIndent(idx.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(idx.Path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(idx.Path, data, 0600); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

// Get returns the event id for taskID, or "" when the task was never
// published.
func (idx *EventIndex) Get(taskID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries[taskID].EventID
}

// Set records that taskID is mirrored by eventID as of now.
func (idx *EventIndex) Set(taskID, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[taskID] = Entry{EventID: eventID, SyncedAt: idx.now().UTC()}
	idx.dirty = true
}

func (idx *EventIndex) Remove(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.entries[taskID]; ok {
		delete(idx.entries, taskID)
		idx.dirty = true
	}
}

// TaskIDs lists every mapped task, sorted.
func (idx *EventIndex) TaskIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.entries))
	for id := range idx.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len is the number of published tasks.
func (idx *EventIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}
