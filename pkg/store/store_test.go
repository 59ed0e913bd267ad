package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"reflect"
	"testing"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/storage"
	"github.com/harrisonrobin/taskflow/pkg/undo"
)

var now = time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *Store
	slot    *storage.MemorySlot
	adapter *storage.Adapter
	events  []Event
}

func newFixture(t *testing.T, initial []model.Task, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{slot: storage.NewMemorySlot()}
	if initial != nil {
		data, err := storage.Encode(initial)
		if err != nil {
			t.Fatal(err)
		}
		f.slot.SetRaw(data)
	}
	quiet := log.New(io.Discard, "", 0)
	f.adapter = storage.NewAdapter(f.slot, storage.SeedFunc(func() time.Time { return now }), quiet)

	seq := 0
	base := []Option{
		WithClock(func() time.Time { return now }),
		WithIDFunc(func() string { seq++; return fmt.Sprintf("id-%d", seq) }),
		WithLogger(quiet),
		WithUndoWindow(0),
	}
	f.store = New(f.adapter, append(base, opts...)...)
	f.store.Subscribe(func(e Event) { f.events = append(f.events, e) })
	if err := f.store.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f
}

func (f *fixture) lastEvent(t *testing.T) Event {
	t.Helper()
	if len(f.events) == 0 {
		t.Fatal("no events emitted")
	}
	return f.events[len(f.events)-1]
}

func draft(title string, dayOffset int, p model.Priority) model.Draft {
	return model.Draft{
		Title:    title,
		DueDate:  now.AddDate(0, 0, dayOffset),
		Category: model.PERSONAL,
		Priority: p,
	}
}

func titles(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestMutationsRejectedBeforeLoad(t *testing.T) {
	ctx := context.Background()
	s := New(storage.NewAdapter(storage.NewMemorySlot(), nil, log.New(io.Discard, "", 0)))

	if _, err := s.Add(ctx, draft("x", 0, model.LOW)); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Add before Load: got %v", err)
	}
	if err := s.Update(ctx, model.Task{ID: "x"}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Update before Load: got %v", err)
	}
	if _, err := s.ToggleComplete(ctx, "x"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("ToggleComplete before Load: got %v", err)
	}
	if _, err := s.Delete(ctx, "x"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Delete before Load: got %v", err)
	}

	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Load(ctx); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("second Load: got %v", err)
	}
}

func TestLoadFallsBackToSeedOnCorruptSlot(t *testing.T) {
	slot := storage.NewMemorySlot()
	slot.SetRaw([]byte("{{{"))
	quiet := log.New(io.Discard, "", 0)
	s := New(storage.NewAdapter(slot, storage.SeedFunc(func() time.Time { return now }), quiet), WithClock(func() time.Time { return now }))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(s.Snapshot(), storage.Seed(now)) {
		t.Errorf("expected seed collection, got %v", titles(s.Snapshot()))
	}
}

func TestAddAssignsIdentityAndPersists(t *testing.T) {
	f := newFixture(t, []model.Task{})
	task, err := f.store.Add(context.Background(), draft("Write report", 1, model.HIGH))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if task.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", task.ID)
	}
	if task.CreatedAt != model.FormatTime(now) {
		t.Errorf("CreatedAt = %q", task.CreatedAt)
	}
	if task.Completed {
		t.Error("new task should not be completed")
	}
	if f.slot.Writes() != 1 {
		t.Errorf("expected exactly one write, got %d", f.slot.Writes())
	}
	if got := f.adapter.Load(context.Background()); len(got) != 1 || got[0] != task {
		t.Errorf("persisted collection = %#v", got)
	}
	if e := f.lastEvent(t); e.Kind != Added || e.Task.ID != task.ID {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestAddSkipsCollidingIDs(t *testing.T) {
	f := newFixture(t, []model.Task{{
		ID: "id-1", Title: "existing", DueDate: model.FormatTime(now),
		Category: model.WORK, Priority: model.LOW, CreatedAt: model.FormatTime(now),
	}})
	task, err := f.store.Add(context.Background(), draft("new", 0, model.LOW))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if task.ID != "id-2" {
		t.Errorf("expected colliding id to be skipped, got %q", task.ID)
	}
}

func TestAddRejectsInvalidDraft(t *testing.T) {
	f := newFixture(t, []model.Task{})
	_, err := f.store.Add(context.Background(), draft("", 0, model.LOW))
	if !errors.Is(err, model.ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask, got %v", err)
	}
	if f.slot.Writes() != 0 || len(f.store.Snapshot()) != 0 {
		t.Error("invalid draft must not change the store")
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	task, _ := f.store.Add(ctx, draft("Old title", 0, model.LOW))

	edited := task
	edited.Title = "New title"
	edited.Priority = model.URGENT
	edited.CreatedAt = "1999-01-01T00:00:00.000Z"
	if err := f.store.Update(ctx, edited); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := f.store.Get(task.ID)
	if got.Title != "New title" || got.Priority != model.URGENT {
		t.Errorf("update not applied: %+v", got)
	}
	if got.CreatedAt != task.CreatedAt {
		t.Errorf("CreatedAt changed to %q", got.CreatedAt)
	}
	if f.slot.Writes() != 2 {
		t.Errorf("writes = %d, want 2", f.slot.Writes())
	}
	if e := f.lastEvent(t); e.Kind != Updated {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestNotFoundIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	f.store.Add(ctx, draft("only", 0, model.LOW))
	before := f.store.Snapshot()
	writes := f.slot.Writes()
	events := len(f.events)

	if err := f.store.Update(ctx, model.Task{ID: "missing", Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update: got %v", err)
	}
	if _, err := f.store.ToggleComplete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ToggleComplete: got %v", err)
	}
	if _, err := f.store.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: got %v", err)
	}

	if !reflect.DeepEqual(before, f.store.Snapshot()) {
		t.Error("collection changed after not-found mutations")
	}
	if f.slot.Writes() != writes || len(f.events) != events {
		t.Error("not-found mutations must not persist or notify")
	}
}

func TestToggleTwiceIsIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	task, _ := f.store.Add(ctx, draft("Flip me", 0, model.LOW))

	first, err := f.store.ToggleComplete(ctx, task.ID)
	if err != nil || !first.Completed {
		t.Fatalf("first toggle: %+v, %v", first, err)
	}
	if e := f.lastEvent(t); e.Kind != CompletedKind {
		t.Errorf("expected completed event, got %s", e.Kind)
	}
	second, err := f.store.ToggleComplete(ctx, task.ID)
	if err != nil || second.Completed {
		t.Fatalf("second toggle: %+v, %v", second, err)
	}
	if e := f.lastEvent(t); e.Kind != Reopened {
		t.Errorf("expected reopened event, got %s", e.Kind)
	}
	if second != task {
		t.Errorf("double toggle changed the task: %+v vs %+v", second, task)
	}
}

func TestDeleteThenRestoreReproducesTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	task, _ := f.store.Add(ctx, draft("Keep me", 2, model.HIGH))
	f.store.ToggleComplete(ctx, task.ID)
	original, _ := f.store.Get(task.ID)

	del, err := f.store.Delete(ctx, task.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if del.Removed != original {
		t.Errorf("Removed = %+v, want %+v", del.Removed, original)
	}
	if _, ok := f.store.Get(task.ID); ok {
		t.Fatal("task still present after delete")
	}
	if e := f.lastEvent(t); e.Kind != Deleted {
		t.Errorf("expected deleted event, got %s", e.Kind)
	}

	if err := del.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, ok := f.store.Get(task.ID)
	if !ok || got != original {
		t.Errorf("restored task = %+v, want %+v", got, original)
	}
	if e := f.lastEvent(t); e.Kind != Restored {
		t.Errorf("expected restored event, got %s", e.Kind)
	}
	if persisted := f.adapter.Load(ctx); len(persisted) != 1 || persisted[0] != original {
		t.Errorf("restored task not persisted: %+v", persisted)
	}
	if err := del.Restore(ctx); !errors.Is(err, undo.ErrExpired) {
		t.Errorf("second Restore: got %v", err)
	}
}

func TestDeleteThenExpiryIsPermanent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	task, _ := f.store.Add(ctx, draft("Gone", 0, model.LOW))

	del, _ := f.store.Delete(ctx, task.ID)
	del.Discard()

	select {
	case <-del.Expired:
	default:
		t.Error("Expired not closed after Discard")
	}
	if err := del.Restore(ctx); !errors.Is(err, undo.ErrExpired) {
		t.Errorf("Restore after expiry: got %v", err)
	}
	for name, list := range map[string][]model.Task{
		"all": f.store.All(), "today": f.store.Today(),
		"upcoming": f.store.Upcoming(), "completed": f.store.Completed(),
	} {
		for _, x := range list {
			if x.ID == task.ID {
				t.Errorf("deleted task visible in %s view", name)
			}
		}
	}
}

func TestUndoWindowExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{}, WithUndoWindow(10*time.Millisecond))
	task, _ := f.store.Add(ctx, draft("Short lived", 0, model.LOW))

	del, _ := f.store.Delete(ctx, task.ID)
	select {
	case <-del.Expired:
	case <-time.After(2 * time.Second):
		t.Fatal("undo window never closed")
	}
	if err := del.Restore(ctx); !errors.Is(err, undo.ErrExpired) {
		t.Errorf("Restore after window: got %v", err)
	}
}

func TestSecondDeleteEvictsFirstUndo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	a, _ := f.store.Add(ctx, draft("A", 0, model.LOW))
	b, _ := f.store.Add(ctx, draft("B", 0, model.LOW))

	delA, _ := f.store.Delete(ctx, a.ID)
	delB, _ := f.store.Delete(ctx, b.ID)

	if err := delA.Restore(ctx); !errors.Is(err, undo.ErrExpired) {
		t.Errorf("first undo should be gone, got %v", err)
	}
	if err := delB.Restore(ctx); err != nil {
		t.Errorf("latest undo should work: %v", err)
	}
}

func TestRestoreRejectsInvalidTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	writes := f.slot.Writes()

	err := f.store.Restore(ctx, model.Task{ID: "x", Title: "no date", Category: model.WORK, Priority: model.LOW})
	if !errors.Is(err, model.ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask, got %v", err)
	}
	if len(f.store.Snapshot()) != 0 || f.slot.Writes() != writes {
		t.Error("invalid restore changed the store")
	}
	if e := f.lastEvent(t); e.Kind != RestoreFailed {
		t.Errorf("expected restore_failed event, got %s", e.Kind)
	}
}

func TestRestoreRejectsLiveID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	task, _ := f.store.Add(ctx, draft("Live", 0, model.LOW))
	if err := f.store.Restore(ctx, task); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if len(f.store.Snapshot()) != 1 {
		t.Error("duplicate restore changed the collection")
	}
}

func TestSaveFailureKeepsSessionState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	first, _ := f.store.Add(ctx, draft("Saved", 0, model.LOW))

	f.slot.FailWrites = errors.New("quota exceeded")
	second, err := f.store.Add(ctx, draft("Unsaved", 0, model.LOW))
	if err != nil {
		t.Fatalf("Add should succeed despite save failure: %v", err)
	}
	if _, ok := f.store.Get(second.ID); !ok {
		t.Error("in-memory collection lost the new task")
	}

	f.slot.FailWrites = nil
	persisted := f.adapter.Load(ctx)
	if len(persisted) != 1 || persisted[0].ID != first.ID {
		t.Errorf("durable state should still hold only the first task, got %+v", persisted)
	}
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	f.store.Add(ctx, draft("A", 0, model.MEDIUM))
	f.store.Add(ctx, draft("B", 0, model.URGENT))

	if got := titles(f.store.All()); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Fatalf("all = %v, want [B A]", got)
	}

	c, _ := f.store.Add(ctx, draft("C", 1, model.HIGH))
	if got := titles(f.store.Upcoming()); !reflect.DeepEqual(got, []string{"C"}) {
		t.Fatalf("upcoming = %v, want [C]", got)
	}

	f.store.ToggleComplete(ctx, c.ID)
	if got := f.store.Upcoming(); len(got) != 0 {
		t.Errorf("upcoming = %v, want []", titles(got))
	}
	if got := titles(f.store.Completed()); !reflect.DeepEqual(got, []string{"C"}) {
		t.Errorf("completed = %v, want [C]", got)
	}

	stats := f.store.Stats()
	if stats.Total != 3 || stats.Completed != 1 || stats.DueToday != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{})
	f.store.Add(ctx, draft("Original", 0, model.LOW))

	snap := f.store.Snapshot()
	snap[0].Title = "Tampered"
	if got := f.store.Snapshot()[0].Title; got != "Original" {
		t.Errorf("snapshot aliases store state: %q", got)
	}
}

func TestUndoRestoresLooselyTypedRecords(t *testing.T) {
	ctx := context.Background()
	stored := []model.Task{
		{ID: "bad-date", Title: "Bad date", DueDate: "not a date", Category: model.PERSONAL, Priority: model.LOW, CreatedAt: "2024-01-01T00:00:00.000Z"},
		{ID: "odd-prio", Title: "Odd priority", DueDate: model.FormatTime(now), Category: model.WORK, Priority: "CRITICAL", CreatedAt: "2024-01-01T00:00:00.000Z"},
	}
	f := newFixture(t, stored)
	if got := f.store.All(); len(got) != 2 {
		t.Fatalf("expected both stored records in All, got %d", len(got))
	}

	for _, original := range stored {
		del, err := f.store.Delete(ctx, original.ID)
		if err != nil {
			t.Fatalf("Delete(%s): %v", original.ID, err)
		}
		if err := del.Restore(ctx); err != nil {
			t.Fatalf("Restore(%s): %v", original.ID, err)
		}
		if got, ok := f.store.Get(original.ID); !ok || got != original {
			t.Errorf("restored %s = %+v, want %+v", original.ID, got, original)
		}
	}
}

func TestRefusedRestoreKeepsUndo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Task{}, WithIDFunc(func() string { return "same" }))
	first, _ := f.store.Add(ctx, draft("First", 0, model.LOW))
	del, err := f.store.Delete(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	// The freed id is handed out again, so the restore collides.
	if _, err := f.store.Add(ctx, draft("Second", 0, model.LOW)); err != nil {
		t.Fatal(err)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		if err := del.Restore(ctx); !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("attempt %d: expected ErrDuplicateID, got %v", attempt, err)
		}
	}
	if held, ok := f.store.undo.Pending(); !ok || held != first {
		t.Errorf("undo hold lost after refused restore: %+v, %v", held, ok)
	}
	select {
	case <-del.Expired:
		t.Error("refused restore closed the undo window")
	default:
	}
}
