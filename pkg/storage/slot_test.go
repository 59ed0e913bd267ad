package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func exerciseSlot(t *testing.T, slot Slot) {
	t.Helper()
	ctx := context.Background()

	if _, err := slot.Read(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty from fresh slot, got %v", err)
	}
	if err := slot.Write(ctx, []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := slot.Write(ctx, []byte(`[]`)); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	got, err := slot.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("expected last write to win, got %s", got)
	}
}

func TestMemorySlot(t *testing.T) {
	slot := NewMemorySlot()
	exerciseSlot(t, slot)
	if slot.Writes() != 2 {
		t.Errorf("Writes = %d, want 2", slot.Writes())
	}
}

func TestFileSlot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	slot := NewFileSlot(dir)
	exerciseSlot(t, slot)

	if filepath.Base(slot.Path) != Key+".json" {
		t.Errorf("unexpected slot path %s", slot.Path)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the slot file to remain, found %d entries", len(entries))
	}
}

func TestSQLiteSlot(t *testing.T) {
	slot, err := OpenSQLiteSlot(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLiteSlot: %v", err)
	}
	defer slot.Close()
	exerciseSlot(t, slot)
}

func TestSQLiteSlotSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	slot, err := OpenSQLiteSlot(ctx, dir)
	if err != nil {
		t.Fatalf("OpenSQLiteSlot: %v", err)
	}
	if err := slot.Write(ctx, []byte(`["persisted"]`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	slot.Close()

	reopened, err := OpenSQLiteSlot(ctx, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `["persisted"]` {
		t.Errorf("got %s", got)
	}
}
