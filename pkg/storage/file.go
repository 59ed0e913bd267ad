package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSlot stores the value in <dir>/<Key>.json.
type FileSlot struct {
	Path string
}

func NewFileSlot(dir string) *FileSlot {
	return &FileSlot{Path: filepath.Join(dir, Key+".json")}
}

func (f *FileSlot) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	return data, nil
}

// Write goes through a temp file and a rename so a crash or a full disk
// never leaves a truncated slot behind.
func (f *FileSlot) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		tmp.Close()
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return err
	}
	committed = true
	return nil
}
