package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/config"
	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/storage"
	"github.com/harrisonrobin/taskflow/pkg/store"
	"github.com/spf13/cobra"
)

var (
	configPath string
	ephemeral  bool
	quiet      bool
)

// NewRootCmd builds the taskflow command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskflow",
		Short: "Organize, prioritize, and track your tasks",
		Long: `taskflow keeps a personal task list with due dates, categories and priorities.

Tasks live in a single local slot (a JSON file or a SQLite database) and can be
mirrored to a Google Calendar with "taskflow sync".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/taskflow/config.json)")
	root.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep tasks in memory only, nothing is written")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "do not print change notifications")

	root.AddCommand(
		newAddCmd(),
		newEditCmd(),
		newDoneCmd(),
		newRmCmd(),
		newListCmd(),
		newStatsCmd(),
		newImportCmd(),
		newSyncCmd(),
		newAuthCmd(),
		newConfigCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute(version string) error {
	root := NewRootCmd()
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// app is what every task command works against.
type app struct {
	cfg   *config.Config
	store *store.Store
	close func() error
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

func openApp(ctx context.Context, out io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	slot, closeSlot, err := openSlot(ctx, cfg)
	if err != nil {
		return nil, err
	}

	adapter := storage.NewAdapter(slot, storage.SeedFunc(time.Now), nil)
	st := store.New(adapter, store.WithUndoWindow(cfg.UndoWindow))
	if !quiet {
		st.Subscribe(func(e store.Event) { fmt.Fprintln(out, notification(e)) })
	}
	if err := st.Load(ctx); err != nil {
		closeSlot()
		return nil, err
	}
	return &app{cfg: cfg, store: st, close: closeSlot}, nil
}

func openSlot(ctx context.Context, cfg *config.Config) (storage.Slot, func() error, error) {
	noop := func() error { return nil }
	if ephemeral {
		return storage.NewMemorySlot(), noop, nil
	}
	dir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Storage {
	case config.StorageSQLite:
		slot, err := storage.OpenSQLiteSlot(ctx, dir)
		if err != nil {
			return nil, nil, err
		}
		return slot, slot.Close, nil
	default:
		return storage.NewFileSlot(dir), noop, nil
	}
}

// notification renders a store event the way the dashboard toasts did.
func notification(e store.Event) string {
	switch e.Kind {
	case store.Added:
		return fmt.Sprintf("Task added: %s", e.Task.Title)
	case store.Updated:
		return fmt.Sprintf("Task updated: %s", e.Task.Title)
	case store.Deleted:
		return fmt.Sprintf("Task deleted: %s", e.Task.Title)
	case store.CompletedKind:
		return fmt.Sprintf("Task completed: %s", e.Task.Title)
	case store.Reopened:
		return fmt.Sprintf("Task reopened: %s", e.Task.Title)
	case store.Restored:
		return fmt.Sprintf("Task restored: %s", e.Task.Title)
	case store.RestoreFailed:
		return "Restore failed: could not restore the task due to missing data."
	default:
		return string(e.Kind)
	}
}

// resolveTask finds a task by full id or unique id prefix.
func resolveTask(st *store.Store, ref string) (model.Task, error) {
	if t, ok := st.Get(ref); ok {
		return t, nil
	}
	var matches []model.Task
	for _, t := range st.Snapshot() {
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("no task matches %q: %w", ref, store.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return model.Task{}, fmt.Errorf("%q matches %d tasks, use a longer id", ref, len(matches))
	}
}

// parseDue accepts "today", "tomorrow", "+Nd" or YYYY-MM-DD and returns
// noon local time on that day.
func parseDue(s string, now time.Time) (time.Time, error) {
	y, m, d := now.Date()
	noon := func(offset int) time.Time {
		return time.Date(y, m, d+offset, 12, 0, 0, 0, now.Location())
	}
	switch s = strings.ToLower(strings.TrimSpace(s)); {
	case s == "" || s == "today":
		return noon(0), nil
	case s == "tomorrow":
		return noon(1), nil
	case strings.HasPrefix(s, "+") && strings.HasSuffix(s, "d"):
		var n int
		if _, err := fmt.Sscanf(s, "+%dd", &n); err != nil {
			return time.Time{}, fmt.Errorf("invalid relative date %q", s)
		}
		return noon(n), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q (want today, tomorrow, +Nd or YYYY-MM-DD)", s)
	}
	return t.Add(12 * time.Hour), nil
}
