package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/undo"
	"github.com/harrisonrobin/taskflow/pkg/view"
	"github.com/spf13/cobra"
)

type taskFlags struct {
	description string
	due         string
	category    string
	priority    string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&f.due, "due", "today", "due date: today, tomorrow, +Nd or YYYY-MM-DD")
	cmd.Flags().StringVarP(&f.category, "category", "c", string(model.PERSONAL), "one of "+joinNames(model.Categories))
	cmd.Flags().StringVarP(&f.priority, "priority", "p", string(model.MEDIUM), "one of "+joinNames(model.Priorities))
}

func joinNames[T ~string](values []T) string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

func newAddCmd() *cobra.Command {
	var flags taskFlags
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := parseDue(flags.due, time.Now())
			if err != nil {
				return err
			}
			category, err := model.ParseCategory(flags.category)
			if err != nil {
				return err
			}
			priority, err := model.ParsePriority(flags.priority)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			task, err := a.store.Add(cmd.Context(), model.Draft{
				Title:       strings.Join(args, " "),
				Description: flags.description,
				DueDate:     due,
				Category:    category,
				Priority:    priority,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s\n", task.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newEditCmd() *cobra.Command {
	var flags taskFlags
	var title string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an existing task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			task, err := resolveTask(a.store, args[0])
			if err != nil {
				return err
			}

			changed := cmd.Flags().Changed
			if changed("title") {
				task.Title = title
			}
			if changed("description") {
				task.Description = flags.description
			}
			if changed("due") {
				due, err := parseDue(flags.due, time.Now())
				if err != nil {
					return err
				}
				task.DueDate = model.FormatTime(due)
			}
			if changed("category") {
				if task.Category, err = model.ParseCategory(flags.category); err != nil {
					return err
				}
			}
			if changed("priority") {
				if task.Priority, err = model.ParsePriority(flags.priority); err != nil {
					return err
				}
			}
			return a.store.Update(cmd.Context(), task)
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "task title")
	flags.register(cmd)
	return cmd
}

func newDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			task, err := resolveTask(a.store, args[0])
			if err != nil {
				return err
			}
			_, err = a.store.ToggleComplete(cmd.Context(), task.ID)
			return err
		},
	}
}

func newRmCmd() *cobra.Command {
	var noUndo bool
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task, with a short window to undo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			task, err := resolveTask(a.store, args[0])
			if err != nil {
				return err
			}
			del, err := a.store.Delete(cmd.Context(), task.ID)
			if err != nil {
				return err
			}
			if noUndo || a.cfg.UndoWindow <= 0 {
				del.Discard()
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Press Enter within %s to undo.\n", a.cfg.UndoWindow)
			if !waitForLine(cmd.InOrStdin(), del.Expired) {
				return nil
			}
			if err := del.Restore(cmd.Context()); err != nil {
				if errors.Is(err, undo.ErrExpired) {
					return fmt.Errorf("too late to undo: %w", err)
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noUndo, "no-undo", false, "delete immediately without offering undo")
	return cmd
}

// waitForLine reports whether a line arrived on in before expired closed.
func waitForLine(in io.Reader, expired <-chan struct{}) bool {
	line := make(chan struct{}, 1)
	go func() {
		if _, err := bufio.NewReader(in).ReadString('\n'); err == nil {
			line <- struct{}{}
		}
	}()
	select {
	case <-line:
		return true
	case <-expired:
		return false
	}
}

func newListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:       "list [all|today|upcoming|completed|overdue]",
		Short:     "List tasks in one of the derived views",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"all", "today", "upcoming", "completed", "overdue"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "all"
			if len(args) == 1 {
				name = args[0]
			}

			a, err := openApp(cmd.Context(), io.Discard)
			if err != nil {
				return err
			}
			defer a.close()

			var tasks []model.Task
			if strings.EqualFold(name, "overdue") {
				tasks = a.store.Overdue()
			} else {
				kind, err := view.ParseKind(name)
				if err != nil {
					return err
				}
				tasks = a.store.View(kind)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if tasks == nil {
					tasks = []model.Task{}
				}
				return enc.Encode(tasks)
			}
			printTasks(cmd.OutOrStdout(), tasks, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tasks as JSON")
	return cmd
}

func printTasks(out io.Writer, tasks []model.Task, today time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tDUE\tPRIORITY\tCATEGORY\tTITLE")
	for _, t := range tasks {
		status := " "
		if t.Completed {
			status = "x"
		}
		fmt.Fprintf(w, "%s\t[%s]\t%s\t%s\t%s\t%s\n",
			shortID(t.ID), status, dueLabel(t, today), t.Priority, t.Category, t.Title)
	}
	w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func dueLabel(t model.Task, today time.Time) string {
	offset, ok := view.DueOffset(t, today)
	if !ok {
		return "?"
	}
	switch {
	case offset == 0:
		return "today"
	case offset == 1:
		return "tomorrow"
	case offset < 0 && !t.Completed:
		return fmt.Sprintf("%dd overdue", -offset)
	}
	due, _ := t.DueIn(today.Location())
	return due.Format("Mon Jan 2")
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task counts and completion rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), io.Discard)
			if err != nil {
				return err
			}
			defer a.close()

			s := a.store.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:     %d\n", s.Total)
			fmt.Fprintf(out, "Completed: %d\n", s.Completed)
			fmt.Fprintf(out, "Pending:   %d\n", s.Pending)
			fmt.Fprintf(out, "Due today: %d\n", s.DueToday)
			fmt.Fprintf(out, "Overdue:   %d\n", s.Overdue)
			fmt.Fprintf(out, "Progress:  %.0f%%\n", s.CompletionRate()*100)
			return nil
		},
	}
}
