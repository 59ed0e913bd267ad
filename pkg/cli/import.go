package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/orgmode"
	"github.com/harrisonrobin/taskflow/pkg/store"
	"github.com/harrisonrobin/taskflow/pkg/taskwarrior"
	"github.com/spf13/cobra"
)

const (
	formatTaskwarrior = "taskwarrior"
	formatOrg         = "org"
)

func newImportCmd() *cobra.Command {
	var format, only string
	var fromTask bool
	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import tasks from a Taskwarrior export or org-mode files",
		Long: `Import tasks from another tracker.

  taskflow import --format taskwarrior export.json
  task export | taskflow import --format taskwarrior
  taskflow import --format taskwarrior --from-task status:pending
  taskflow import --format org --only work ~/org/inbox.org

Entries without a due (or scheduled) date are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			imported, err := readImports(format, fromTask, args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if only != "" {
				if imported, err = model.FilterCategory(imported, only); err != nil {
					return err
				}
			}

			a, err := openApp(cmd.Context(), io.Discard)
			if err != nil {
				return err
			}
			defer a.close()

			added := addImported(cmd.Context(), a.store, imported)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d tasks.\n", added, len(imported))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTaskwarrior, "input format: taskwarrior or org")
	cmd.Flags().StringVar(&only, "only", "", "import only tasks in this category")
	cmd.Flags().BoolVar(&fromTask, "from-task", false, "run `task export` with the arguments as filter instead of reading files")
	return cmd
}

func readImports(format string, fromTask bool, args []string, in io.Reader) ([]model.Imported, error) {
	switch strings.ToLower(format) {
	case formatTaskwarrior:
		tasks, err := readTaskwarrior(fromTask, args, in)
		if err != nil {
			return nil, err
		}
		var imported []model.Imported
		for _, t := range tasks {
			imp, err := taskwarrior.ToImported(t)
			if err != nil {
				log.Printf("Skipping taskwarrior task: %v", err)
				continue
			}
			imported = append(imported, imp)
		}
		return imported, nil
	case formatOrg:
		if len(args) == 0 {
			return orgmode.Parse(in, "stdin")
		}
		return orgmode.ParseFiles(args)
	default:
		return nil, fmt.Errorf("unknown import format %q (want %s or %s)", format, formatTaskwarrior, formatOrg)
	}
}

func readTaskwarrior(fromTask bool, args []string, in io.Reader) ([]taskwarrior.Task, error) {
	client := taskwarrior.NewClient()
	if fromTask {
		return client.GetTasks(args)
	}
	if len(args) == 0 {
		return client.ParseTasks(in)
	}
	var all []taskwarrior.Task
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		tasks, err := client.ParseTasks(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, tasks...)
	}
	return all, nil
}

// addImported adds every entry, completing the ones that arrived done.
// Entries the store rejects are logged and skipped.
func addImported(ctx context.Context, st *store.Store, imported []model.Imported) int {
	added := 0
	for _, imp := range imported {
		task, err := st.Add(ctx, imp.Draft)
		if err != nil {
			log.Printf("Skipping %q: %v", imp.Draft.Title, err)
			continue
		}
		if imp.Completed {
			if _, err := st.ToggleComplete(ctx, task.ID); err != nil {
				log.Printf("Error completing %q: %v", task.Title, err)
			}
		}
		added++
	}
	return added
}
