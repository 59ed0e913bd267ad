package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(struct {
					Calendar   string `json:"calendar"`
					Storage    string `json:"storage"`
					DataDir    string `json:"data_dir,omitempty"`
					UndoWindow string `json:"undo_window"`
				}{cfg.Calendar, cfg.Storage, cfg.DataDir, cfg.UndoWindow.String()}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			},
		},
		setter("set-calendar <name>", "Set the default Google Calendar name", func(cfg *config.Config, v string) error {
			cfg.Calendar = v
			return nil
		}),
		setter("set-storage <file|sqlite>", "Choose where tasks are stored", func(cfg *config.Config, v string) error {
			if v != config.StorageFile && v != config.StorageSQLite {
				return fmt.Errorf("unknown storage backend %q (want %s or %s)", v, config.StorageFile, config.StorageSQLite)
			}
			cfg.Storage = v
			return nil
		}),
		setter("set-data-dir <dir>", "Store task data in dir instead of the config directory", func(cfg *config.Config, v string) error {
			cfg.DataDir = v
			return nil
		}),
		setter("set-undo-window <duration>", "How long a deleted task can be restored, e.g. 5s", func(cfg *config.Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			if d < 0 {
				return fmt.Errorf("undo window must not be negative")
			}
			cfg.UndoWindow = d
			return nil
		}),
	)
	return cmd
}

// setter builds a subcommand that loads the config, applies one change and
// writes it back.
func setter(use, short string, apply func(*config.Config, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := apply(cfg, args[0]); err != nil {
				return err
			}
			if configPath != "" {
				err = config.SaveTo(configPath, cfg)
			} else {
				err = config.Save(cfg)
			}
			if err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", args[0])
			return nil
		},
	}
}
