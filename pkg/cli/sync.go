package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/auth"
	"github.com/harrisonrobin/taskflow/pkg/google"
	"github.com/harrisonrobin/taskflow/pkg/index"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var calendarName string
	var background bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror open tasks to Google Calendar as all-day events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if background {
				return spawnSync(calendarName)
			}

			a, err := openApp(cmd.Context(), io.Discard)
			if err != nil {
				return err
			}
			defer a.close()

			// Priority: flag > config > default
			selected := a.cfg.Calendar
			if calendarName != "" {
				selected = calendarName
			}

			home, err := a.cfg.HomeDir()
			if err != nil {
				return err
			}
			dataDir, err := a.cfg.ResolveDataDir()
			if err != nil {
				return err
			}
			idx, err := index.Open(dataDir)
			if err != nil {
				log.Printf("Warning: failed to open event index: %v", err)
				idx = nil
			}

			client, err := google.NewClient(cmd.Context(), auth.NewFlow(home), selected, idx)
			if err != nil {
				return fmt.Errorf("error creating Google Calendar client: %w", err)
			}

			report := client.Mirror(cmd.Context(), a.store.Snapshot(), time.Now())
			if idx != nil {
				if err := idx.Save(); err != nil {
					log.Printf("Warning: failed to save event index: %v", err)
				}
			}
			tracked := 0
			if idx != nil {
				tracked = idx.Len()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d, removed %d, failed %d (calendar %q, %d events tracked)\n",
				report.Synced, report.Removed, report.Failed, selected, tracked)
			if report.Failed > 0 {
				return fmt.Errorf("%d calendar updates failed", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&calendarName, "calendar", "", "Google Calendar name to sync with (overrides config)")
	cmd.Flags().BoolVar(&background, "background", false, "run the sync in a detached process and return immediately")
	return cmd
}

// spawnSync re-executes the binary with a plain sync and does not wait.
func spawnSync(calendarName string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not find self: %w", err)
	}
	args := []string{"sync", "--quiet"}
	if calendarName != "" {
		args = append(args, "--calendar", calendarName)
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(self, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not start background sync: %w", err)
	}
	return cmd.Process.Release()
}

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google Calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			home, err := cfg.HomeDir()
			if err != nil {
				return fmt.Errorf("could not find path to configuration file: %w", err)
			}
			flow := auth.NewFlow(home)
			if err := flow.Reset(); err != nil {
				return err
			}
			if _, err := flow.CalendarService(cmd.Context()); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", flow.TokenPath())
			return nil
		},
	}
}
