package main

import (
	"fmt"
	"io"
	"time"

	"github.com/focusmute/focusmute/internal/client"
	"github.com/focusmute/focusmute/internal/daemon"
	"github.com/focusmute/focusmute/internal/web"
	"github.com/focusmute/focusmute/pkg/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether focusmute is running and what it is doing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := opts.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			ctx, cancel := requestContext(cmd)
			defer cancel()

			status, err := c.Status(ctx)
			if err != nil {
				if !errors.Is(err, client.ErrNotRunning) {
					return err
				}

				running, pid, _ := daemon.New(cfg.Daemon.PIDFile).IsRunning()
				if ok, err := printStructured(out, opts.format, map[string]interface{}{
					"running": false,
					"pid":     pid,
				}); ok {
					return err
				}
				if running {
					fmt.Fprintf(out, "Status: Process %d alive but API unreachable at %s\n", pid, cfg.WebAddr())
					return nil
				}
				fmt.Fprintln(out, "Status: Not running")
				return nil
			}

			if ok, err := printStructured(out, opts.format, status); ok {
				return err
			}
			printStatus(out, status, cfg.Database.Path)
			return nil
		},
	}
}

func printStatus(w io.Writer, st *web.StatusResponse, dbPath string) {
	fmt.Fprintf(w, "Status: Running (up %s)\n", st.Uptime)
	fmt.Fprintf(w, "Processes: %d listed, %d watched\n", st.Entries, st.Watched)

	if st.Focused != "" {
		fmt.Fprintf(w, "Focused window: %s\n", st.Focused)
	} else {
		fmt.Fprintln(w, "Focused window: unknown")
	}

	if st.FocusTracking {
		fmt.Fprintln(w, "Focus tracking: active")
	} else {
		fmt.Fprintf(w, "Focus tracking: degraded (%s)\n", st.FocusError)
	}

	if st.AudioDeviceAvailable {
		fmt.Fprintln(w, "Audio device: available")
	} else {
		fmt.Fprintln(w, "Audio device: unavailable")
	}

	if st.PendingCommands > 0 {
		fmt.Fprintf(w, "Pending commands: %d\n", st.PendingCommands)
	}

	if !st.JournalEnabled {
		fmt.Fprintln(w, "Journal: disabled")
		return
	}
	fmt.Fprintf(w, "Journal: %s\n", dbPath)
	if e := st.LatestEvent; e != nil {
		fmt.Fprintf(w, "\nLast command:\n")
		fmt.Fprintf(w, "  Process: %s\n", e.ProcessName)
		fmt.Fprintf(w, "  State:   %s (%s)\n", utils.MuteLabel(e.Muted), e.Reason)
		fmt.Fprintf(w, "  When:    %s\n", utils.FormatAgo(e.Timestamp, time.Now()))
	}
}
