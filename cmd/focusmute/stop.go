package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/focusmute/focusmute/internal/client"
	"github.com/focusmute/focusmute/internal/daemon"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	stopWait     = 10 * time.Second
	stopInterval = 200 * time.Millisecond
)

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the running instance to unmute everything and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := opts.client()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			dm := daemon.New(cfg.Daemon.PIDFile)

			ctx, cancel := requestContext(cmd)
			defer cancel()

			err = c.Shutdown(ctx)
			switch {
			case err == nil:
				fmt.Fprintln(out, "Stopping focusmute...")
			case errors.Is(err, client.ErrNotRunning):
				return killInstance(out, dm)
			default:
				return err
			}

			if err := waitForExit(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintln(out, "focusmute stopped")
			return nil
		},
	}
}

// killInstance is the fallback when the API does not answer
func killInstance(out io.Writer, dm *daemon.Daemon) error {
	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("error checking status: %w", err)
	}
	if !running {
		fmt.Fprintln(out, "focusmute is not running")
		return nil
	}

	fmt.Fprintf(out, "API not reachable, terminating PID %d\n", pid)
	if err := dm.Stop(); err != nil {
		return fmt.Errorf("failed to stop focusmute: %w", err)
	}
	fmt.Fprintln(out, "focusmute stopped")
	return nil
}

func waitForExit(parent context.Context, c *client.Client) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, stopWait)
	defer cancel()

	ticker := time.NewTicker(stopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("focusmute did not exit within %v", stopWait)
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, time.Second)
			alive := c.Ping(pingCtx)
			pingCancel()
			if !alive {
				return nil
			}
		}
	}
}
