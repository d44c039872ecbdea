package main

import (
	"fmt"

	"github.com/focusmute/focusmute/internal/catalog"
	"github.com/focusmute/focusmute/pkg/window"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *rootOptions, watched bool) *cobra.Command {
	var only bool

	use, short := "watch", "Add windows to the watch list"
	if !watched {
		use, short = "unwatch", "Remove windows from the watch list"
	}

	cmd := &cobra.Command{
		Use:   use + " <handle>...",
		Short: short,
		Long: `Handles are the window handles printed by "focusmute list", in hex with a
0x prefix or in decimal.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handles, err := parseHandles(args)
			if err != nil {
				return err
			}

			c, _, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			var entries []catalog.Entry
			if only {
				entries, err = c.SetWatchList(ctx, handles)
				if err != nil {
					return err
				}
			} else {
				for _, h := range handles {
					entries, err = c.Watch(ctx, h, watched)
					if err != nil {
						return fmt.Errorf("%s %s: %w", use, h, err)
					}
				}
			}

			out := cmd.OutOrStdout()
			if ok, err := printStructured(out, opts.format, entries); ok {
				return err
			}
			return printEntries(out, entries)
		},
	}

	if watched {
		cmd.Flags().BoolVar(&only, "only", false, "Replace the watch list with exactly these handles")
	}
	return cmd
}

func parseHandles(args []string) ([]window.Handle, error) {
	handles := make([]window.Handle, 0, len(args))
	for _, a := range args {
		h, err := window.ParseHandle(a)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func newUnmuteAllCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unmute-all",
		Short: "Unmute every process with an audio session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			if err := c.UnmuteAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All processes unmuted")
			return nil
		},
	}
}
