package main

import (
	"fmt"
	"sort"

	"github.com/focusmute/focusmute/internal/catalog"
	"github.com/focusmute/focusmute/internal/client"
	"github.com/focusmute/focusmute/internal/config"
	"github.com/focusmute/focusmute/pkg/detector"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		all     bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List windowed processes and their watch state",
		Long: `List prints the process list of the running instance. When nothing is
running, a one-off scan of the local desktop is shown instead, with nothing
watched. --all prints every process, windowed or not, without filtering.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if all {
				rows, err := scanAll()
				if err != nil {
					return err
				}
				if ok, err := printStructured(out, opts.format, rows); ok {
					return err
				}
				return printProcesses(out, rows)
			}

			c, cfg, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			var entries []catalog.Entry
			if refresh {
				entries, err = c.Refresh(ctx)
			} else {
				entries, err = c.Processes(ctx)
			}
			if errors.Is(err, client.ErrNotRunning) {
				entries, err = scanCatalog(cfg)
				if err == nil && opts.format == "" {
					fmt.Fprintln(out, "focusmute is not running; showing a local scan")
				}
			}
			if err != nil {
				return err
			}

			if ok, err := printStructured(out, opts.format, entries); ok {
				return err
			}
			return printEntries(out, entries)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "List every process without filtering")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-enumerate before listing")
	return cmd
}

func scanCatalog(cfg *config.Config) ([]catalog.Entry, error) {
	platform, err := detector.New()
	if err != nil {
		return nil, err
	}
	return catalog.New(platform.Enumerator, cfg.Catalog.Denylist, zap.NewNop()).Refresh(nil)
}

func scanAll() ([]processRow, error) {
	platform, err := detector.New()
	if err != nil {
		return nil, err
	}

	infos, err := platform.Enumerator.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate processes: %w", err)
	}

	rows := make([]processRow, 0, len(infos))
	for _, p := range infos {
		rows = append(rows, processRow{
			PID:    p.PID,
			Name:   p.Name,
			Handle: p.WindowHandle,
			Title:  p.WindowTitle,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].PID < rows[j].PID })
	return rows, nil
}
