package main

import (
	"context"
	"fmt"
	"time"

	"github.com/focusmute/focusmute/internal/client"
	"github.com/focusmute/focusmute/internal/config"
	"github.com/spf13/cobra"
)

const requestTimeout = 10 * time.Second

type rootOptions struct {
	configPath string
	format     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   appName,
		Short: "Mute background applications, unmute the focused one",
		Long: `focusmute keeps a watch list of windowed applications. Whenever the
foreground window changes, every watched application that does not own it is
muted and the one that does is unmuted.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case "", "text", "yaml", "json":
				return nil
			default:
				return fmt.Errorf("unsupported format: %s (use text, yaml or json)", opts.format)
			}
		},
	}

	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default $"+config.ConfigFileEnv+")")
	root.PersistentFlags().StringVar(&opts.format, "format", "", "Output format: text, yaml, json")

	root.AddCommand(
		newRunCmd(opts),
		newStopCmd(opts),
		newStatusCmd(opts),
		newListCmd(opts),
		newWatchCmd(opts, true),
		newWatchCmd(opts, false),
		newUnmuteAllCmd(opts),
		newReportCmd(opts),
		newEventsCmd(opts),
		newClearCmd(opts),
		newVersionCmd(),
	)

	return root
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath)
}

func (o *rootOptions) client() (*client.Client, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return client.New(cfg.WebAddr()), cfg, nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, requestTimeout)
}
