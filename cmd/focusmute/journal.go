package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/focusmute/focusmute/internal/config"
	"github.com/focusmute/focusmute/internal/database"
	"github.com/focusmute/focusmute/internal/models"
	"github.com/focusmute/focusmute/internal/reporter"
	"github.com/spf13/cobra"
)

func openJournal(cfg *config.Config) (*database.DB, *database.Repository, error) {
	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, database.NewRepository(db), nil
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:       "report [day|week|month]",
		Short:     "Summarize journaled mute commands per process",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"day", "week", "month"},
		RunE: func(cmd *cobra.Command, args []string) error {
			periodType := "day"
			if len(args) > 0 {
				periodType = args[0]
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			db, repo, err := openJournal(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			rep := reporter.New(cfg, repo)
			report, err := rep.GenerateReport(periodType)
			if err != nil {
				return fmt.Errorf("failed to generate report: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				jsonStr, err := rep.FormatReportJSON(report)
				if err != nil {
					return fmt.Errorf("failed to format JSON: %w", err)
				}
				fmt.Fprintln(out, jsonStr)
				return nil
			}
			if ok, err := printStructured(out, opts.format, report); ok {
				return err
			}
			fmt.Fprintln(out, rep.FormatReportText(report))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var (
		limit int
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the most recent journaled mute commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			db, repo, err := openJournal(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			var events []*models.MuteEvent
			if since > 0 {
				events, err = repo.GetEventsSince(time.Now().Add(-since))
				if len(events) > limit {
					events = events[len(events)-limit:]
				}
			} else {
				events, err = repo.GetRecentEvents(limit)
			}
			if err != nil {
				return fmt.Errorf("failed to read events: %w", err)
			}

			out := cmd.OutOrStdout()
			if ok, err := printStructured(out, opts.format, events); ok {
				return err
			}
			return printEvents(out, events)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of commands to print")
	cmd.Flags().DurationVar(&since, "since", 0, "Only print commands newer than this (e.g. 1h)")
	return cmd
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	var (
		olderThan time.Duration
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete journaled mute commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if !yes {
				prompt := "This will delete all journaled commands. Are you sure? (yes/no): "
				if olderThan > 0 {
					prompt = fmt.Sprintf("This will delete commands older than %v. Are you sure? (yes/no): ", olderThan)
				}
				fmt.Fprint(out, prompt)

				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "yes" && response != "y" {
					fmt.Fprintln(out, "Operation cancelled")
					return nil
				}
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			db, repo, err := openJournal(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if olderThan > 0 {
				n, err := repo.DeleteOldEvents(time.Now().Add(-olderThan))
				if err != nil {
					return fmt.Errorf("failed to delete events: %w", err)
				}
				fmt.Fprintf(out, "Deleted %d commands\n", n)
				return nil
			}

			if err := repo.Clear(); err != nil {
				return fmt.Errorf("failed to clear database: %w", err)
			}
			fmt.Fprintln(out, "Journal cleared successfully")
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only delete commands older than this (e.g. 720h)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
