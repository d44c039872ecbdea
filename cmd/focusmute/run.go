package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/focusmute/focusmute/internal/catalog"
	"github.com/focusmute/focusmute/internal/config"
	"github.com/focusmute/focusmute/internal/controller"
	"github.com/focusmute/focusmute/internal/daemon"
	"github.com/focusmute/focusmute/internal/database"
	"github.com/focusmute/focusmute/internal/logging"
	"github.com/focusmute/focusmute/internal/metrics"
	"github.com/focusmute/focusmute/internal/web"
	"github.com/focusmute/focusmute/pkg/audio"
	"github.com/focusmute/focusmute/pkg/detector"
	"github.com/focusmute/focusmute/pkg/window"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var watch []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the focus muter and its API in the foreground",
		Long: `Run tracks the foreground window and applies the watch list until it is
interrupted or asked to stop with "focusmute stop". Every process is unmuted on
exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, watch)
		},
	}

	cmd.Flags().StringSliceVar(&watch, "watch", nil, "Process names to watch on startup")
	return cmd
}

func run(parent context.Context, cfg *config.Config, watchNames []string) error {
	if parent == nil {
		parent = context.Background()
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	dm := daemon.New(cfg.Daemon.PIDFile)
	if err := dm.Acquire(); err != nil {
		return err
	}
	defer dm.Release()

	platform, err := detector.New()
	if err != nil {
		return fmt.Errorf("failed to initialize platform: %w", err)
	}
	logger.Info("platform initialized", zap.String("platform", platform.Name))

	var (
		ctrlJournal controller.Journal
		webJournal  web.Journal
	)
	if cfg.Database.Journal {
		db, err := database.Connect(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		repo := database.NewRepository(db)
		ctrlJournal, webJournal = repo, repo
	}

	m := metrics.New()
	gateway := audio.NewGateway(platform.Mixer, platform.Enumerator, logger)
	cat := catalog.New(platform.Enumerator, cfg.Catalog.Denylist, logger)

	ctrl := controller.New(cat, gateway, platform.NewFocusSource(), controller.Options{
		Workers:         cfg.Controller.Workers,
		RefreshInterval: cfg.Catalog.RefreshInterval,
		Journal:         ctrlJournal,
		Metrics:         m,
		Logger:          logger,
	})

	if len(watchNames) > 0 {
		if err := ctrl.SetWatchList(handlesForNames(ctrl.Entries(), watchNames)); err != nil {
			logger.Warn("failed to apply startup watch list", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := web.NewServer(cfg, web.Deps{
		Controller: ctrl,
		Journal:    webJournal,
		Metrics:    m,
		Shutdown:   stop,
		Logger:     logger,
	})

	ln, err := srv.Listen()
	if err != nil {
		_ = ctrl.Shutdown(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", srv.GetAddress(), err)
	}

	logger.Info("focusmute started",
		zap.Int("pid", os.Getpid()),
		zap.Int("entries", len(ctrl.Entries())),
		zap.String("api", "http://"+srv.GetAddress()))
	logger.Debug("configuration", zap.String("config", cfg.String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctrl.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Controller.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	logger.Info("stopping, unmuting all processes")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Controller.ShutdownTimeout)
	defer cancel()
	if err := ctrl.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown did not complete", zap.Error(err))
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("focusmute stopped")
	return nil
}

// handlesForNames picks every catalog entry whose process name is listed
func handlesForNames(entries []catalog.Entry, names []string) []window.Handle {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}

	var handles []window.Handle
	for _, e := range entries {
		if _, ok := want[strings.ToLower(e.Name)]; ok {
			handles = append(handles, e.Handle)
		}
	}
	return handles
}
