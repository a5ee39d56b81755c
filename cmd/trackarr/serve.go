package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amaumene/trackarr/internal/api"
	"github.com/amaumene/trackarr/internal/config"
	"github.com/amaumene/trackarr/internal/controllers"
	"github.com/amaumene/trackarr/internal/scheduler"
	"github.com/amaumene/trackarr/internal/services/listennotes"
	"github.com/amaumene/trackarr/internal/services/trakt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg())
		},
	}
	cmd.Flags().String("port", "", "HTTP port (SERVER_PORT)")
	_ = viper.BindPFlag("SERVER_PORT", cmd.Flags().Lookup("port"))
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger
	logger.Info("Starting Trackarr")

	progressCtrl := controllers.NewProgressController(a.db, a.clock, cfg.CatalogCacheTTL, logger)
	services := api.Services{
		Stats:    a.db,
		Progress: progressCtrl,
		Imports:  a.importCtrl,
	}
	var jobs scheduler.Jobs

	if cfg.ListennotesEnabled() {
		podcasts, err := listennotes.NewClient(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Listennotes client: %w", err)
		}
		catalogCtrl := controllers.NewCatalogController(podcasts, a.db, logger)
		services.Podcasts = catalogCtrl
		jobs.PodcastRefresh = catalogCtrl
		jobs.PodcastRefreshSchedule = cfg.PodcastRefreshSchedule
		logger.Info("Listennotes client initialized")
	}

	if cfg.TraktEnabled() && cfg.TraktImportUserID != 0 {
		traktClient, err := trakt.NewClient(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Trakt client: %w", err)
		}
		if !traktClient.IsAuthenticated() {
			logger.Warn("Trakt account is not linked, run 'trackarr trakt auth' to enable scheduled imports")
		} else {
			jobs.TraktSync = controllers.NewSyncController(traktClient, a.importCtrl, cfg.TraktImportUserID, logger)
			jobs.TraktSyncSchedule = cfg.TraktImportSchedule
			logger.Info("Trakt client initialized")
		}
	}

	sched := scheduler.NewScheduler(jobs, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	server := api.NewServer(cfg.ServerPort, services, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Trackarr is running")
	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Trackarr stopped")
	return nil
}
