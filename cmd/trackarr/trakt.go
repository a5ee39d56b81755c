package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/amaumene/trackarr/internal/config"
	"github.com/amaumene/trackarr/internal/controllers"
	"github.com/amaumene/trackarr/internal/services/trakt"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/spf13/cobra"
)

func newTraktCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trakt",
		Short: "Manage the linked Trakt account",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "auth",
		Short: "Link a Trakt account with the device code flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return traktAuth(cmd.Context(), cfg())
		},
	})

	var userID uint64
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Import the linked Trakt account now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return traktSync(cmd.Context(), cfg(), userID)
		},
	}
	syncCmd.Flags().Uint64Var(&userID, "user", 0, "user that owns the imported items (default TRAKT_IMPORT_USER_ID)")
	cmd.AddCommand(syncCmd)

	return cmd
}

func traktAuth(ctx context.Context, cfg *config.Config) error {
	if !cfg.TraktEnabled() {
		return fmt.Errorf("TRAKT_CLIENT_ID and TRAKT_CLIENT_SECRET are required")
	}
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	client, err := trakt.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Trakt client: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if err := client.Authenticate(ctx, os.Stdout); err != nil {
		return fmt.Errorf("failed to authenticate with Trakt: %w", err)
	}
	return nil
}

func traktSync(ctx context.Context, cfg *config.Config, userID uint64) error {
	if !cfg.TraktEnabled() {
		return fmt.Errorf("TRAKT_CLIENT_ID and TRAKT_CLIENT_SECRET are required")
	}
	if userID == 0 {
		userID = cfg.TraktImportUserID
	}
	if userID == 0 {
		return fmt.Errorf("no user given, pass --user or set TRAKT_IMPORT_USER_ID")
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := trakt.NewClient(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Trakt client: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	report, err := controllers.NewSyncController(client, a.importCtrl, userID, a.logger).SyncAll(ctx)
	if err != nil {
		return err
	}
	a.logger.WithField("failed_items", len(report.Result.FailedItems)).Info("Trakt import finished")
	return nil
}
