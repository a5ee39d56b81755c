package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/amaumene/trackarr/internal/config"
	"github.com/amaumene/trackarr/internal/importer"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newImportCommand(cfg func() *config.Config) *cobra.Command {
	var (
		userID uint64
		files  importer.ExportFiles
	)

	cmd := &cobra.Command{
		Use:       "import movary|trakt|goodreads",
		Short:     "Import an account export from local files",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(models.ImportSourceMovary), string(models.ImportSourceTrakt), string(models.ImportSourceGoodreads)},
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := models.ParseImportSource(args[0])
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cfg(), userID, source, files)
		},
	}

	cmd.Flags().Uint64Var(&userID, "user", 1, "user that owns the imported items")
	cmd.Flags().StringVar(&files.Ratings, "ratings", "", "ratings export (movary, trakt)")
	cmd.Flags().StringVar(&files.Watchlist, "watchlist", "", "watchlist export (movary, trakt)")
	cmd.Flags().StringVar(&files.History, "history", "", "history export (movary, trakt)")
	cmd.Flags().StringVar(&files.Library, "library", "", "library export (goodreads)")
	return cmd
}

func runImport(ctx context.Context, cfg *config.Config, userID uint64, source models.ImportSource, files importer.ExportFiles) error {
	streams, err := importer.FileStreams(source, files)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	report, err := a.importCtrl.Run(ctx, userID, source, streams)
	if err != nil {
		return fmt.Errorf("import cancelled: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
