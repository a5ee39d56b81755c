package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/amaumene/trackarr/internal/config"
	"github.com/amaumene/trackarr/internal/controllers"
	"github.com/amaumene/trackarr/internal/importer"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// store is everything the controllers need from persistence. Both the bolt
// and the sqlite databases implement it.
type store interface {
	controllers.ProgressStore
	controllers.ImportStore
	controllers.CatalogStore
	Stats(ctx context.Context) (*models.Stats, error)
	Close() error
}

var (
	_ store = (*models.Database)(nil)
	_ store = (*models.SQLDatabase)(nil)
)

// app holds the wiring shared by every command
type app struct {
	cfg        *config.Config
	logger     *logrus.Logger
	db         store
	clock      utils.Clock
	importCtrl *controllers.ImportController
	tracer     *sdktrace.TracerProvider
}

func newApp(cfg *config.Config) (*app, error) {
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	// stdout carries command output such as import reports, so spans go to stderr
	tp, err := utils.NewTracerProvider(cfg.TraceExporter, cfg.TraceSampleRatio, os.Stderr)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	db, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"driver": cfg.StoreDriver,
		"path":   cfg.DatabaseFile,
	}).Info("Database initialized")

	clock := utils.SystemClock{}
	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		clock:      clock,
		importCtrl: controllers.NewImportController(importer.NewReconciler(logger), db, clock, logger),
		tracer:     tp,
	}, nil
}

func openStore(cfg *config.Config) (store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		return models.NewSQLDatabase(cfg.DatabaseFile)
	default:
		return models.NewDatabase(cfg.DatabaseFile)
	}
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("Failed to shut down tracer provider")
	}
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close database")
	}
}
