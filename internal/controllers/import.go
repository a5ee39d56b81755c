package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/trackarr/internal/importer"
	"github.com/amaumene/trackarr/internal/metrics"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ImportStore commits a whole import run at once
type ImportStore interface {
	CommitImport(ctx context.Context, userID uint64, items []models.ImportMediaItem, now time.Time) (*models.ImportCommitSummary, error)
}

// ImportReport is what an import run produced
type ImportReport struct {
	Source models.ImportSource         `json:"source"`
	Result *models.ImportResult        `json:"result"`
	Commit *models.ImportCommitSummary `json:"commit,omitempty"`
}

// ImportController reconciles export files and commits the drafts
type ImportController struct {
	reconciler *importer.Reconciler
	store      ImportStore
	clock      utils.Clock
	logger     *logrus.Logger
}

// NewImportController creates a new import controller
func NewImportController(reconciler *importer.Reconciler, store ImportStore, clock utils.Clock, logger *logrus.Logger) *ImportController {
	return &ImportController{
		reconciler: reconciler,
		store:      store,
		clock:      clock,
		logger:     logger,
	}
}

// Run imports streams for a user. Row and commit failures are reported in the
// result; only cancellation returns an error, and then nothing was written.
func (c *ImportController) Run(ctx context.Context, userID uint64, source models.ImportSource, streams []importer.Stream) (*ImportReport, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "import.Run", trace.WithAttributes(
		attribute.String("import.source", string(source)),
		attribute.Int("import.streams", len(streams)),
	))
	defer span.End()

	log := c.logger.WithFields(logrus.Fields{
		"source":  source,
		"user_id": userID,
	})
	log.Info("Starting import")

	result, err := c.reconciler.Run(ctx, streams)
	if err != nil {
		metrics.ImportRuns.WithLabelValues(string(source), "cancelled").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	report := &ImportReport{Source: source, Result: result}

	valid := result.Media[:0:0]
	for _, item := range result.Media {
		if err := item.Validate(); err != nil {
			lot := item.Lot
			result.FailedItems = append(result.FailedItems, models.ImportFailedItem{
				Step:       models.ImportFailStepItemDetailsFromSource,
				Identifier: item.SourceID,
				Lot:        &lot,
				Error:      err.Error(),
			})
			log.WithError(err).WithField("title", item.SourceID).Warn("Dropping invalid import item")
			continue
		}
		valid = append(valid, item)
	}
	result.Media = valid

	if err := ctx.Err(); err != nil {
		metrics.ImportRuns.WithLabelValues(string(source), "cancelled").Inc()
		return nil, err
	}

	summary, err := c.store.CommitImport(ctx, userID, valid, c.clock.Now())
	if err != nil {
		if ctx.Err() != nil {
			metrics.ImportRuns.WithLabelValues(string(source), "cancelled").Inc()
			return nil, ctx.Err()
		}
		result.FailedItems = append(result.FailedItems, models.ImportFailedItem{
			Step:       models.ImportFailStepDatabaseCommit,
			Identifier: string(source),
			Error:      fmt.Sprintf("nothing was imported: %v", err),
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		metrics.ImportRuns.WithLabelValues(string(source), "commit_failed").Inc()
		log.WithError(err).Error("Failed to commit import")
		return report, nil
	}
	report.Commit = summary

	metrics.ImportRuns.WithLabelValues(string(source), "ok").Inc()
	metrics.ImportDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
	log.WithFields(logrus.Fields{
		"media":        len(valid),
		"failed_items": len(result.FailedItems),
		"seen_created": summary.SeenCreated,
	}).Info("Import completed")

	return report, nil
}
