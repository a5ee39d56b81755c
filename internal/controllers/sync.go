package controllers

import (
	"context"
	"fmt"

	"github.com/amaumene/trackarr/internal/importer"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/sirupsen/logrus"
)

// TraktSource exposes a Trakt account's exports as import streams
type TraktSource interface {
	IsAuthenticated() bool
	ImportInput() importer.TraktInput
}

// SyncController imports a linked Trakt account on a schedule
type SyncController struct {
	trakt      TraktSource
	importCtrl *ImportController
	userID     uint64
	logger     *logrus.Logger
}

// NewSyncController creates a new sync controller. Imported items are owned by userID.
func NewSyncController(trakt TraktSource, importCtrl *ImportController, userID uint64, logger *logrus.Logger) *SyncController {
	return &SyncController{
		trakt:      trakt,
		importCtrl: importCtrl,
		userID:     userID,
		logger:     logger,
	}
}

// SyncAll imports ratings, watchlist and history from Trakt
func (c *SyncController) SyncAll(ctx context.Context) (*ImportReport, error) {
	if !c.trakt.IsAuthenticated() {
		return nil, fmt.Errorf("trakt account is not linked")
	}

	c.logger.WithField("user_id", c.userID).Info("Starting Trakt sync")

	streams := importer.TraktStreams(c.trakt.ImportInput())
	report, err := c.importCtrl.Run(ctx, c.userID, models.ImportSourceTrakt, streams)
	if err != nil {
		return nil, fmt.Errorf("failed to import from trakt: %w", err)
	}

	if len(report.Result.FailedItems) > 0 {
		c.logger.WithField("failed_items", len(report.Result.FailedItems)).Warn("Trakt sync finished with failures")
	} else {
		c.logger.Info("Trakt sync completed")
	}
	return report, nil
}
