package controllers

import (
	"context"
	"fmt"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/sirupsen/logrus"
)

// PodcastProvider fetches a podcast with its complete episode list
type PodcastProvider interface {
	PodcastDetails(ctx context.Context, identifier string) (*models.Metadata, error)
}

// CatalogStore is the persistence the catalog refresh needs
type CatalogStore interface {
	UpsertMetadata(ctx context.Context, meta *models.Metadata) error
	MetadataByLot(ctx context.Context, lot models.MediaLot) ([]models.Metadata, error)
}

// CatalogController keeps provider-backed catalog entries current
type CatalogController struct {
	podcasts PodcastProvider
	store    CatalogStore
	logger   *logrus.Logger
}

// NewCatalogController creates a new catalog controller
func NewCatalogController(podcasts PodcastProvider, store CatalogStore, logger *logrus.Logger) *CatalogController {
	return &CatalogController{
		podcasts: podcasts,
		store:    store,
		logger:   logger,
	}
}

// RefreshPodcast fetches a podcast and stores it with every episode
func (c *CatalogController) RefreshPodcast(ctx context.Context, identifier string) (*models.Metadata, error) {
	ctx, span := tracer.Start(ctx, "catalog.RefreshPodcast")
	defer span.End()

	meta, err := c.podcasts.PodcastDetails(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch podcast %s: %w", identifier, err)
	}
	if err := c.store.UpsertMetadata(ctx, meta); err != nil {
		return nil, fmt.Errorf("failed to store podcast %s: %w", identifier, err)
	}

	fields := logrus.Fields{
		"identifier":  identifier,
		"metadata_id": meta.ID,
	}
	if meta.Podcast != nil {
		fields["episodes"] = len(meta.Podcast.Episodes)
		fields["total_episodes"] = meta.Podcast.TotalEpisodes
	}
	c.logger.WithFields(fields).Info("Podcast refreshed")

	return meta, nil
}

// RefreshAllPodcasts refreshes every stored podcast. Failures are logged and
// the remaining podcasts are still refreshed.
func (c *CatalogController) RefreshAllPodcasts(ctx context.Context) error {
	podcasts, err := c.store.MetadataByLot(ctx, models.MediaLotPodcast)
	if err != nil {
		return fmt.Errorf("failed to list podcasts: %w", err)
	}

	failed := 0
	for _, podcast := range podcasts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.RefreshPodcast(ctx, podcast.Identifier); err != nil {
			c.logger.WithError(err).WithField("identifier", podcast.Identifier).Warn("Failed to refresh podcast")
			failed++
		}
	}

	c.logger.WithFields(logrus.Fields{
		"podcasts": len(podcasts),
		"failed":   failed,
	}).Info("Podcast refresh completed")
	return nil
}
