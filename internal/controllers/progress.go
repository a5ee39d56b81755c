package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/trackarr/internal/metrics"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/amaumene/trackarr/internal/controllers")

// ProgressStore is the persistence the progress tracker needs
type ProgressStore interface {
	EnsureUserToMetadata(ctx context.Context, userID, metadataID uint64) error
	GetMetadata(ctx context.Context, id uint64) (*models.Metadata, error)
	FindMetadataByIdentifier(ctx context.Context, lot models.MediaLot, identifier string) (*models.Metadata, error)
	UserMetadataByLot(ctx context.Context, userID uint64, lot models.MediaLot, offset, limit int) ([]models.Metadata, int, error)
	SeenHistory(ctx context.Context, userID, metadataID uint64) ([]models.Seen, error)
	InsertSeen(ctx context.Context, seen *models.Seen) error
	UpdateUnderwaySeen(ctx context.Context, userID, metadataID uint64, mutate func(*models.Seen) error) (*models.Seen, error)
	GetSeen(ctx context.Context, id uint64) (*models.Seen, error)
	DeleteSeen(ctx context.Context, id uint64) error
}

// ProgressParams are the action-specific inputs of Apply
type ProgressParams struct {
	// Progress is required for update
	Progress *int `json:"progress,omitempty" validate:"omitempty,min=0,max=100"`
	// Date is required for in_the_past
	Date             *time.Time                  `json:"date,omitempty"`
	ExtraInformation models.SeenExtraInformation `json:"extra_information"`
}

// ProgressController records live consumption
type ProgressController struct {
	store   ProgressStore
	clock   utils.Clock
	catalog *cache.Cache
	logger  *logrus.Logger
}

// NewProgressController creates a new progress controller. Catalog lookups by
// identifier are cached for cacheTTL.
func NewProgressController(store ProgressStore, clock utils.Clock, cacheTTL time.Duration, logger *logrus.Logger) *ProgressController {
	return &ProgressController{
		store:   store,
		clock:   clock,
		catalog: cache.New(cacheTTL, 2*cacheTTL),
		logger:  logger,
	}
}

// Apply performs a progress action and returns the ID of the affected seen item
func (c *ProgressController) Apply(ctx context.Context, action models.ProgressAction, userID, metadataID uint64, params ProgressParams) (id uint64, err error) {
	ctx, span := tracer.Start(ctx, "progress.Apply")
	span.SetAttributes(
		attribute.String("progress.action", string(action)),
		attribute.Int64("progress.metadata_id", int64(metadataID)),
	)
	defer func() {
		metrics.ProgressActions.WithLabelValues(string(action), metrics.Outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := c.logger.WithFields(logrus.Fields{
		"action":      action,
		"user_id":     userID,
		"metadata_id": metadataID,
	})

	if err := utils.ValidateStruct(&params); err != nil {
		return 0, err
	}

	meta, err := c.store.GetMetadata(ctx, metadataID)
	if err != nil {
		return 0, err
	}

	now := c.clock.Now()
	var seen *models.Seen

	switch action {
	case models.ProgressActionUpdate:
		if params.Progress == nil {
			return 0, fmt.Errorf("%w: progress is required for %s", models.ErrValidation, action)
		}
		seen, err = c.store.UpdateUnderwaySeen(ctx, userID, metadataID, func(s *models.Seen) error {
			return s.SetProgress(*params.Progress, now)
		})
		if errors.Is(err, models.ErrDataInconsistency) {
			log.WithError(err).Error("More than one seen item is underway")
		}
		if err != nil {
			return 0, err
		}
		if err := c.associate(ctx, userID, metadataID); err != nil {
			return 0, err
		}

	case models.ProgressActionNow, models.ProgressActionInThePast, models.ProgressActionJustStarted:
		seen, err = c.newSeen(action, userID, meta, params, now)
		if err != nil {
			return 0, err
		}
		if err := c.associate(ctx, userID, metadataID); err != nil {
			return 0, err
		}
		if err := c.store.InsertSeen(ctx, seen); err != nil {
			return 0, err
		}

	default:
		return 0, fmt.Errorf("%w: unknown progress action %q", models.ErrValidation, action)
	}

	log.WithFields(logrus.Fields{
		"seen_id":  seen.ID,
		"progress": seen.Progress,
	}).Info("Progress recorded")

	return seen.ID, nil
}

// associate links the user to the entry once the request has been accepted
func (c *ProgressController) associate(ctx context.Context, userID, metadataID uint64) error {
	if err := c.store.EnsureUserToMetadata(ctx, userID, metadataID); err != nil {
		return fmt.Errorf("failed to associate user with media: %w", err)
	}
	return nil
}

// newSeen builds the event for the actions that create one
func (c *ProgressController) newSeen(action models.ProgressAction, userID uint64, meta *models.Metadata, params ProgressParams, now time.Time) (*models.Seen, error) {
	extra, err := params.ExtraInformation.ForLot(meta.Lot)
	if err != nil {
		return nil, err
	}

	seen := &models.Seen{
		UserID:           userID,
		MetadataID:       meta.ID,
		LastUpdatedOn:    now,
		ExtraInformation: extra,
	}

	switch action {
	case models.ProgressActionNow:
		seen.Progress = 100
		seen.FinishedOn = models.DatePtr(now)
	case models.ProgressActionInThePast:
		if params.Date == nil {
			return nil, fmt.Errorf("%w: date is required for %s", models.ErrValidation, action)
		}
		finished := models.DateOf(*params.Date)
		if finished.After(models.DateOf(now)) {
			return nil, fmt.Errorf("%w: date %s is in the future", models.ErrValidation, finished.Format(time.DateOnly))
		}
		seen.Progress = 100
		seen.FinishedOn = &finished
	case models.ProgressActionJustStarted:
		seen.Progress = 0
		seen.StartedOn = models.DatePtr(now)
	}
	return seen, nil
}

// DeleteSeen deletes one of the user's seen items
func (c *ProgressController) DeleteSeen(ctx context.Context, userID, seenID uint64) error {
	seen, err := c.store.GetSeen(ctx, seenID)
	if err != nil {
		return err
	}
	if seen.UserID != userID {
		return fmt.Errorf("%w: seen item %d", models.ErrOwnership, seenID)
	}
	if err := c.store.DeleteSeen(ctx, seenID); err != nil {
		return fmt.Errorf("failed to delete seen item: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"seen_id": seenID,
	}).Info("Seen item deleted")
	return nil
}

// SeenHistory returns the user's seen items for an entry, most recent first
func (c *ProgressController) SeenHistory(ctx context.Context, userID, metadataID uint64) ([]models.Seen, error) {
	if _, err := c.store.GetMetadata(ctx, metadataID); err != nil {
		return nil, err
	}
	return c.store.SeenHistory(ctx, userID, metadataID)
}

// MediaConsumed reports whether the user has consumed the entry with the given
// provider identifier
func (c *ProgressController) MediaConsumed(ctx context.Context, userID uint64, lot models.MediaLot, identifier string) (models.SeenStatus, error) {
	meta, err := c.lookupCatalog(ctx, lot, identifier)
	if errors.Is(err, models.ErrNotFound) {
		return models.ComputeStatus(false, nil), nil
	}
	if err != nil {
		return "", err
	}

	history, err := c.store.SeenHistory(ctx, userID, meta.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load seen history: %w", err)
	}
	return models.ComputeStatus(true, history), nil
}

// MediaDetails returns a catalog entry
func (c *ProgressController) MediaDetails(ctx context.Context, metadataID uint64) (*models.Metadata, error) {
	return c.store.GetMetadata(ctx, metadataID)
}

// MediaList returns a page of the entries of a lot the user tracks. Pages
// start at 1.
func (c *ProgressController) MediaList(ctx context.Context, userID uint64, lot models.MediaLot, page int) (*models.MediaList, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1, got %d", models.ErrValidation, page)
	}
	offset := (page - 1) * models.MediaListPageSize
	items, total, err := c.store.UserMetadataByLot(ctx, userID, lot, offset, models.MediaListPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entries: %w", lot, err)
	}
	if items == nil {
		items = []models.Metadata{}
	}
	return &models.MediaList{Items: items, Total: total}, nil
}

func (c *ProgressController) lookupCatalog(ctx context.Context, lot models.MediaLot, identifier string) (*models.Metadata, error) {
	key := string(lot) + ":" + identifier
	if cached, ok := c.catalog.Get(key); ok {
		metrics.CatalogCacheHits.Inc()
		return cached.(*models.Metadata), nil
	}
	metrics.CatalogCacheMisses.Inc()

	meta, err := c.store.FindMetadataByIdentifier(ctx, lot, identifier)
	if err != nil {
		return nil, err
	}
	c.catalog.SetDefault(key, meta)
	return meta, nil
}
