// Package importer turns exports of other trackers into import drafts.
//
// A run reads named row streams in stage order. Rows are matched to drafts by
// natural key (the lot and source title): create-stage rows make or augment a draft,
// lookup-or-create rows attach events to an existing draft and only make a new
// one when nothing matches. Bad rows become failed items; the run goes on.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/amaumene/trackarr/internal/metrics"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/amaumene/trackarr/internal/importer")

// Reconciler merges row streams into drafts
type Reconciler struct {
	logger *logrus.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(logger *logrus.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// run holds the drafts of one Run call
type run struct {
	logger *logrus.Entry
	media  []models.ImportMediaItem
	index  map[string]int
	result models.ImportResult
}

// Run reads every stream and returns the drafts and failures. Only context
// cancellation fails the whole run; every other problem is a failed item.
func (r *Reconciler) Run(ctx context.Context, streams []Stream) (*models.ImportResult, error) {
	ctx, span := tracer.Start(ctx, "importer.Run")
	defer span.End()

	ordered := make([]Stream, len(streams))
	copy(ordered, streams)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Stage < ordered[j].Stage
	})

	state := &run{
		logger: r.logger.WithField("component", "importer"),
		index:  map[string]int{},
	}

	for _, stream := range ordered {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}
		if err := state.readStream(ctx, stream); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}
	}

	result := state.result
	result.Media = state.media
	result.Details.MediaDrafted = len(state.media)
	for _, item := range state.media {
		result.Details.EventsDrafted += len(item.SeenHistory)
		result.Details.ReviewsDrafted += len(item.Reviews)
	}

	span.SetAttributes(
		attribute.Int("import.rows_read", result.Details.RowsRead),
		attribute.Int("import.rows_failed", result.Details.RowsFailed),
		attribute.Int("import.media_drafted", result.Details.MediaDrafted),
	)
	r.logger.WithFields(logrus.Fields{
		"streams":        len(streams),
		"rows_read":      result.Details.RowsRead,
		"rows_failed":    result.Details.RowsFailed,
		"media_drafted":  result.Details.MediaDrafted,
		"events_drafted": result.Details.EventsDrafted,
	}).Info("Import reconciliation finished")

	return &result, nil
}

// readStream processes one stream. It returns an error only on cancellation.
func (s *run) readStream(ctx context.Context, stream Stream) error {
	log := s.logger.WithFields(logrus.Fields{
		"stream": stream.Name,
		"stage":  stream.Stage.String(),
	})
	log.Debug("Reading import stream")

	reader, err := stream.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.failStream(stream, err)
		log.WithError(err).Warn("Failed to open import stream")
		return nil
	}
	defer reader.Close()

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !isRowError(err) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.failStream(stream, err)
			log.WithError(err).WithField("row", idx).Warn("Import stream broke off")
			return nil
		}

		s.result.Details.RowsRead++
		if err != nil {
			s.result.Details.RowsFailed++
			s.result.FailedItems = append(s.result.FailedItems, models.ImportFailedItem{
				Step:       models.ImportFailStepInputTransformation,
				Identifier: strconv.Itoa(idx),
				Lot:        stream.Lot,
				Error:      fmt.Sprintf("%s: %v", stream.Name, err),
			})
			metrics.ImportRows.WithLabelValues(stream.Name, "failed").Inc()
			log.WithError(err).WithField("row", idx).Debug("Skipping malformed row")
			continue
		}

		metrics.ImportRows.WithLabelValues(stream.Name, "ok").Inc()
		switch stream.Stage {
		case StageLookupOrCreate:
			s.lookupOrCreate(row)
		default:
			s.create(row)
		}
	}
}

func (s *run) failStream(stream Stream, err error) {
	s.result.FailedItems = append(s.result.FailedItems, models.ImportFailedItem{
		Step:       models.ImportFailStepInputTransformation,
		Identifier: stream.Name,
		Lot:        stream.Lot,
		Error:      err.Error(),
	})
}

func (s *run) find(row Row) *models.ImportMediaItem {
	if i, ok := s.index[NaturalKey(row.Lot, row.Key)]; ok {
		return &s.media[i]
	}
	return nil
}

func (s *run) add(row Row) *models.ImportMediaItem {
	for _, existing := range s.media {
		if existing.Lot != row.Lot {
			continue
		}
		if nearMiss(row.Lot, existing.SourceID, row.Key) {
			s.logger.WithFields(logrus.Fields{
				"title":   row.Key,
				"similar": existing.SourceID,
			}).Info("Import titles differ only slightly and were kept apart")
		}
	}

	s.media = append(s.media, models.ImportMediaItem{
		SourceID:   row.Key,
		Lot:        row.Lot,
		Source:     row.Source,
		Identifier: row.Identifier,
	})
	s.index[NaturalKey(row.Lot, row.Key)] = len(s.media) - 1
	return &s.media[len(s.media)-1]
}

// create handles a create-stage row
func (s *run) create(row Row) {
	item := s.find(row)
	if item == nil {
		item = s.add(row)
	}
	if row.Seen != nil {
		item.SeenHistory = append(item.SeenHistory, *row.Seen)
	}
	if row.Review != nil {
		item.Reviews = append(item.Reviews, *row.Review)
	}
	for _, name := range row.Collections {
		item.AddCollection(name)
	}
}

// lookupOrCreate handles a lookup-or-create-stage row
func (s *run) lookupOrCreate(row Row) {
	item := s.find(row)
	if item == nil {
		s.create(row)
		return
	}

	if row.Seen != nil {
		item.SeenHistory = append(item.SeenHistory, *row.Seen)
	}
	if row.Review != nil {
		mergeReview(item, *row.Review)
	}
	for _, name := range row.Collections {
		item.AddCollection(name)
	}
}

// mergeReview puts text-only review drafts into the latest review when that one
// has no text yet. Anything else is appended as its own review.
func mergeReview(item *models.ImportMediaItem, review models.ImportReview) {
	n := len(item.Reviews)
	if n > 0 && review.Rating == nil && review.HasText() && !item.Reviews[n-1].HasText() {
		last := &item.Reviews[n-1]
		last.Text = review.Text
		last.Spoiler = review.Spoiler
		if review.Date != nil {
			last.Date = review.Date
		}
		if review.Visibility != "" {
			last.Visibility = review.Visibility
		}
		return
	}
	item.Reviews = append(item.Reviews, review)
}
