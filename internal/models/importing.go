package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ImportFailStep is the stage of an import where an item was dropped
type ImportFailStep string

const (
	ImportFailStepInputTransformation      ImportFailStep = "input_transformation"
	ImportFailStepItemDetailsFromSource    ImportFailStep = "item_details_from_source"
	ImportFailStepMediaDetailsFromProvider ImportFailStep = "media_details_from_provider"
	ImportFailStepDatabaseCommit           ImportFailStep = "database_commit"
)

// ImportFailedItem records one row (or stream) that could not be imported
type ImportFailedItem struct {
	Step       ImportFailStep `json:"step"`
	Identifier string         `json:"identifier"`
	Lot        *MediaLot      `json:"lot,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ImportSeen is a draft consumption event. Imported events are always completed.
type ImportSeen struct {
	StartedOn         *time.Time           `json:"started_on,omitempty"`
	EndedOn           *time.Time           `json:"ended_on,omitempty"`
	ExtraInformation  SeenExtraInformation `json:"extra_information"`
	ProviderWatchedOn *ImportSource        `json:"provider_watched_on,omitempty"`
}

// ImportReview is a draft review on the canonical rating scale
type ImportReview struct {
	Rating     *decimal.Decimal `json:"rating,omitempty"`
	Text       *string          `json:"text,omitempty"`
	Spoiler    bool             `json:"spoiler"`
	Visibility Visibility       `json:"visibility,omitempty"`
	Date       *time.Time       `json:"date,omitempty"`
}

// HasText reports whether the draft carries non-empty review text
func (r *ImportReview) HasText() bool {
	return r.Text != nil && strings.TrimSpace(*r.Text) != ""
}

// ImportMediaItem is the draft of everything one import run knows about one
// media item. SourceID is the natural key the run matched rows on.
type ImportMediaItem struct {
	SourceID    string         `json:"source_id"`
	Lot         MediaLot       `json:"lot"`
	Source      MediaSource    `json:"source"`
	Identifier  string         `json:"identifier"`
	SeenHistory []ImportSeen   `json:"seen_history"`
	Reviews     []ImportReview `json:"reviews"`
	Collections []string       `json:"collections"`
}

// AddCollection adds a collection name once, keeping first-seen order
func (m *ImportMediaItem) AddCollection(name string) {
	for _, existing := range m.Collections {
		if existing == name {
			return
		}
	}
	m.Collections = append(m.Collections, name)
}

// Validate checks that the draft can be committed
func (m *ImportMediaItem) Validate() error {
	if m.Identifier == "" {
		return fmt.Errorf("%w: %q has no provider identifier", ErrValidation, m.SourceID)
	}
	for i, seen := range m.SeenHistory {
		if _, err := seen.ExtraInformation.ForLot(m.Lot); err != nil {
			return fmt.Errorf("seen item %d of %q: %w", i, m.SourceID, err)
		}
	}
	for i, review := range m.Reviews {
		if review.Rating != nil && (review.Rating.IsNegative() || review.Rating.GreaterThan(decimal.NewFromInt(100))) {
			return fmt.Errorf("%w: review %d of %q has rating %s outside [0, 100]", ErrValidation, i, m.SourceID, review.Rating)
		}
	}
	return nil
}

// ToSeen materializes a draft event. A draft without an end date is stamped
// with the commit date.
func (s ImportSeen) ToSeen(userID, metadataID uint64, lot MediaLot, now time.Time) (Seen, error) {
	extra, err := s.ExtraInformation.ForLot(lot)
	if err != nil {
		return Seen{}, err
	}

	finished := DatePtr(now)
	if s.EndedOn != nil {
		finished = DatePtr(*s.EndedOn)
	}

	var started *time.Time
	if s.StartedOn != nil {
		started = DatePtr(*s.StartedOn)
	}

	return Seen{
		UserID:            userID,
		MetadataID:        metadataID,
		Progress:          100,
		StartedOn:         started,
		FinishedOn:        finished,
		LastUpdatedOn:     now,
		ExtraInformation:  extra,
		ProviderWatchedOn: s.ProviderWatchedOn,
	}, nil
}

// ToReview materializes a draft review
func (r ImportReview) ToReview(userID, metadataID uint64, now time.Time) Review {
	visibility := r.Visibility
	if visibility == "" {
		visibility = VisibilityPrivate
	}
	posted := now
	if r.Date != nil {
		posted = *r.Date
	}
	return Review{
		UserID:     userID,
		MetadataID: metadataID,
		Rating:     r.Rating,
		Text:       r.Text,
		Spoiler:    r.Spoiler,
		Visibility: visibility,
		PostedOn:   posted,
	}
}

// ImportResultDetails are the summary counters of one run
type ImportResultDetails struct {
	RowsRead       int `json:"rows_read"`
	RowsFailed     int `json:"rows_failed"`
	MediaDrafted   int `json:"media_drafted"`
	EventsDrafted  int `json:"events_drafted"`
	ReviewsDrafted int `json:"reviews_drafted"`
}

// ImportResult is the outcome of a reconciliation run. Partial success is normal.
type ImportResult struct {
	Media       []ImportMediaItem   `json:"media"`
	FailedItems []ImportFailedItem  `json:"failed_items"`
	Details     ImportResultDetails `json:"details"`
}

// ImportCommitSummary counts what a commit wrote
type ImportCommitSummary struct {
	MetadataCreated int `json:"metadata_created"`
	SeenCreated     int `json:"seen_created"`
	ReviewsCreated  int `json:"reviews_created"`
	Collections     int `json:"collection_memberships"`
}
