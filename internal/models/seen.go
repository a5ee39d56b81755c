package models

import (
	"fmt"
	"sort"
	"time"
)

// Seen is one consumption event of a user for a catalog entry.
//
// A Seen with progress below 100 is "underway". FinishedOn is set exactly when
// progress is 100, and a given user has at most one underway Seen per entry.
type Seen struct {
	ID         uint64 `boltholdKey:"ID" gorm:"primaryKey" json:"id"`
	UserID     uint64 `boltholdIndex:"UserID" gorm:"not null;index:idx_seen_user_metadata" json:"user_id"`
	MetadataID uint64 `boltholdIndex:"MetadataID" gorm:"not null;index:idx_seen_user_metadata" json:"metadata_id"`

	Progress   int        `gorm:"not null" json:"progress"`
	StartedOn  *time.Time `json:"started_on,omitempty"`
	FinishedOn *time.Time `json:"finished_on,omitempty"`

	LastUpdatedOn time.Time `gorm:"not null;index" json:"last_updated_on"`

	ExtraInformation SeenExtraInformation `gorm:"serializer:json" json:"extra_information"`

	// Set only for imported events
	ProviderWatchedOn *ImportSource `json:"provider_watched_on,omitempty"`
}

// TableName keeps the SQL table name singular
func (Seen) TableName() string {
	return "seen"
}

// IsUnderway reports whether the event is still in progress
func (s *Seen) IsUnderway() bool {
	return s.Progress < 100
}

// Validate checks the invariants of a single event
func (s *Seen) Validate() error {
	if s.Progress < 0 || s.Progress > 100 {
		return fmt.Errorf("%w: progress %d is outside [0, 100]", ErrValidation, s.Progress)
	}
	if s.Progress == 100 && s.FinishedOn == nil {
		return fmt.Errorf("%w: a completed seen item needs a finish date", ErrValidation)
	}
	if s.Progress < 100 && s.FinishedOn != nil {
		return fmt.Errorf("%w: an underway seen item cannot have a finish date", ErrValidation)
	}
	return nil
}

// SetProgress moves an underway event forward. Progress never decreases and a
// completed event cannot be changed.
func (s *Seen) SetProgress(progress int, now time.Time) error {
	if !s.IsUnderway() {
		return fmt.Errorf("%w: seen item %d is already completed", ErrState, s.ID)
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d is outside [0, 100]", ErrValidation, progress)
	}
	if progress < s.Progress {
		return fmt.Errorf("%w: progress cannot go from %d back to %d", ErrValidation, s.Progress, progress)
	}

	s.Progress = progress
	s.LastUpdatedOn = now
	if progress == 100 {
		finished := DateOf(now)
		s.FinishedOn = &finished
	}
	return nil
}

// SortSeenHistory orders events most recently updated first. Ties are broken by
// ascending ID so the order is deterministic.
func SortSeenHistory(history []Seen) {
	sort.SliceStable(history, func(i, j int) bool {
		a, b := history[i], history[j]
		if !a.LastUpdatedOn.Equal(b.LastUpdatedOn) {
			return a.LastUpdatedOn.After(b.LastUpdatedOn)
		}
		return a.ID < b.ID
	})
}

// DateOf truncates a timestamp to its UTC calendar date
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DatePtr is DateOf returning a pointer, for optional date fields
func DatePtr(t time.Time) *time.Time {
	d := DateOf(t)
	return &d
}
