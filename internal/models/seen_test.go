package models

import (
	"errors"
	"testing"
	"time"
)

func TestSetProgress(t *testing.T) {
	now := time.Date(2024, 3, 10, 18, 45, 0, 0, time.UTC)

	seen := Seen{ID: 7, Progress: 10}
	if err := seen.SetProgress(60, now); err != nil {
		t.Fatalf("SetProgress(60) failed: %v", err)
	}
	if seen.Progress != 60 {
		t.Errorf("Expected progress 60, got %d", seen.Progress)
	}
	if seen.FinishedOn != nil {
		t.Errorf("Expected no finish date below 100, got %v", seen.FinishedOn)
	}
	if !seen.LastUpdatedOn.Equal(now) {
		t.Errorf("Expected last update %v, got %v", now, seen.LastUpdatedOn)
	}

	if err := seen.SetProgress(100, now); err != nil {
		t.Fatalf("SetProgress(100) failed: %v", err)
	}
	if seen.FinishedOn == nil || !seen.FinishedOn.Equal(DateOf(now)) {
		t.Errorf("Expected finish date %v, got %v", DateOf(now), seen.FinishedOn)
	}
	if err := seen.Validate(); err != nil {
		t.Errorf("Completed seen item should be valid: %v", err)
	}
}

func TestSetProgressRejects(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		seen     Seen
		progress int
		want     error
	}{
		{"decreasing", Seen{Progress: 50}, 40, ErrValidation},
		{"above range", Seen{Progress: 50}, 101, ErrValidation},
		{"below range", Seen{Progress: 0}, -1, ErrValidation},
		{"completed", Seen{Progress: 100, FinishedOn: DatePtr(now)}, 100, ErrState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.seen
			err := tt.seen.SetProgress(tt.progress, now)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if tt.seen.Progress != before.Progress {
				t.Errorf("Progress changed on failure: %d -> %d", before.Progress, tt.seen.Progress)
			}
		})
	}
}

func TestSeenValidate(t *testing.T) {
	day := DatePtr(time.Now())

	valid := []Seen{
		{Progress: 0},
		{Progress: 99},
		{Progress: 100, FinishedOn: day},
	}
	for _, s := range valid {
		if err := s.Validate(); err != nil {
			t.Errorf("Expected %+v to be valid, got %v", s, err)
		}
	}

	invalid := []Seen{
		{Progress: 100},
		{Progress: 40, FinishedOn: day},
		{Progress: 120, FinishedOn: day},
	}
	for _, s := range invalid {
		if err := s.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("Expected validation error for %+v, got %v", s, err)
		}
	}
}

func TestSortSeenHistory(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []Seen{
		{ID: 3, LastUpdatedOn: base},
		{ID: 2, LastUpdatedOn: base.Add(time.Hour)},
		{ID: 1, LastUpdatedOn: base},
		{ID: 4, LastUpdatedOn: base.Add(2 * time.Hour)},
	}

	SortSeenHistory(history)

	want := []uint64{4, 2, 1, 3}
	for i, id := range want {
		if history[i].ID != id {
			t.Fatalf("Position %d: expected ID %d, got %d", i, id, history[i].ID)
		}
	}
}

func TestDateOf(t *testing.T) {
	zone := time.FixedZone("UTC+9", 9*3600)
	// 2024-05-02 03:00 in UTC+9 is still 2024-05-01 in UTC
	got := DateOf(time.Date(2024, 5, 2, 3, 0, 0, 0, zone))
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
