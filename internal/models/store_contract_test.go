package models

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// store is the method set both storage adapters share
type store interface {
	GetMetadata(ctx context.Context, id uint64) (*Metadata, error)
	FindMetadataByIdentifier(ctx context.Context, lot MediaLot, identifier string) (*Metadata, error)
	UpsertMetadata(ctx context.Context, meta *Metadata) error
	MetadataByLot(ctx context.Context, lot MediaLot) ([]Metadata, error)
	UserMetadataByLot(ctx context.Context, userID uint64, lot MediaLot, offset, limit int) ([]Metadata, int, error)
	EnsureUserToMetadata(ctx context.Context, userID, metadataID uint64) error
	SeenHistory(ctx context.Context, userID, metadataID uint64) ([]Seen, error)
	GetSeen(ctx context.Context, id uint64) (*Seen, error)
	InsertSeen(ctx context.Context, seen *Seen) error
	UpdateUnderwaySeen(ctx context.Context, userID, metadataID uint64, mutate func(*Seen) error) (*Seen, error)
	DeleteSeen(ctx context.Context, id uint64) error
	CommitImport(ctx context.Context, userID uint64, items []ImportMediaItem, now time.Time) (*ImportCommitSummary, error)
	CollectionMembers(ctx context.Context, userID uint64, name string) ([]uint64, error)
	Reviews(ctx context.Context, userID, metadataID uint64) ([]Review, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

func runStoreContract(t *testing.T, open func(t *testing.T) store) {
	ctx := context.Background()
	now := time.Date(2024, 4, 20, 9, 30, 0, 0, time.UTC)

	seedMovie := func(t *testing.T, s store) *Metadata {
		meta := &Metadata{Lot: MediaLotMovie, Source: MediaSourceTmdb, Identifier: "603", Title: "The Matrix"}
		require.NoError(t, s.UpsertMetadata(ctx, meta))
		require.NotZero(t, meta.ID)
		return meta
	}

	t.Run("metadata upsert keeps identity", func(t *testing.T) {
		s := open(t)
		meta := seedMovie(t, s)

		again := &Metadata{Lot: MediaLotMovie, Source: MediaSourceTmdb, Identifier: "603", Title: "The Matrix (1999)"}
		require.NoError(t, s.UpsertMetadata(ctx, again))
		assert.Equal(t, meta.ID, again.ID)

		found, err := s.FindMetadataByIdentifier(ctx, MediaLotMovie, "603")
		require.NoError(t, err)
		assert.Equal(t, "The Matrix (1999)", found.Title)

		_, err = s.FindMetadataByIdentifier(ctx, MediaLotShow, "603")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.GetMetadata(ctx, meta.ID+100)
		assert.ErrorIs(t, err, ErrNotFound)

		podcast := &Metadata{
			Lot:        MediaLotPodcast,
			Source:     MediaSourceListennotes,
			Identifier: "abc",
			Title:      "Talk",
			Podcast: &PodcastSpecifics{
				TotalEpisodes: 1,
				Episodes:      []PodcastEpisode{{Number: 1, ID: "e1", Title: "Pilot"}},
			},
		}
		require.NoError(t, s.UpsertMetadata(ctx, podcast))
		podcasts, err := s.MetadataByLot(ctx, MediaLotPodcast)
		require.NoError(t, err)
		require.Len(t, podcasts, 1)
		require.NotNil(t, podcasts[0].Podcast)
		assert.Equal(t, "Pilot", podcasts[0].Podcast.Episodes[0].Title)
	})

	t.Run("user association is idempotent", func(t *testing.T) {
		s := open(t)
		meta := seedMovie(t, s)
		require.NoError(t, s.EnsureUserToMetadata(ctx, 1, meta.ID))
		require.NoError(t, s.EnsureUserToMetadata(ctx, 1, meta.ID))
	})

	t.Run("tracked media pages", func(t *testing.T) {
		s := open(t)
		var movies []uint64
		for _, identifier := range []string{"1", "2", "3"} {
			meta := &Metadata{Lot: MediaLotMovie, Source: MediaSourceTmdb, Identifier: identifier, Title: "Movie " + identifier}
			require.NoError(t, s.UpsertMetadata(ctx, meta))
			require.NoError(t, s.EnsureUserToMetadata(ctx, 1, meta.ID))
			movies = append(movies, meta.ID)
		}
		show := &Metadata{Lot: MediaLotShow, Source: MediaSourceTmdb, Identifier: "4", Title: "Show"}
		require.NoError(t, s.UpsertMetadata(ctx, show))
		require.NoError(t, s.EnsureUserToMetadata(ctx, 1, show.ID))
		untracked := &Metadata{Lot: MediaLotMovie, Source: MediaSourceTmdb, Identifier: "5", Title: "Untracked"}
		require.NoError(t, s.UpsertMetadata(ctx, untracked))
		require.NoError(t, s.EnsureUserToMetadata(ctx, 2, untracked.ID))

		page, total, err := s.UserMetadataByLot(ctx, 1, MediaLotMovie, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, page, 2)
		assert.Equal(t, movies[0], page[0].ID)
		assert.Equal(t, movies[1], page[1].ID)

		page, total, err = s.UserMetadataByLot(ctx, 1, MediaLotMovie, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, page, 1)
		assert.Equal(t, movies[2], page[0].ID)

		page, total, err = s.UserMetadataByLot(ctx, 1, MediaLotMovie, 4, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Empty(t, page)

		page, total, err = s.UserMetadataByLot(ctx, 3, MediaLotMovie, 0, 2)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, page)
	})

	t.Run("second underway event is refused", func(t *testing.T) {
		s := open(t)
		meta := seedMovie(t, s)

		first := &Seen{UserID: 1, MetadataID: meta.ID, Progress: 0, StartedOn: DatePtr(now), LastUpdatedOn: now}
		require.NoError(t, s.InsertSeen(ctx, first))
		assert.NotZero(t, first.ID)

		second := &Seen{UserID: 1, MetadataID: meta.ID, Progress: 0, LastUpdatedOn: now}
		assert.ErrorIs(t, s.InsertSeen(ctx, second), ErrAlreadyUnderway)

		// another user is unaffected, and completed events are always allowed
		require.NoError(t, s.InsertSeen(ctx, &Seen{UserID: 2, MetadataID: meta.ID, LastUpdatedOn: now}))
		require.NoError(t, s.InsertSeen(ctx, &Seen{UserID: 1, MetadataID: meta.ID, Progress: 100, FinishedOn: DatePtr(now), LastUpdatedOn: now}))
	})

	t.Run("update underway", func(t *testing.T) {
		s := open(t)
		meta := seedMovie(t, s)

		_, err := s.UpdateUnderwaySeen(ctx, 1, meta.ID, func(seen *Seen) error { return nil })
		assert.ErrorIs(t, err, ErrNoUnderwayEvent)

		require.NoError(t, s.InsertSeen(ctx, &Seen{UserID: 1, MetadataID: meta.ID, Progress: 20, LastUpdatedOn: now}))

		updated, err := s.UpdateUnderwaySeen(ctx, 1, meta.ID, func(seen *Seen) error {
			return seen.SetProgress(100, now.Add(time.Hour))
		})
		require.NoError(t, err)
		assert.Equal(t, 100, updated.Progress)
		require.NotNil(t, updated.FinishedOn)

		stored, err := s.GetSeen(ctx, updated.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, stored.Progress)

		// nothing is underway any more
		_, err = s.UpdateUnderwaySeen(ctx, 1, meta.ID, func(seen *Seen) error { return nil })
		assert.ErrorIs(t, err, ErrNoUnderwayEvent)
	})

	t.Run("failed mutation leaves the event untouched", func(t *testing.T) {
		s := open(t)
		meta := seedMovie(t, s)
		seen := &Seen{UserID: 1, MetadataID: meta.ID, Progress: 50, LastUpdatedOn: now}
		require.NoError(t, s.InsertSeen(ctx, seen))

		_, err := s.UpdateUnderwaySeen(ctx, 1, meta.ID, func(seen *Seen) error {
			return seen.SetProgress(10, now)
		})
		assert.ErrorIs(t, err, ErrValidation)

		stored, err := s.GetSeen(ctx, seen.ID)
		require.NoError(t, err)
		assert.Equal(t, 50, stored.Progress)
	})

	t.Run("history is most recent first", func(t *testing.T) {
		s := open(t)
		meta := seedMovie(t, s)
		for i := 0; i < 3; i++ {
			at := now.Add(time.Duration(i) * time.Hour)
			require.NoError(t, s.InsertSeen(ctx, &Seen{UserID: 1, MetadataID: meta.ID, Progress: 100, FinishedOn: DatePtr(at), LastUpdatedOn: at}))
		}

		history, err := s.SeenHistory(ctx, 1, meta.ID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.True(t, history[0].LastUpdatedOn.After(history[1].LastUpdatedOn))
		assert.True(t, history[1].LastUpdatedOn.After(history[2].LastUpdatedOn))

		other, err := s.SeenHistory(ctx, 2, meta.ID)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("delete seen", func(t *testing.T) {
		s := open(t)
		meta := seedMovie(t, s)
		seen := &Seen{UserID: 1, MetadataID: meta.ID, Progress: 10, LastUpdatedOn: now}
		require.NoError(t, s.InsertSeen(ctx, seen))

		require.NoError(t, s.DeleteSeen(ctx, seen.ID))
		_, err := s.GetSeen(ctx, seen.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteSeen(ctx, seen.ID), ErrNotFound)
	})

	t.Run("commit import", func(t *testing.T) {
		s := open(t)
		rating := decimal.NewFromInt(80)
		text := "great"
		items := []ImportMediaItem{
			{
				SourceID:    "Heat",
				Lot:         MediaLotMovie,
				Source:      MediaSourceTmdb,
				Identifier:  "949",
				SeenHistory: []ImportSeen{{EndedOn: DatePtr(now.AddDate(0, 0, -3))}, {}},
				Reviews:     []ImportReview{{Rating: &rating, Text: &text}},
				Collections: []string{CollectionWatchlist.String()},
			},
			{
				SourceID:    "Alien",
				Lot:         MediaLotMovie,
				Source:      MediaSourceTmdb,
				Identifier:  "348",
				Collections: []string{CollectionWatchlist.String()},
			},
		}

		summary, err := s.CommitImport(ctx, 1, items, now)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.MetadataCreated)
		assert.Equal(t, 2, summary.SeenCreated)
		assert.Equal(t, 1, summary.ReviewsCreated)
		assert.Equal(t, 2, summary.Collections)

		heat, err := s.FindMetadataByIdentifier(ctx, MediaLotMovie, "949")
		require.NoError(t, err)
		assert.Equal(t, "Heat", heat.Title)

		history, err := s.SeenHistory(ctx, 1, heat.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		for _, seen := range history {
			assert.Equal(t, 100, seen.Progress)
			require.NotNil(t, seen.FinishedOn)
		}

		reviews, err := s.Reviews(ctx, 1, heat.ID)
		require.NoError(t, err)
		require.Len(t, reviews, 1)
		require.NotNil(t, reviews[0].Rating)
		assert.True(t, reviews[0].Rating.Equal(rating))
		assert.Equal(t, VisibilityPrivate, reviews[0].Visibility)

		members, err := s.CollectionMembers(ctx, 1, CollectionWatchlist.String())
		require.NoError(t, err)
		assert.Len(t, members, 2)

		// re-importing reuses the catalog entries
		summary, err = s.CommitImport(ctx, 1, items[1:], now)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.MetadataCreated)
	})

	t.Run("commit import is all or nothing", func(t *testing.T) {
		s := open(t)
		items := []ImportMediaItem{
			{SourceID: "Heat", Lot: MediaLotMovie, Source: MediaSourceTmdb, Identifier: "949", SeenHistory: []ImportSeen{{}}},
			// a show event without season/episode cannot be written
			{SourceID: "Lost", Lot: MediaLotShow, Source: MediaSourceTmdb, Identifier: "4607", SeenHistory: []ImportSeen{{}}},
		}

		_, err := s.CommitImport(ctx, 1, items, now)
		require.ErrorIs(t, err, ErrMissingSeasonEpisode)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Metadata)
		assert.Equal(t, 0, stats.Completed)
	})

	t.Run("stats", func(t *testing.T) {
		s := open(t)
		meta := seedMovie(t, s)
		require.NoError(t, s.InsertSeen(ctx, &Seen{UserID: 1, MetadataID: meta.ID, Progress: 10, LastUpdatedOn: now}))
		require.NoError(t, s.InsertSeen(ctx, &Seen{UserID: 1, MetadataID: meta.ID, Progress: 100, FinishedOn: DatePtr(now), LastUpdatedOn: now}))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Metadata)
		assert.Equal(t, 1, stats.MetadataByLot[MediaLotMovie])
		assert.Equal(t, 1, stats.Underway)
		assert.Equal(t, 1, stats.Completed)
	})
}
