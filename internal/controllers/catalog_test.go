package controllers

import (
	"context"
	"errors"
	"testing"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePodcasts struct {
	calls []string
	fail  map[string]bool
}

func (f *fakePodcasts) PodcastDetails(ctx context.Context, identifier string) (*models.Metadata, error) {
	f.calls = append(f.calls, identifier)
	if f.fail[identifier] {
		return nil, errors.New("provider unavailable")
	}
	return &models.Metadata{
		Lot:        models.MediaLotPodcast,
		Source:     models.MediaSourceListennotes,
		Identifier: identifier,
		Title:      "Podcast " + identifier,
		Podcast: &models.PodcastSpecifics{
			TotalEpisodes: 2,
			Episodes:      []models.PodcastEpisode{{Number: 1}, {Number: 2}},
		},
	}, nil
}

func TestRefreshPodcast(t *testing.T) {
	store := newMemoryStore()
	provider := &fakePodcasts{}
	ctrl := NewCatalogController(provider, store, utils.NewNopLogger())

	meta, err := ctrl.RefreshPodcast(context.Background(), "abc")
	require.NoError(t, err)
	assert.NotZero(t, meta.ID)
	require.Len(t, store.upserted, 1)
	assert.Len(t, store.upserted[0].Podcast.Episodes, 2)
}

func TestRefreshAllPodcastsContinuesPastFailures(t *testing.T) {
	store := newMemoryStore()
	store.addMetadata(models.MediaLotPodcast, "one")
	store.addMetadata(models.MediaLotPodcast, "two")
	store.addMetadata(models.MediaLotMovie, "603")
	provider := &fakePodcasts{fail: map[string]bool{"one": true}}
	ctrl := NewCatalogController(provider, store, utils.NewNopLogger())

	require.NoError(t, ctrl.RefreshAllPodcasts(context.Background()))
	assert.ElementsMatch(t, []string{"one", "two"}, provider.calls)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, "two", store.upserted[0].Identifier)
}
