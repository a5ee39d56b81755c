package models

import "fmt"

// MediaLot is the category of a trackable media item
type MediaLot string

const (
	MediaLotMovie     MediaLot = "movie"
	MediaLotShow      MediaLot = "show"
	MediaLotBook      MediaLot = "book"
	MediaLotVideoGame MediaLot = "video_game"
	MediaLotAudioBook MediaLot = "audio_book"
	MediaLotPodcast   MediaLot = "podcast"
)

var mediaLots = []MediaLot{
	MediaLotMovie,
	MediaLotShow,
	MediaLotBook,
	MediaLotVideoGame,
	MediaLotAudioBook,
	MediaLotPodcast,
}

// MediaLots returns every known lot in display order
func MediaLots() []MediaLot {
	out := make([]MediaLot, len(mediaLots))
	copy(out, mediaLots)
	return out
}

// ParseMediaLot converts a raw string into a MediaLot
func ParseMediaLot(s string) (MediaLot, error) {
	for _, lot := range mediaLots {
		if string(lot) == s {
			return lot, nil
		}
	}
	return "", fmt.Errorf("%w: unknown media lot %q", ErrValidation, s)
}

// MediaSource is the provider a catalog identifier belongs to
type MediaSource string

const (
	MediaSourceTmdb        MediaSource = "tmdb"
	MediaSourceOpenlibrary MediaSource = "openlibrary"
	MediaSourceGoodreads   MediaSource = "goodreads"
	MediaSourceIgdb        MediaSource = "igdb"
	MediaSourceAudible     MediaSource = "audible"
	MediaSourceListennotes MediaSource = "listennotes"
	MediaSourceCustom      MediaSource = "custom"
)

// ImportSource tags where an imported event came from
type ImportSource string

const (
	ImportSourceMovary    ImportSource = "movary"
	ImportSourceTrakt     ImportSource = "trakt"
	ImportSourceGoodreads ImportSource = "goodreads"
)

// ParseImportSource converts a raw string into an ImportSource
func ParseImportSource(s string) (ImportSource, error) {
	switch ImportSource(s) {
	case ImportSourceMovary, ImportSourceTrakt, ImportSourceGoodreads:
		return ImportSource(s), nil
	}
	return "", fmt.Errorf("%w: unknown import source %q", ErrValidation, s)
}

// DefaultCollection names the collections every user implicitly has
type DefaultCollection string

const (
	CollectionWatchlist  DefaultCollection = "Watchlist"
	CollectionOwned      DefaultCollection = "Owned"
	CollectionInProgress DefaultCollection = "In Progress"
)

func (c DefaultCollection) String() string {
	return string(c)
}

// Visibility controls who can read a review
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)
