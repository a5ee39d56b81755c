package importer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// TraktInput holds the three JSON exports of a Trakt account. Each is an array
// in the shape of the matching /sync endpoint.
type TraktInput struct {
	Ratings   Opener
	Watchlist Opener
	History   Opener
}

type traktIDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug"`
	IMDB  string `json:"imdb"`
	TMDB  int    `json:"tmdb"`
}

type traktTitle struct {
	Title string   `json:"title" validate:"required"`
	Year  int      `json:"year"`
	IDs   traktIDs `json:"ids"`
}

type traktEpisode struct {
	Season int `json:"season" validate:"min=0"`
	Number int `json:"number" validate:"min=0"`
}

type traktEntry struct {
	Type      string        `json:"type" validate:"required"`
	Rating    *float64      `json:"rating"`
	RatedAt   string        `json:"rated_at"`
	ListedAt  string        `json:"listed_at"`
	WatchedAt string        `json:"watched_at"`
	Movie     *traktTitle   `json:"movie"`
	Show      *traktTitle   `json:"show"`
	Episode   *traktEpisode `json:"episode"`
}

// base resolves the media an entry is about
func (e *traktEntry) base() (Row, error) {
	var (
		title *traktTitle
		lot   models.MediaLot
	)
	switch e.Type {
	case "movie":
		title, lot = e.Movie, models.MediaLotMovie
	case "show", "episode":
		title, lot = e.Show, models.MediaLotShow
	default:
		return Row{}, rowError("unsupported item type %q", e.Type)
	}
	if title == nil {
		return Row{}, rowError("%s entry has no %s", e.Type, lot)
	}
	if err := utils.ValidateStruct(title); err != nil {
		return Row{}, &RowParseError{Err: err}
	}
	if title.IDs.TMDB <= 0 {
		return Row{}, rowError("%q has no tmdb id", title.Title)
	}
	return Row{
		Key:        title.Title,
		Lot:        lot,
		Source:     models.MediaSourceTmdb,
		Identifier: strconv.Itoa(title.IDs.TMDB),
	}, nil
}

func decodeTraktEntry(raw json.RawMessage) (*traktEntry, error) {
	var entry traktEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, &RowParseError{Err: fmt.Errorf("invalid entry: %w", err)}
	}
	if err := utils.ValidateStruct(&entry); err != nil {
		return nil, &RowParseError{Err: err}
	}
	return &entry, nil
}

func parseTraktTime(raw string) (*time.Time, error) {
	t, err := ParseOptionalDate(raw)
	if err != nil {
		return nil, &RowParseError{Err: err}
	}
	return t, nil
}

func decodeTraktRating(raw json.RawMessage) (Row, error) {
	entry, err := decodeTraktEntry(raw)
	if err != nil {
		return Row{}, err
	}
	if entry.Type == "episode" {
		return Row{}, rowError("episode ratings are not imported")
	}
	row, err := entry.base()
	if err != nil {
		return Row{}, err
	}
	if entry.Rating == nil {
		return Row{}, rowError("rating is required")
	}
	ratedAt, err := parseTraktTime(entry.RatedAt)
	if err != nil {
		return Row{}, err
	}

	rating := ScaleRating(models.ImportSourceTrakt, decimal.NewFromFloat(*entry.Rating))
	row.Review = &models.ImportReview{Rating: &rating, Date: ratedAt}
	return row, nil
}

func decodeTraktWatchlist(raw json.RawMessage) (Row, error) {
	entry, err := decodeTraktEntry(raw)
	if err != nil {
		return Row{}, err
	}
	row, err := entry.base()
	if err != nil {
		return Row{}, err
	}
	row.Collections = []string{models.CollectionWatchlist.String()}
	return row, nil
}

func decodeTraktHistory(raw json.RawMessage) (Row, error) {
	entry, err := decodeTraktEntry(raw)
	if err != nil {
		return Row{}, err
	}
	row, err := entry.base()
	if err != nil {
		return Row{}, err
	}
	watchedAt, err := parseTraktTime(entry.WatchedAt)
	if err != nil {
		return Row{}, err
	}
	if watchedAt == nil {
		return Row{}, rowError("watched_at is required")
	}

	source := models.ImportSourceTrakt
	seen := &models.ImportSeen{
		EndedOn:           models.DatePtr(*watchedAt),
		ProviderWatchedOn: &source,
	}
	if row.Lot == models.MediaLotShow {
		if entry.Episode == nil {
			return Row{}, &RowParseError{Err: models.ErrMissingSeasonEpisode}
		}
		if err := utils.ValidateStruct(entry.Episode); err != nil {
			return Row{}, &RowParseError{Err: err}
		}
		seen.ExtraInformation = models.ShowExtraInformation(entry.Episode.Season, entry.Episode.Number)
	}
	row.Seen = seen
	return row, nil
}

// TraktStreams returns the streams of a Trakt import
func TraktStreams(input TraktInput) []Stream {
	return []Stream{
		{Name: "Ratings", Stage: StageCreate, Open: jsonStream(input.Ratings, decodeTraktRating)},
		{Name: "Watchlist", Stage: StageCreate, Open: jsonStream(input.Watchlist, decodeTraktWatchlist)},
		{Name: "History", Stage: StageLookupOrCreate, Open: jsonStream(input.History, decodeTraktHistory)},
	}
}
