package importer

import (
	"fmt"
	"strconv"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/shopspring/decimal"
)

// MovaryInput holds the three CSV exports of a Movary account
type MovaryInput struct {
	Ratings   Opener
	Watchlist Opener
	History   Opener
}

type movaryCommon struct {
	Title  string `validate:"required"`
	TmdbID int    `validate:"required,gt=0"`
}

func decodeMovaryCommon(rec csvRecord) (movaryCommon, error) {
	common := movaryCommon{Title: rec.Get("title")}
	if raw := rec.Get("tmdbId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return common, fmt.Errorf("invalid tmdbId %q", raw)
		}
		common.TmdbID = id
	}
	if err := utils.ValidateStruct(&common); err != nil {
		return common, err
	}
	return common, nil
}

func (c movaryCommon) row() Row {
	return Row{
		Key:        c.Title,
		Lot:        models.MediaLotMovie,
		Source:     models.MediaSourceTmdb,
		Identifier: strconv.Itoa(c.TmdbID),
	}
}

func decodeMovaryRating(rec csvRecord) (Row, error) {
	common, err := decodeMovaryCommon(rec)
	if err != nil {
		return Row{}, &RowParseError{Err: err}
	}
	raw := rec.Get("userRating")
	rating, err := decimal.NewFromString(raw)
	if err != nil {
		return Row{}, rowError("invalid userRating %q", raw)
	}

	row := common.row()
	scaled := ScaleRating(models.ImportSourceMovary, rating)
	row.Review = &models.ImportReview{Rating: &scaled}
	return row, nil
}

func decodeMovaryWatchlist(rec csvRecord) (Row, error) {
	common, err := decodeMovaryCommon(rec)
	if err != nil {
		return Row{}, &RowParseError{Err: err}
	}
	row := common.row()
	row.Collections = []string{models.CollectionWatchlist.String()}
	return row, nil
}

func decodeMovaryHistory(rec csvRecord) (Row, error) {
	common, err := decodeMovaryCommon(rec)
	if err != nil {
		return Row{}, &RowParseError{Err: err}
	}
	raw := rec.Get("watchedAt")
	if raw == "" {
		return Row{}, rowError("watchedAt is required")
	}
	watchedAt, err := ParseDate(raw)
	if err != nil {
		return Row{}, &RowParseError{Err: err}
	}

	source := models.ImportSourceMovary
	row := common.row()
	row.Seen = &models.ImportSeen{
		EndedOn:           models.DatePtr(watchedAt),
		ProviderWatchedOn: &source,
	}
	if comment := rec.Get("comment"); comment != "" {
		row.Review = &models.ImportReview{
			Text: &comment,
			Date: &watchedAt,
		}
	}
	return row, nil
}

// MovaryStreams returns the streams of a Movary import
func MovaryStreams(input MovaryInput) []Stream {
	lot := lotPtr(models.MediaLotMovie)
	return []Stream{
		{
			Name:  "Ratings file",
			Stage: StageCreate,
			Lot:   lot,
			Open:  csvStream(input.Ratings, []string{"title", "tmdbId", "userRating"}, decodeMovaryRating),
		},
		{
			Name:  "Watchlist file",
			Stage: StageCreate,
			Lot:   lot,
			Open:  csvStream(input.Watchlist, []string{"title", "tmdbId"}, decodeMovaryWatchlist),
		},
		{
			Name:  "History file",
			Stage: StageLookupOrCreate,
			Lot:   lot,
			Open:  csvStream(input.History, []string{"title", "tmdbId", "watchedAt"}, decodeMovaryHistory),
		},
	}
}
