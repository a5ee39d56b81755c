package importer

import (
	"strconv"
	"strings"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/shopspring/decimal"
)

// Goodreads shelves every book is on exactly one of
const (
	goodreadsShelfRead       = "read"
	goodreadsShelfToRead     = "to-read"
	goodreadsShelfReading    = "currently-reading"
	goodreadsColumnBookID    = "Book Id"
	goodreadsColumnTitle     = "Title"
	goodreadsColumnShelf     = "Exclusive Shelf"
	goodreadsColumnRating    = "My Rating"
	goodreadsColumnDateRead  = "Date Read"
	goodreadsColumnReview    = "My Review"
	goodreadsColumnSpoiler   = "Spoiler"
	goodreadsColumnShelves   = "Bookshelves"
	goodreadsColumnOwned     = "Owned Copies"
	goodreadsColumnDateAdded = "Date Added"
)

func decodeGoodreadsBook(rec csvRecord) (Row, error) {
	title := rec.Get(goodreadsColumnTitle)
	if title == "" {
		return Row{}, rowError("%s is required", goodreadsColumnTitle)
	}
	bookID := rec.Get(goodreadsColumnBookID)
	if _, err := strconv.ParseUint(bookID, 10, 64); err != nil {
		return Row{}, rowError("invalid %s %q", goodreadsColumnBookID, bookID)
	}

	row := Row{
		Key:        title,
		Lot:        models.MediaLotBook,
		Source:     models.MediaSourceGoodreads,
		Identifier: bookID,
	}

	dateRead, err := ParseOptionalDate(rec.Get(goodreadsColumnDateRead))
	if err != nil {
		return Row{}, &RowParseError{Err: err}
	}

	shelf := rec.Get(goodreadsColumnShelf)
	switch shelf {
	case goodreadsShelfRead:
		source := models.ImportSourceGoodreads
		row.Seen = &models.ImportSeen{ProviderWatchedOn: &source}
		if dateRead != nil {
			row.Seen.EndedOn = models.DatePtr(*dateRead)
		}
	case goodreadsShelfToRead:
		row.Collections = append(row.Collections, models.CollectionWatchlist.String())
	case goodreadsShelfReading:
		row.Collections = append(row.Collections, models.CollectionInProgress.String())
	}

	for _, name := range strings.Split(rec.Get(goodreadsColumnShelves), ",") {
		name = strings.TrimSpace(name)
		if name == "" || name == shelf {
			continue
		}
		row.Collections = append(row.Collections, name)
	}
	if owned, _ := strconv.Atoi(rec.Get(goodreadsColumnOwned)); owned > 0 {
		row.Collections = append(row.Collections, models.CollectionOwned.String())
	}

	review := &models.ImportReview{}
	if raw := rec.Get(goodreadsColumnRating); raw != "" {
		stars, err := decimal.NewFromString(raw)
		if err != nil {
			return Row{}, rowError("invalid %s %q", goodreadsColumnRating, raw)
		}
		// zero stars means the book was not rated
		if stars.IsPositive() {
			rating := ScaleRating(models.ImportSourceGoodreads, stars)
			review.Rating = &rating
		}
	}
	if text := rec.Get(goodreadsColumnReview); text != "" {
		review.Text = &text
		review.Spoiler = strings.EqualFold(rec.Get(goodreadsColumnSpoiler), "true")
	}
	if review.Rating != nil || review.Text != nil {
		review.Date = dateRead
		if review.Date == nil {
			review.Date, _ = ParseOptionalDate(rec.Get(goodreadsColumnDateAdded))
		}
		row.Review = review
	}

	return row, nil
}

// GoodreadsStreams returns the stream of a Goodreads library export
func GoodreadsStreams(library Opener) []Stream {
	return []Stream{
		{
			Name:  "Library file",
			Stage: StageCreate,
			Lot:   lotPtr(models.MediaLotBook),
			Open:  csvStream(library, []string{goodreadsColumnBookID, goodreadsColumnTitle, goodreadsColumnShelf}, decodeGoodreadsBook),
		},
	}
}
