package importer

import (
	"fmt"

	"github.com/amaumene/trackarr/internal/models"
)

// ExportFiles are local paths of an account export. Movary and Trakt read
// Ratings, Watchlist and History; Goodreads reads Library.
type ExportFiles struct {
	Ratings   string `json:"ratings,omitempty"`
	Watchlist string `json:"watchlist,omitempty"`
	History   string `json:"history,omitempty"`
	Library   string `json:"library,omitempty"`
}

// FileStreams builds the streams of source from export files on disk
func FileStreams(source models.ImportSource, files ExportFiles) ([]Stream, error) {
	switch source {
	case models.ImportSourceMovary, models.ImportSourceTrakt:
		if files.Ratings == "" || files.Watchlist == "" || files.History == "" {
			return nil, fmt.Errorf("%w: %s import needs ratings, watchlist and history files", models.ErrValidation, source)
		}
		if source == models.ImportSourceMovary {
			return MovaryStreams(MovaryInput{
				Ratings:   FileOpener(files.Ratings),
				Watchlist: FileOpener(files.Watchlist),
				History:   FileOpener(files.History),
			}), nil
		}
		return TraktStreams(TraktInput{
			Ratings:   FileOpener(files.Ratings),
			Watchlist: FileOpener(files.Watchlist),
			History:   FileOpener(files.History),
		}), nil

	case models.ImportSourceGoodreads:
		if files.Library == "" {
			return nil, fmt.Errorf("%w: goodreads import needs a library file", models.ErrValidation)
		}
		return GoodreadsStreams(FileOpener(files.Library)), nil

	default:
		return nil, fmt.Errorf("%w: unknown import source %q", models.ErrValidation, source)
	}
}
