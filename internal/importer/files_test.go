package importer

import (
	"testing"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStreams(t *testing.T) {
	full := ExportFiles{Ratings: "r.csv", Watchlist: "w.csv", History: "h.csv"}

	streams, err := FileStreams(models.ImportSourceMovary, full)
	require.NoError(t, err)
	assert.Len(t, streams, 3)

	streams, err = FileStreams(models.ImportSourceTrakt, full)
	require.NoError(t, err)
	require.Len(t, streams, 3)
	assert.Equal(t, StageLookupOrCreate, streams[2].Stage)

	streams, err = FileStreams(models.ImportSourceGoodreads, ExportFiles{Library: "lib.csv"})
	require.NoError(t, err)
	assert.Len(t, streams, 1)
}

func TestFileStreamsRejectsMissingFiles(t *testing.T) {
	_, err := FileStreams(models.ImportSourceMovary, ExportFiles{Ratings: "r.csv"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = FileStreams(models.ImportSourceGoodreads, ExportFiles{})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = FileStreams(models.ImportSource("letterboxd"), ExportFiles{Library: "x"})
	assert.ErrorIs(t, err, models.ErrValidation)
}
