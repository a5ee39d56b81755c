package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const library = `Book Id,Title,Author,My Rating,Date Read,Date Added,Bookshelves,Exclusive Shelf,My Review,Spoiler,Owned Copies
1,Dune,Frank Herbert,5,2023/06/01,2023/05/01,favorites,read,Loved it,false,1
2,Hyperion,Dan Simmons,0,,2023/07/01,,to-read,,,0
`

func TestImportCommandWritesStore(t *testing.T) {
	dir := t.TempDir()
	libraryFile := filepath.Join(dir, "goodreads.csv")
	require.NoError(t, os.WriteFile(libraryFile, []byte(library), 0o600))

	root := newRootCommand()
	root.SetArgs([]string{"--config-dir", dir, "--log-level", "error", "import", "goodreads", "--user", "4", "--library", libraryFile})
	require.NoError(t, root.ExecuteContext(context.Background()))

	db, err := models.NewDatabase(filepath.Join(dir, "trackarr.db"))
	require.NoError(t, err)
	defer db.Close()

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MetadataByLot[models.MediaLotBook])
	assert.Equal(t, 1, stats.Completed)

	members, err := db.CollectionMembers(context.Background(), 4, string(models.CollectionWatchlist))
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestImportCommandRejectsUnknownSource(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"--config-dir", t.TempDir(), "import", "letterboxd", "--library", "x.csv"})
	assert.Error(t, root.ExecuteContext(context.Background()))
}
