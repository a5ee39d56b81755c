package models

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLDatabase(t *testing.T) *SQLDatabase {
	t.Helper()
	db, err := NewSQLDatabase(filepath.Join(t.TempDir(), "trackarr.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLDatabaseContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) store {
		return openTestSQLDatabase(t)
	})
}

func TestSQLDatabaseIndexRejectsRawDuplicateUnderway(t *testing.T) {
	db := openTestSQLDatabase(t)
	now := time.Now().UTC()

	require.NoError(t, db.db.Create(&Seen{UserID: 1, MetadataID: 9, Progress: 10, LastUpdatedOn: now}).Error)
	err := db.db.Create(&Seen{UserID: 1, MetadataID: 9, Progress: 20, LastUpdatedOn: now}).Error
	assert.True(t, isUniqueViolation(err), "expected unique violation, got %v", err)

	// completed rows fall outside the partial index
	require.NoError(t, db.db.Create(&Seen{UserID: 1, MetadataID: 9, Progress: 100, FinishedOn: DatePtr(now), LastUpdatedOn: now}).Error)

	_, err = db.UpdateUnderwaySeen(context.Background(), 1, 9, func(seen *Seen) error {
		return seen.SetProgress(40, now)
	})
	require.NoError(t, err)
}
