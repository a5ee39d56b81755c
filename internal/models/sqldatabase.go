package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// At most one underway event per user and entry, enforced by SQLite itself
const createSingleUnderwayIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_seen_single_underway
	ON seen(user_id, metadata_id) WHERE progress < 100`

// SQLDatabase is the SQLite implementation of the store, built on gorm
type SQLDatabase struct {
	db *gorm.DB
}

// NewSQLDatabase opens (or creates) a SQLite database at path and migrates it
func NewSQLDatabase(path string) (*SQLDatabase, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	// SQLite has a single writer; one connection keeps transactions serialized
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&Metadata{},
		&UserToMetadata{},
		&Seen{},
		&Review{},
		&Collection{},
		&CollectionToMetadata{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	if err := db.Exec(createSingleUnderwayIndex).Error; err != nil {
		return nil, fmt.Errorf("failed to create underway index: %w", err)
	}

	return &SQLDatabase{db: db}, nil
}

// Close closes the database connection
func (s *SQLDatabase) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		(err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed"))
}

func sqlNotFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
	}
	return err
}

// GetMetadata retrieves a catalog entry by ID
func (s *SQLDatabase) GetMetadata(ctx context.Context, id uint64) (*Metadata, error) {
	var meta Metadata
	if err := s.db.WithContext(ctx).First(&meta, id).Error; err != nil {
		return nil, sqlNotFound(err, "metadata", id)
	}
	return &meta, nil
}

// FindMetadataByIdentifier retrieves a catalog entry by lot and provider identifier
func (s *SQLDatabase) FindMetadataByIdentifier(ctx context.Context, lot MediaLot, identifier string) (*Metadata, error) {
	var meta Metadata
	err := s.db.WithContext(ctx).
		Where("lot = ? AND identifier = ?", lot, identifier).
		Order("id").
		First(&meta).Error
	if err != nil {
		return nil, sqlNotFound(err, string(lot), identifier)
	}
	return &meta, nil
}

// MetadataByLot lists every catalog entry of a lot
func (s *SQLDatabase) MetadataByLot(ctx context.Context, lot MediaLot) ([]Metadata, error) {
	var metas []Metadata
	err := s.db.WithContext(ctx).Where("lot = ?", lot).Order("id").Find(&metas).Error
	return metas, err
}

// UserMetadataByLot lists the entries of a lot a user tracks, ordered by ID,
// with the number of tracked entries of the lot
func (s *SQLDatabase) UserMetadataByLot(ctx context.Context, userID uint64, lot MediaLot, offset, limit int) ([]Metadata, int, error) {
	// a gorm chain cannot be reused after a finisher, so each query is built afresh
	query := func() *gorm.DB {
		db := s.db.WithContext(ctx)
		tracked := db.Model(&UserToMetadata{}).Select("metadata_id").Where("user_id = ?", userID)
		return db.Model(&Metadata{}).Where("lot = ? AND id IN (?)", lot, tracked)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tracked media: %w", err)
	}
	metas := []Metadata{}
	if err := query().Order("id").Offset(offset).Limit(limit).Find(&metas).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tracked media: %w", err)
	}
	return metas, int(total), nil
}

// UpsertMetadata creates the entry or refreshes the stored one with the same identity
func (s *SQLDatabase) UpsertMetadata(ctx context.Context, meta *Metadata) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := sqlFindMetadata(tx, meta.Lot, meta.Source, meta.Identifier)
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.Create(meta).Error
		}
		meta.ID = existing.ID
		meta.CreatedAt = existing.CreatedAt
		return tx.Save(meta).Error
	})
}

func sqlFindMetadata(tx *gorm.DB, lot MediaLot, source MediaSource, identifier string) (*Metadata, error) {
	var metas []Metadata
	err := tx.Where("lot = ? AND source = ? AND identifier = ?", lot, source, identifier).
		Limit(1).
		Find(&metas).Error
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, nil
	}
	return &metas[0], nil
}

// EnsureUserToMetadata associates a user with an entry. Existing rows are left alone.
func (s *SQLDatabase) EnsureUserToMetadata(ctx context.Context, userID, metadataID uint64) error {
	return sqlEnsureUserToMetadata(s.db.WithContext(ctx), userID, metadataID)
}

func sqlEnsureUserToMetadata(tx *gorm.DB, userID, metadataID uint64) error {
	link := &UserToMetadata{UserID: userID, MetadataID: metadataID}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error
}

// SeenHistory returns a user's events for an entry, most recently updated first
func (s *SQLDatabase) SeenHistory(ctx context.Context, userID, metadataID uint64) ([]Seen, error) {
	var history []Seen
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND metadata_id = ?", userID, metadataID).
		Order("last_updated_on DESC, id ASC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	// Timestamps round-trip through text; sort again for a stable order
	SortSeenHistory(history)
	return history, nil
}

// GetSeen retrieves an event by ID
func (s *SQLDatabase) GetSeen(ctx context.Context, id uint64) (*Seen, error) {
	var seen Seen
	if err := s.db.WithContext(ctx).First(&seen, id).Error; err != nil {
		return nil, sqlNotFound(err, "seen item", id)
	}
	return &seen, nil
}

// InsertSeen stores a new event. The partial unique index rejects a second
// underway event for the same user and entry.
func (s *SQLDatabase) InsertSeen(ctx context.Context, seen *Seen) error {
	if err := seen.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Create(seen).Error
	if isUniqueViolation(err) {
		return ErrAlreadyUnderway
	}
	return err
}

// UpdateUnderwaySeen applies mutate to the single underway event inside a
// transaction
func (s *SQLDatabase) UpdateUnderwaySeen(ctx context.Context, userID, metadataID uint64, mutate func(*Seen) error) (*Seen, error) {
	var updated Seen
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var underway []Seen
		err := tx.Where("user_id = ? AND metadata_id = ? AND progress < 100", userID, metadataID).
			Find(&underway).Error
		if err != nil {
			return err
		}
		switch {
		case len(underway) == 0:
			return ErrNoUnderwayEvent
		case len(underway) > 1:
			return fmt.Errorf("%w: user %d, metadata %d has %d", ErrDataInconsistency, userID, metadataID, len(underway))
		}

		updated = underway[0]
		if err := mutate(&updated); err != nil {
			return err
		}
		if err := updated.Validate(); err != nil {
			return err
		}
		return tx.Save(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSeen deletes an event by ID
func (s *SQLDatabase) DeleteSeen(ctx context.Context, id uint64) error {
	result := s.db.WithContext(ctx).Delete(&Seen{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: seen item %d", ErrNotFound, id)
	}
	return nil
}

// CommitImport writes every draft of an import run in a single transaction
func (s *SQLDatabase) CommitImport(ctx context.Context, userID uint64, items []ImportMediaItem, now time.Time) (*ImportCommitSummary, error) {
	summary := &ImportCommitSummary{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		collections := map[string]uint64{}

		for _, item := range items {
			meta, err := sqlFindMetadata(tx, item.Lot, item.Source, item.Identifier)
			if err != nil {
				return err
			}
			if meta == nil {
				meta = &Metadata{
					Lot:        item.Lot,
					Source:     item.Source,
					Identifier: item.Identifier,
					Title:      item.SourceID,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if err := tx.Create(meta).Error; err != nil {
					return fmt.Errorf("failed to insert metadata for %q: %w", item.SourceID, err)
				}
				summary.MetadataCreated++
			}

			if err := sqlEnsureUserToMetadata(tx, userID, meta.ID); err != nil {
				return err
			}

			for _, draft := range item.SeenHistory {
				seen, err := draft.ToSeen(userID, meta.ID, meta.Lot, now)
				if err != nil {
					return fmt.Errorf("seen item of %q: %w", item.SourceID, err)
				}
				if err := tx.Create(&seen).Error; err != nil {
					return fmt.Errorf("failed to insert seen item for %q: %w", item.SourceID, err)
				}
				summary.SeenCreated++
			}

			for _, draft := range item.Reviews {
				review := draft.ToReview(userID, meta.ID, now)
				if err := tx.Create(&review).Error; err != nil {
					return fmt.Errorf("failed to insert review for %q: %w", item.SourceID, err)
				}
				summary.ReviewsCreated++
			}

			for _, name := range item.Collections {
				collectionID, ok := collections[name]
				if !ok {
					collection := Collection{UserID: userID, Name: name, CreatedAt: now}
					err := tx.Where(Collection{UserID: userID, Name: name}).
						Attrs(Collection{CreatedAt: now}).
						FirstOrCreate(&collection).Error
					if err != nil {
						return fmt.Errorf("failed to create collection %q: %w", name, err)
					}
					collectionID = collection.ID
					collections[name] = collectionID
				}
				member := &CollectionToMetadata{CollectionID: collectionID, MetadataID: meta.ID}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error; err != nil {
					return fmt.Errorf("failed to add %q to collection %q: %w", item.SourceID, name, err)
				}
				summary.Collections++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// CollectionMembers lists the entries of a user's collection
func (s *SQLDatabase) CollectionMembers(ctx context.Context, userID uint64, name string) ([]uint64, error) {
	var collection Collection
	err := s.db.WithContext(ctx).Where("user_id = ? AND name = ?", userID, name).First(&collection).Error
	if err != nil {
		return nil, sqlNotFound(err, "collection", name)
	}
	var ids []uint64
	err = s.db.WithContext(ctx).Model(&CollectionToMetadata{}).
		Where("collection_id = ?", collection.ID).
		Pluck("metadata_id", &ids).Error
	return ids, err
}

// Reviews lists a user's reviews for an entry
func (s *SQLDatabase) Reviews(ctx context.Context, userID, metadataID uint64) ([]Review, error) {
	var reviews []Review
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND metadata_id = ?", userID, metadataID).
		Order("id").
		Find(&reviews).Error
	return reviews, err
}

// Stats counts stored records for the status endpoint
func (s *SQLDatabase) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{MetadataByLot: map[MediaLot]int{}}

	var byLot []struct {
		Lot   MediaLot
		Count int
	}
	if err := db.Model(&Metadata{}).Select("lot, count(*) AS count").Group("lot").Scan(&byLot).Error; err != nil {
		return nil, err
	}
	for _, row := range byLot {
		stats.MetadataByLot[row.Lot] = row.Count
		stats.Metadata += row.Count
	}

	var underway, completed int64
	if err := db.Model(&Seen{}).Where("progress < 100").Count(&underway).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Seen{}).Where("progress = 100").Count(&completed).Error; err != nil {
		return nil, err
	}
	stats.Underway = int(underway)
	stats.Completed = int(completed)
	return stats, nil
}
