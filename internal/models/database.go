package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase opens (or creates) the embedded database at path
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Encoder: json.Marshal,
		Decoder: json.Unmarshal,
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

func userToMetadataKey(userID, metadataID uint64) string {
	return fmt.Sprintf("%d:%d", userID, metadataID)
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, bolthold.ErrNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
	}
	return err
}

// Catalog operations

// GetMetadata retrieves a catalog entry by ID
func (db *Database) GetMetadata(ctx context.Context, id uint64) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var meta Metadata
	if err := db.store.Get(id, &meta); err != nil {
		return nil, notFound(err, "metadata", id)
	}
	return &meta, nil
}

// FindMetadataByIdentifier retrieves a catalog entry by lot and provider identifier
func (db *Database) FindMetadataByIdentifier(ctx context.Context, lot MediaLot, identifier string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var metas []Metadata
	query := bolthold.Where("Identifier").Eq(identifier).Index("Identifier").And("Lot").Eq(lot)
	if err := db.store.Find(&metas, query); err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, lot, identifier)
	}
	return &metas[0], nil
}

// MetadataByLot lists every catalog entry of a lot
func (db *Database) MetadataByLot(ctx context.Context, lot MediaLot) ([]Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var metas []Metadata
	if err := db.store.Find(&metas, bolthold.Where("Lot").Eq(lot).Index("Lot").SortBy("ID")); err != nil {
		return nil, err
	}
	return metas, nil
}

// UserMetadataByLot lists the entries of a lot a user tracks, ordered by ID,
// skipping offset entries and returning at most limit. It also returns the
// number of tracked entries of the lot.
func (db *Database) UserMetadataByLot(ctx context.Context, userID uint64, lot MediaLot, offset, limit int) ([]Metadata, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	var links []UserToMetadata
	if err := db.store.Find(&links, bolthold.Where("UserID").Eq(userID).Index("UserID")); err != nil {
		return nil, 0, fmt.Errorf("failed to list tracked media: %w", err)
	}
	if len(links) == 0 {
		return []Metadata{}, 0, nil
	}

	metas := make([]Metadata, 0, len(links))
	for _, link := range links {
		var meta Metadata
		err := db.store.Get(link.MetadataID, &meta)
		if errors.Is(err, bolthold.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load tracked media %d: %w", link.MetadataID, err)
		}
		if meta.Lot == lot {
			metas = append(metas, meta)
		}
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })

	total := len(metas)
	if offset >= total {
		return []Metadata{}, total, nil
	}
	end := min(offset+limit, total)
	return metas[offset:end], total, nil
}

// UpsertMetadata creates the entry or refreshes the stored one with the same identity
func (db *Database) UpsertMetadata(ctx context.Context, meta *Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		existing, err := db.txFindMetadata(tx, meta.Lot, meta.Source, meta.Identifier)
		if err != nil {
			return err
		}
		meta.UpdatedAt = time.Now()
		if existing == nil {
			meta.CreatedAt = meta.UpdatedAt
			return db.store.TxInsert(tx, bolthold.NextSequence(), meta)
		}
		meta.ID = existing.ID
		meta.CreatedAt = existing.CreatedAt
		return db.store.TxUpdate(tx, meta.ID, meta)
	})
}

func (db *Database) txFindMetadata(tx *bbolt.Tx, lot MediaLot, source MediaSource, identifier string) (*Metadata, error) {
	var metas []Metadata
	query := bolthold.Where("Identifier").Eq(identifier).Index("Identifier").
		And("Lot").Eq(lot).
		And("Source").Eq(source)
	if err := db.store.TxFind(tx, &metas, query); err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, nil
	}
	return &metas[0], nil
}

// EnsureUserToMetadata associates a user with an entry. An existing association is not an error.
func (db *Database) EnsureUserToMetadata(ctx context.Context, userID, metadataID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		return db.txEnsureUserToMetadata(tx, userID, metadataID)
	})
}

func (db *Database) txEnsureUserToMetadata(tx *bbolt.Tx, userID, metadataID uint64) error {
	link := &UserToMetadata{UserID: userID, MetadataID: metadataID, CreatedAt: time.Now()}
	err := db.store.TxInsert(tx, userToMetadataKey(userID, metadataID), link)
	if errors.Is(err, bolthold.ErrKeyExists) {
		return nil
	}
	return err
}

// Seen operations

// SeenHistory returns a user's events for an entry, most recently updated first
func (db *Database) SeenHistory(ctx context.Context, userID, metadataID uint64) ([]Seen, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var history []Seen
	query := bolthold.Where("MetadataID").Eq(metadataID).Index("MetadataID").And("UserID").Eq(userID)
	if err := db.store.Find(&history, query); err != nil {
		return nil, err
	}
	SortSeenHistory(history)
	return history, nil
}

// GetSeen retrieves an event by ID
func (db *Database) GetSeen(ctx context.Context, id uint64) (*Seen, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var seen Seen
	if err := db.store.Get(id, &seen); err != nil {
		return nil, notFound(err, "seen item", id)
	}
	return &seen, nil
}

// InsertSeen stores a new event. An underway event is refused when another one
// is already underway for the same user and entry.
func (db *Database) InsertSeen(ctx context.Context, seen *Seen) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := seen.Validate(); err != nil {
		return err
	}
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		if seen.IsUnderway() {
			underway, err := db.txUnderway(tx, seen.UserID, seen.MetadataID)
			if err != nil {
				return err
			}
			if len(underway) > 0 {
				return ErrAlreadyUnderway
			}
		}
		return db.store.TxInsert(tx, bolthold.NextSequence(), seen)
	})
}

// UpdateUnderwaySeen finds the single underway event of a user for an entry and
// applies mutate to it inside one write transaction. bbolt allows one writer at
// a time, so the read and the write cannot interleave with another update.
func (db *Database) UpdateUnderwaySeen(ctx context.Context, userID, metadataID uint64, mutate func(*Seen) error) (*Seen, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var updated Seen
	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		underway, err := db.txUnderway(tx, userID, metadataID)
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
		return db.store.TxUpdate(tx, updated.ID, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (db *Database) txUnderway(tx *bbolt.Tx, userID, metadataID uint64) ([]Seen, error) {
	var underway []Seen
	query := bolthold.Where("MetadataID").Eq(metadataID).Index("MetadataID").
		And("UserID").Eq(userID).
		And("Progress").Lt(100)
	if err := db.store.TxFind(tx, &underway, query); err != nil {
		return nil, err
	}
	return underway, nil
}

// DeleteSeen deletes an event by ID
func (db *Database) DeleteSeen(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := db.store.Delete(id, &Seen{}); err != nil {
		return notFound(err, "seen item", id)
	}
	return nil
}

// Import operations

// CommitImport writes every draft of an import run in a single transaction.
// Either all drafts are stored or none is.
func (db *Database) CommitImport(ctx context.Context, userID uint64, items []ImportMediaItem, now time.Time) (*ImportCommitSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &ImportCommitSummary{}
	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		collections := map[string]uint64{}

		for _, item := range items {
			meta, err := db.txFindMetadata(tx, item.Lot, item.Source, item.Identifier)
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
				if err := db.store.TxInsert(tx, bolthold.NextSequence(), meta); err != nil {
					return fmt.Errorf("failed to insert metadata for %q: %w", item.SourceID, err)
				}
				summary.MetadataCreated++
			}

			if err := db.txEnsureUserToMetadata(tx, userID, meta.ID); err != nil {
				return err
			}

			for _, draft := range item.SeenHistory {
				seen, err := draft.ToSeen(userID, meta.ID, meta.Lot, now)
				if err != nil {
					return fmt.Errorf("seen item of %q: %w", item.SourceID, err)
				}
				if err := db.store.TxInsert(tx, bolthold.NextSequence(), &seen); err != nil {
					return fmt.Errorf("failed to insert seen item for %q: %w", item.SourceID, err)
				}
				summary.SeenCreated++
			}

			for _, draft := range item.Reviews {
				review := draft.ToReview(userID, meta.ID, now)
				if err := db.store.TxInsert(tx, bolthold.NextSequence(), &review); err != nil {
					return fmt.Errorf("failed to insert review for %q: %w", item.SourceID, err)
				}
				summary.ReviewsCreated++
			}

			for _, name := range item.Collections {
				collectionID, ok := collections[name]
				if !ok {
					collectionID, err = db.txEnsureCollection(tx, userID, name, now)
					if err != nil {
						return err
					}
					collections[name] = collectionID
				}
				member := &CollectionToMetadata{CollectionID: collectionID, MetadataID: meta.ID}
				if err := db.store.TxUpsert(tx, userToMetadataKey(collectionID, meta.ID), member); err != nil {
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

func (db *Database) txEnsureCollection(tx *bbolt.Tx, userID uint64, name string, now time.Time) (uint64, error) {
	var existing []Collection
	query := bolthold.Where("UserID").Eq(userID).Index("UserID").And("Name").Eq(name)
	if err := db.store.TxFind(tx, &existing, query); err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return existing[0].ID, nil
	}
	collection := &Collection{UserID: userID, Name: name, CreatedAt: now}
	if err := db.store.TxInsert(tx, bolthold.NextSequence(), collection); err != nil {
		return 0, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return collection.ID, nil
}

// CollectionMembers lists the entries of a user's collection
func (db *Database) CollectionMembers(ctx context.Context, userID uint64, name string) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var collections []Collection
	if err := db.store.Find(&collections, bolthold.Where("UserID").Eq(userID).Index("UserID").And("Name").Eq(name)); err != nil {
		return nil, err
	}
	if len(collections) == 0 {
		return nil, fmt.Errorf("%w: collection %q", ErrNotFound, name)
	}
	var members []CollectionToMetadata
	if err := db.store.Find(&members, bolthold.Where("CollectionID").Eq(collections[0].ID).Index("CollectionID")); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.MetadataID)
	}
	return ids, nil
}

// Reviews lists a user's reviews for an entry
func (db *Database) Reviews(ctx context.Context, userID, metadataID uint64) ([]Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var reviews []Review
	query := bolthold.Where("MetadataID").Eq(metadataID).Index("MetadataID").And("UserID").Eq(userID)
	if err := db.store.Find(&reviews, query.SortBy("ID")); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Stats counts stored records for the status endpoint
func (db *Database) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats := &Stats{MetadataByLot: map[MediaLot]int{}}

	var metas []Metadata
	if err := db.store.Find(&metas, nil); err != nil {
		return nil, err
	}
	for _, m := range metas {
		stats.MetadataByLot[m.Lot]++
	}
	stats.Metadata = len(metas)

	var seen []Seen
	if err := db.store.Find(&seen, nil); err != nil {
		return nil, err
	}
	for _, s := range seen {
		if s.IsUnderway() {
			stats.Underway++
		} else {
			stats.Completed++
		}
	}
	return stats, nil
}
