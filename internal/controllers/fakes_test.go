package controllers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/trackarr/internal/models"
)

// memoryStore is an in-memory ProgressStore, ImportStore and CatalogStore
type memoryStore struct {
	mu       sync.Mutex
	nextID   uint64
	metadata map[uint64]*models.Metadata
	seen     map[uint64]*models.Seen
	links    map[[2]uint64]bool

	ensureCalls int
	findCalls   int
	commits     [][]models.ImportMediaItem
	commitErr   error
	upserted    []*models.Metadata
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		metadata: map[uint64]*models.Metadata{},
		seen:     map[uint64]*models.Seen{},
		links:    map[[2]uint64]bool{},
	}
}

func (m *memoryStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) addMetadata(lot models.MediaLot, identifier string) *models.Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta := &models.Metadata{ID: m.id(), Lot: lot, Source: models.MediaSourceTmdb, Identifier: identifier}
	m.metadata[meta.ID] = meta
	return meta
}

// addSeen stores an event without any checks
func (m *memoryStore) addSeen(seen models.Seen) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen.ID = m.id()
	m.seen[seen.ID] = &seen
	return seen.ID
}

func (m *memoryStore) EnsureUserToMetadata(ctx context.Context, userID, metadataID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureCalls++
	m.links[[2]uint64{userID, metadataID}] = true
	return nil
}

func (m *memoryStore) GetMetadata(ctx context.Context, id uint64) (*models.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metadata[id]
	if !ok {
		return nil, fmt.Errorf("%w: metadata %d", models.ErrNotFound, id)
	}
	return meta, nil
}

func (m *memoryStore) FindMetadataByIdentifier(ctx context.Context, lot models.MediaLot, identifier string) (*models.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	for _, meta := range m.metadata {
		if meta.Lot == lot && meta.Identifier == identifier {
			return meta, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", models.ErrNotFound, lot, identifier)
}

func (m *memoryStore) UserMetadataByLot(ctx context.Context, userID uint64, lot models.MediaLot, offset, limit int) ([]models.Metadata, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tracked []models.Metadata
	for id := uint64(1); id <= m.nextID; id++ {
		meta, ok := m.metadata[id]
		if ok && meta.Lot == lot && m.links[[2]uint64{userID, id}] {
			tracked = append(tracked, *meta)
		}
	}
	if offset >= len(tracked) {
		return nil, len(tracked), nil
	}
	return tracked[offset:min(offset+limit, len(tracked))], len(tracked), nil
}

func (m *memoryStore) SeenHistory(ctx context.Context, userID, metadataID uint64) ([]models.Seen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var history []models.Seen
	for _, s := range m.seen {
		if s.UserID == userID && s.MetadataID == metadataID {
			history = append(history, *s)
		}
	}
	models.SortSeenHistory(history)
	return history, nil
}

func (m *memoryStore) underway(userID, metadataID uint64) []*models.Seen {
	var out []*models.Seen
	for _, s := range m.seen {
		if s.UserID == userID && s.MetadataID == metadataID && s.IsUnderway() {
			out = append(out, s)
		}
	}
	return out
}

func (m *memoryStore) InsertSeen(ctx context.Context, seen *models.Seen) error {
	if err := seen.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if seen.IsUnderway() && len(m.underway(seen.UserID, seen.MetadataID)) > 0 {
		return models.ErrAlreadyUnderway
	}
	seen.ID = m.id()
	stored := *seen
	m.seen[seen.ID] = &stored
	return nil
}

func (m *memoryStore) UpdateUnderwaySeen(ctx context.Context, userID, metadataID uint64, mutate func(*models.Seen) error) (*models.Seen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	underway := m.underway(userID, metadataID)
	switch {
	case len(underway) == 0:
		return nil, models.ErrNoUnderwayEvent
	case len(underway) > 1:
		return nil, models.ErrDataInconsistency
	}
	updated := *underway[0]
	if err := mutate(&updated); err != nil {
		return nil, err
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	m.seen[updated.ID] = &updated
	return &updated, nil
}

func (m *memoryStore) GetSeen(ctx context.Context, id uint64) (*models.Seen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seen[id]
	if !ok {
		return nil, fmt.Errorf("%w: seen item %d", models.ErrNotFound, id)
	}
	out := *s
	return &out, nil
}

func (m *memoryStore) DeleteSeen(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[id]; !ok {
		return fmt.Errorf("%w: seen item %d", models.ErrNotFound, id)
	}
	delete(m.seen, id)
	return nil
}

func (m *memoryStore) CommitImport(ctx context.Context, userID uint64, items []models.ImportMediaItem, now time.Time) (*models.ImportCommitSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return nil, m.commitErr
	}
	m.commits = append(m.commits, items)
	summary := &models.ImportCommitSummary{MetadataCreated: len(items)}
	for _, item := range items {
		summary.SeenCreated += len(item.SeenHistory)
		summary.ReviewsCreated += len(item.Reviews)
	}
	return summary, nil
}

func (m *memoryStore) UpsertMetadata(ctx context.Context, meta *models.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if meta.ID == 0 {
		meta.ID = m.id()
	}
	m.metadata[meta.ID] = meta
	m.upserted = append(m.upserted, meta)
	return nil
}

func (m *memoryStore) MetadataByLot(ctx context.Context, lot models.MediaLot) ([]models.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Metadata
	for _, meta := range m.metadata {
		if meta.Lot == lot {
			out = append(out, *meta)
		}
	}
	return out, nil
}
