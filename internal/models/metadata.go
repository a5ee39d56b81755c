package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metadata is a catalog entry. (Lot, Source, Identifier) is unique.
type Metadata struct {
	ID         uint64      `boltholdKey:"ID" gorm:"primaryKey" json:"id"`
	Lot        MediaLot    `boltholdIndex:"Lot" gorm:"not null;uniqueIndex:idx_metadata_identity" json:"lot"`
	Source     MediaSource `gorm:"not null;uniqueIndex:idx_metadata_identity" json:"source"`
	Identifier string      `boltholdIndex:"Identifier" gorm:"not null;uniqueIndex:idx_metadata_identity" json:"identifier"`

	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description,omitempty"`
	PublishYear *int       `json:"publish_year,omitempty"`
	PublishDate *time.Time `json:"publish_date,omitempty"`

	// Only set for podcasts
	Podcast *PodcastSpecifics `gorm:"serializer:json" json:"podcast,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PodcastSpecifics holds the full, accumulated episode list of a podcast
type PodcastSpecifics struct {
	Episodes      []PodcastEpisode `json:"episodes"`
	TotalEpisodes int              `json:"total_episodes"`
}

// PodcastEpisode is one episode. Number is assigned locally, contiguously from 1.
type PodcastEpisode struct {
	Number         int       `json:"number"`
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Overview       string    `json:"overview,omitempty"`
	Thumbnail      string    `json:"thumbnail,omitempty"`
	PublishDate    time.Time `json:"publish_date"`
	RuntimeMinutes *int      `json:"runtime_minutes,omitempty"`
}

// UserToMetadata associates a user with a catalog entry they track
type UserToMetadata struct {
	UserID     uint64    `boltholdIndex:"UserID" gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	MetadataID uint64    `gorm:"primaryKey;autoIncrement:false" json:"metadata_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Review is a user's rating and/or text for a catalog entry. Rating is on the
// canonical 0-100 scale.
type Review struct {
	ID         uint64           `boltholdKey:"ID" gorm:"primaryKey" json:"id"`
	UserID     uint64           `boltholdIndex:"UserID" gorm:"not null;index" json:"user_id"`
	MetadataID uint64           `boltholdIndex:"MetadataID" gorm:"not null;index" json:"metadata_id"`
	Rating     *decimal.Decimal `gorm:"type:numeric" json:"rating,omitempty"`
	Text       *string          `json:"text,omitempty"`
	Spoiler    bool             `json:"spoiler"`
	Visibility Visibility       `gorm:"not null" json:"visibility"`
	PostedOn   time.Time        `json:"posted_on"`
}

// Collection is a named, per-user list of catalog entries
type Collection struct {
	ID        uint64    `boltholdKey:"ID" gorm:"primaryKey" json:"id"`
	UserID    uint64    `boltholdIndex:"UserID" gorm:"not null;uniqueIndex:idx_collection_user_name" json:"user_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_collection_user_name" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CollectionToMetadata is the membership of a catalog entry in a collection
type CollectionToMetadata struct {
	CollectionID uint64 `boltholdIndex:"CollectionID" gorm:"primaryKey;autoIncrement:false" json:"collection_id"`
	MetadataID   uint64 `gorm:"primaryKey;autoIncrement:false" json:"metadata_id"`
}
