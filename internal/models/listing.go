package models

import (
	"fmt"
	"time"
)

// Listing is a rental property. Distance fields are derived per request,
// LikedBy is assembled from listing_likes and never written through this struct.
type Listing struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Title        string    `gorm:"not null" json:"title"`
	Price        float64   `gorm:"index" json:"price"`
	Location     GeoPoint  `gorm:"embedded" json:"location"`
	Geohash      string    `gorm:"size:12;index" json:"geohash,omitempty"`
	Address      string    `json:"address"`
	Area         *float64  `json:"area"`
	Rooms        *int      `gorm:"index" json:"rooms"`
	PropertyType *string   `gorm:"index" json:"property_type"`
	Description  *string   `json:"description"`
	ContactInfo  *string   `json:"-"`
	Images       []string  `gorm:"serializer:json" json:"images"`
	ScrapedAt    time.Time `json:"scraped_at"`
	SourceURL    *string   `gorm:"uniqueIndex" json:"source_url"`

	NearestMetro    *string  `json:"nearest_metro,omitempty"`
	DistanceToMetro *float64 `json:"distance_to_metro"`

	LikedBy          []int64  `gorm:"-" json:"liked_by"`
	DistanceToCenter *float64 `gorm:"-" json:"distance_to_center,omitempty"`
}

// Validate checks a record read back from the store
func (l *Listing) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("listing has no id")
	}
	if !l.Location.Valid() {
		return fmt.Errorf("listing %s: %w", l.ID, ErrInvalidGeoPoint)
	}
	if l.Price < 0 {
		return fmt.Errorf("listing %s: negative price %f", l.ID, l.Price)
	}
	return nil
}

// IsLikedBy reports whether the telegram user is in the liker set
func (l *Listing) IsLikedBy(telegramID int64) bool {
	for _, id := range l.LikedBy {
		if id == telegramID {
			return true
		}
	}
	return false
}

// ListingLike records that a telegram user liked a listing. The composite
// primary key gives the liker set its set semantics.
type ListingLike struct {
	ListingID  string    `gorm:"primaryKey;size:36"`
	TelegramID int64     `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt  time.Time `json:"created_at"`
}

// ContactInfo is disclosed only to users who liked the listing
type ContactInfo struct {
	ContactInfo *string `json:"contact_info"`
	SourceURL   *string `json:"source_url"`
}

type LikeRequest struct {
	PropertyID string `json:"property_id"`
	TelegramID int64  `json:"telegram_id" binding:"required"`
}
