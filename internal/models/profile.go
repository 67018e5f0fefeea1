package models

import "time"

type UserProfile struct {
	ID                uint      `gorm:"primaryKey" json:"-"`
	TelegramID        int64     `gorm:"uniqueIndex;not null" json:"telegram_id" binding:"required"`
	Name              string    `gorm:"not null" json:"name" binding:"required"`
	PhotoURL          *string   `json:"photo_url"`
	Gender            *string   `json:"gender"`
	Age               *int      `json:"age" binding:"omitempty,gte=0,lte=150"`
	About             *string   `json:"about"`
	PreferredLocation *string   `json:"preferred_location"`
	SearchRadiusKm    float64   `gorm:"default:2" json:"search_radius_km" binding:"omitempty,gt=0"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DefaultSearchRadiusKm is applied when a profile is saved without a radius
const DefaultSearchRadiusKm = 2.0
