package models

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidFilter = errors.New("invalid search filter")

// SearchFilter is both the search input and the seed of the cache fingerprint
type SearchFilter struct {
	Center       GeoPoint `json:"center"`
	RadiusKm     float64  `json:"radius_km"`
	PropertyType *string  `json:"property_type"`
	MinPrice     *float64 `json:"min_price"`
	MaxPrice     *float64 `json:"max_price"`
	Rooms        []int    `json:"rooms"`
}

// Validate checks the invariants the store and cache rely on
func (f SearchFilter) Validate() error {
	if !f.Center.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, ErrInvalidGeoPoint)
	}
	if f.RadiusKm <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %f", ErrInvalidFilter, f.RadiusKm)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return fmt.Errorf("%w: min_price %f exceeds max_price %f", ErrInvalidFilter, *f.MinPrice, *f.MaxPrice)
	}
	return nil
}

// NormalizedRooms returns the room set sorted and without duplicates
func (f SearchFilter) NormalizedRooms() []int {
	if len(f.Rooms) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(f.Rooms))
	rooms := make([]int, 0, len(f.Rooms))
	for _, r := range f.Rooms {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		rooms = append(rooms, r)
	}
	sort.Ints(rooms)
	return rooms
}
