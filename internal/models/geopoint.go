package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrInvalidGeoPoint = errors.New("invalid geo point")

// GeoPoint is a longitude/latitude pair in decimal degrees.
// In the database it is embedded as longitude and latitude columns,
// on the wire it is a GeoJSON Point.
type GeoPoint struct {
	Longitude float64 `gorm:"column:longitude;not null"`
	Latitude  float64 `gorm:"column:latitude;not null"`
}

// NewGeoPoint validates the coordinate ranges and returns the point
func NewGeoPoint(lon, lat float64) (GeoPoint, error) {
	if lon < -180 || lon > 180 {
		return GeoPoint{}, fmt.Errorf("%w: longitude %f out of range", ErrInvalidGeoPoint, lon)
	}
	if lat < -90 || lat > 90 {
		return GeoPoint{}, fmt.Errorf("%w: latitude %f out of range", ErrInvalidGeoPoint, lat)
	}
	return GeoPoint{Longitude: lon, Latitude: lat}, nil
}

// Point returns the orb representation of the point
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// Valid reports whether the coordinates are within range
func (p GeoPoint) Valid() bool {
	_, err := NewGeoPoint(p.Longitude, p.Latitude)
	return err == nil
}

func (p GeoPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(geojson.Point(p.Point()))
}

// UnmarshalJSON accepts a GeoJSON Point or a bare [lon, lat] array
func (p *GeoPoint) UnmarshalJSON(data []byte) error {
	var coords []float64
	if err := json.Unmarshal(data, &coords); err == nil {
		if len(coords) != 2 {
			return fmt.Errorf("%w: expected [lon, lat], got %d values", ErrInvalidGeoPoint, len(coords))
		}
		point, err := NewGeoPoint(coords[0], coords[1])
		if err != nil {
			return err
		}
		*p = point
		return nil
	}

	var gp geojson.Point
	if err := json.Unmarshal(data, &gp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGeoPoint, err)
	}
	point, err := NewGeoPoint(gp[0], gp[1])
	if err != nil {
		return err
	}
	*p = point
	return nil
}
