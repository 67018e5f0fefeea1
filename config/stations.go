package config

import (
	"github.com/google/uuid"

	"housingsearch/server/internal/models"
)

// StationSeed is the static description of a metro station loaded at startup
type StationSeed struct {
	Name        string     `json:"name"`
	NameEn      string     `json:"name_en"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
	Line        string     `json:"line"`
	LineColor   string     `json:"line_color"`
}

const (
	sokolnicheskaya  = "Сокольническая"
	zamoskvoretskaya = "Замоскворецкая"

	sokolnicheskayaColor  = "#D50000"
	zamoskvoretskayaColor = "#4CAF50"
)

// MetroStations is the fixed list of stations served by the application.
// Order matters: the listing generator anchors on the first five.
var MetroStations = []StationSeed{
	{Name: "Сокольники", NameEn: "Sokolniki", Coordinates: [2]float64{37.6799, 55.7886}, Line: sokolnicheskaya, LineColor: sokolnicheskayaColor},
	{Name: "Красносельская", NameEn: "Krasnoselskaya", Coordinates: [2]float64{37.6656, 55.7797}, Line: sokolnicheskaya, LineColor: sokolnicheskayaColor},
	{Name: "Комсомольская", NameEn: "Komsomolskaya", Coordinates: [2]float64{37.6544, 55.7744}, Line: sokolnicheskaya, LineColor: sokolnicheskayaColor},
	{Name: "Красные ворота", NameEn: "Krasnye Vorota", Coordinates: [2]float64{37.6479, 55.7687}, Line: sokolnicheskaya, LineColor: sokolnicheskayaColor},
	{Name: "Чистые пруды", NameEn: "Chistye Prudy", Coordinates: [2]float64{37.6384, 55.7648}, Line: sokolnicheskaya, LineColor: sokolnicheskayaColor},
	{Name: "Лубянка", NameEn: "Lubyanka", Coordinates: [2]float64{37.6282, 55.7581}, Line: sokolnicheskaya, LineColor: sokolnicheskayaColor},
	{Name: "Охотный ряд", NameEn: "Okhotny Ryad", Coordinates: [2]float64{37.6155, 55.7573}, Line: sokolnicheskaya, LineColor: sokolnicheskayaColor},
	{Name: "Библиотека имени Ленина", NameEn: "Biblioteka imeni Lenina", Coordinates: [2]float64{37.6109, 55.7515}, Line: sokolnicheskaya, LineColor: sokolnicheskayaColor},
	{Name: "Кропоткинская", NameEn: "Kropotkinskaya", Coordinates: [2]float64{37.6035, 55.7456}, Line: sokolnicheskaya, LineColor: sokolnicheskayaColor},
	{Name: "Парк культуры", NameEn: "Park Kultury", Coordinates: [2]float64{37.5936, 55.7355}, Line: sokolnicheskaya, LineColor: sokolnicheskayaColor},
	{Name: "Новокузнецкая", NameEn: "Novokuznetskaya", Coordinates: [2]float64{37.6291, 55.7425}, Line: zamoskvoretskaya, LineColor: zamoskvoretskayaColor},
	{Name: "Третьяковская", NameEn: "Tretyakovskaya", Coordinates: [2]float64{37.6252, 55.7406}, Line: zamoskvoretskaya, LineColor: zamoskvoretskayaColor},
	{Name: "Театральная", NameEn: "Teatralnaya", Coordinates: [2]float64{37.6201, 55.7581}, Line: zamoskvoretskaya, LineColor: zamoskvoretskayaColor},
	{Name: "Тверская", NameEn: "Tverskaya", Coordinates: [2]float64{37.6054, 55.7669}, Line: zamoskvoretskaya, LineColor: zamoskvoretskayaColor},
	{Name: "Маяковская", NameEn: "Mayakovskaya", Coordinates: [2]float64{37.5959, 55.7696}, Line: zamoskvoretskaya, LineColor: zamoskvoretskayaColor},
}

// ReferencePoint converts the seed into a storable reference point
func (s StationSeed) ReferencePoint(seq int) models.ReferencePoint {
	rp := models.ReferencePoint{
		ID:        uuid.NewString(),
		Seq:       seq,
		Name:      s.Name,
		Location:  models.GeoPoint{Longitude: s.Coordinates[0], Latitude: s.Coordinates[1]},
		Line:      s.Line,
		LineColor: s.LineColor,
	}
	if s.NameEn != "" {
		nameEn := s.NameEn
		rp.NameEn = &nameEn
	}
	return rp
}

// ReferencePoints converts all stations, keeping their order
func ReferencePoints() []models.ReferencePoint {
	points := make([]models.ReferencePoint, len(MetroStations))
	for i, station := range MetroStations {
		points[i] = station.ReferencePoint(i)
	}
	return points
}
