package scraping

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"housingsearch/server/internal/models"
)

const (
	// Downtown anchor the baseline listings are scattered around
	anchorLon = 37.6176
	anchorLat = 55.7558

	baselineJitter = 0.01
	stationJitter  = 0.005

	// Number of reference points that get their own synthetic listings
	stationsPerRun     = 5
	listingsPerStation = 2

	MinPrice = 40000
	MaxPrice = 150000
	MinRooms = 1
	MaxRooms = 3
	MinArea  = 35
	MaxArea  = 100

	sourceURLFormat = "https://www.cian.ru/rent/flat/%d/"
)

var streets = []string{"Московская", "Центральная", "Садовая", "Парковая"}

// baselineListing is a fixed listing near the anchor; only its position is jittered
type baselineListing struct {
	title       string
	price       float64
	offset      [2]float64
	address     string
	area        float64
	rooms       int
	description string
	contact     string
	sourceID    int
}

var baseline = []baselineListing{
	{
		title:       "2-комнатная квартира, 65 м²",
		price:       85000,
		offset:      [2]float64{0, 0},
		address:     "ул. Тверская, 12",
		area:        65,
		rooms:       2,
		description: "Уютная квартира в центре Москвы",
		contact:     "+7 (495) 123-45-67",
		sourceID:    123456,
	},
	{
		title:       "1-комнатная квартира, 42 м²",
		price:       55000,
		offset:      [2]float64{-0.0020, -0.0010},
		address:     "ул. Арбат, 25",
		area:        42,
		rooms:       1,
		description: "Светлая квартира недалеко от метро",
		contact:     "+7 (495) 987-65-43",
		sourceID:    789012,
	},
	{
		title:       "3-комнатная квартира, 95 м²",
		price:       120000,
		offset:      [2]float64{0.0024, 0.0022},
		address:     "Большая Никитская, 7",
		area:        95,
		rooms:       3,
		description: "Просторная квартира с видом на город",
		contact:     "+7 (495) 555-77-88",
		sourceID:    345678,
	},
}

// Generator produces synthetic listings when the store has nothing to offer.
// Values are random on every call; only the structure is fixed.
type Generator struct {
	logger   *logrus.Logger
	stations []models.ReferencePoint

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator seeded from the clock
func NewGenerator(stations []models.ReferencePoint, logger *logrus.Logger) *Generator {
	return NewGeneratorWithSource(stations, rand.NewSource(time.Now().UnixNano()), logger)
}

// NewGeneratorWithSource creates a generator with an explicit random source
func NewGeneratorWithSource(stations []models.ReferencePoint, src rand.Source, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Generator{
		logger:   logger,
		stations: stations,
		rng:      rand.New(src),
		now:      time.Now,
	}
}

// Generate returns the baseline listings plus listingsPerStation listings
// around each of the first stationsPerRun stations. radiusKm is accepted for
// parity with a real scraper and does not narrow the output.
func (g *Generator) Generate(radiusKm float64) []models.Listing {
	g.mu.Lock()
	defer g.mu.Unlock()

	scrapedAt := g.now().UTC()
	usedIDs := make(map[int]struct{})
	listings := make([]models.Listing, 0, len(baseline)+stationsPerRun*listingsPerStation)

	for _, b := range baseline {
		usedIDs[b.sourceID] = struct{}{}
		listings = append(listings, models.Listing{
			ID:    uuid.NewString(),
			Title: b.title,
			Price: b.price,
			Location: models.GeoPoint{
				Longitude: anchorLon + b.offset[0] + g.jitter(baselineJitter),
				Latitude:  anchorLat + b.offset[1] + g.jitter(baselineJitter),
			},
			Address:     b.address,
			Area:        ptr(b.area),
			Rooms:       ptr(b.rooms),
			Description: ptr(b.description),
			ContactInfo: ptr(b.contact),
			Images:      []string{},
			ScrapedAt:   scrapedAt,
			SourceURL:   ptr(fmt.Sprintf(sourceURLFormat, b.sourceID)),
		})
	}

	stations := g.stations
	if len(stations) > stationsPerRun {
		stations = stations[:stationsPerRun]
	}

	for _, station := range stations {
		for i := 0; i < listingsPerStation; i++ {
			rooms := MinRooms + g.rng.Intn(MaxRooms-MinRooms+1)
			area := float64(MinArea + g.rng.Intn(MaxArea-MinArea+1))
			price := float64(MinPrice + g.rng.Intn(MaxPrice-MinPrice+1))

			listings = append(listings, models.Listing{
				ID:    uuid.NewString(),
				Title: fmt.Sprintf("%d-комнатная квартира, %.0f м²", rooms, area),
				Price: price,
				Location: models.GeoPoint{
					Longitude: station.Location.Longitude + g.jitter(stationJitter),
					Latitude:  station.Location.Latitude + g.jitter(stationJitter),
				},
				Address:     fmt.Sprintf("ул. %s, %d", streets[g.rng.Intn(len(streets))], 1+g.rng.Intn(50)),
				Area:        ptr(area),
				Rooms:       ptr(rooms),
				Description: ptr(fmt.Sprintf("Квартира рядом с метро %s", station.Name)),
				ContactInfo: ptr(fmt.Sprintf("+7 (495) %d-%d-%d", 100+g.rng.Intn(900), 10+g.rng.Intn(90), 10+g.rng.Intn(90))),
				Images:      []string{},
				ScrapedAt:   scrapedAt,
				SourceURL:   ptr(fmt.Sprintf(sourceURLFormat, g.uniqueSourceID(usedIDs))),
			})
		}
	}

	g.logger.WithFields(logrus.Fields{
		"radius_km": radiusKm,
		"count":     len(listings),
	}).Debug("Generated synthetic listings")

	return listings
}

// jitter returns a uniform offset in [-span, span]
func (g *Generator) jitter(span float64) float64 {
	return (g.rng.Float64()*2 - 1) * span
}

// uniqueSourceID draws a six digit id not yet used in this run
func (g *Generator) uniqueSourceID(used map[int]struct{}) int {
	for {
		id := 100000 + g.rng.Intn(900000)
		if _, ok := used[id]; !ok {
			used[id] = struct{}{}
			return id
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
