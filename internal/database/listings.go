package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"housingsearch/server/internal/geometry"
	"housingsearch/server/internal/models"
)

// Columns replaced when a listing with a known source URL is stored again.
// id is kept so existing likes stay attached.
var listingUpsertColumns = []string{
	"title", "price", "longitude", "latitude", "geohash", "address", "area",
	"rooms", "property_type", "description", "contact_info", "images",
	"scraped_at", "nearest_metro", "distance_to_metro",
}

// FindWithinRadius returns up to limit listings within filter.RadiusKm of
// filter.Center matching the price, room and type predicates, nearest first.
func (d *Database) FindWithinRadius(ctx context.Context, filter models.SearchFilter, limit int) ([]models.Listing, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	q := d.db.WithContext(ctx).Model(&models.Listing{})

	if precision, cells := geometry.CoverCells(filter.Center, filter.RadiusKm); precision > 0 {
		q = q.Where("substr(geohash, 1, ?) IN ?", precision, cells)
	}

	bound := geometry.Bound(filter.Center, filter.RadiusKm)
	q = q.Where("latitude BETWEEN ? AND ?", bound.Min.Lat(), bound.Max.Lat())
	switch {
	case bound.Min.Lon() < -180 || bound.Max.Lon() > 180:
		// no usable longitude bound
	case bound.Min.Lon() > bound.Max.Lon():
		// the box wraps across the antimeridian
		q = q.Where("(longitude >= ? OR longitude <= ?)", bound.Min.Lon(), bound.Max.Lon())
	default:
		q = q.Where("longitude BETWEEN ? AND ?", bound.Min.Lon(), bound.Max.Lon())
	}

	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	if rooms := filter.NormalizedRooms(); len(rooms) > 0 {
		q = q.Where("rooms IN ?", rooms)
	}
	if filter.PropertyType != nil {
		q = q.Where("property_type = ?", *filter.PropertyType)
	}

	var candidates []models.Listing
	if err := q.Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}

	type ranked struct {
		listing  models.Listing
		distance float64
	}
	inRange := make([]ranked, 0, len(candidates))
	for _, l := range candidates {
		if err := l.Validate(); err != nil {
			d.logger.WithError(err).WithField("listing_id", l.ID).Warn("Skipping invalid listing")
			continue
		}
		dist := geometry.Distance(filter.Center, l.Location)
		if dist <= filter.RadiusKm {
			inRange = append(inRange, ranked{listing: l, distance: dist})
		}
	}

	sort.SliceStable(inRange, func(i, j int) bool {
		return inRange[i].distance < inRange[j].distance
	})
	if limit > 0 && len(inRange) > limit {
		inRange = inRange[:limit]
	}

	listings := make([]models.Listing, len(inRange))
	for i, r := range inRange {
		listings[i] = r.listing
	}

	if err := d.attachLikes(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// UpsertListings stores listings inside tx, keyed by source URL. Storing the
// same source URL again updates the existing record instead of adding one.
func UpsertListings(tx *gorm.DB, listings []models.Listing) error {
	for i := range listings {
		l := listings[i]
		if !l.Location.Valid() {
			return fmt.Errorf("listing %q: %w", l.Title, models.ErrInvalidGeoPoint)
		}
		l.Geohash = geometry.Geohash(l.Location)

		q := tx
		if l.SourceURL != nil {
			q = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "source_url"}},
				DoUpdates: clause.AssignmentColumns(listingUpsertColumns),
			})
		}
		if err := q.Create(&l).Error; err != nil {
			return fmt.Errorf("failed to upsert listing %q: %w", l.Title, conflict(err, "listing "+l.ID))
		}
	}
	return nil
}

// UpsertListing stores a single listing keyed by its source URL
func (d *Database) UpsertListing(ctx context.Context, listing models.Listing) error {
	return UpsertListings(d.db.WithContext(ctx), []models.Listing{listing})
}

// UpsertListings stores a batch of listings in one transaction
func (d *Database) UpsertListings(ctx context.Context, listings []models.Listing) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return UpsertListings(tx, listings)
	})
}

func (d *Database) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, notFound(err, "listing "+id)
	}

	listings := []models.Listing{listing}
	if err := d.attachLikes(ctx, listings); err != nil {
		return nil, err
	}
	return &listings[0], nil
}

func (d *Database) CountListings(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Listing{}).Count(&count).Error
	return count, err
}

// LikeListing adds telegramID to the listing's liker set. Liking twice is a no-op.
func (d *Database) LikeListing(ctx context.Context, listingID string, telegramID int64) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Listing{}).Where("id = ?", listingID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}

		like := models.ListingLike{ListingID: listingID, TelegramID: telegramID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error
	})
}

// GetContactInfo discloses contact details to users who liked the listing
func (d *Database) GetContactInfo(ctx context.Context, listingID string, telegramID int64) (*models.ContactInfo, error) {
	listing, err := d.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsLikedBy(telegramID) {
		return nil, ErrNotLiked
	}

	return &models.ContactInfo{
		ContactInfo: listing.ContactInfo,
		SourceURL:   listing.SourceURL,
	}, nil
}

// attachLikes fills LikedBy for every listing from the likes table
func (d *Database) attachLikes(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}

	var likes []models.ListingLike
	err := d.db.WithContext(ctx).
		Where("listing_id IN ?", ids).
		Order("created_at, telegram_id").
		Find(&likes).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load likes: %w", err)
	}

	byListing := make(map[string][]int64, len(listings))
	for _, like := range likes {
		byListing[like.ListingID] = append(byListing[like.ListingID], like.TelegramID)
	}

	for i := range listings {
		listings[i].LikedBy = byListing[listings[i].ID]
		if listings[i].LikedBy == nil {
			listings[i].LikedBy = []int64{}
		}
	}

	d.logger.WithFields(logrus.Fields{
		"listings": len(listings),
		"likes":    len(likes),
	}).Debug("Attached likes")
	return nil
}
