package database

import (
	"fmt"

	"housingsearch/server/internal/models"
)

func (d *Database) RunMigrations() error {
	return MigrateSchema(d)
}

// MigrateSchema creates or updates all tables and indexes
func MigrateSchema(d *Database) error {
	err := d.db.AutoMigrate(
		&models.Listing{},
		&models.ListingLike{},
		&models.ReferencePoint{},
		&models.UserProfile{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Create spatial index on coordinates
	err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_listings_coordinates
		ON listings(latitude, longitude);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
