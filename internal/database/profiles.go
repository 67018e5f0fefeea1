package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"housingsearch/server/internal/models"
)

var profileUpsertColumns = []string{
	"name", "photo_url", "gender", "age", "about", "preferred_location",
	"search_radius_km", "updated_at",
}

// UpsertProfile creates or replaces the profile of profile.TelegramID and
// returns the stored record. created is false when an existing profile was updated.
func (d *Database) UpsertProfile(ctx context.Context, profile models.UserProfile) (stored *models.UserProfile, created bool, err error) {
	if profile.SearchRadiusKm <= 0 {
		profile.SearchRadiusKm = models.DefaultSearchRadiusKm
	}
	now := time.Now().UTC()
	profile.ID = 0
	profile.CreatedAt = now
	profile.UpdatedAt = now

	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.UserProfile{}).Where("telegram_id = ?", profile.TelegramID).Count(&existing).Error; err != nil {
			return err
		}
		created = existing == 0

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns(profileUpsertColumns),
		}).Create(&profile).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to save profile: %w", err)
	}

	stored, err = d.GetProfile(ctx, profile.TelegramID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (d *Database) GetProfile(ctx context.Context, telegramID int64) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := d.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&profile).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("profile %d", telegramID))
	}
	return &profile, nil
}
