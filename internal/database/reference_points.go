package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"housingsearch/server/internal/models"
)

// LoadReferencePoints stores the static reference points unless the table is
// already populated. Returns the number of points inserted.
func (d *Database) LoadReferencePoints(ctx context.Context, points []models.ReferencePoint) (int, error) {
	var existing int64
	if err := d.db.WithContext(ctx).Model(&models.ReferencePoint{}).Count(&existing).Error; err != nil {
		return 0, fmt.Errorf("failed to count reference points: %w", err)
	}
	if existing > 0 {
		d.logger.WithField("count", existing).Info("Reference points already loaded")
		return 0, nil
	}
	if len(points) == 0 {
		return 0, nil
	}

	// seq is unique, so a concurrent loader cannot duplicate rows
	result := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&points)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert reference points: %w", result.Error)
	}

	d.logger.WithField("count", result.RowsAffected).Info("Loaded reference points")
	return int(result.RowsAffected), nil
}

// ListReferencePoints returns all reference points in load order
func (d *Database) ListReferencePoints(ctx context.Context) ([]models.ReferencePoint, error) {
	var points []models.ReferencePoint
	if err := d.db.WithContext(ctx).Order("seq").Find(&points).Error; err != nil {
		return nil, fmt.Errorf("failed to list reference points: %w", err)
	}
	return points, nil
}

// FindReferencePoint looks a reference point up by display name, falling back
// to a case-insensitive match on the alternate name
func (d *Database) FindReferencePoint(ctx context.Context, name string) (*models.ReferencePoint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("reference point: %w", ErrNotFound)
	}

	var point models.ReferencePoint
	err := d.db.WithContext(ctx).Where("name = ?", name).First(&point).Error
	if err == nil {
		return &point, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = d.db.WithContext(ctx).Where("LOWER(name_en) = LOWER(?)", name).Order("seq").First(&point).Error
	if err != nil {
		return nil, notFound(err, "reference point "+name)
	}
	return &point, nil
}
