package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/darlynton/ev-assistant-bot/internal/models"
)

// DatabaseStore persists vehicle profiles in PostgreSQL via GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (d *DatabaseStore) UpsertVehicleProfile(phone, carModel string) (*models.VehicleProfile, error) {
	profile := &models.VehicleProfile{
		Phone:    phone,
		CarModel: carModel,
	}

	// INSERT ... ON CONFLICT (phone) DO UPDATE SET car_model = excluded.car_model
	err := d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"car_model", "updated_at"}),
	}).Create(profile).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert vehicle profile: %w", err)
	}

	return profile, nil
}

func (d *DatabaseStore) GetVehicleProfile(phone string) (*models.VehicleProfile, error) {
	var profile models.VehicleProfile
	err := d.db.Where("phone = ?", phone).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle profile: %w", err)
	}
	return &profile, nil
}
