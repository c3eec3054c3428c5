package storage

import (
	"github.com/darlynton/ev-assistant-bot/internal/models"
)

// Store defines the interface for vehicle profile persistence
type Store interface {
	// UpsertVehicleProfile saves the car model for a phone number,
	// replacing any previous value
	UpsertVehicleProfile(phone, carModel string) (*models.VehicleProfile, error)
	// GetVehicleProfile returns the profile for a phone number, or nil
	// if the user never registered
	GetVehicleProfile(phone string) (*models.VehicleProfile, error)
}
