package models

import (
	"gorm.io/gorm"
)

// VehicleProfile stores a user's registered car model, keyed by their
// WhatsApp sender identity. Last write wins.
type VehicleProfile struct {
	gorm.Model
	Phone    string `json:"phone" gorm:"uniqueIndex"`
	CarModel string `json:"car_model"`
}
