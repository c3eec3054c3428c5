package storage

import (
	"sync"
	"time"

	"github.com/darlynton/ev-assistant-bot/internal/models"
)

// MemoryStore holds vehicle profiles in memory for testing and local runs
type MemoryStore struct {
	profiles  map[string]*models.VehicleProfile
	profileMu sync.RWMutex

	counter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*models.VehicleProfile),
	}
}

func (m *MemoryStore) UpsertVehicleProfile(phone, carModel string) (*models.VehicleProfile, error) {
	m.profileMu.Lock()
	defer m.profileMu.Unlock()

	now := time.Now()
	if existing, ok := m.profiles[phone]; ok {
		existing.CarModel = carModel
		existing.UpdatedAt = now
		return existing, nil
	}

	m.counter++
	profile := &models.VehicleProfile{
		Phone:    phone,
		CarModel: carModel,
	}
	profile.ID = m.counter
	profile.CreatedAt = now
	profile.UpdatedAt = now

	m.profiles[phone] = profile
	return profile, nil
}

func (m *MemoryStore) GetVehicleProfile(phone string) (*models.VehicleProfile, error) {
	m.profileMu.RLock()
	defer m.profileMu.RUnlock()

	profile, ok := m.profiles[phone]
	if !ok {
		return nil, nil
	}
	return profile, nil
}
