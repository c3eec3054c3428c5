package services

import (
	"fmt"
)

const (
	// MilesToKm converts statute miles to kilometers.
	MilesToKm = 1.60934
	// DefaultConsumption is the average consumption in kWh per 100 km,
	// used when the user replies "not sure".
	DefaultConsumption = 18
)

// TripEstimate is the cost breakdown for a planned trip.
type TripEstimate struct {
	DistanceMiles          float64
	DistanceKm             float64
	PricePerKWh            float64
	ConsumptionKWhPer100Km float64
	EnergyNeededKWh        float64
	EstimatedCost          float64
}

// EstimateTrip computes the energy and cost for a trip. Inputs are taken as
// given; negative or zero values still produce a numeric result. Rounding to
// two decimals happens only at display time.
func EstimateTrip(distanceMiles, pricePerKWh, consumptionPer100Km float64) TripEstimate {
	distanceKm := distanceMiles * MilesToKm
	energyNeeded := (distanceKm / 100) * consumptionPer100Km
	estimatedCost := energyNeeded * pricePerKWh

	return TripEstimate{
		DistanceMiles:          distanceMiles,
		DistanceKm:             distanceKm,
		PricePerKWh:            pricePerKWh,
		ConsumptionKWhPer100Km: consumptionPer100Km,
		EnergyNeededKWh:        energyNeeded,
		EstimatedCost:          estimatedCost,
	}
}

// Summary renders the estimate as a chat message.
func (t TripEstimate) Summary() string {
	return fmt.Sprintf(
		"🔋 Estimated trip cost:\n\n• Distance: %.2f km (%.2f miles)\n• Energy needed: %.2f kWh\n• Estimated cost: £%.2f",
		t.DistanceKm, t.DistanceMiles, t.EnergyNeededKWh, t.EstimatedCost)
}
