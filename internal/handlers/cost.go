package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/darlynton/ev-assistant-bot/internal/services"
)

// CostRequest is the body for the trip cost endpoint. The distance field is
// named distanceKm on the wire but carries the trip distance in miles, which
// the estimate converts; the response echoes it back as distanceMiles.
type CostRequest struct {
	DistanceKm             *float64 `json:"distanceKm"`
	PricePerKWh            *float64 `json:"pricePerKWh"`
	ConsumptionKWhPer100Km *float64 `json:"consumptionKWhPer100Km"`
}

// HandleCostEstimate computes a trip cost breakdown from JSON input.
func HandleCostEstimate(c *fiber.Ctx) error {
	var req CostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing parameters.",
		})
	}

	if req.DistanceKm == nil || req.PricePerKWh == nil || req.ConsumptionKWhPer100Km == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing parameters.",
		})
	}

	estimate := services.EstimateTrip(*req.DistanceKm, *req.PricePerKWh, *req.ConsumptionKWhPer100Km)

	return c.JSON(fiber.Map{
		"distanceMiles":          estimate.DistanceMiles,
		"distanceKm":             estimate.DistanceKm,
		"pricePerKWh":            estimate.PricePerKWh,
		"consumptionKWhPer100Km": estimate.ConsumptionKWhPer100Km,
		"energyNeededKWh":        estimate.EnergyNeededKWh,
		"estimatedCost":          fmt.Sprintf("%.2f", estimate.EstimatedCost),
	})
}
