package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/darlynton/ev-assistant-bot/internal/session"
	"github.com/darlynton/ev-assistant-bot/internal/storage"
)

// Message is the canonical inbound unit, independent of wire format.
// Text is trimmed and lowercased; RawText is trimmed only, for the steps
// that must keep the user's casing (vehicle registration).
type Message struct {
	SenderID string
	Text     string
	RawText  string
}

// Bot reply texts.
const (
	msgAskLocation    = "Sure! Please share your location from WhatsApp location feature or provide a postcode or city to find nearby chargers."
	msgRegisterNudge  = "Want more personalized results based on your vehicle? Reply with `register` to save your car model."
	msgAskCarModel    = "Great! Please reply with your car make and model (e.g., Nissan Ariya)."
	msgCarSaved       = "Thanks! We've saved your vehicle details for future personalized results."
	msgAskDistance    = "Great! Let's calculate your trip cost.\nFirst, how many miles is your trip?"
	msgBadDistance    = "That doesn't look like a number. Please enter the trip distance in kilometers (e.g., 120)."
	msgAskPrice       = "Thanks! Now, what's your electricity cost per kWh in pounds? (e.g., 0.34)"
	msgBadPrice       = "Hmm, that doesn't look right. Please enter the cost per kWh in pounds (e.g., 0.34)."
	msgAskConsumption = "Got it. Lastly, what's your vehicle's energy consumption per 100 km? (e.g., 18)\nReply “Not sure” and I’ll use an average value of 18 kWh/100 km."
	msgBadConsumption = "That doesn't seem right. Please enter the consumption in kWh per 100 km (e.g., 18), or reply 'Not sure' to use the average value."
	msgOops           = "❌ Sorry, something went wrong. Please try again."

	msgConsumptionFollowUp = "\n\nIf you'd like to provide a more accurate consumption later, just let me know!"

	msgMenu = `EV Assistant Menu:

1️⃣ Type *charge* to find EV chargers near you
2️⃣ Type *cost* to estimate your trip cost

You can also type *register* to personalize your experience.`

	msgWelcome = `👋 Welcome to EV Assistant!

Type *menu* to get started and explore available features.`

	msgFallback = "Sorry, I didn't understand that. Please type *menu* to see available options."
)

// Engine drives the conversation: one inbound message in, the next session
// state and an ordered list of replies out.
type Engine struct {
	store    storage.Store
	resolver Resolver
}

// NewEngine creates a conversation engine.
func NewEngine(store storage.Store, resolver Resolver) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
	}
}

// Handle advances the conversation for one inbound message. Rules are
// evaluated in priority order and exactly one fires. The session is mutated
// in place; the returned replies are delivered by the caller in order.
func (e *Engine) Handle(s *session.Session, msg Message) []string {
	switch {
	case msg.Text == "charge":
		s.State = session.StateWaitingLocation
		return []string{msgAskLocation}

	case s.State == session.StateWaitingLocation:
		result := e.lookupChargers(msg.SenderID, msg.Text)
		s.State = session.StateNone
		return []string{result, msgRegisterNudge}

	case msg.Text == "register":
		s.State = session.StateWaitingCarModel
		return []string{msgAskCarModel}

	case s.State == session.StateWaitingCarModel:
		s.State = session.StateNone
		if _, err := e.store.UpsertVehicleProfile(msg.SenderID, msg.RawText); err != nil {
			log.Printf("Failed to save vehicle for %s: %v", msg.SenderID, err)
			return []string{msgOops}
		}
		return []string{msgCarSaved}

	case msg.Text == "cost":
		s.Data = session.CostDraft{}
		s.State = session.StateAwaitingDistance
		return []string{msgAskDistance}

	case s.State == session.StateAwaitingDistance:
		distance, ok := parseNumber(msg.Text)
		if !ok {
			return []string{msgBadDistance}
		}
		s.Data.DistanceMiles = distance
		s.State = session.StateAwaitingPrice
		return []string{msgAskPrice}

	case s.State == session.StateAwaitingPrice:
		price, ok := parseNumber(msg.Text)
		if !ok {
			return []string{msgBadPrice}
		}
		s.Data.PricePerKWh = price
		s.State = session.StateAwaitingConsumption
		return []string{msgAskConsumption}

	case s.State == session.StateAwaitingConsumption:
		var followUp string
		if msg.Text == "not sure" {
			s.Data.Consumption = DefaultConsumption
			followUp = msgConsumptionFollowUp
		} else {
			consumption, ok := parseNumber(msg.Text)
			if !ok {
				return []string{msgBadConsumption}
			}
			s.Data.Consumption = consumption
		}

		estimate := EstimateTrip(s.Data.DistanceMiles, s.Data.PricePerKWh, s.Data.Consumption)
		s.Reset()
		return []string{estimate.Summary() + followUp}

	case msg.Text == "menu":
		return []string{msgMenu}

	case s.State == session.StateNone && !s.Welcomed:
		s.Welcomed = true
		return []string{msgWelcome}

	default:
		return []string{msgFallback}
	}
}

// lookupChargers resolves the location and formats either the charger list
// or the failure message matching the resolver's verdict.
func (e *Engine) lookupChargers(senderID, location string) string {
	carModel := ""
	if profile, err := e.store.GetVehicleProfile(senderID); err != nil {
		log.Printf("Failed to load vehicle profile for %s: %v", senderID, err)
	} else if profile != nil {
		carModel = profile.CarModel
	}

	chargers, err := e.resolver.FindChargers(location, carModel)
	switch {
	case err == nil:
		return FormatChargers(chargers)
	case errors.Is(err, ErrNotConfigured):
		return "API key not configured."
	case errors.Is(err, ErrLocationNotFound):
		return fmt.Sprintf("Could not find location %q. Please try a valid postcode or city.", location)
	case errors.Is(err, ErrResolveFailed):
		return "Error resolving location."
	case errors.Is(err, ErrServiceUnavailable):
		return "The charger service is unavailable right now."
	case errors.Is(err, ErrNoChargers):
		return "No chargers found near that location."
	default:
		return "Error fetching charger data."
	}
}

// parseNumber parses a finite float from user input. NaN and infinities are
// rejected; negative and zero values are allowed.
func parseNumber(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
