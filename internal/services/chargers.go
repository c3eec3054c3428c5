package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/darlynton/ev-assistant-bot/internal/config"
)

// Typed resolver failures. Each maps to its own user-facing message.
var (
	ErrNotConfigured      = errors.New("charger lookup api key not configured")
	ErrLocationNotFound   = errors.New("location not found")
	ErrResolveFailed      = errors.New("error resolving location")
	ErrServiceUnavailable = errors.New("charger service unavailable")
	ErrNoChargers         = errors.New("no chargers found")
	ErrLookupFailed       = errors.New("error fetching charger data")
)

// coordPattern matches an already-resolved "lat,lon" pair.
var coordPattern = regexp.MustCompile(`^([-+]?\d{1,2}(?:\.\d+)?),\s*([-+]?\d{1,3}(?:\.\d+)?)$`)

// Charger is one nearby charging location.
type Charger struct {
	Address        string
	Status         string
	Points         int
	ConnectorTypes []string
	Latitude       float64
	Longitude      float64
}

// Resolver finds chargers near a free-form location or a "lat,lon" pair.
// carModel is the user's registered vehicle, empty if unknown.
type Resolver interface {
	FindChargers(location, carModel string) ([]Charger, error)
}

// ChargerService resolves locations via Nominatim and searches chargers via
// the Open Charge Map API.
type ChargerService struct {
	apiKey      string
	countryCode string
	maxResults  int
	timeout     time.Duration
}

// NewChargerService creates the Open Charge Map backed resolver.
func NewChargerService(cfg config.ChargersConfig, timeout time.Duration) *ChargerService {
	return &ChargerService{
		apiKey:      cfg.OpenChargeMapKey,
		countryCode: cfg.CountryCode,
		maxResults:  cfg.MaxResults,
		timeout:     timeout,
	}
}

// FindChargers implements Resolver. A location matching the coordinate
// pattern is used verbatim; anything else is geocoded first.
func (s *ChargerService) FindChargers(location, carModel string) ([]Charger, error) {
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}

	var lat, lon string
	if m := coordPattern.FindStringSubmatch(location); m != nil {
		lat, lon = m[1], m[2]
	} else {
		var err error
		lat, lon, err = s.geocode(location)
		if err != nil {
			return nil, err
		}
	}

	return s.fetchChargers(lat, lon)
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (s *ChargerService) geocode(place string) (lat, lon string, err error) {
	u := fmt.Sprintf("https://nominatim.openstreetmap.org/search?format=json&q=%s&limit=1",
		url.QueryEscape(place))

	agent := fiber.Get(u)
	agent.Timeout(s.timeout)
	agent.UserAgent("ev-assistant-bot")

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		log.Printf("Geocoding error: %v", errs[0])
		return "", "", ErrResolveFailed
	}
	if code != fiber.StatusOK {
		log.Printf("Geocoding bad status: %d", code)
		return "", "", ErrResolveFailed
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		log.Printf("Geocoding decode error: %v", err)
		return "", "", ErrResolveFailed
	}
	if len(results) == 0 {
		return "", "", ErrLocationNotFound
	}

	return results[0].Lat, results[0].Lon, nil
}

type ocmPOI struct {
	NumberOfPoints int `json:"NumberOfPoints"`
	StatusType     *struct {
		Title string `json:"Title"`
	} `json:"StatusType"`
	AddressInfo *struct {
		Title        string  `json:"Title"`
		AddressLine1 string  `json:"AddressLine1"`
		Latitude     float64 `json:"Latitude"`
		Longitude    float64 `json:"Longitude"`
	} `json:"AddressInfo"`
	Connections []struct {
		ConnectionType *struct {
			Title string `json:"Title"`
		} `json:"ConnectionType"`
	} `json:"Connections"`
}

func (s *ChargerService) fetchChargers(lat, lon string) ([]Charger, error) {
	u := fmt.Sprintf(
		"https://api.openchargemap.io/v3/poi/?output=json&countrycode=%s&latitude=%s&longitude=%s&maxresults=%d&key=%s",
		s.countryCode, url.QueryEscape(lat), url.QueryEscape(lon), s.maxResults, url.QueryEscape(s.apiKey))

	agent := fiber.Get(u)
	agent.Timeout(s.timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		log.Printf("Charger API error: %v", errs[0])
		return nil, ErrLookupFailed
	}
	if code != fiber.StatusOK {
		log.Printf("Bad response from charger API: %d %s", code, string(body))
		return nil, ErrServiceUnavailable
	}

	var pois []ocmPOI
	if err := json.Unmarshal(body, &pois); err != nil {
		log.Printf("Charger API decode error: %v", err)
		return nil, ErrLookupFailed
	}
	if len(pois) == 0 {
		return nil, ErrNoChargers
	}

	var chargers []Charger
	for _, poi := range pois {
		// Skip chargers with no connections at all
		if len(poi.Connections) == 0 {
			continue
		}

		status := "Unknown"
		if poi.StatusType != nil {
			status = poi.StatusType.Title
		}

		var address string
		var clat, clon float64
		if poi.AddressInfo != nil {
			address = poi.AddressInfo.Title
			if address == "" {
				address = poi.AddressInfo.AddressLine1
			}
			clat = poi.AddressInfo.Latitude
			clon = poi.AddressInfo.Longitude
		}

		points := poi.NumberOfPoints
		if points == 0 {
			points = len(poi.Connections)
		}

		chargers = append(chargers, Charger{
			Address:        address,
			Status:         status,
			Points:         points,
			ConnectorTypes: connectorTitles(poi),
			Latitude:       clat,
			Longitude:      clon,
		})
	}

	return chargers, nil
}

// connectorTitles collects connection type titles, deduplicated in order.
func connectorTitles(poi ocmPOI) []string {
	seen := make(map[string]bool)
	var titles []string
	for _, conn := range poi.Connections {
		title := "Unknown"
		if conn.ConnectionType != nil && conn.ConnectionType.Title != "" {
			title = conn.ConnectionType.Title
		}
		if !seen[title] {
			seen[title] = true
			titles = append(titles, title)
		}
	}
	return titles
}

// MapLink returns a Google Maps search link for the charger's coordinates.
func (c Charger) MapLink() string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%v,%v", c.Latitude, c.Longitude)
}

// FormatChargers renders the charger list as a chat message.
func FormatChargers(chargers []Charger) string {
	var b strings.Builder
	b.WriteString("🔌 Chargers near your location:\n\n")

	for _, c := range chargers {
		fmt.Fprintf(&b, "📍 %s\n⏰ Status: %s\n⚡ Chargers: %d (%s)\n➡️ Directions: %s\n\n",
			c.Address, c.Status, c.Points, strings.Join(c.ConnectorTypes, ", "), c.MapLink())
	}

	return strings.TrimSpace(b.String())
}
