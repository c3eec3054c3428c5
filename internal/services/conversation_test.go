package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/darlynton/ev-assistant-bot/internal/session"
	"github.com/darlynton/ev-assistant-bot/internal/storage"
)

type fakeResolver struct {
	lastLocation string
	lastCarModel string
	chargers     []Charger
	err          error
}

func (f *fakeResolver) FindChargers(location, carModel string) ([]Charger, error) {
	f.lastLocation = location
	f.lastCarModel = carModel
	return f.chargers, f.err
}

func newTestEngine() (*Engine, *fakeResolver, storage.Store) {
	resolver := &fakeResolver{chargers: []Charger{{
		Address:        "Deansgate Car Park",
		Status:         "Operational",
		Points:         4,
		ConnectorTypes: []string{"CCS (Type 2)", "CHAdeMO"},
		Latitude:       53.48,
		Longitude:      -2.24,
	}}}
	store := storage.NewMemoryStore()
	return NewEngine(store, resolver), resolver, store
}

func newSession(senderID string) *session.Session {
	m := session.NewManager(10 * time.Minute)
	var s *session.Session
	m.With(senderID, time.Now(), func(current *session.Session) { s = current })
	return s
}

func msg(senderID, text string) Message {
	return Message{SenderID: senderID, Text: strings.ToLower(text), RawText: text}
}

func TestChargeCommandAsksForLocation(t *testing.T) {
	engine, _, _ := newTestEngine()
	s := newSession("whatsapp:+447700900000")
	s.Data = session.CostDraft{DistanceMiles: 42}

	replies := engine.Handle(s, msg(s.SenderID, "charge"))

	if s.State != session.StateWaitingLocation {
		t.Errorf("state = %q, want waiting_for_location", s.State)
	}
	if s.Data.DistanceMiles != 42 {
		t.Error("charge must not mutate collected data")
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "share your location") {
		t.Errorf("unexpected replies: %v", replies)
	}
}

func TestLocationAnswerPassesCoordinatesVerbatim(t *testing.T) {
	engine, resolver, _ := newTestEngine()
	s := newSession("whatsapp:+447700900000")
	s.State = session.StateWaitingLocation

	replies := engine.Handle(s, msg(s.SenderID, "53.48,-2.24"))

	if resolver.lastLocation != "53.48,-2.24" {
		t.Errorf("resolver got %q, want the coordinates verbatim", resolver.lastLocation)
	}
	if s.State != session.StateNone {
		t.Errorf("state = %q, want none after lookup", s.State)
	}
	if len(replies) != 2 {
		t.Fatalf("got %d replies, want charger list plus register nudge", len(replies))
	}
	if !strings.Contains(replies[0], "Deansgate Car Park") {
		t.Errorf("first reply should list chargers, got %q", replies[0])
	}
	if !strings.Contains(replies[1], "register") {
		t.Errorf("second reply should nudge registration, got %q", replies[1])
	}
}

func TestLocationAnswerUsesRegisteredCarModel(t *testing.T) {
	engine, resolver, store := newTestEngine()
	if _, err := store.UpsertVehicleProfile("whatsapp:+447700900000", "Nissan Ariya"); err != nil {
		t.Fatal(err)
	}
	s := newSession("whatsapp:+447700900000")
	s.State = session.StateWaitingLocation

	engine.Handle(s, msg(s.SenderID, "manchester"))

	if resolver.lastCarModel != "Nissan Ariya" {
		t.Errorf("resolver got car model %q, want the registered one", resolver.lastCarModel)
	}
}

func TestResolverFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not configured", ErrNotConfigured, "API key not configured."},
		{"location not found", ErrLocationNotFound, `Could not find location "nowhere". Please try a valid postcode or city.`},
		{"resolve failed", ErrResolveFailed, "Error resolving location."},
		{"service unavailable", ErrServiceUnavailable, "The charger service is unavailable right now."},
		{"no chargers", ErrNoChargers, "No chargers found near that location."},
		{"lookup failed", ErrLookupFailed, "Error fetching charger data."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, resolver, _ := newTestEngine()
			resolver.err = tt.err
			s := newSession("whatsapp:+447700900000")
			s.State = session.StateWaitingLocation

			replies := engine.Handle(s, msg(s.SenderID, "nowhere"))

			if replies[0] != tt.want {
				t.Errorf("reply = %q, want %q", replies[0], tt.want)
			}
			if s.State != session.StateNone {
				t.Errorf("state = %q, want none even on failure", s.State)
			}
		})
	}
}

func TestRegisterFlowPreservesOriginalCase(t *testing.T) {
	engine, _, store := newTestEngine()
	s := newSession("whatsapp:+447700900000")

	engine.Handle(s, msg(s.SenderID, "register"))
	if s.State != session.StateWaitingCarModel {
		t.Fatalf("state = %q, want waiting_for_car_model", s.State)
	}

	replies := engine.Handle(s, msg(s.SenderID, "Nissan Ariya"))

	if s.State != session.StateNone {
		t.Errorf("state = %q, want none after registration", s.State)
	}
	if !strings.Contains(replies[0], "saved your vehicle") {
		t.Errorf("unexpected reply %q", replies[0])
	}

	profile, err := store.GetVehicleProfile("whatsapp:+447700900000")
	if err != nil {
		t.Fatal(err)
	}
	if profile == nil || profile.CarModel != "Nissan Ariya" {
		t.Errorf("saved car model = %+v, want original casing preserved", profile)
	}
}

func TestCostFlowWithDefaultConsumption(t *testing.T) {
	engine, _, _ := newTestEngine()
	s := newSession("whatsapp:+447700900000")

	engine.Handle(s, msg(s.SenderID, "cost"))
	if s.State != session.StateAwaitingDistance {
		t.Fatalf("state = %q, want awaiting_distance", s.State)
	}

	engine.Handle(s, msg(s.SenderID, "120"))
	if s.State != session.StateAwaitingPrice || s.Data.DistanceMiles != 120 {
		t.Fatalf("after distance: state=%q data=%+v", s.State, s.Data)
	}

	engine.Handle(s, msg(s.SenderID, "0.34"))
	if s.State != session.StateAwaitingConsumption || s.Data.PricePerKWh != 0.34 {
		t.Fatalf("after price: state=%q data=%+v", s.State, s.Data)
	}

	replies := engine.Handle(s, msg(s.SenderID, "Not sure"))

	for _, want := range []string{
		"Distance: 193.12 km",
		"Energy needed: 34.76 kWh",
		"Estimated cost: £11.82",
		"more accurate consumption later",
	} {
		if !strings.Contains(replies[0], want) {
			t.Errorf("breakdown missing %q:\n%s", want, replies[0])
		}
	}

	if s.State != session.StateNone {
		t.Errorf("state = %q, want none after completion", s.State)
	}
	if s.Data != (session.CostDraft{}) {
		t.Errorf("data = %+v, want cleared after completion", s.Data)
	}
}

func TestCostFlowWithExplicitConsumption(t *testing.T) {
	engine, _, _ := newTestEngine()
	s := newSession("whatsapp:+447700900000")

	engine.Handle(s, msg(s.SenderID, "cost"))
	engine.Handle(s, msg(s.SenderID, "100"))
	engine.Handle(s, msg(s.SenderID, "0.30"))
	replies := engine.Handle(s, msg(s.SenderID, "20"))

	if !strings.Contains(replies[0], "Estimated cost: £") {
		t.Errorf("expected a cost breakdown, got %q", replies[0])
	}
	if strings.Contains(replies[0], "more accurate consumption later") {
		t.Error("explicit consumption should not carry the follow-up suffix")
	}
}

func TestInvalidNumbersReprompt(t *testing.T) {
	tests := []struct {
		name  string
		state session.State
		input string
		want  string
	}{
		{"distance word", session.StateAwaitingDistance, "about ninety", "doesn't look like a number"},
		{"distance nan", session.StateAwaitingDistance, "NaN", "doesn't look like a number"},
		{"price word", session.StateAwaitingPrice, "cheap", "doesn't look right"},
		{"consumption word", session.StateAwaitingConsumption, "dunno", "doesn't seem right"},
		{"consumption inf", session.StateAwaitingConsumption, "+Inf", "doesn't seem right"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _ := newTestEngine()
			s := newSession("whatsapp:+447700900000")
			s.State = tt.state

			replies := engine.Handle(s, msg(s.SenderID, tt.input))

			if s.State != tt.state {
				t.Errorf("state = %q, want unchanged %q", s.State, tt.state)
			}
			if !strings.Contains(replies[0], tt.want) {
				t.Errorf("reply = %q, want re-prompt containing %q", replies[0], tt.want)
			}
		})
	}
}

func TestMenuIsIdempotent(t *testing.T) {
	engine, _, _ := newTestEngine()
	s := newSession("whatsapp:+447700900000")

	for i := 0; i < 3; i++ {
		replies := engine.Handle(s, msg(s.SenderID, "menu"))
		if !strings.Contains(replies[0], "EV Assistant Menu") {
			t.Fatalf("reply = %q, want the menu", replies[0])
		}
		if s.State != session.StateNone {
			t.Fatalf("state = %q, menu must not change state", s.State)
		}
	}
}

func TestMenuMidFlowIsTreatedAsStepInput(t *testing.T) {
	// Numeric collection steps outrank the menu keyword, so "menu" mid-flow
	// just re-prompts and the flow stays where it was.
	engine, _, _ := newTestEngine()
	s := newSession("whatsapp:+447700900000")
	s.State = session.StateAwaitingPrice
	s.Data = session.CostDraft{DistanceMiles: 120}

	replies := engine.Handle(s, msg(s.SenderID, "menu"))

	if !strings.Contains(replies[0], "doesn't look right") {
		t.Errorf("reply = %q, want the price re-prompt", replies[0])
	}
	if s.State != session.StateAwaitingPrice {
		t.Errorf("state = %q, want unchanged awaiting_price", s.State)
	}
	if s.Data.DistanceMiles != 120 {
		t.Error("re-prompt must not mutate collected data")
	}
}

func TestConcurrentMessagesSameSenderStayConsistent(t *testing.T) {
	engine, _, _ := newTestEngine()
	m := session.NewManager(10 * time.Minute)
	now := time.Now()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				m.With("whatsapp:+447700900000", now, func(s *session.Session) {
					engine.Handle(s, msg(s.SenderID, "cost"))
					engine.Handle(s, msg(s.SenderID, "120"))
				})
			}
		}()
	}
	wg.Wait()

	m.With("whatsapp:+447700900000", now, func(s *session.Session) {
		if s.State != session.StateAwaitingPrice {
			t.Errorf("state = %q, want awaiting_price after interleaved flows", s.State)
		}
		if s.Data.DistanceMiles != 120 {
			t.Errorf("DistanceMiles = %v, want 120", s.Data.DistanceMiles)
		}
	})
}

func TestWelcomeSentOnceThenFallback(t *testing.T) {
	engine, _, _ := newTestEngine()
	s := newSession("whatsapp:+447700900000")

	first := engine.Handle(s, msg(s.SenderID, "hello"))
	if !strings.Contains(first[0], "Welcome to EV Assistant") {
		t.Errorf("first contact reply = %q, want the welcome", first[0])
	}
	if !s.Welcomed {
		t.Error("welcomed flag should be set after greeting")
	}

	second := engine.Handle(s, msg(s.SenderID, "hello again"))
	if !strings.Contains(second[0], "didn't understand") {
		t.Errorf("second reply = %q, want the fallback", second[0])
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"120", 120, true},
		{" 0.34 ", 0.34, true},
		{"-5", -5, true},
		{"0", 0, true},
		{"", 0, false},
		{"ten", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseNumber(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
