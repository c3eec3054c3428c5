package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State identifies the current step of a user's conversation.
type State string

const (
	// StateNone means no flow is in progress.
	StateNone State = ""
	// StateWaitingLocation means the user was asked for a location to search chargers near.
	StateWaitingLocation State = "waiting_for_location"
	// StateWaitingCarModel means the user was asked for their car make and model.
	StateWaitingCarModel State = "waiting_for_car_model"
	// StateAwaitingDistance means the cost flow is waiting for the trip distance.
	StateAwaitingDistance State = "awaiting_distance"
	// StateAwaitingPrice means the cost flow is waiting for the price per kWh.
	StateAwaitingPrice State = "awaiting_price"
	// StateAwaitingConsumption means the cost flow is waiting for the consumption per 100 km.
	StateAwaitingConsumption State = "awaiting_consumption"
)

// CostDraft holds the values collected so far by the trip cost flow.
// Its fields are only meaningful while State is one of the awaiting_* states.
type CostDraft struct {
	DistanceMiles float64 `json:"distance_miles"`
	PricePerKWh   float64 `json:"price_per_kwh"`
	Consumption   float64 `json:"consumption"`
}

// Session is the per-sender conversation state. Mutations must happen inside
// Manager.With, which holds the session's lock for the whole transition.
type Session struct {
	mu sync.Mutex

	ID           string    `json:"id"`
	SenderID     string    `json:"sender_id"`
	State        State     `json:"state"`
	Data         CostDraft `json:"data"`
	Welcomed     bool      `json:"welcomed"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Reset returns the session to the idle state and discards collected flow
// data. The Welcomed flag survives so returning users are not greeted twice.
func (s *Session) Reset() {
	s.State = StateNone
	s.Data = CostDraft{}
}

// Manager owns all live sessions, keyed by sender identity.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	timeout  time.Duration

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewManager creates a session manager. timeout is the inactivity window
// after which a session is reset in place on its next message.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
	}
}

// With runs one conversation transition for senderID under the session's
// lock. The session is created if absent; an existing session idle longer
// than the timeout is reset in place first, checked against its previous
// activity time, and only then is LastActiveAt moved to now. Concurrent
// messages from the same sender serialize here; other senders are not
// blocked while fn runs.
func (m *Manager) With(senderID string, now time.Time, fn func(*Session)) {
	s := m.getOrCreate(senderID, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.expired(s, now) {
		s.Reset()
		log.Printf("Session %s for %s expired and reset", s.ID, senderID)
	}
	s.LastActiveAt = now

	fn(s)
}

func (m *Manager) getOrCreate(senderID string, now time.Time) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[senderID]
	if !ok {
		s = &Session{
			ID:           uuid.NewString(),
			SenderID:     senderID,
			State:        StateNone,
			CreatedAt:    now,
			LastActiveAt: now,
		}
		m.sessions[senderID] = s
	}
	return s
}

// Peek returns the session for senderID without creating or touching it.
func (m *Manager) Peek(senderID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[senderID]
	return s, ok
}

// Count returns the number of sessions currently held.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	if s.LastActiveAt.IsZero() {
		return false
	}
	return now.Sub(s.LastActiveAt) > m.timeout
}

// StartSweeper launches a background loop that drops sessions idle for longer
// than evictAfter. Expiry within the normal timeout window stays lazy; the
// sweeper only bounds long-term memory growth.
func (m *Manager) StartSweeper(interval, evictAfter time.Duration) {
	m.sweepOnce.Do(func() {
		m.sweepStop = make(chan struct{})
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					m.sweep(time.Now(), evictAfter)
				case <-m.sweepStop:
					return
				}
			}
		}()
	})
}

// StopSweeper stops the background sweep loop.
func (m *Manager) StopSweeper() {
	if m.sweepStop != nil {
		close(m.sweepStop)
	}
}

func (m *Manager) sweep(now time.Time, evictAfter time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for senderID, s := range m.sessions {
		s.mu.Lock()
		idle := now.Sub(s.LastActiveAt) > evictAfter
		s.mu.Unlock()

		if idle {
			delete(m.sessions, senderID)
			removed++
			log.Printf("🧹 Swept idle session %s for %s", s.ID, senderID)
		}
	}
	return removed
}
