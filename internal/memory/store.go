package memory

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-advisor/internal/regime"
)

// Outcome is the realized result of a past recommendation.
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeNeutral Outcome = "neutral"
	OutcomePending Outcome = "pending"
)

// Scenario is one recorded recommendation with its market fingerprint and,
// once known, its realized outcome.
type Scenario struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Signature  Signature `json:"signature"`
	Action     string    `json:"action"`
	Confidence int       `json:"confidence"`
	Price      float64   `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    Outcome   `json:"outcome"`
}

// Match is a scenario scored against a query signature.
type Match struct {
	Scenario Scenario
	Score    float64
	// Weight is the score after regime down-weighting; this is what the
	// rendered context reflects.
	Weight float64
}

// recencyHalfLife controls how fast old scenarios fade in ranking.
const recencyHalfLife = 90 * 24 * time.Hour

// regimeMismatchFactor down-weights precedents recorded under a different
// regime. They stay in the result, just with less authority.
const regimeMismatchFactor = 0.5

// Store indexes past scenarios in memory. An optional repository mirrors
// writes to durable storage; the in-memory view stays authoritative for
// lookups.
type Store struct {
	mu        sync.Mutex
	scenarios []Scenario
	capacity  int
	repo      Repository
	logger    zerolog.Logger

	now func() time.Time
}

// Repository persists scenarios. Implementations may be nil-safe no-ops.
type Repository interface {
	SaveScenario(s Scenario) error
	UpdateOutcome(id string, outcome Outcome) error
}

// NewStore creates a store holding at most capacity scenarios; the oldest are
// dropped past that. repo may be nil.
func NewStore(capacity int, repo Repository, logger zerolog.Logger) *Store {
	if capacity <= 0 {
		capacity = 500
	}
	return &Store{
		capacity: capacity,
		repo:     repo,
		logger:   logger.With().Str("component", "MemoryStore").Logger(),
		now:      time.Now,
	}
}

// Record stores a new scenario and returns its ID. The outcome starts
// pending until RecordOutcome resolves it.
func (s *Store) Record(scenario Scenario) string {
	if scenario.ID == "" {
		scenario.ID = uuid.NewString()
	}
	if scenario.Outcome == "" {
		scenario.Outcome = OutcomePending
	}
	if scenario.Timestamp.IsZero() {
		scenario.Timestamp = s.now()
	}

	s.mu.Lock()
	s.scenarios = append(s.scenarios, scenario)
	if len(s.scenarios) > s.capacity {
		s.scenarios = s.scenarios[len(s.scenarios)-s.capacity:]
	}
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SaveScenario(scenario); err != nil {
			s.logger.Warn().Err(err).Str("id", scenario.ID).Msg("failed to persist scenario")
		}
	}

	return scenario.ID
}

// RecordOutcome resolves a pending scenario.
func (s *Store) RecordOutcome(id string, outcome Outcome) {
	s.mu.Lock()
	for i := range s.scenarios {
		if s.scenarios[i].ID == id {
			s.scenarios[i].Outcome = outcome
			break
		}
	}
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.UpdateOutcome(id, outcome); err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("failed to persist outcome")
		}
	}
}

// Len returns the number of stored scenarios.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scenarios)
}

// FindSimilar returns up to k scenarios ranked by signature similarity and
// recency. Scenarios from a different regime than the query are down-weighted
// but not excluded.
func (s *Store) FindSimilar(sig Signature, k int) []Match {
	s.mu.Lock()
	candidates := make([]Scenario, len(s.scenarios))
	copy(candidates, s.scenarios)
	s.mu.Unlock()

	now := s.now()
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		sim := similarity(sig, c.Signature)
		if sim <= 0 {
			continue
		}

		age := now.Sub(c.Timestamp)
		recency := math.Exp2(-float64(age) / float64(recencyHalfLife))
		score := sim*0.8 + recency*0.2

		weight := score
		if c.Signature.Regime != sig.Regime {
			weight *= regimeMismatchFactor
		}

		matches = append(matches, Match{Scenario: c, Score: score, Weight: weight})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Weight > matches[j].Weight })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// RenderContext formats matches into the textual memory block embedded in
// prompts. Down-weighted precedents are labeled so the reasoning backend
// treats cross-regime evidence as weaker.
func RenderContext(matches []Match, current regime.Regime) string {
	if len(matches) == 0 {
		return "No comparable historical scenarios on record."
	}

	var b strings.Builder
	b.WriteString("Historical scenarios with similar setups:\n")
	for _, m := range matches {
		sc := m.Scenario
		line := fmt.Sprintf("- %s %s at %.2f on %s: outcome %s",
			sc.Action, sc.Symbol, sc.Price, sc.Timestamp.Format("2006-01-02"), sc.Outcome)
		if sc.Signature.Regime != current {
			line += fmt.Sprintf(" (different regime: %s, weigh lightly)", sc.Signature.Regime)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
