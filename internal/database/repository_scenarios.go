package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stock-advisor/internal/memory"
)

// ScenarioRepository persists scenario records. It satisfies
// memory.Repository.
type ScenarioRepository struct {
	db *DB
}

// NewScenarioRepository creates a repository over an open DB.
func NewScenarioRepository(db *DB) *ScenarioRepository {
	return &ScenarioRepository{db: db}
}

const repoTimeout = 5 * time.Second

// SaveScenario inserts a scenario row.
func (r *ScenarioRepository) SaveScenario(s memory.Scenario) error {
	signatureJSON, err := json.Marshal(s.Signature)
	if err != nil {
		signatureJSON = []byte("{}")
	}

	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	query := `
		INSERT INTO scenarios (id, symbol, signature, action, confidence, price, outcome, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.Pool.Exec(ctx, query,
		s.ID, s.Symbol, signatureJSON, s.Action, s.Confidence, s.Price, string(s.Outcome), s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert scenario %s: %w", s.ID, err)
	}
	return nil
}

// UpdateOutcome resolves a scenario's outcome.
func (r *ScenarioRepository) UpdateOutcome(id string, outcome memory.Outcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	query := `UPDATE scenarios SET outcome = $1, updated_at = now() WHERE id = $2`

	_, err := r.db.Pool.Exec(ctx, query, string(outcome), id)
	if err != nil {
		return fmt.Errorf("update outcome for %s: %w", id, err)
	}
	return nil
}

// LoadScenarios returns the most recent scenarios, newest first, for warming
// the in-memory store after a restart.
func (r *ScenarioRepository) LoadScenarios(ctx context.Context, limit int) ([]memory.Scenario, error) {
	query := `
		SELECT id, symbol, signature, action, confidence, price, outcome, recorded_at
		FROM scenarios
		ORDER BY recorded_at DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []memory.Scenario
	for rows.Next() {
		var s memory.Scenario
		var signatureJSON []byte
		var outcome string

		if err := rows.Scan(&s.ID, &s.Symbol, &signatureJSON, &s.Action, &s.Confidence, &s.Price, &outcome, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}

		s.Outcome = memory.Outcome(outcome)
		if len(signatureJSON) > 0 {
			json.Unmarshal(signatureJSON, &s.Signature)
		}
		scenarios = append(scenarios, s)
	}

	return scenarios, rows.Err()
}
