package budget

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PersistedState is the on-disk record for one provider. Missing fields
// unmarshal to zero values, which read as a fresh window.
type PersistedState struct {
	Used     int    `json:"used"`
	WindowID int64  `json:"window_id"`
	Limit    int    `json:"limit,omitempty"`
	Window   Window `json:"window,omitempty"`
}

type persistedDocument struct {
	Version   int                       `json:"version"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Providers map[string]PersistedState `json:"providers"`
}

// Store persists budget counters to a small JSON document. Writes are
// debounced: rapid Record bursts coalesce into one write after a quiet
// period, with FlushNow available for shutdown.
type Store struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]PersistedState
}

// NewStore creates a file-backed store. debounce <= 0 defaults to 100ms.
func NewStore(path string, debounce time.Duration, logger zerolog.Logger) *Store {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Store{
		path:     path,
		debounce: debounce,
		logger:   logger.With().Str("component", "BudgetStore").Logger(),
	}
}

// Load reads the persisted document. A missing file is not an error: every
// provider simply starts fresh.
func (s *Store) Load() (map[string]PersistedState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]PersistedState{}, nil
		}
		return nil, fmt.Errorf("read budget file: %w", err)
	}

	var doc persistedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse budget file: %w", err)
	}
	if doc.Providers == nil {
		doc.Providers = map[string]PersistedState{}
	}
	return doc.Providers, nil
}

// ScheduleWrite records the latest snapshot and (re)arms the debounce timer.
// Each call cancels the previous timer, so a burst of records produces a
// single write once the burst goes quiet.
func (s *Store) ScheduleWrite(snapshot map[string]PersistedState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = snapshot
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.flushPending)
}

func (s *Store) flushPending() {
	s.mu.Lock()
	snapshot := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	if snapshot == nil {
		return
	}
	if err := s.write(snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("debounced budget write failed")
	}
}

// FlushNow writes the snapshot synchronously, cancelling any pending timer.
func (s *Store) FlushNow(snapshot map[string]PersistedState) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.mu.Unlock()

	if err := s.write(snapshot); err != nil {
		s.logger.Error().Err(err).Msg("final budget flush failed")
	}
}

func (s *Store) write(snapshot map[string]PersistedState) error {
	doc := persistedDocument{
		Version:   1,
		UpdatedAt: time.Now().UTC(),
		Providers: snapshot,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal budget state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create budget dir: %w", err)
		}
	}

	// Write-then-rename keeps the document intact if the process dies
	// mid-write.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write budget file: %w", err)
	}
	return os.Rename(tmp, s.path)
}
