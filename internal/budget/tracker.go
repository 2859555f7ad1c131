// Package budget tracks per-provider call counts against rolling hour or day
// windows. It is the single source of truth for "can we call this provider
// now" and persists its counters so quotas survive restarts.
package budget

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Window is the quota measurement period for a provider.
type Window string

const (
	WindowHour Window = "hour"
	WindowDay  Window = "day"
)

func (w Window) duration() time.Duration {
	if w == WindowDay {
		return 24 * time.Hour
	}
	return time.Hour
}

// ProviderLimit registers a provider with the tracker. Limit <= 0 is the
// unlimited sentinel: calls are not counted and CanUse always returns true.
type ProviderLimit struct {
	Name   string `json:"name"`
	Limit  int    `json:"limit"`
	Window Window `json:"window"`
}

// Status is a point-in-time view of one provider's quota.
type Status struct {
	Provider  string `json:"provider"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Window    Window `json:"window"`
	Unlimited bool   `json:"unlimited"`
}

type providerState struct {
	limit    ProviderLimit
	used     int
	windowID int64
}

// Tracker counts provider calls against their windows. All window-reset and
// counter updates happen under one mutex so concurrent callers never observe
// a stale counter across a rollover.
type Tracker struct {
	mu        sync.Mutex
	providers map[string]*providerState
	store     *Store
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTracker creates a tracker for the given providers. store may be nil for
// purely in-memory tracking (backtests, tests).
func NewTracker(limits []ProviderLimit, store *Store, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		providers: make(map[string]*providerState, len(limits)),
		store:     store,
		logger:    logger.With().Str("component", "BudgetTracker").Logger(),
		now:       time.Now,
	}

	for _, l := range limits {
		t.providers[l.Name] = &providerState{limit: l}
	}

	if store != nil {
		persisted, err := store.Load()
		if err != nil {
			t.logger.Warn().Err(err).Msg("failed to load persisted budget state, starting fresh")
		} else {
			for name, ps := range persisted {
				state, ok := t.providers[name]
				if !ok {
					continue
				}
				state.used = ps.Used
				state.windowID = ps.WindowID
			}
		}
	}

	return t
}

// windowID is the bucket index of t for the given window: floor(now/size).
func windowID(t time.Time, w Window) int64 {
	return t.Unix() / int64(w.duration().Seconds())
}

// rollIfNeeded resets the counter exactly once per window transition.
// Must be called with the mutex held.
func (t *Tracker) rollIfNeeded(state *providerState) {
	current := windowID(t.now(), state.limit.Window)
	if current != state.windowID {
		if state.used > 0 {
			t.logger.Debug().
				Str("provider", state.limit.Name).
				Int("used", state.used).
				Msg("budget window rolled over")
		}
		state.windowID = current
		state.used = 0
	}
}

// CanUse reports whether the provider has quota available in the current
// window. It never errors: exhaustion is an expected condition.
func (t *Tracker) CanUse(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.providers[provider]
	if !ok {
		return false
	}
	if state.limit.Limit <= 0 {
		return true
	}

	t.rollIfNeeded(state)
	return state.used < state.limit.Limit
}

// Record counts one call against the provider's current window and schedules
// a debounced persistence write. Unlimited providers are not counted.
func (t *Tracker) Record(provider string) {
	t.mu.Lock()
	state, ok := t.providers[provider]
	if !ok || state.limit.Limit <= 0 {
		t.mu.Unlock()
		return
	}

	t.rollIfNeeded(state)
	state.used++

	if state.used == state.limit.Limit {
		t.logger.Info().
			Str("provider", provider).
			Int("limit", state.limit.Limit).
			Msg("provider budget exhausted for current window")
	}

	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	if t.store != nil {
		t.store.ScheduleWrite(snapshot)
	}
}

// Status returns the quota view for one provider. Unknown providers report a
// zero limit.
func (t *Tracker) Status(provider string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.providers[provider]
	if !ok {
		return Status{Provider: provider}
	}
	if state.limit.Limit <= 0 {
		return Status{Provider: provider, Window: state.limit.Window, Unlimited: true}
	}

	t.rollIfNeeded(state)
	remaining := state.limit.Limit - state.used
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Provider:  provider,
		Used:      state.used,
		Limit:     state.limit.Limit,
		Remaining: remaining,
		Window:    state.limit.Window,
	}
}

// AllStatuses returns the quota view for every registered provider.
func (t *Tracker) AllStatuses() []Status {
	t.mu.Lock()
	names := make([]string, 0, len(t.providers))
	for name := range t.providers {
		names = append(names, name)
	}
	t.mu.Unlock()

	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		statuses = append(statuses, t.Status(name))
	}
	return statuses
}

// snapshotLocked captures persistable state. Must be called with mutex held.
func (t *Tracker) snapshotLocked() map[string]PersistedState {
	snapshot := make(map[string]PersistedState, len(t.providers))
	for name, state := range t.providers {
		if state.limit.Limit <= 0 {
			continue
		}
		snapshot[name] = PersistedState{
			Used:     state.used,
			WindowID: state.windowID,
			Limit:    state.limit.Limit,
			Window:   state.limit.Window,
		}
	}
	return snapshot
}

// Flush forces any pending persistence write to disk synchronously. Call on
// shutdown so the last few recorded calls are not lost to the debounce.
func (t *Tracker) Flush() {
	if t.store == nil {
		return
	}
	t.mu.Lock()
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.store.FlushNow(snapshot)
}
