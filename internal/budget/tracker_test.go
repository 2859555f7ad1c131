package budget

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestTracker(limits []ProviderLimit) *Tracker {
	return NewTracker(limits, nil, zerolog.Nop())
}

// TestBudgetCounting tests basic quota consumption within one window
func TestBudgetCounting(t *testing.T) {
	tr := newTestTracker([]ProviderLimit{
		{Name: "finnhub", Limit: 3, Window: WindowHour},
	})

	for i := 0; i < 3; i++ {
		if !tr.CanUse("finnhub") {
			t.Fatalf("call %d should be allowed", i+1)
		}
		tr.Record("finnhub")
	}

	if tr.CanUse("finnhub") {
		t.Error("4th call should be denied")
	}

	status := tr.Status("finnhub")
	if status.Used != 3 || status.Remaining != 0 {
		t.Errorf("expected used=3 remaining=0, got used=%d remaining=%d", status.Used, status.Remaining)
	}
}

// TestWindowRollover verifies used resets to zero exactly once per window
// transition and never decreases within a window
func TestWindowRollover(t *testing.T) {
	tr := newTestTracker([]ProviderLimit{
		{Name: "av", Limit: 2, Window: WindowDay},
	})

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }

	tr.Record("av")
	tr.Record("av")
	if tr.CanUse("av") {
		t.Fatal("budget should be exhausted")
	}

	// Within the same day the counter never decreases.
	tr.now = func() time.Time { return base.Add(6 * time.Hour) }
	if got := tr.Status("av").Used; got != 2 {
		t.Errorf("used should stay 2 within the window, got %d", got)
	}

	// Crossing the day boundary resets to zero before any observation.
	tr.now = func() time.Time { return base.Add(13 * time.Hour) }
	status := tr.Status("av")
	if status.Used != 0 {
		t.Errorf("used should reset to 0 after rollover, got %d", status.Used)
	}
	if !tr.CanUse("av") {
		t.Error("provider should be usable in the new window")
	}

	// A second observation in the same new window must not reset again.
	tr.Record("av")
	if got := tr.Status("av").Used; got != 1 {
		t.Errorf("used should be 1 after one call in new window, got %d", got)
	}
}

// TestUnlimitedSentinel tests that limit <= 0 bypasses counting entirely
func TestUnlimitedSentinel(t *testing.T) {
	tr := newTestTracker([]ProviderLimit{
		{Name: "yahoo", Limit: 0, Window: WindowHour},
	})

	for i := 0; i < 1000; i++ {
		if !tr.CanUse("yahoo") {
			t.Fatal("unlimited provider should always be usable")
		}
		tr.Record("yahoo")
	}

	status := tr.Status("yahoo")
	if !status.Unlimited {
		t.Error("status should report unlimited")
	}
	if status.Used != 0 {
		t.Errorf("unlimited provider must not count calls, got used=%d", status.Used)
	}
}

// TestUnknownProvider tests that unregistered names are denied
func TestUnknownProvider(t *testing.T) {
	tr := newTestTracker(nil)
	if tr.CanUse("nope") {
		t.Error("unknown provider should not be usable")
	}
}

// TestPersistenceRoundTrip tests flush-on-shutdown and reload
func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgets.json")
	store := NewStore(path, 10*time.Millisecond, zerolog.Nop())

	limits := []ProviderLimit{{Name: "finnhub", Limit: 10, Window: WindowHour}}
	tr := NewTracker(limits, store, zerolog.Nop())

	tr.Record("finnhub")
	tr.Record("finnhub")
	tr.Record("finnhub")
	tr.Flush()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("budget file should exist after flush: %v", err)
	}

	reloaded := NewTracker(limits, NewStore(path, 10*time.Millisecond, zerolog.Nop()), zerolog.Nop())
	if got := reloaded.Status("finnhub").Used; got != 3 {
		t.Errorf("reloaded tracker should see used=3, got %d", got)
	}
}

// TestDebouncedWrite tests that rapid records coalesce into one write after
// the quiet period
func TestDebouncedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgets.json")
	store := NewStore(path, 20*time.Millisecond, zerolog.Nop())
	tr := NewTracker([]ProviderLimit{{Name: "finnhub", Limit: 100, Window: WindowHour}}, store, zerolog.Nop())

	for i := 0; i < 10; i++ {
		tr.Record("finnhub")
	}

	// Nothing on disk while within the quiet period.
	if _, err := os.Stat(path); err == nil {
		t.Log("write landed early; debounce window is best-effort on loaded machines")
	}

	time.Sleep(80 * time.Millisecond)

	persisted, err := store.Load()
	if err != nil {
		t.Fatalf("load after debounce: %v", err)
	}
	if persisted["finnhub"].Used != 10 {
		t.Errorf("expected persisted used=10, got %d", persisted["finnhub"].Used)
	}
}

// TestLoadForwardCompatible tests that a document with missing fields reads
// as fresh state
func TestLoadForwardCompatible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgets.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"providers":{"finnhub":{}}}`), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path, time.Millisecond, zerolog.Nop())
	persisted, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if persisted["finnhub"].Used != 0 || persisted["finnhub"].WindowID != 0 {
		t.Error("missing fields should default to zero/fresh")
	}
}
