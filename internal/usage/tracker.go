// Package usage accounts tokens per provider and persists session records
// to a JSON ledger on disk.
package usage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ChamsBouzaiene/omni/internal/engine"
)

// ProviderUsage is the tally for one provider within a session.
type ProviderUsage struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	Requests      int     `json:"requests"`
	EstimatedCost float64 `json:"estimated_cost_usd"`
}

// SessionRecord is one completed session as written to the ledger.
type SessionRecord struct {
	ID        string                   `json:"id"`
	StartedAt time.Time                `json:"started_at"`
	EndedAt   time.Time                `json:"ended_at"`
	Providers map[string]ProviderUsage `json:"providers"`
}

// ledger is the on-disk file layout.
type ledger struct {
	Sessions   []SessionRecord          `json:"sessions"`
	Cumulative map[string]ProviderUsage `json:"cumulative"`
}

// Tracker accumulates per-provider usage for one session. Record is safe for
// concurrent use; streaming responses report usage from a separate goroutine.
type Tracker struct {
	mu        sync.Mutex
	sessionID string
	startedAt time.Time
	path      string
	costPer1M map[string]float64
	totals    map[string]*ProviderUsage
}

// NewTracker creates a tracker writing to path on Flush. costPer1M maps
// provider name to blended dollars per million tokens; unknown providers
// accrue zero cost.
func NewTracker(path string, costPer1M map[string]float64) *Tracker {
	if costPer1M == nil {
		costPer1M = map[string]float64{}
	}
	return &Tracker{
		sessionID: uuid.NewString(),
		startedAt: time.Now().UTC(),
		path:      path,
		costPer1M: costPer1M,
		totals:    map[string]*ProviderUsage{},
	}
}

// Record implements llm.UsageRecorder.
func (t *Tracker) Record(provider string, u engine.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pu, ok := t.totals[provider]
	if !ok {
		pu = &ProviderUsage{}
		t.totals[provider] = pu
	}
	pu.InputTokens += u.Prompt
	pu.OutputTokens += u.Completion
	pu.Requests++
	pu.EstimatedCost += float64(u.Prompt+u.Completion) / 1_000_000 * t.costPer1M[provider]
}

// Snapshot returns a copy of the current per-provider tallies.
func (t *Tracker) Snapshot() map[string]ProviderUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]ProviderUsage, len(t.totals))
	for name, pu := range t.totals {
		out[name] = *pu
	}
	return out
}

// Flush appends this session to the ledger file and folds it into the
// cumulative totals. A missing or corrupt ledger is replaced rather than
// failing the shutdown path.
func (t *Tracker) Flush() error {
	snapshot := t.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	led := t.loadLedger()
	led.Sessions = append(led.Sessions, SessionRecord{
		ID:        t.sessionID,
		StartedAt: t.startedAt,
		EndedAt:   time.Now().UTC(),
		Providers: snapshot,
	})
	if led.Cumulative == nil {
		led.Cumulative = map[string]ProviderUsage{}
	}
	for name, pu := range snapshot {
		total := led.Cumulative[name]
		total.InputTokens += pu.InputTokens
		total.OutputTokens += pu.OutputTokens
		total.Requests += pu.Requests
		total.EstimatedCost += pu.EstimatedCost
		led.Cumulative[name] = total
	}

	data, err := json.MarshalIndent(led, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal usage ledger: %w", err)
	}
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create usage dir: %w", err)
		}
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("write usage ledger: %w", err)
	}
	return nil
}

func (t *Tracker) loadLedger() ledger {
	var led ledger
	data, err := os.ReadFile(t.path)
	if err != nil {
		return led
	}
	if err := json.Unmarshal(data, &led); err != nil {
		log.Printf("usage ledger %s is corrupt, starting fresh: %v", t.path, err)
		return ledger{}
	}
	return led
}
