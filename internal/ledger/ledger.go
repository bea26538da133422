// Package ledger implements the agent's persistent, atomically-written
// credit ledger (§4.6). A single file under the persistent credits
// directory tracks balance, per-model spend, and a bounded charge history;
// writes go to a temp file and are renamed into place so a crash never
// leaves a half-written ledger.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/digitalentity/aientity/internal/domain"
)

// Ledger guards one CreditLedger file with a single in-process writer
// lock, matching §4.6's "atomic w.r.t. concurrent charges (single writer
// recommended)".
type Ledger struct {
	mu       sync.Mutex
	path     string
	state    domain.CreditLedger
	log      zerolog.Logger
}

// Open loads path if it exists, or initializes a fresh ledger at
// monthlyBudgetUSD otherwise.
func Open(path string, monthlyBudgetUSD float64, log zerolog.Logger) (*Ledger, error) {
	l := &Ledger{path: path, log: log.With().Str("component", "ledger").Logger()}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read ledger at %s: %w", path, err)
		}
		l.state = freshLedger(monthlyBudgetUSD)
		if err := l.persist(); err != nil {
			return nil, err
		}
		return l, nil
	}

	if err := json.Unmarshal(raw, &l.state); err != nil {
		return nil, fmt.Errorf("failed to parse ledger at %s: %w", path, err)
	}
	return l, nil
}

func freshLedger(monthlyBudgetUSD float64) domain.CreditLedger {
	return domain.CreditLedger{
		BalanceUSD:       monthlyBudgetUSD,
		MonthlyBudgetUSD: monthlyBudgetUSD,
		ResetAt:          nextMonthBoundary(time.Now().UTC()),
		PerModelSpend:    map[string]float64{},
	}
}

func nextMonthBoundary(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// persist writes the ledger atomically: temp file in the same directory,
// then rename over the target. A write failure here is fatal to the agent
// process per §7 — callers that hit an error from Charge/ResetIfDue should
// treat it as unrecoverable.
func (l *Ledger) persist() error {
	raw, err := json.MarshalIndent(l.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create ledger temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write ledger temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close ledger temp file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename ledger temp file into place: %w", err)
	}
	return nil
}

// Charge attempts to deduct usd for modelID's input/output token usage.
// The bankruptcy check is computed before commit: if balance-usd would
// leave the ledger at or below domain.BankruptcyThresholdUSD, the charge
// still applies (balance never goes negative past that point is not
// required — only that it never goes negative) and the result is
// reported bankrupt.
func (l *Ledger) Charge(ctx context.Context, modelID string, inputTok, outputTok int64, usd float64) (domain.ChargeResult, float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetIfDueLocked()

	newBalance := l.state.BalanceUSD - usd
	if newBalance < 0 {
		newBalance = 0
	}
	result := domain.ChargeOK
	if newBalance <= domain.BankruptcyThresholdUSD {
		result = domain.ChargeBankrupt
	}

	l.state.BalanceUSD = newBalance
	if l.state.PerModelSpend == nil {
		l.state.PerModelSpend = map[string]float64{}
	}
	l.state.PerModelSpend[modelID] += usd

	l.state.History = append(l.state.History, domain.ChargeEntry{
		Timestamp: time.Now().UTC(), ModelID: modelID, InputTok: inputTok, OutputTok: outputTok, USD: usd,
	})
	if len(l.state.History) > domain.MaxHistoryEntries {
		l.state.History = l.state.History[len(l.state.History)-domain.MaxHistoryEntries:]
	}

	if err := l.persist(); err != nil {
		l.log.Fatal().Err(err).Msg("failed to persist ledger charge, exiting")
		return result, newBalance, err
	}

	return result, newBalance, nil
}

// Balance returns the current balance, applying a pending reset first.
func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfDueLocked()
	return l.state.BalanceUSD
}

// Status returns the read-only projection served over /budget.
func (l *Ledger) Status() domain.LedgerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfDueLocked()

	spend := make(map[string]float64, len(l.state.PerModelSpend))
	for k, v := range l.state.PerModelSpend {
		spend[k] = v
	}

	tailLen := 10
	var tail []domain.ChargeEntry
	if len(l.state.History) > tailLen {
		tail = append(tail, l.state.History[len(l.state.History)-tailLen:]...)
	} else {
		tail = append(tail, l.state.History...)
	}

	return domain.LedgerStatus{
		BalanceUSD:       l.state.BalanceUSD,
		MonthlyBudgetUSD: l.state.MonthlyBudgetUSD,
		PerModelSpend:    spend,
		HistoryTail:      tail,
	}
}

// ResetIfDue restores balance to the monthly budget and clears history
// on first access after the calendar boundary.
func (l *Ledger) ResetIfDue() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.resetIfDueLocked() {
		return nil
	}
	return l.persist()
}

func (l *Ledger) resetIfDueLocked() bool {
	now := time.Now().UTC()
	if now.Before(l.state.ResetAt) {
		return false
	}
	l.state.BalanceUSD = l.state.MonthlyBudgetUSD
	l.state.PerModelSpend = map[string]float64{}
	l.state.History = nil
	l.state.ResetAt = nextMonthBoundary(now)
	l.log.Info().Time("reset_at", l.state.ResetAt).Msg("credit ledger reset on calendar boundary")
	return true
}
