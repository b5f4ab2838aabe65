// Package ledger accumulates token and cost usage for one consultation.
//
// A Ledger is created per consultation and passed explicitly to every call
// site, so concurrent consultations never share usage. Record is safe for
// concurrent use; Drain reads and clears atomically.
package ledger

import (
	"sync"

	"github.com/agentoven/boardroom/pkg/models"
)

// Ledger is an ordered sequence of usage events. A role charged more than
// once (e.g. the primary during synthesis) accumulates in the report.
type Ledger struct {
	mu     sync.Mutex
	events []models.UsageEvent
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Record appends one usage event.
func (l *Ledger) Record(ev models.UsageEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Len returns the number of events not yet drained.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Snapshot summarizes the current events without clearing them.
func (l *Ledger) Snapshot() *models.CostReport {
	l.mu.Lock()
	events := append([]models.UsageEvent(nil), l.events...)
	l.mu.Unlock()
	return Summarize(events)
}

// Drain summarizes and clears the ledger in one step.
func (l *Ledger) Drain() *models.CostReport {
	l.mu.Lock()
	events := l.events
	l.events = nil
	l.mu.Unlock()
	return Summarize(events)
}

// Summarize totals events and groups them by role.
func Summarize(events []models.UsageEvent) *models.CostReport {
	report := &models.CostReport{
		ExecutiveBreakdown: make(map[models.Role]models.RoleUsage),
	}
	for _, ev := range events {
		report.PromptTokens += ev.PromptTokens
		report.CompletionTokens += ev.CompletionTokens
		report.TotalTokens += ev.TotalTokens
		report.TotalCost += ev.Cost

		ru := report.ExecutiveBreakdown[ev.Role]
		if ru.Model == "" {
			ru.Model = ev.Model
		}
		ru.Tokens += ev.TotalTokens
		ru.PromptTokens += ev.PromptTokens
		ru.CompletionTokens += ev.CompletionTokens
		ru.Cost += ev.Cost
		ru.Calls++
		report.ExecutiveBreakdown[ev.Role] = ru
	}
	return report
}
