package orchestrator

import (
	"time"

	"dealflow/internal/agent"
)

// HistoryEntry records one agent execution made through the orchestrator.
// The log is append-only and in-memory; it exists to feed Stats.
type HistoryEntry struct {
	AgentID   string        `json:"agent_id"`
	Timestamp time.Time     `json:"timestamp"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
}

// AgentStats aggregates executions for one agent.
type AgentStats struct {
	Count     int `json:"count"`
	Successes int `json:"successes"`
}

// Stats is a fold over the history log.
type Stats struct {
	TotalExecutions int                   `json:"total_executions"`
	PerAgent        map[string]AgentStats `json:"per_agent"`
	SuccessRate     float64               `json:"success_rate"` // percent
	AverageDuration time.Duration         `json:"average_duration"`
}

// record appends a history entry and feeds the metrics sink. Safe for
// concurrent use; parallel branches append in settle order, which is
// not deterministic.
func (o *Orchestrator) record(result agent.Result) {
	entry := HistoryEntry{
		AgentID:   result.AgentID,
		Timestamp: time.Now().UTC(),
		Success:   result.Success,
		Duration:  result.Duration,
	}

	o.mu.Lock()
	o.history = append(o.history, entry)
	o.mu.Unlock()

	status := "success"
	if !result.Success {
		status = "failure"
		o.metrics.IncAgentFailure(result.AgentID)
	}
	o.metrics.ObserveAgentDuration(result.AgentID, status, result.Duration)
}

// History returns a copy of the execution log.
func (o *Orchestrator) History() []HistoryEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]HistoryEntry(nil), o.history...)
}

// ClearHistory resets the execution log.
func (o *Orchestrator) ClearHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = nil
}

// Stats derives aggregate statistics from the history log.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	entries := append([]HistoryEntry(nil), o.history...)
	o.mu.Unlock()

	stats := Stats{PerAgent: make(map[string]AgentStats)}
	if len(entries) == 0 {
		return stats
	}

	successes := 0
	var total time.Duration
	for _, entry := range entries {
		per := stats.PerAgent[entry.AgentID]
		per.Count++
		if entry.Success {
			per.Successes++
			successes++
		}
		stats.PerAgent[entry.AgentID] = per
		total += entry.Duration
	}

	stats.TotalExecutions = len(entries)
	stats.SuccessRate = 100 * float64(successes) / float64(len(entries))
	stats.AverageDuration = total / time.Duration(len(entries))
	return stats
}
