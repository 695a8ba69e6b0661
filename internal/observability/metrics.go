package observability

import (
	"time"

	"github.com/mikey/supplier-mail-router/internal/core"
)

type agentTotals struct {
	completed     int
	failed        int
	totalDuration time.Duration
	cost          float64
	overrides     int
}

type tierSpend struct {
	calls int
	cost  float64
}

// Metrics aggregates the retained events
func (l *Log) Metrics() core.MetricsSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	hourAgo := now.Add(-time.Hour)

	snap := core.MetricsSnapshot{
		CallsByTier: make(map[core.ModelTier]int),
		Agents:      make([]core.AgentMetrics, 0),
		GeneratedAt: now,
	}

	var order []string
	totals := make(map[string]*agentTotals)
	completed, failed := 0, 0
	hitsByTier := make(map[core.ModelTier]int)
	paidByTier := make(map[core.ModelTier]tierSpend)

	for _, ev := range l.events {
		t, ok := totals[ev.AgentID]
		if !ok {
			t = &agentTotals{}
			totals[ev.AgentID] = t
			order = append(order, ev.AgentID)
		}
		if !ev.Timestamp.Before(hourAgo) {
			snap.EventsLastHour++
		}

		switch ev.Kind {
		case core.EventExtract:
			snap.TotalProcessed++
		case core.EventOverride:
			t.overrides++
		case core.EventTask:
			if ev.Success {
				t.completed++
				completed++
			} else {
				t.failed++
				failed++
			}
			t.totalDuration += ev.Duration
			t.cost += ev.Cost
			snap.ResolveCalls++
			if ev.Cached {
				snap.CacheHits++
				hitsByTier[ev.ModelTier]++
			} else if ev.Success {
				p := paidByTier[ev.ModelTier]
				p.calls++
				p.cost += ev.Cost
				paidByTier[ev.ModelTier] = p
			}
			if ev.ModelTier != "" {
				snap.CallsByTier[ev.ModelTier]++
			}
		}
	}

	for _, id := range order {
		t := totals[id]
		m := core.AgentMetrics{
			AgentID:        id,
			TasksCompleted: t.completed,
			TasksFailed:    t.failed,
			SuccessRate:    successRate(t.completed, t.failed),
			TotalCost:      t.cost,
			Overrides:      t.overrides,
		}
		if n := t.completed + t.failed; n > 0 {
			m.AverageResponseTime = t.totalDuration / time.Duration(n)
			m.OverrideRate = float64(t.overrides) / float64(n) * 100
		}
		snap.TotalCost += t.cost
		snap.Agents = append(snap.Agents, m)
	}

	for tier, hits := range hitsByTier {
		if p := paidByTier[tier]; p.calls > 0 {
			snap.EstimatedSavings += float64(hits) * p.cost / float64(p.calls)
		}
	}

	snap.SuccessRate = successRate(completed, failed)
	if snap.ResolveCalls > 0 {
		snap.CacheHitRate = float64(snap.CacheHits) / float64(snap.ResolveCalls) * 100
	}
	return snap
}

// successRate is nil until at least one task has finished
func successRate(completed, failed int) *float64 {
	n := completed + failed
	if n == 0 {
		return nil
	}
	rate := float64(completed) / float64(n) * 100
	return &rate
}
