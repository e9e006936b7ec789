package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hamed0406/dnsfailover/internal/converge"
	"github.com/hamed0406/dnsfailover/internal/domain"
	"github.com/hamed0406/dnsfailover/internal/report"
	"github.com/hamed0406/dnsfailover/internal/scheduler"
)

// TargetHealth is one target's latest verdict as seen by the engine.
type TargetHealth struct {
	Target    string    `json:"target"`
	Health    string    `json:"health"` // up, down or unknown
	LatencyMS float64   `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
	StaleFor  int       `json:"stale_for,omitempty"` // rounds since last fresh verdict
}

// PolicyStatus is the externally visible state of one policy.
type PolicyStatus struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Type    string         `json:"type"` // failover, load-balancer or monitor
	Enabled bool           `json:"enabled"`
	State   string         `json:"state,omitempty"`
	Active  string         `json:"active,omitempty"`
	Record  string         `json:"record,omitempty"`
	Targets []TargetHealth `json:"targets"`
}

// Status reports every policy with its current state, active target and the
// latest per-target verdicts. Safe to call concurrently with OnRound.
func (e *Engine) Status() []PolicyStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []PolicyStatus
	if e.snap == nil {
		return out
	}

	for _, p := range e.snap.Failovers {
		st := PolicyStatus{
			ID:      p.ID,
			Name:    p.Name,
			Type:    "failover",
			Enabled: p.Enabled,
			Record:  p.Record.Key(),
		}
		if m, ok := e.failovers[p.ID]; ok {
			st.State = m.State()
			st.Active = string(m.Active().Key())
		}
		st.Targets = append(st.Targets, e.targetHealth(p.GroupID, p.Primary))
		for _, b := range p.Backups {
			st.Targets = append(st.Targets, e.targetHealth(p.GroupID, b))
		}
		out = append(out, st)
	}

	for _, p := range e.snap.LoadBalancers {
		st := PolicyStatus{
			ID:      p.ID,
			Name:    p.Name,
			Type:    "load-balancer",
			Enabled: p.Enabled,
			State:   p.Algorithm,
			Record:  p.Record.Key(),
		}
		if s, ok := e.selectors[p.ID]; ok {
			if t, active := s.Active(); active {
				st.Active = string(t.Key())
			}
		}
		for _, w := range p.Pool {
			st.Targets = append(st.Targets, e.targetHealth(p.GroupID, w.Target))
		}
		out = append(out, st)
	}

	for _, m := range e.snap.Monitors {
		st := PolicyStatus{
			ID:      m.ID,
			Name:    m.Name,
			Type:    "monitor",
			Enabled: m.Enabled,
			Targets: []TargetHealth{e.targetHealth(m.GroupID, m.Target)},
		}
		out = append(out, st)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) targetHealth(groupID string, t domain.Target) TargetHealth {
	th := TargetHealth{Target: string(t.Key()), Health: "unknown"}
	v, ok := e.verdicts[scheduler.ProbeKey{Target: t.Key(), GroupID: groupID}]
	if !ok {
		return th
	}
	th.CheckedAt = v.CheckedAt
	th.StaleFor = v.Age
	if v.Age >= e.DegradedAfter {
		return th
	}
	if v.Up {
		th.Health = "up"
	} else {
		th.Health = "down"
	}
	for _, r := range v.Origins {
		if r.OK && r.LatencyMS > th.LatencyMS {
			th.LatencyMS = r.LatencyMS
		}
	}
	return th
}

// Report replays the event log for one policy over [start, end).
func (e *Engine) Report(ctx context.Context, policyID string, start, end time.Time) (*report.Report, error) {
	return report.Build(ctx, e.Events, policyID, start, end)
}

// ForceReconverge drops the applied-value cache for a policy's record and
// pushes the current desired state, regardless of what the cache believed.
func (e *Engine) ForceReconverge(ctx context.Context, policyID string) error {
	e.mu.RLock()
	var ch *converge.Change
	if e.snap != nil {
		for _, p := range e.snap.Failovers {
			if p.ID != policyID {
				continue
			}
			if m, ok := e.failovers[p.ID]; ok {
				ch = &converge.Change{PolicyID: p.ID, Ref: p.Record, Value: m.Active().Host}
			}
		}
		for _, p := range e.snap.LoadBalancers {
			if p.ID != policyID {
				continue
			}
			if s, ok := e.selectors[p.ID]; ok {
				if t, active := s.Active(); active {
					ch = &converge.Change{PolicyID: p.ID, Ref: p.Record, Value: t.Host}
				}
			}
		}
	}
	e.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("no convergeable policy %q", policyID)
	}
	e.Mutator.Invalidate(ch.Ref)
	return e.Mutator.Apply(ctx, *ch)
}
