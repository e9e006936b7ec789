package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/dnsfailover/internal/converge"
	"github.com/hamed0406/dnsfailover/internal/domain"
	"github.com/hamed0406/dnsfailover/internal/eventlog"
	"github.com/hamed0406/dnsfailover/internal/failover"
	"github.com/hamed0406/dnsfailover/internal/metrics"
	"github.com/hamed0406/dnsfailover/internal/notify"
	"github.com/hamed0406/dnsfailover/internal/rotation"
	"github.com/hamed0406/dnsfailover/internal/scheduler"
)

// monitorState tracks a standalone monitor between rounds.
type monitorState struct {
	lastUp   *bool
	degraded bool
}

// Engine runs the decision phase: it owns one state machine or selector per
// policy id, turns their transitions into events, notifications and
// convergence work, and answers status/report/reconverge queries.
type Engine struct {
	Logger        *zap.Logger
	Events        eventlog.Store
	Mutator       *converge.Mutator
	Notifier      notify.Notifier
	Tick          time.Duration
	DegradedAfter int           // rounds without a verdict before health turns Unknown
	FailbackDef   time.Duration // default stability window for policies that omit one

	mu        sync.RWMutex
	snap      *domain.Snapshot
	verdicts  map[scheduler.ProbeKey]scheduler.RoundVerdict
	failovers map[string]*failover.Machine
	selectors map[string]*rotation.Selector
	monitors  map[string]*monitorState
}

func New(logger *zap.Logger, events eventlog.Store, mutator *converge.Mutator, notifier notify.Notifier, tick, failbackDef time.Duration, degradedAfter int) *Engine {
	if degradedAfter < 1 {
		degradedAfter = 1
	}
	return &Engine{
		Logger:        logger,
		Events:        events,
		Mutator:       mutator,
		Notifier:      notifier,
		Tick:          tick,
		DegradedAfter: degradedAfter,
		FailbackDef:   failbackDef,
		failovers:     make(map[string]*failover.Machine),
		selectors:     make(map[string]*rotation.Selector),
		monitors:      make(map[string]*monitorState),
	}
}

// OnRound is the scheduler callback: one call per tick, never concurrent
// with itself. All policy evaluation happens here, single-threaded;
// convergence fans out per record afterwards.
func (e *Engine) OnRound(ctx context.Context, snap *domain.Snapshot, verdicts map[scheduler.ProbeKey]scheduler.RoundVerdict) {
	now := time.Now().UTC()

	e.mu.Lock()
	e.snap = snap
	e.verdicts = verdicts
	e.syncRegistry(snap)

	type pending struct {
		change  converge.Change
		machine *failover.Machine
	}
	var work []pending

	for _, p := range snap.Failovers {
		if !p.Enabled {
			continue // frozen, not cleared
		}
		m := e.failovers[p.ID]
		out := m.Tick(now, e.healthFunc(p.GroupID))
		for _, a := range out.Alerts {
			e.alert(ctx, p.ID, p.Name, p.Recipients, a.Reason, a.Message)
		}
		if tr := out.Transition; tr != nil {
			e.recordTransition(ctx, now, p.ID, p.Name, p.Recipients, tr.Kind, tr.Old, tr.New)
			work = append(work, pending{
				change: converge.Change{
					PolicyID: p.ID,
					Ref:      p.Record,
					Value:    tr.New.Host,
				},
				machine: m,
			})
		}
	}

	for _, p := range snap.LoadBalancers {
		if !p.Enabled {
			continue
		}
		sel := e.selectors[p.ID]
		health := e.healthFunc(p.GroupID)
		ch := sel.Tick(now, e.Tick, func(t domain.Target) bool { return health(t) == failover.Up })
		if ch != nil {
			e.recordTransition(ctx, now, p.ID, p.Name, p.Recipients, domain.EventRotationSwitch, ch.Old, ch.New)
			work = append(work, pending{change: converge.Change{
				PolicyID: p.ID,
				Ref:      p.Record,
				Value:    ch.New.Host,
			}})
		}
	}

	for _, m := range snap.Monitors {
		if m.Enabled {
			e.tickMonitor(ctx, now, m)
		}
	}
	e.mu.Unlock()

	// DNS mutation runs in parallel across unrelated records; the
	// per-record lock inside the mutator is the only serialization.
	for _, w := range work {
		go e.converge(ctx, w.change, w.machine)
	}
}

// syncRegistry reconciles the per-policy registries with the snapshot,
// preserving state for policies that persist. Deleted policies drop out;
// disabled ones stay frozen.
func (e *Engine) syncRegistry(snap *domain.Snapshot) {
	seenF := make(map[string]bool, len(snap.Failovers))
	for _, p := range snap.Failovers {
		seenF[p.ID] = true
		if p.FailbackWindow <= 0 {
			p.FailbackWindow = domain.Duration(e.FailbackDef)
		}
		if m, ok := e.failovers[p.ID]; ok {
			m.UpdatePolicy(p)
		} else {
			e.failovers[p.ID] = failover.NewMachine(p)
		}
	}
	for id := range e.failovers {
		if !seenF[id] {
			delete(e.failovers, id)
		}
	}

	seenL := make(map[string]bool, len(snap.LoadBalancers))
	for _, p := range snap.LoadBalancers {
		seenL[p.ID] = true
		if s, ok := e.selectors[p.ID]; ok {
			s.UpdatePolicy(p)
		} else {
			e.selectors[p.ID] = rotation.NewSelector(p, nil)
		}
	}
	for id := range e.selectors {
		if !seenL[id] {
			delete(e.selectors, id)
		}
	}

	seenM := make(map[string]bool, len(snap.Monitors))
	for _, m := range snap.Monitors {
		seenM[m.ID] = true
		if _, ok := e.monitors[m.ID]; !ok {
			e.monitors[m.ID] = &monitorState{}
		}
	}
	for id := range e.monitors {
		if !seenM[id] {
			delete(e.monitors, id)
		}
	}
}

// healthFunc resolves a target's health through a group's latest verdict.
// Missing or stale verdicts are Unknown: acting on missing data is worse
// than acting late.
func (e *Engine) healthFunc(groupID string) func(domain.Target) failover.Health {
	return func(t domain.Target) failover.Health {
		v, ok := e.verdicts[scheduler.ProbeKey{Target: t.Key(), GroupID: groupID}]
		if !ok || v.Age >= e.DegradedAfter {
			return failover.Unknown
		}
		if v.Up {
			return failover.Up
		}
		return failover.Down
	}
}

func (e *Engine) tickMonitor(ctx context.Context, now time.Time, m domain.StandaloneMonitor) {
	st := e.monitors[m.ID]
	health := e.healthFunc(m.GroupID)(m.Target)

	if health == failover.Unknown {
		if !st.degraded {
			st.degraded = true
			e.alert(ctx, m.ID, m.Name, m.Recipients, failover.AlertDegraded,
				fmt.Sprintf("no probe verdict for %s", m.Target))
		}
		return
	}
	st.degraded = false

	up := health == failover.Up
	if st.lastUp != nil && *st.lastUp == up {
		return // no change, stay silent
	}
	st.lastUp = &up

	kind := domain.EventMonitorDown
	if up {
		kind = domain.EventMonitorUp
	}
	e.recordTransition(ctx, now, m.ID, m.Name, m.Recipients, kind, m.Target, m.Target)
}

// recordTransition appends exactly one Event and sends exactly one
// notification per recipient for a state transition.
func (e *Engine) recordTransition(ctx context.Context, now time.Time, policyID, name string, recipients []string, kind domain.EventKind, old, new domain.Target) {
	ev := &domain.Event{
		At:        now,
		PolicyID:  policyID,
		Kind:      kind,
		OldTarget: string(old.Key()),
		NewTarget: string(new.Key()),
	}
	if err := e.Events.Append(ctx, ev); err != nil {
		e.Logger.Error("event_append_failed", zap.String("policy", policyID), zap.Error(err))
	}
	metrics.Transitions.WithLabelValues(string(kind)).Inc()

	e.Logger.Info("transition",
		zap.String("policy", policyID),
		zap.String("kind", string(kind)),
		zap.String("old", string(old.Key())),
		zap.String("new", string(new.Key())),
	)

	title, text := transitionMessage(name, kind, old, new)
	e.notifyAll(ctx, recipients, title, text)
}

func transitionMessage(name string, kind domain.EventKind, old, new domain.Target) (string, string) {
	switch kind {
	case domain.EventFailover:
		return "🔴 Failover: " + name, fmt.Sprintf("traffic moved %s -> %s", old, new)
	case domain.EventFailback:
		return "🟢 Failback: " + name, fmt.Sprintf("primary stable, traffic restored to %s", new)
	case domain.EventRotationSwitch:
		return "🔄 Rotation: " + name, fmt.Sprintf("pool selection moved %s -> %s", old, new)
	case domain.EventMonitorDown:
		return "🔴 Monitor DOWN: " + name, new.String()
	case domain.EventMonitorUp:
		return "🟢 Monitor UP: " + name, new.String()
	}
	return name, ""
}

func (e *Engine) alert(ctx context.Context, policyID, name string, recipients []string, reason, message string) {
	e.Logger.Warn("alert",
		zap.String("policy", policyID),
		zap.String("reason", reason),
		zap.String("message", message),
	)
	e.notifyAll(ctx, recipients, "⚠️ "+name+" ("+reason+")", message)
}

func (e *Engine) notifyAll(ctx context.Context, recipients []string, title, text string) {
	if e.Notifier == nil {
		return
	}
	for _, r := range recipients {
		if err := e.Notifier.Send(ctx, r, title, text); err != nil {
			e.Logger.Warn("notify_failed", zap.String("recipient", r), zap.Error(err))
		} else {
			metrics.NotificationsSent.Inc()
		}
	}
}

// converge applies one change and settles the owning machine afterwards.
// A failed attempt still settles: internal state is never rolled back, the
// divergence heals on a later successful convergence.
func (e *Engine) converge(ctx context.Context, ch converge.Change, machine *failover.Machine) {
	err := e.Mutator.Apply(ctx, ch)

	e.mu.Lock()
	if machine != nil {
		machine.Settled()
	}
	var name string
	var recipients []string
	if e.snap != nil {
		for _, p := range e.snap.Failovers {
			if p.ID == ch.PolicyID {
				name, recipients = p.Name, p.Recipients
			}
		}
		for _, p := range e.snap.LoadBalancers {
			if p.ID == ch.PolicyID {
				name, recipients = p.Name, p.Recipients
			}
		}
	}
	e.mu.Unlock()

	if err != nil {
		e.alert(ctx, ch.PolicyID, name, recipients, "convergence-failed",
			fmt.Sprintf("DNS record %s could not be updated to %s; engine state and provider may diverge until the next successful convergence: %v",
				ch.Ref.Key(), ch.Value, err))
	}
}
