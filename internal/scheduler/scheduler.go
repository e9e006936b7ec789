package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/dnsfailover/internal/domain"
	"github.com/hamed0406/dnsfailover/internal/metrics"
	"github.com/hamed0406/dnsfailover/internal/probe"
)

// ProbeKey identifies one probe round: the verdict depends on the group's
// origins and threshold, so the same IP watched through two groups gets two
// independent rounds.
type ProbeKey struct {
	Target  domain.TargetKey
	GroupID string
}

// RoundVerdict is a verdict plus its age in rounds. Age 0 means it was
// produced this round; consumers treat old verdicts as "unknown" past their
// own staleness threshold.
type RoundVerdict struct {
	domain.HealthVerdict
	Age int
}

// SnapshotSource yields the policy definitions for a tick. The engine
// treats each snapshot as consistent for the whole round.
type SnapshotSource interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
}

// Scheduler drives probe rounds: each tick it flattens the enabled
// policies into distinct (target, group) pairs, probes them concurrently
// under a bounded pool, and hands the verdict set to OnRound.
type Scheduler struct {
	Logger      *zap.Logger
	Prober      *probe.Prober
	Source      SnapshotSource
	Interval    time.Duration
	Margin      time.Duration // safety margin subtracted from the round deadline
	Concurrency int

	// OnRound runs the decision phase. Called synchronously once per tick
	// with every known verdict; never called concurrently with itself.
	OnRound func(ctx context.Context, snap *domain.Snapshot, verdicts map[ProbeKey]RoundVerdict)

	mu       sync.Mutex
	inflight map[ProbeKey]bool
	last     map[ProbeKey]RoundVerdict
}

func New(logger *zap.Logger, prober *probe.Prober, src SnapshotSource, interval, margin time.Duration, concurrency int) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		Logger:      logger,
		Prober:      prober,
		Source:      src,
		Interval:    interval,
		Margin:      margin,
		Concurrency: concurrency,
		inflight:    make(map[ProbeKey]bool),
		last:        make(map[ProbeKey]RoundVerdict),
	}
}

// Run starts the loop. It does an immediate round, then one per tick.
// Stops when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler_stopped")
			return
		case <-t.C:
			s.runOnce(ctx)
		}
	}
}

// Targets returns the distinct probe pairs referenced by enabled policies
// and monitors in the snapshot.
func Targets(snap *domain.Snapshot) map[ProbeKey]domain.Target {
	out := make(map[ProbeKey]domain.Target)
	add := func(t domain.Target, groupID string) {
		out[ProbeKey{Target: t.Key(), GroupID: groupID}] = t
	}
	for _, p := range snap.Failovers {
		if !p.Enabled {
			continue
		}
		add(p.Primary, p.GroupID)
		for _, b := range p.Backups {
			add(b, p.GroupID)
		}
	}
	for _, p := range snap.LoadBalancers {
		if !p.Enabled {
			continue
		}
		for _, wt := range p.Pool {
			if wt.Weight > 0 {
				add(wt.Target, p.GroupID)
			}
		}
	}
	for _, m := range snap.Monitors {
		if m.Enabled {
			add(m.Target, m.GroupID)
		}
	}
	return out
}

func (s *Scheduler) runOnce(ctx context.Context) {
	snap, err := s.Source.Load(ctx)
	if err != nil {
		s.Logger.Warn("scheduler_snapshot_error", zap.Error(err))
		return
	}

	work := Targets(snap)
	metrics.ProbeRounds.Inc()

	deadline := s.Interval - s.Margin
	if deadline <= 0 {
		deadline = s.Interval
	}
	rctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	sem := make(chan struct{}, s.Concurrency)
	var wg sync.WaitGroup

	for key, target := range work {
		s.mu.Lock()
		if s.inflight[key] {
			s.mu.Unlock()
			// Previous round's probe has not resolved; hold the stale
			// verdict rather than stacking a second probe.
			s.Logger.Warn("probe_straggler",
				zap.String("target", string(key.Target)),
				zap.String("group", key.GroupID),
			)
			continue
		}
		s.inflight[key] = true
		s.mu.Unlock()

		group := snap.Groups[key.GroupID]
		wg.Add(1)
		sem <- struct{}{}
		go func(key ProbeKey, target domain.Target, group domain.MonitoringGroup) {
			defer func() { <-sem }()
			defer wg.Done()

			v := s.Prober.Probe(rctx, target, group)
			if !v.Up {
				metrics.TargetsDown.WithLabelValues(string(key.Target)).Set(1)
			} else {
				metrics.TargetsDown.WithLabelValues(string(key.Target)).Set(0)
			}

			s.mu.Lock()
			s.last[key] = RoundVerdict{HealthVerdict: v, Age: 0}
			delete(s.inflight, key)
			s.mu.Unlock()
		}(key, target, group)
	}

	wg.Wait()

	// Age verdicts that did not refresh this round and drop pairs no policy
	// references anymore.
	s.mu.Lock()
	verdicts := make(map[ProbeKey]RoundVerdict, len(work))
	for key := range work {
		if v, ok := s.last[key]; ok {
			verdicts[key] = v
			v.Age++
			s.last[key] = v
		}
	}
	for key := range s.last {
		if _, referenced := work[key]; !referenced && !s.inflight[key] {
			delete(s.last, key)
		}
	}
	s.mu.Unlock()

	if s.OnRound != nil {
		s.OnRound(ctx, snap, verdicts)
	}
}
