package rotation

import (
	"math/rand"
	"time"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// Change is one rotation decision; the engine turns it into a
// rotation-switch Event and a desired-state change.
type Change struct {
	Old domain.Target
	New domain.Target
}

// Selector owns rotation state for one load-balancer policy: the current
// selection, the round-robin credits and the per-target active-duration
// counters. Driven only by the single-threaded decision phase.
type Selector struct {
	policy  domain.LoadBalancerPolicy
	credits []int

	activeIdx int // -1 before the first selection
	lastRoll  time.Time

	durations map[domain.TargetKey]time.Duration

	rng *rand.Rand
}

func NewSelector(p domain.LoadBalancerPolicy, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Selector{
		policy:    p,
		activeIdx: -1,
		durations: make(map[domain.TargetKey]time.Duration),
		rng:       rng,
	}
	s.refill()
	return s
}

// UpdatePolicy swaps in a newer definition. A changed pool resets the
// credit cycle; duration counters survive.
func (s *Selector) UpdatePolicy(p domain.LoadBalancerPolicy) {
	samePool := len(p.Pool) == len(s.policy.Pool)
	if samePool {
		for i := range p.Pool {
			if p.Pool[i] != s.policy.Pool[i] {
				samePool = false
				break
			}
		}
	}
	s.policy = p
	if !samePool {
		s.refill()
		s.activeIdx = -1
	}
}

func (s *Selector) Policy() domain.LoadBalancerPolicy { return s.policy }

func (s *Selector) refill() {
	s.credits = make([]int, len(s.policy.Pool))
	for i, wt := range s.policy.Pool {
		s.credits[i] = wt.Weight
	}
}

// Active returns the current selection, or false before one exists.
func (s *Selector) Active() (domain.Target, bool) {
	if s.activeIdx < 0 || s.activeIdx >= len(s.policy.Pool) {
		return domain.Target{}, false
	}
	return s.policy.Pool[s.activeIdx].Target, true
}

// Durations is a copy of the cumulative active time per target.
func (s *Selector) Durations() map[domain.TargetKey]time.Duration {
	out := make(map[domain.TargetKey]time.Duration, len(s.durations))
	for k, v := range s.durations {
		out[k] = v
	}
	return out
}

// Tick advances the selector one round. healthy reports the latest verdict
// per pool member; tick is the round duration credited to the selection.
// A Change is returned only when the selection actually moved.
func (s *Selector) Tick(now time.Time, tick time.Duration, healthy func(domain.Target) bool) *Change {
	eligible := s.eligible(healthy)

	var change *Change
	switch {
	case len(eligible) == 0:
		// Nothing healthy to point at; hold the record rather than guess.
	case s.activeIdx < 0, !contains(eligible, s.activeIdx):
		// Membership changed under us: reselect immediately, mid-cycle or
		// not, never leaving the record on a down target.
		change = s.roll(now, eligible)
	case s.policy.RotateEvery <= 0 || now.Sub(s.lastRoll) >= s.policy.RotateEvery.Std():
		// RotateEvery 0 re-rolls every round.
		change = s.roll(now, eligible)
	}

	if s.activeIdx >= 0 {
		key := s.policy.Pool[s.activeIdx].Target.Key()
		s.durations[key] += tick
	}
	return change
}

func (s *Selector) eligible(healthy func(domain.Target) bool) []int {
	var out []int
	for i, wt := range s.policy.Pool {
		if wt.Weight > 0 && healthy(wt.Target) {
			out = append(out, i)
		}
	}
	return out
}

func (s *Selector) roll(now time.Time, eligible []int) *Change {
	var next int
	if s.policy.Algorithm == domain.AlgoWeightedRoundRobin {
		next = s.stepRoundRobin(eligible)
	} else {
		next = s.drawRandom(eligible)
	}
	s.lastRoll = now

	if next == s.activeIdx {
		return nil
	}
	var old domain.Target
	if s.activeIdx >= 0 {
		old = s.policy.Pool[s.activeIdx].Target
	}
	s.activeIdx = next
	return &Change{Old: old, New: s.policy.Pool[next].Target}
}

// drawRandom picks over the cumulative weights of the eligible members.
func (s *Selector) drawRandom(eligible []int) int {
	total := 0
	for _, i := range eligible {
		total += s.policy.Pool[i].Weight
	}
	r := s.rng.Intn(total)
	for _, i := range eligible {
		if r < s.policy.Pool[i].Weight {
			return i
		}
		r -= s.policy.Pool[i].Weight
	}
	return eligible[len(eligible)-1]
}

// stepRoundRobin picks the eligible member with the highest remaining
// credit-to-weight ratio (ties broken by list order), spends one credit,
// and refills everyone once the cycle is exhausted. Higher weights win
// proportionally more rounds without bursting.
func (s *Selector) stepRoundRobin(eligible []int) int {
	spendable := func() bool {
		for _, i := range eligible {
			if s.credits[i] > 0 {
				return true
			}
		}
		return false
	}
	if !spendable() {
		s.refill()
	}

	best := -1
	for _, i := range eligible {
		if s.credits[i] <= 0 {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		// credit/weight comparison without floats
		if s.credits[i]*s.policy.Pool[best].Weight > s.credits[best]*s.policy.Pool[i].Weight {
			best = i
		}
	}
	if best < 0 {
		// eligible members exist but every credit is spent even after a
		// refill; weights are validated > 0 so this cannot happen.
		best = eligible[0]
	}
	s.credits[best]--
	return best
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
