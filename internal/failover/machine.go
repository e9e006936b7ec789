package failover

import (
	"fmt"
	"time"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// Health is a target's state as seen by the decision phase. Unknown means
// the probe subsystem has produced no verdict for too long; it never
// triggers a transition.
type Health int

const (
	Unknown Health = iota
	Up
	Down
)

// Transition is one state change: the engine turns it into exactly one
// Event, one desired-state change and one notification.
type Transition struct {
	Kind domain.EventKind
	Old  domain.Target
	New  domain.Target
}

// Alert reasons raised instead of a transition.
const (
	AlertAllBackupsDown = "all-backups-down"
	AlertDegraded       = "monitoring-degraded"
)

type Alert struct {
	Reason  string
	Message string
}

// Outcome of one tick: at most one transition, plus any alerts.
type Outcome struct {
	Transition *Transition
	Alerts     []Alert
}

const (
	stateOnPrimary = iota
	stateOnBackup
	stateSwitching
)

// Machine owns the failover state for a single policy. It is driven only by
// the single-threaded decision phase; Active and State are safe to read
// between ticks through the engine's registry lock.
type Machine struct {
	policy domain.FailoverPolicy

	state      int
	backupIdx  int // valid in stateOnBackup
	pending    int // target state while switching
	pendingIdx int

	primaryUpSince  time.Time
	allDownAlerted  bool
	degradedAlerted bool
}

func NewMachine(p domain.FailoverPolicy) *Machine {
	return &Machine{policy: p}
}

// UpdatePolicy swaps in a newer definition without losing state. A shrunken
// backup list snaps the machine back to the primary.
func (m *Machine) UpdatePolicy(p domain.FailoverPolicy) {
	m.policy = p
	if m.state == stateOnBackup && m.backupIdx >= len(p.Backups) {
		m.state = stateOnPrimary
	}
}

func (m *Machine) Policy() domain.FailoverPolicy { return m.policy }

// Active is the target the engine believes traffic points at. Never unset
// while the policy is enabled.
func (m *Machine) Active() domain.Target {
	switch m.state {
	case stateOnBackup:
		return m.policy.Backups[m.backupIdx]
	case stateSwitching:
		if m.pending == stateOnBackup {
			return m.policy.Backups[m.pendingIdx]
		}
		return m.policy.Primary
	default:
		return m.policy.Primary
	}
}

func (m *Machine) State() string {
	switch m.state {
	case stateOnBackup:
		return fmt.Sprintf("ON_BACKUP(%d)", m.backupIdx)
	case stateSwitching:
		return "SWITCHING"
	default:
		return "ON_PRIMARY"
	}
}

// Settled commits a pending switch. The engine calls it once the
// convergence attempt for the emitted change finishes; internal state is
// not rolled back on a failed attempt, so the engine's view and the
// provider's record may diverge until the next successful convergence.
func (m *Machine) Settled() {
	if m.state != stateSwitching {
		return
	}
	m.state = m.pending
	m.backupIdx = m.pendingIdx
}

// firstHealthyBackup returns the first backup by configured list order
// whose health is Up. The same order breaks ties when several become
// healthy at once.
func (m *Machine) firstHealthyBackup(health func(domain.Target) Health) (int, bool) {
	for i, b := range m.policy.Backups {
		if health(b) == Up {
			return i, true
		}
	}
	return 0, false
}

// Tick advances the machine one round. health must answer for the primary
// and every backup.
func (m *Machine) Tick(now time.Time, health func(domain.Target) Health) Outcome {
	var out Outcome

	// A previous switch is still converging; hold everything.
	if m.state == stateSwitching {
		return out
	}

	ph := health(m.policy.Primary)

	// Track the failback stability clock: reset on any down verdict, start
	// on the up transition, freeze while unknown.
	switch ph {
	case Up:
		if m.primaryUpSince.IsZero() {
			m.primaryUpSince = now
		}
	case Down:
		m.primaryUpSince = time.Time{}
	}

	// Missing data never moves the record.
	if ph == Unknown || health(m.Active()) == Unknown {
		if !m.degradedAlerted {
			m.degradedAlerted = true
			out.Alerts = append(out.Alerts, Alert{
				Reason:  AlertDegraded,
				Message: fmt.Sprintf("no probe verdict for %s; holding %s", m.policy.Name, m.State()),
			})
		}
		return out
	}
	m.degradedAlerted = false

	switch m.state {
	case stateOnPrimary:
		if ph != Down {
			m.allDownAlerted = false
			return out
		}
		idx, ok := m.firstHealthyBackup(health)
		if !ok {
			// A record pointing at a known-bad primary beats guessing among
			// equally bad backups.
			if !m.allDownAlerted {
				m.allDownAlerted = true
				out.Alerts = append(out.Alerts, Alert{
					Reason:  AlertAllBackupsDown,
					Message: fmt.Sprintf("%s: primary and all backups down, record unchanged", m.policy.Name),
				})
			}
			return out
		}
		m.allDownAlerted = false
		out.Transition = m.switchTo(stateOnBackup, idx, domain.EventFailover)

	case stateOnBackup:
		if ph == Up && !m.primaryUpSince.IsZero() && now.Sub(m.primaryUpSince) >= m.policy.FailbackWindow.Std() {
			out.Transition = m.switchTo(stateOnPrimary, 0, domain.EventFailback)
			return out
		}
		if health(m.policy.Backups[m.backupIdx]) == Down {
			idx, ok := m.firstHealthyBackup(health)
			if !ok {
				if !m.allDownAlerted {
					m.allDownAlerted = true
					out.Alerts = append(out.Alerts, Alert{
						Reason:  AlertAllBackupsDown,
						Message: fmt.Sprintf("%s: every backup down, holding %s", m.policy.Name, m.State()),
					})
				}
				return out
			}
			m.allDownAlerted = false
			if idx != m.backupIdx {
				out.Transition = m.switchTo(stateOnBackup, idx, domain.EventFailover)
			}
		}
	}
	return out
}

func (m *Machine) switchTo(state, idx int, kind domain.EventKind) *Transition {
	old := m.Active()
	m.pending = state
	m.pendingIdx = idx
	m.state = stateSwitching
	return &Transition{Kind: kind, Old: old, New: m.Active()}
}
