package failover

import (
	"testing"
	"time"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// ---- shared helpers ----

func tgt(host string) domain.Target {
	return domain.Target{Host: host, Port: 443, Scheme: "https"}
}

func pol(window time.Duration) domain.FailoverPolicy {
	return domain.FailoverPolicy{
		ID:             "fo-1",
		Name:           "web",
		Enabled:        true,
		Primary:        tgt("p.example.com"),
		Backups:        []domain.Target{tgt("b1.example.com"), tgt("b2.example.com")},
		FailbackWindow: domain.Duration(window),
	}
}

// health answers from a host -> Health map; everything else is Up.
func health(m map[string]Health) func(domain.Target) Health {
	return func(t domain.Target) Health {
		if h, ok := m[t.Host]; ok {
			return h
		}
		return Up
	}
}

// settle commits the pending switch like the engine does after convergence.
func tick(t *testing.T, m *Machine, now time.Time, h map[string]Health) Outcome {
	t.Helper()
	out := m.Tick(now, health(h))
	if out.Transition != nil {
		if m.State() != "SWITCHING" {
			t.Fatalf("transition emitted but state is %s", m.State())
		}
		m.Settled()
	}
	return out
}

// ---- tests ----

func TestMachine_FailoverPicksFirstHealthyBackup(t *testing.T) {
	m := NewMachine(pol(time.Minute))
	now := time.Now()

	out := tick(t, m, now, map[string]Health{"p.example.com": Down, "b1.example.com": Down})
	if out.Transition == nil {
		t.Fatal("want failover transition")
	}
	if out.Transition.Kind != domain.EventFailover {
		t.Fatalf("want failover, got %s", out.Transition.Kind)
	}
	if got := m.Active().Host; got != "b2.example.com" {
		t.Fatalf("want first healthy backup b2, got %s", got)
	}
	if m.State() != "ON_BACKUP(1)" {
		t.Fatalf("state = %s", m.State())
	}
}

func TestMachine_FailbackAfterStabilityWindow(t *testing.T) {
	m := NewMachine(pol(5 * time.Minute))
	now := time.Now()

	tick(t, m, now, map[string]Health{"p.example.com": Down})
	if m.State() != "ON_BACKUP(0)" {
		t.Fatalf("state = %s", m.State())
	}

	// Primary recovers; window not yet satisfied.
	out := tick(t, m, now.Add(time.Minute), nil)
	if out.Transition != nil {
		t.Fatal("failback before window elapsed")
	}

	// Window satisfied.
	out = tick(t, m, now.Add(7*time.Minute), nil)
	if out.Transition == nil || out.Transition.Kind != domain.EventFailback {
		t.Fatalf("want failback, got %+v", out.Transition)
	}
	if got := m.Active().Host; got != "p.example.com" {
		t.Fatalf("active = %s", got)
	}
}

func TestMachine_StabilityClockResetsOnFlap(t *testing.T) {
	m := NewMachine(pol(5 * time.Minute))
	now := time.Now()

	tick(t, m, now, map[string]Health{"p.example.com": Down})

	// Up for 4 minutes, then a single down verdict.
	tick(t, m, now.Add(4*time.Minute), nil)
	tick(t, m, now.Add(5*time.Minute), map[string]Health{"p.example.com": Down})

	// Another 4 minutes of up is still short of a full window since the flap.
	out := tick(t, m, now.Add(9*time.Minute), nil)
	if out.Transition != nil {
		t.Fatal("flap must reset the stability clock")
	}

	out = tick(t, m, now.Add(15*time.Minute), nil)
	if out.Transition == nil || out.Transition.Kind != domain.EventFailback {
		t.Fatalf("want failback after full window, got %+v", out.Transition)
	}
}

func TestMachine_AllDownHoldsRecordAndAlertsOnce(t *testing.T) {
	m := NewMachine(pol(time.Minute))
	now := time.Now()
	allDown := map[string]Health{
		"p.example.com": Down, "b1.example.com": Down, "b2.example.com": Down,
	}

	out := tick(t, m, now, allDown)
	if out.Transition != nil {
		t.Fatal("record must not move with every target down")
	}
	if len(out.Alerts) != 1 || out.Alerts[0].Reason != AlertAllBackupsDown {
		t.Fatalf("want one all-down alert, got %+v", out.Alerts)
	}
	if m.State() != "ON_PRIMARY" {
		t.Fatalf("state = %s", m.State())
	}

	// Alert is latched: no repeat while the condition persists.
	out = tick(t, m, now.Add(time.Minute), allDown)
	if len(out.Alerts) != 0 {
		t.Fatalf("alert repeated: %+v", out.Alerts)
	}

	// A backup recovering clears the latch and fails over.
	out = tick(t, m, now.Add(2*time.Minute), map[string]Health{
		"p.example.com": Down, "b1.example.com": Down,
	})
	if out.Transition == nil || m.Active().Host != "b2.example.com" {
		t.Fatalf("want failover to b2, got %+v active=%s", out.Transition, m.Active().Host)
	}
}

func TestMachine_UnknownFreezesStateAndClock(t *testing.T) {
	m := NewMachine(pol(2 * time.Minute))
	now := time.Now()

	tick(t, m, now, map[string]Health{"p.example.com": Down})
	tick(t, m, now.Add(time.Minute), nil) // clock starts

	// Monitoring goes dark; one degraded alert, no movement, clock frozen.
	out := tick(t, m, now.Add(2*time.Minute), map[string]Health{"p.example.com": Unknown})
	if out.Transition != nil {
		t.Fatal("must not move on unknown health")
	}
	if len(out.Alerts) != 1 || out.Alerts[0].Reason != AlertDegraded {
		t.Fatalf("want one degraded alert, got %+v", out.Alerts)
	}
	out = tick(t, m, now.Add(3*time.Minute), map[string]Health{"p.example.com": Unknown})
	if len(out.Alerts) != 0 {
		t.Fatalf("degraded alert repeated: %+v", out.Alerts)
	}

	// Frozen clock: primaryUpSince survives the gap, so the window measured
	// from the original up transition still applies once data returns.
	out = tick(t, m, now.Add(4*time.Minute), nil)
	if out.Transition == nil || out.Transition.Kind != domain.EventFailback {
		t.Fatalf("want failback after data returns, got %+v", out.Transition)
	}
}

func TestMachine_BackupDownMovesToNextHealthy(t *testing.T) {
	m := NewMachine(pol(10 * time.Minute))
	now := time.Now()

	tick(t, m, now, map[string]Health{"p.example.com": Down})
	if m.Active().Host != "b1.example.com" {
		t.Fatalf("active = %s", m.Active().Host)
	}

	out := tick(t, m, now.Add(time.Minute), map[string]Health{
		"p.example.com": Down, "b1.example.com": Down,
	})
	if out.Transition == nil || out.Transition.Kind != domain.EventFailover {
		t.Fatalf("want failover to next backup, got %+v", out.Transition)
	}
	if m.Active().Host != "b2.example.com" {
		t.Fatalf("active = %s", m.Active().Host)
	}
}

func TestMachine_SwitchingHoldsUntilSettled(t *testing.T) {
	m := NewMachine(pol(time.Minute))
	now := time.Now()

	out := m.Tick(now, health(map[string]Health{"p.example.com": Down}))
	if out.Transition == nil || m.State() != "SWITCHING" {
		t.Fatalf("want pending switch, state = %s", m.State())
	}

	// Convergence still in flight: further ticks do nothing.
	out = m.Tick(now.Add(time.Minute), health(nil))
	if out.Transition != nil || len(out.Alerts) != 0 {
		t.Fatalf("switching state must hold, got %+v", out)
	}

	m.Settled()
	if m.State() != "ON_BACKUP(0)" {
		t.Fatalf("state after settle = %s", m.State())
	}
}

func TestMachine_UpdatePolicyShrunkenBackupsSnapsToPrimary(t *testing.T) {
	m := NewMachine(pol(time.Minute))
	now := time.Now()

	tick(t, m, now, map[string]Health{"p.example.com": Down, "b1.example.com": Down})
	if m.State() != "ON_BACKUP(1)" {
		t.Fatalf("state = %s", m.State())
	}

	p := pol(time.Minute)
	p.Backups = p.Backups[:1]
	m.UpdatePolicy(p)
	if m.State() != "ON_PRIMARY" {
		t.Fatalf("state after shrink = %s", m.State())
	}
}
