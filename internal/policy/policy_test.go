package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

func validSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Groups: map[string]domain.MonitoringGroup{
			"grp-1": {ID: "grp-1", Threshold: 2, Origins: []domain.Origin{
				{Name: "a"}, {Name: "b"}, {Name: "c"},
			}},
		},
		Failovers: []domain.FailoverPolicy{{
			ID: "fo-1", GroupID: "grp-1",
			Record:  domain.RecordRef{Zone: "example.com", Name: "www.example.com", Type: "A"},
			Primary: domain.Target{Host: "p", Port: 443, Scheme: "https"},
			Backups: []domain.Target{{Host: "b", Port: 443, Scheme: "https"}},
		}},
		LoadBalancers: []domain.LoadBalancerPolicy{{
			ID: "lb-1", GroupID: "grp-1", Algorithm: domain.AlgoWeightedRoundRobin,
			Record: domain.RecordRef{Zone: "example.com", Name: "pool.example.com", Type: "A"},
			Pool: []domain.WeightedTarget{
				{Target: domain.Target{Host: "a", Port: 443, Scheme: "https"}, Weight: 2},
				{Target: domain.Target{Host: "b", Port: 443, Scheme: "https"}, Weight: 1},
			},
		}},
		Monitors: []domain.StandaloneMonitor{{
			ID: "mon-1", GroupID: "grp-1",
			Target: domain.Target{Host: "db", Port: 5432, Scheme: "tcp"},
		}},
	}
}

func TestValidate_AcceptsWellFormedSnapshot(t *testing.T) {
	if err := Validate(validSnapshot()); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	snap := validSnapshot()
	g := snap.Groups["grp-1"]
	g.Threshold = 5 // exceeds 3 origins
	snap.Groups["grp-1"] = g
	snap.Failovers[0].Backups = nil
	snap.Failovers[0].Record.Type = "TXT"
	snap.LoadBalancers[0].Pool[1].Weight = 0
	snap.LoadBalancers[0].Algorithm = "round-robin"
	snap.Monitors[0].GroupID = "missing"

	err := Validate(snap)
	if err == nil {
		t.Fatal("want errors")
	}
	for _, want := range []string{
		"threshold 5 exceeds 3 origins",
		"at least one backup",
		`unsupported record type "TXT"`,
		"weight for",
		`unknown algorithm "round-robin"`,
		`unknown monitoring group "missing"`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in: %v", want, err)
		}
	}
}

func TestValidate_RejectsBadTargets(t *testing.T) {
	snap := validSnapshot()
	snap.Failovers[0].Primary = domain.Target{Host: "", Port: 0, Scheme: "gopher"}

	err := Validate(snap)
	if err == nil {
		t.Fatal("want errors")
	}
	for _, want := range []string{"host is empty", `unknown scheme "gopher"`, "port 0 out of range"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in: %v", want, err)
		}
	}
}

const policyYAML = `
monitoring_groups:
  - name: global
    threshold: 2
    origins:
      - name: us-east
      - name: eu-west
      - name: ap-south
failover_policies:
  - name: web
    enabled: true
    group_id: placeholder
    record: {zone: example.com, name: www.example.com, type: A}
    primary: {host: 203.0.113.10, port: 443, scheme: https}
    backups:
      - {host: 203.0.113.20, port: 443, scheme: https}
    failback_window: 5m
`

func writePolicyFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.yaml")
	if err := os.WriteFile(path, []byte(policyYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYAMLStore_AssignsStableIDs(t *testing.T) {
	// group_id must point at the group, but the group id is generated; patch
	// the file after the first load to use the assigned id.
	path := writePolicyFile(t)
	store := NewYAMLStore(path)

	_, err := store.Load(context.Background())
	if err == nil {
		t.Fatal("placeholder group ref should fail validation")
	}

	// Ids were still assigned and written back.
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), "id:") {
		t.Fatalf("ids not written back:\n%s", raw)
	}
}

func TestYAMLStore_LoadsAndCaches(t *testing.T) {
	path := writePolicyFile(t)
	patched := strings.Replace(policyYAML, "group_id: placeholder", "group_id: grp-global", 1)
	patched = strings.Replace(patched, "- name: global", "- id: grp-global\n    name: global", 1)
	if err := os.WriteFile(path, []byte(patched), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewYAMLStore(path)
	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Failovers) != 1 || snap.Failovers[0].ID == "" {
		t.Fatalf("failovers = %+v", snap.Failovers)
	}
	if snap.Failovers[0].FailbackWindow.Std().Minutes() != 5 {
		t.Fatalf("failback window = %s", snap.Failovers[0].FailbackWindow.Std())
	}
	if _, ok := snap.Groups["grp-global"]; !ok {
		t.Fatal("group not indexed by id")
	}

	// Unchanged mtime returns the same snapshot.
	again, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again != snap {
		t.Fatal("cache miss without a file change")
	}
}
