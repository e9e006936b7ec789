package policy

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

var recordTypes = map[string]bool{"A": true, "AAAA": true, "CNAME": true}

// Validate rejects malformed definitions before they can reach the probe
// and decision loop. All problems are reported at once.
func Validate(snap *domain.Snapshot) error {
	var errs error

	for id, g := range snap.Groups {
		if g.Threshold < 1 {
			errs = multierr.Append(errs, fmt.Errorf("group %q: threshold must be >= 1", id))
		}
		origins := len(g.Origins)
		if origins == 0 {
			origins = 3 // built-in default origin set
		}
		if g.Threshold > origins {
			errs = multierr.Append(errs, fmt.Errorf("group %q: threshold %d exceeds %d origins", id, g.Threshold, origins))
		}
	}

	groupOK := func(id string) bool {
		_, ok := snap.Groups[id]
		return ok
	}
	checkTarget := func(owner string, t domain.Target) {
		if t.Host == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: target host is empty", owner))
		}
		switch t.Scheme {
		case "tcp", "http", "https", "dns":
		default:
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown scheme %q", owner, t.Scheme))
		}
		if t.Scheme != "dns" && (t.Port < 1 || t.Port > 65535) {
			errs = multierr.Append(errs, fmt.Errorf("%s: port %d out of range", owner, t.Port))
		}
	}
	checkRecord := func(owner string, r domain.RecordRef) {
		if r.Zone == "" || r.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: record zone and name are required", owner))
		}
		if !recordTypes[strings.ToUpper(r.Type)] {
			errs = multierr.Append(errs, fmt.Errorf("%s: unsupported record type %q", owner, r.Type))
		}
	}

	for _, p := range snap.Failovers {
		owner := "failover " + p.ID
		if !groupOK(p.GroupID) {
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown monitoring group %q", owner, p.GroupID))
		}
		if len(p.Backups) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: at least one backup is required", owner))
		}
		if p.FailbackWindow < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: failback window cannot be negative", owner))
		}
		checkTarget(owner, p.Primary)
		for _, b := range p.Backups {
			checkTarget(owner, b)
		}
		checkRecord(owner, p.Record)
	}

	for _, p := range snap.LoadBalancers {
		owner := "load-balancer " + p.ID
		if !groupOK(p.GroupID) {
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown monitoring group %q", owner, p.GroupID))
		}
		if len(p.Pool) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: pool is empty", owner))
		}
		switch p.Algorithm {
		case domain.AlgoWeightedRandom, domain.AlgoWeightedRoundRobin:
		default:
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown algorithm %q", owner, p.Algorithm))
		}
		for _, wt := range p.Pool {
			if wt.Weight < 1 {
				errs = multierr.Append(errs, fmt.Errorf("%s: weight for %s must be > 0", owner, wt.Target))
			}
			checkTarget(owner, wt.Target)
		}
		checkRecord(owner, p.Record)
	}

	for _, m := range snap.Monitors {
		owner := "monitor " + m.ID
		if !groupOK(m.GroupID) {
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown monitoring group %q", owner, m.GroupID))
		}
		checkTarget(owner, m.Target)
	}

	return errs
}
