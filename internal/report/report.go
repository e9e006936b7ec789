package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hamed0406/dnsfailover/internal/eventlog"
)

// TargetShare is one target's share of a reporting window.
type TargetShare struct {
	Target  string        `json:"target"`
	Active  time.Duration `json:"active"`
	Percent float64       `json:"percent"`
}

type Report struct {
	PolicyID string        `json:"policy_id"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Shares   []TargetShare `json:"shares"`
}

// Build reconstructs "target X was active from t1 to t2" intervals by
// replaying the policy's events across the window and sums them per
// target. Replaying instead of keeping running counters lets any
// historical window be queried.
func Build(ctx context.Context, store eventlog.Store, policyID string, start, end time.Time) (*Report, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("report window must end after it starts")
	}

	events, err := store.Range(ctx, policyID, start, end)
	if err != nil {
		return nil, err
	}

	// Whoever was active when the window opened is found just before it.
	active := ""
	if prev, err := store.LastBefore(ctx, policyID, start); err != nil {
		return nil, err
	} else if prev != nil {
		active = prev.NewTarget
	}

	durations := make(map[string]time.Duration)
	cursor := start
	for _, e := range events {
		if e.NewTarget == "" {
			continue
		}
		if active != "" {
			durations[active] += e.At.Sub(cursor)
		}
		active = e.NewTarget
		cursor = e.At
	}
	if active != "" {
		durations[active] += end.Sub(cursor)
	}

	window := end.Sub(start)
	rep := &Report{PolicyID: policyID, Start: start, End: end}
	for target, d := range durations {
		rep.Shares = append(rep.Shares, TargetShare{
			Target:  target,
			Active:  d,
			Percent: 100 * float64(d) / float64(window),
		})
	}
	sort.Slice(rep.Shares, func(i, j int) bool { return rep.Shares[i].Target < rep.Shares[j].Target })
	return rep, nil
}
