package domain

import (
	"fmt"
	"strings"
	"time"
)

// TargetKey uniquely identifies a probed endpoint: host, port and scheme.
type TargetKey string

// Target is a probe endpoint. Targets are derived by flattening policy
// definitions, never authored directly.
type Target struct {
	Host   string `json:"host" yaml:"host"`
	Port   int    `json:"port" yaml:"port"`
	Scheme string `json:"scheme" yaml:"scheme"` // "tcp", "http", "https" or "dns"
}

func (t Target) Key() TargetKey {
	return TargetKey(fmt.Sprintf("%s:%d/%s", strings.ToLower(t.Host), t.Port, t.Scheme))
}

func (t Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

func (t Target) String() string { return string(t.Key()) }

// Origin is one probe vantage in a monitoring group. For "dns" targets the
// Resolver address is queried directly; for tcp/http targets origins run
// independent probes from this host.
type Origin struct {
	Name     string `json:"name" yaml:"name"`
	Resolver string `json:"resolver,omitempty" yaml:"resolver,omitempty"`
}

// MonitoringGroup is a reusable set of probe origins plus the count of
// origins that must fail before a target is declared down. Immutable while a
// probe round is in flight.
type MonitoringGroup struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Origins   []Origin `json:"origins" yaml:"origins"`
	Threshold int      `json:"threshold" yaml:"threshold"`
}

// OriginResult is one origin's sub-probe outcome.
type OriginResult struct {
	Origin    string  `json:"origin"`
	OK        bool    `json:"ok"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// HealthVerdict is the aggregate outcome of one probe round for one
// (target, group) pair. Down iff failed origins >= the group threshold.
type HealthVerdict struct {
	Target    TargetKey      `json:"target"`
	GroupID   string         `json:"group_id"`
	Up        bool           `json:"up"`
	Origins   []OriginResult `json:"origins"`
	CheckedAt time.Time      `json:"checked_at"`
}

// FailedOrigins counts sub-probes that did not succeed.
func (v HealthVerdict) FailedOrigins() int {
	n := 0
	for _, o := range v.Origins {
		if !o.OK {
			n++
		}
	}
	return n
}

// RecordRef names a DNS record inside a provider zone.
type RecordRef struct {
	Zone   string `json:"zone" yaml:"zone"`
	Name   string `json:"name" yaml:"name"`
	Type   string `json:"type" yaml:"type"` // "A", "AAAA" or "CNAME"
	ZoneID string `json:"zone_id,omitempty" yaml:"zone_id,omitempty"`
}

func (r RecordRef) Key() string {
	return strings.ToLower(r.Zone + "/" + r.Name + "/" + r.Type)
}
