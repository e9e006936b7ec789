package domain

// Rotation algorithms accepted by LoadBalancerPolicy.
const (
	AlgoWeightedRandom     = "weighted-random"
	AlgoWeightedRoundRobin = "weighted-round-robin"
)

// FailoverPolicy routes one DNS record at the primary target while healthy
// and at the first healthy backup (by list order) while not.
type FailoverPolicy struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Enabled        bool      `json:"enabled" yaml:"enabled"`
	Record         RecordRef `json:"record" yaml:"record"`
	Primary        Target    `json:"primary" yaml:"primary"`
	Backups        []Target  `json:"backups" yaml:"backups"`
	GroupID        string    `json:"group_id" yaml:"group_id"`
	FailbackWindow Duration  `json:"failback_window" yaml:"failback_window"`
	Recipients     []string  `json:"recipients" yaml:"recipients"`
}

// WeightedTarget is one pool member. Weight must be > 0; a zero-weight
// member is rejected at load, not silently skipped.
type WeightedTarget struct {
	Target Target `json:"target" yaml:"target"`
	Weight int    `json:"weight" yaml:"weight"`
}

// LoadBalancerPolicy rotates one DNS record across the healthy members of a
// weighted pool.
type LoadBalancerPolicy struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Enabled     bool             `json:"enabled" yaml:"enabled"`
	Record      RecordRef        `json:"record" yaml:"record"`
	Pool        []WeightedTarget `json:"pool" yaml:"pool"`
	GroupID     string           `json:"group_id" yaml:"group_id"`
	Algorithm   string           `json:"algorithm" yaml:"algorithm"`
	RotateEvery Duration         `json:"rotate_every" yaml:"rotate_every"`
	Recipients  []string         `json:"recipients" yaml:"recipients"`
}

// StandaloneMonitor probes a target and alerts on transitions. It never
// mutates DNS.
type StandaloneMonitor struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Target     Target   `json:"target" yaml:"target"`
	GroupID    string   `json:"group_id" yaml:"group_id"`
	Recipients []string `json:"recipients" yaml:"recipients"`
}

// Snapshot is the consistent view of all policy definitions the engine
// consumes at the start of a tick. Live edits land in the next snapshot.
type Snapshot struct {
	Version       int64                      `json:"version"`
	Groups        map[string]MonitoringGroup `json:"groups"`
	Failovers     []FailoverPolicy           `json:"failovers"`
	LoadBalancers []LoadBalancerPolicy       `json:"load_balancers"`
	Monitors      []StandaloneMonitor        `json:"monitors"`
}
