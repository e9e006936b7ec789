package domain

import "time"

type EventKind string

const (
	EventFailover       EventKind = "failover"
	EventFailback       EventKind = "failback"
	EventRotationSwitch EventKind = "rotation-switch"
	EventMonitorUp      EventKind = "monitor-up"
	EventMonitorDown    EventKind = "monitor-down"
)

// Event records one state transition. Append-only, ordered by timestamp;
// the id is assigned by the event store and is monotonic per store.
type Event struct {
	ID        int64     `json:"id"`
	At        time.Time `json:"at"`
	PolicyID  string    `json:"policy_id"`
	Kind      EventKind `json:"kind"`
	OldTarget string    `json:"old_target,omitempty"`
	NewTarget string    `json:"new_target,omitempty"`
}
