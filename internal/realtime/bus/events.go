// Package bus implements C8: a typed publish/subscribe channel for
// coordinator state-change events. Two backends satisfy the same Bus
// interface: an in-process hub for single-instance deployments, and a
// Redis-backed bus that fans events out across coordinator replicas.
package bus

import "time"

type EventType string

const (
	EventNodeChanged            EventType = "NodeChanged"
	EventJobChanged              EventType = "JobChanged"
	EventFolderProgressChanged   EventType = "FolderProgressChanged"
	EventLockChanged             EventType = "LockChanged"
)

type NodeChangeKind string

const (
	NodeRegistered       NodeChangeKind = "Registered"
	NodeHeartbeatLost    NodeChangeKind = "HeartbeatLost"
	NodeHeartbeatRestored NodeChangeKind = "HeartbeatRestored"
)

type LockChangeKind string

const (
	LockAcquired LockChangeKind = "Acquired"
	LockReleased LockChangeKind = "Released"
	LockExpired  LockChangeKind = "Expired"
	LockReset    LockChangeKind = "Reset"
)

// NodeChanged is published whenever a node's liveness state changes.
type NodeChanged struct {
	NodeId string         `json:"nodeId"`
	Kind   NodeChangeKind `json:"kind"`
}

// JobChanged is published on every committed job status transition.
type JobChanged struct {
	JobId      int64  `json:"jobId"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
}

// FolderProgressChanged is published on every committed folder-progress
// update.
type FolderProgressChanged struct {
	TaskId     int64   `json:"taskId"`
	FolderPath string  `json:"folderPath"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
}

// LockChanged is published on every committed lock-table mutation.
type LockChanged struct {
	Path string         `json:"path"`
	Kind LockChangeKind `json:"kind"`
}

// Event is the envelope carried over the wire to subscribers, mirroring the
// `{type, payload, ts}` frame shape required by §6's real-time channel.
type Event struct {
	ID      string      `json:"id"`
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
	Ts      time.Time   `json:"ts"`
}
