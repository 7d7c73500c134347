// Package registry is the service registry: the process-wide, in-memory,
// authoritative map of service and service-group records (spec §3, §4.5).
package registry

import "time"

// Status is a service's lifecycle state. Transitions are validated against
// the state machine in transitions.go (spec §4.8).
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfiguring Status = "configuring"
	StatusRunning     Status = "running"
	StatusCancelled   Status = "cancelled"
	StatusFailed      Status = "failed"
	StatusCompleted   Status = "completed"
)

// Terminal reports whether s is one of {cancelled, completed, failed}.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusFailed, StatusCompleted:
		return true
	default:
		return false
	}
}

// Service is a single running instance of a recipe. For a standalone
// service ID and JobID are the same scheduler job id. For a replica-group
// member, ID is the synthetic "<job-id>-r<index>" record key while JobID
// is the real scheduler job id shared by every member of the group (all
// replicas of a group run inside one sbatch submission, distinguished by
// CUDA_VISIBLE_DEVICES/port offset rather than separate jobs) — any call
// into jobclient must use JobID, never ID.
type Service struct {
	ID            string
	JobID         string
	Name          string
	RecipeName    string
	Category      string
	Status        Status
	Config        map[string]any // merged deployment spec, JSON-shaped
	CreatedAt     time.Time
	GroupID       string // optional: set when part of a replica group
	ReplicaIndex  int    // meaningful only when GroupID != ""
	HasReplicaIdx bool
	Endpoint      string // "" while Status != running
}

// Group is a service group record: N co-located replicas sharing one
// scheduler job and one recipe.
type Group struct {
	GroupID           string
	RecipeName        string
	Config            map[string]any
	ReplicasPerNode   int
	MemberServiceIDs  []string
	BasePort          int
	RoundRobinCursor  uint64
}
