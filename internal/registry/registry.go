package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/logging"
)

// Registry is the process-wide, in-memory authoritative store of service and
// group records. One mutual-exclusion lock guards all mutations; network I/O
// never happens while it is held (spec §5).
type Registry struct {
	mu       sync.Mutex
	services map[string]*Service
	groups   map[string]*Group
	events   *eventBus
	log      *logging.Logger
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		services: make(map[string]*Service),
		groups:   make(map[string]*Group),
		events:   newEventBus(),
		log:      logging.With("registry"),
	}
}

// Register inserts rec; error if its ID collides with an existing record.
func (r *Registry) Register(rec Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[rec.ID]; exists {
		return apierr.New(apierr.KindValidation, fmt.Sprintf("service id already registered: %s", rec.ID))
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	cp := rec
	r.services[rec.ID] = &cp
	return nil
}

// Get returns the service record for id.
func (r *Registry) Get(id string) (Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[id]
	if !ok {
		return Service{}, apierr.New(apierr.KindNotFound, fmt.Sprintf("service not found: %s", id))
	}
	return *svc, nil
}

// Find returns every service matching predicate.
func (r *Registry) Find(predicate func(Service) bool) []Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Service, 0)
	for _, svc := range r.services {
		if predicate == nil || predicate(*svc) {
			out = append(out, *svc)
		}
	}
	return out
}

// All returns every service record.
func (r *Registry) All() []Service {
	return r.Find(nil)
}

// UpdateStatus validates and applies a status transition per the §4.8 state
// machine. No-op if current equals new; InvalidTransition otherwise.
// Endpoint is cleared whenever the service leaves "running".
func (r *Registry) UpdateStatus(id string, newStatus Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[id]
	if !ok {
		return apierr.New(apierr.KindNotFound, fmt.Sprintf("service not found: %s", id))
	}

	if svc.Status == newStatus {
		return nil
	}
	if !allowed(svc.Status, newStatus) {
		return apierr.New(apierr.KindInvalidTransition, fmt.Sprintf(
			"cannot transition service %s from %s to %s", id, svc.Status, newStatus))
	}

	svc.Status = newStatus
	if newStatus != StatusRunning {
		svc.Endpoint = ""
	}
	r.events.publish(StatusEvent{ServiceID: id, Status: newStatus})
	return nil
}

// SetEndpoint records the resolved endpoint for a running service.
func (r *Registry) SetEndpoint(id, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[id]
	if !ok {
		return apierr.New(apierr.KindNotFound, fmt.Sprintf("service not found: %s", id))
	}
	if svc.Status != StatusRunning {
		return apierr.New(apierr.KindNotReady, fmt.Sprintf("service %s is not running", id))
	}
	svc.Endpoint = endpoint
	return nil
}

// Remove deletes a service record. Allowed only from a terminal state.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[id]
	if !ok {
		return apierr.New(apierr.KindNotFound, fmt.Sprintf("service not found: %s", id))
	}
	if !svc.Status.Terminal() {
		return apierr.New(apierr.KindInvalidTransition, fmt.Sprintf(
			"cannot remove service %s in non-terminal status %s", id, svc.Status))
	}
	delete(r.services, id)
	return nil
}

// RegisterGroup inserts a new service group record.
func (r *Registry) RegisterGroup(grp Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[grp.GroupID]; exists {
		return apierr.New(apierr.KindValidation, fmt.Sprintf("group id already registered: %s", grp.GroupID))
	}
	cp := grp
	r.groups[grp.GroupID] = &cp
	return nil
}

// GetGroup returns the group record for gid.
func (r *Registry) GetGroup(gid string) (Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	grp, ok := r.groups[gid]
	if !ok {
		return Group{}, apierr.New(apierr.KindNotFound, fmt.Sprintf("group not found: %s", gid))
	}
	return *grp, nil
}

// AdvanceCursor atomically advances a group's round-robin cursor and returns
// the member index it now points at.
func (r *Registry) AdvanceCursor(gid string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	grp, ok := r.groups[gid]
	if !ok {
		return 0, apierr.New(apierr.KindNotFound, fmt.Sprintf("group not found: %s", gid))
	}
	if len(grp.MemberServiceIDs) == 0 {
		return 0, apierr.New(apierr.KindAllReplicasDown, fmt.Sprintf("group %s has no members", gid))
	}
	idx := int(grp.RoundRobinCursor % uint64(len(grp.MemberServiceIDs)))
	grp.RoundRobinCursor++
	return idx, nil
}

// GroupStatus aggregates member statuses per spec §4.8: running if every
// member is running, partial if some are running and some not, else the
// uniform status when every member agrees, and partial when they disagree.
func (r *Registry) GroupStatus(gid string) (string, error) {
	grp, err := r.GetGroup(gid)
	if err != nil {
		return "", err
	}

	members := r.Find(func(s Service) bool { return s.GroupID == gid })
	if len(members) == 0 {
		return "", apierr.New(apierr.KindNotFound, fmt.Sprintf("group %s has no members", gid))
	}

	counts := make(map[Status]int)
	for _, m := range members {
		counts[m.Status]++
	}

	if counts[StatusRunning] > 0 {
		if counts[StatusRunning] == len(members) {
			return string(StatusRunning), nil
		}
		return "partial", nil
	}

	for status, count := range counts {
		if count == len(members) {
			return string(status), nil
		}
	}
	return "partial", nil
}
