// Package replica implements the replica-group coordinator and weighted
// round-robin load balancer from spec §4.8: request routing across the
// members of a service group with circuit-breaker-style unhealthy marking.
package replica

import (
	"context"
	"sync"
	"time"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/logging"
	"github.com/clusterinfer/orchestrator/internal/registry"
)

const (
	unhealthyWindow     = 30 * time.Second
	unhealthyFailures    = 2
	retestInterval      = 15 * time.Second
)

type health struct {
	consecutiveFailures int
	firstFailureAt      time.Time
	unhealthySince      time.Time
	unhealthy           bool
}

// Coordinator routes requests to a replica group's healthy members using
// round-robin order, skipping circuit-broken replicas.
type Coordinator struct {
	reg *registry.Registry
	log *logging.Logger

	mu     sync.Mutex
	health map[string]*health // service id -> health
}

func New(reg *registry.Registry) *Coordinator {
	return &Coordinator{
		reg:    reg,
		log:    logging.With("replica"),
		health: make(map[string]*health),
	}
}

// Call attempts fn against one member of group gid, walking the round-robin
// order and skipping unhealthy members (unless a retest is due), until one
// call succeeds or every member has been tried once. fn should return a
// transport-classified error so failure marking is accurate; any error it
// returns is treated as a transport failure against that replica.
func (c *Coordinator) Call(ctx context.Context, gid string, fn func(ctx context.Context, svcID string) error) error {
	grp, err := c.reg.GetGroup(gid)
	if err != nil {
		return err
	}
	members := grp.MemberServiceIDs
	if len(members) == 0 {
		return apierr.New(apierr.KindAllReplicasDown, "group has no members")
	}

	attempted := make(map[string]bool, len(members))
	for tries := 0; tries < len(members); tries++ {
		idx, err := c.reg.AdvanceCursor(gid)
		if err != nil {
			return err
		}
		svcID := members[idx]
		if attempted[svcID] {
			continue
		}
		attempted[svcID] = true

		if !c.eligible(svcID) {
			continue
		}

		callErr := fn(ctx, svcID)
		if callErr == nil {
			c.markHealthy(svcID)
			return nil
		}
		c.markFailure(svcID)
	}

	return apierr.New(apierr.KindAllReplicasDown, "all replicas in group unhealthy or exhausted")
}

// eligible reports whether svcID should be attempted: healthy members
// always are; unhealthy members are retried once their retest interval has
// elapsed.
func (c *Coordinator) eligible(svcID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.health[svcID]
	if !ok || !h.unhealthy {
		return true
	}
	return time.Since(h.unhealthySince) >= retestInterval
}

func (c *Coordinator) markHealthy(svcID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.health, svcID)
}

func (c *Coordinator) markFailure(svcID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.health[svcID]
	now := time.Now()
	if !ok || now.Sub(h.firstFailureAt) > unhealthyWindow {
		h = &health{firstFailureAt: now}
	}
	h.consecutiveFailures++
	if h.consecutiveFailures >= unhealthyFailures {
		h.unhealthy = true
		h.unhealthySince = now
		c.log.Warnf("replica %s marked unhealthy after %d failures", svcID, h.consecutiveFailures)
	}
	c.health[svcID] = h
}

// GroupStatus aggregates member statuses: running if every member is running
// (partial if only some are), else the uniform status when every member
// agrees, and partial when they disagree.
func (c *Coordinator) GroupStatus(gid string) (string, error) {
	return c.reg.GroupStatus(gid)
}
