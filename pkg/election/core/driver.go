package core

import (
	"math/rand"
	"time"

	"github.com/rafaelcarvalho/fireelect/pkg/election/definition"
	"github.com/rafaelcarvalho/fireelect/pkg/election/types"
)

// Backoff returns the delay the driver sleeps after a rejected request
// before retrying, breaking root-contention symmetry. The default is a
// uniform draw from [10ms, 100ms) — larger than a loopback or LAN
// round-trip, smaller than anything a human would notice.
type Backoff func() time.Duration

// DefaultBackoff is the Backoff used when none is supplied.
func DefaultBackoff() time.Duration {
	return 10*time.Millisecond + time.Duration(rand.Int63n(90))*time.Millisecond
}

// Dialer is the narrow capability the driver needs to establish an
// outbound channel to a candidate parent before requesting it, on demand.
type Dialer interface {
	EnsureOutbound(peerID int, addr types.NodeAddress) error
}

// Driver runs the per-process driver goroutine: it owns no state of its
// own beyond what it needs to drive the loop, reading and mutating the
// shared StateMachine under its lock exactly like any other caller.
type Driver struct {
	sm       *StateMachine
	topology *types.Topology
	dialer   Dialer
	sender   Sender
	log      types.Logger
	backoff  Backoff
}

// NewDriver builds a Driver for sm operating over topology, using dialer to
// lazily open channels to candidate parents and sender to emit requests. A
// nil backoff falls back to DefaultBackoff.
func NewDriver(sm *StateMachine, topology *types.Topology, dialer Dialer, sender Sender, log types.Logger, backoff Backoff) *Driver {
	if backoff == nil {
		backoff = DefaultBackoff
	}
	return &Driver{sm: sm, topology: topology, dialer: dialer, sender: sender, log: log, backoff: backoff}
}

// Run executes the driver loop to completion: this node either discovers
// it is the leader or has its request accepted by its parent, and then
// returns with Done true. If dialing or sending to the candidate parent
// fails, the error is logged and Run returns with Done still false.
func (d *Driver) Run() {
	sm := d.sm
	sm.mu.Lock()
	for !sm.state.IsLeaf && len(sm.state.PossibleParents) > 1 {
		sm.ableToRequest.Wait()
	}
	sm.mu.Unlock()

	for {
		sm.mu.Lock()
		if len(sm.state.PossibleParents) == 0 {
			sm.state.LeaderID = sm.selfID
			sm.state.Done = true
			children := make([]int, 0, len(sm.state.Children))
			for c := range sm.state.Children {
				children = append(children, c)
			}
			sm.mu.Unlock()

			d.log.Infof("node %d is the leader, correlation=%s", sm.selfID, definition.NewCorrelationID())

			// Flood the announcement to every child before signaling
			// resultKnown, so a caller unblocked by AwaitResult never
			// races ahead and tears down the transport while children
			// are still waiting on their own root's announcement.
			for _, c := range children {
				d.sendAnnouncement(c, sm.selfID)
			}

			sm.mu.Lock()
			sm.resultKnown.Broadcast()
			sm.mu.Unlock()
			return
		}

		var candidate int
		for p := range sm.state.PossibleParents {
			candidate = p
			break
		}
		sm.state.Awaiting = &candidate
		sm.mu.Unlock()

		if err := d.dialer.EnsureOutbound(candidate, d.topology.Neighbors[candidate]); err != nil {
			d.log.Errorf("failed dialing candidate parent %d: %v", candidate, err)
			return
		}
		if err := d.sender.Send(candidate, types.ParentRequest, sm.selfID); err != nil {
			d.log.Errorf("failed requesting parent %d: %v", candidate, err)
			return
		}

		sm.mu.Lock()
		for sm.state.LastParentResponse == nil {
			sm.responseArrived.Wait()
		}
		accepted := *sm.state.LastParentResponse
		sm.state.LastParentResponse = nil
		sm.state.Awaiting = nil
		sm.mu.Unlock()

		if accepted {
			sm.mu.Lock()
			sm.state.Done = true
			sm.mu.Unlock()
			return
		}

		time.Sleep(d.backoff())
	}
}

func (d *Driver) sendAnnouncement(peerID, leaderID int) {
	if err := d.sender.Send(peerID, types.LeaderAnnouncement, leaderID); err != nil {
		d.log.Errorf("failed announcing leader %d to child %d: %v", leaderID, peerID, err)
	}
}
