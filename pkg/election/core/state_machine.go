// Package core implements the election state machine: the message handler
// (run on reader goroutines) and the driver goroutine that drives this
// node's own progress. A single coarse lock guards all protocol state;
// narrow Sender/Handler capabilities avoid a cyclic dependency with the
// transport layer, and condition variables back the suspension points.
package core

import (
	"sync"

	"github.com/rafaelcarvalho/fireelect/pkg/election/definition"
	"github.com/rafaelcarvalho/fireelect/pkg/election/metrics"
	"github.com/rafaelcarvalho/fireelect/pkg/election/types"
)

// Sender is the narrow capability the state machine needs from the
// transport layer: send one frame to one peer. Implemented by
// transport.Manager.
type Sender interface {
	Send(peerID int, kind types.Kind, payload int) error
}

// outgoing is a frame computed while the state lock is held and sent only
// after it is released, so a slow or absent peer on the send side never
// stalls another handler waiting on the same lock.
type outgoing struct {
	peerID  int
	kind    types.Kind
	payload int
}

// StateMachine owns the per-process ElectionState and every condition
// variable the driver suspends on. All reads and writes of the guarded
// fields happen under mu.
type StateMachine struct {
	mu sync.Mutex

	state *types.ElectionState

	// ableToRequest is signaled when the driver may send its next
	// PARENT_REQUEST: either this node is a leaf, or PossibleParents has
	// shrunk to at most one candidate.
	ableToRequest *sync.Cond

	// responseArrived is signaled when LastParentResponse has been set
	// by the handler (ack, reject, or contention resolution).
	responseArrived *sync.Cond

	// resultKnown is signaled once LeaderID has been written.
	resultKnown *sync.Cond

	selfID  int
	sender  Sender
	log     types.Logger
	metrics *metrics.Collectors
}

// New builds a StateMachine for selfID with the given neighbor set. sender
// is used to emit PARENT_ACK/ERROR/LEADER_ANNOUNCEMENT frames from inside
// the message handler (rejections are always sent as ERROR); the driver's own sends go through the
// same Sender.
func New(selfID int, neighborIDs []int, sender Sender, log types.Logger, collectors *metrics.Collectors) *StateMachine {
	sm := &StateMachine{
		state:   types.NewElectionState(neighborIDs),
		selfID:  selfID,
		sender:  sender,
		log:     log,
		metrics: collectors,
	}
	sm.ableToRequest = sync.NewCond(&sm.mu)
	sm.responseArrived = sync.NewCond(&sm.mu)
	sm.resultKnown = sync.NewCond(&sm.mu)
	return sm
}

// HandleMessage is the state machine's single entry point for inbound
// protocol traffic. It runs on whichever reader goroutine received the
// frame. State is mutated under the lock; any frames the mutation implies
// are sent only after the lock is released, so a slow or absent peer on the
// send side never stalls other handlers.
func (sm *StateMachine) HandleMessage(peerID int, kind types.Kind, payload int) {
	sm.mu.Lock()
	var toSend []outgoing
	switch kind {
	case types.ParentRequest:
		toSend = sm.onParentRequest(peerID)
	case types.ParentAck:
		sm.onResponse(true)
	case types.ParentReject, types.Error:
		sm.onResponse(false)
	case types.LeaderAnnouncement:
		toSend = sm.onLeaderAnnouncement(payload)
	default:
		sm.log.Warnf("peer %d sent unknown kind %q", peerID, kind)
	}
	sm.mu.Unlock()

	for _, out := range toSend {
		sm.send(out.peerID, out.kind, out.payload)
	}
}

// onParentRequest handles an inbound PARENT_REQUEST: contention detection,
// accept, or reject. Called with mu held.
func (sm *StateMachine) onParentRequest(from int) []outgoing {
	if sm.state.Awaiting != nil && *sm.state.Awaiting == from {
		// Root contention: we have an outstanding request to `from`
		// and `from` is simultaneously requesting from us. Reject the
		// peer and unblock our own driver so it backs off and retries.
		if sm.metrics != nil {
			sm.metrics.Contentions.Inc()
		}
		rejected := false
		sm.state.LastParentResponse = &rejected
		sm.state.Awaiting = nil
		sm.responseArrived.Signal()
		return []outgoing{{from, types.Error, sm.selfID}}
	}

	if _, possible := sm.state.PossibleParents[from]; possible {
		delete(sm.state.PossibleParents, from)
		sm.state.Children[from] = struct{}{}
		if len(sm.state.PossibleParents) <= 1 {
			sm.ableToRequest.Signal()
		}
		return []outgoing{{from, types.ParentAck, sm.selfID}}
	}

	return []outgoing{{from, types.Error, sm.selfID}}
}

// onResponse implements the PARENT_ACK / PARENT_REJECT / ERROR branches.
// Called with mu held.
func (sm *StateMachine) onResponse(accepted bool) {
	sm.state.LastParentResponse = &accepted
	sm.responseArrived.Signal()
}

// onLeaderAnnouncement implements the LEADER_ANNOUNCEMENT branch: record
// the leader, flood to every child, and wake any caller blocked in
// AwaitResult. Called with mu held.
func (sm *StateMachine) onLeaderAnnouncement(leaderID int) []outgoing {
	if sm.state.LeaderID == -1 {
		sm.state.LeaderID = leaderID
		sm.log.Infof("leader %d announced, correlation=%s", leaderID, definition.NewCorrelationID())
	}
	sm.state.Done = true
	var toSend []outgoing
	for child := range sm.state.Children {
		toSend = append(toSend, outgoing{child, types.LeaderAnnouncement, leaderID})
	}
	sm.resultKnown.Broadcast()
	return toSend
}

// send emits a single frame. Never called with mu held.
func (sm *StateMachine) send(peerID int, kind types.Kind, payload int) {
	if err := sm.sender.Send(peerID, kind, payload); err != nil {
		sm.log.Errorf("failed sending %s to peer %d: %v", kind, peerID, err)
	}
}

// WaitForLeader blocks until LeaderID has been written and returns it. It
// is the blocking primitive behind the facade's AwaitResult.
func (sm *StateMachine) WaitForLeader() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for sm.state.LeaderID == -1 {
		sm.resultKnown.Wait()
	}
	return sm.state.LeaderID
}

// Snapshot returns point-in-time copies of the fields interesting to
// observers (tests, metrics) without exposing the guarded state directly.
func (sm *StateMachine) Snapshot() (leaderID int, done bool, children []int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for c := range sm.state.Children {
		children = append(children, c)
	}
	return sm.state.LeaderID, sm.state.Done, children
}
