package core

import (
	"sync"
	"testing"

	"github.com/rafaelcarvalho/fireelect/pkg/election/definition"
	"github.com/rafaelcarvalho/fireelect/pkg/election/types"
)

// recordingSender is a Sender that records every frame instead of putting
// it on a socket, for asserting what the handler decided to send.
type recordingSender struct {
	mu   sync.Mutex
	sent []outgoing
}

func (s *recordingSender) Send(peerID int, kind types.Kind, payload int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, outgoing{peerID, kind, payload})
	return nil
}

func (s *recordingSender) snapshot() []outgoing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outgoing, len(s.sent))
	copy(out, s.sent)
	return out
}

func newTestStateMachine(selfID int, neighbors []int) (*StateMachine, *recordingSender) {
	sender := &recordingSender{}
	sm := New(selfID, neighbors, sender, definition.NewDefaultLogger(selfID), nil)
	return sm, sender
}

func TestOnParentRequestAccepted(t *testing.T) {
	sm, sender := newTestStateMachine(1, []int{2, 3})

	sm.HandleMessage(2, types.ParentRequest, 2)

	leaderID, _, children := sm.Snapshot()
	if leaderID != -1 {
		t.Fatalf("leaderID = %d, want -1 before election finishes", leaderID)
	}
	if len(children) != 1 || children[0] != 2 {
		t.Fatalf("children = %v, want [2]", children)
	}

	sent := sender.snapshot()
	if len(sent) != 1 || sent[0] != (outgoing{2, types.ParentAck, 1}) {
		t.Fatalf("sent = %v, want one ParentAck to peer 2 from self 1", sent)
	}
}

func TestOnParentRequestRejectedWhenNotACandidate(t *testing.T) {
	sm, sender := newTestStateMachine(1, []int{2})

	// peer 3 is not a neighbor, so it is never in PossibleParents.
	sm.HandleMessage(3, types.ParentRequest, 3)

	sent := sender.snapshot()
	if len(sent) != 1 || sent[0] != (outgoing{3, types.Error, 1}) {
		t.Fatalf("sent = %v, want one Error to peer 3 from self 1", sent)
	}
}

func TestRootContentionRejectsAndUnblocksOwnDriver(t *testing.T) {
	sm, sender := newTestStateMachine(1, []int{2})

	candidate := 2
	sm.mu.Lock()
	sm.state.Awaiting = &candidate
	sm.mu.Unlock()

	sm.HandleMessage(2, types.ParentRequest, 2)

	sm.mu.Lock()
	if sm.state.Awaiting != nil {
		t.Errorf("Awaiting = %v, want nil after contention resolution", sm.state.Awaiting)
	}
	if sm.state.LastParentResponse == nil || *sm.state.LastParentResponse != false {
		t.Errorf("LastParentResponse = %v, want pointer to false", sm.state.LastParentResponse)
	}
	sm.mu.Unlock()

	sent := sender.snapshot()
	if len(sent) != 1 || sent[0] != (outgoing{2, types.Error, 1}) {
		t.Fatalf("sent = %v, want one Error to peer 2 from self 1", sent)
	}
}

func TestOnResponseSignalsDriver(t *testing.T) {
	sm, _ := newTestStateMachine(1, []int{2})

	done := make(chan bool, 1)
	go func() {
		sm.mu.Lock()
		for sm.state.LastParentResponse == nil {
			sm.responseArrived.Wait()
		}
		done <- *sm.state.LastParentResponse
		sm.mu.Unlock()
	}()

	sm.HandleMessage(2, types.ParentAck, 2)

	if got := <-done; !got {
		t.Fatalf("LastParentResponse = %v, want true", got)
	}
}

func TestLeaderAnnouncementFloodsChildrenAndUnblocksWaiters(t *testing.T) {
	sm, sender := newTestStateMachine(1, []int{2, 3, 4})

	// Accept 2 and 3 as children directly through the handler.
	sm.HandleMessage(2, types.ParentRequest, 2)
	sm.HandleMessage(3, types.ParentRequest, 3)

	waiterDone := make(chan int, 1)
	go func() { waiterDone <- sm.WaitForLeader() }()

	sm.HandleMessage(4, types.LeaderAnnouncement, 9)

	if got := <-waiterDone; got != 9 {
		t.Fatalf("WaitForLeader() = %d, want 9", got)
	}

	leaderID, done, _ := sm.Snapshot()
	if leaderID != 9 || !done {
		t.Fatalf("Snapshot() = (%d, %v), want (9, true)", leaderID, done)
	}

	sent := sender.snapshot()
	floodedTo := map[int]bool{}
	for _, out := range sent {
		if out.kind == types.LeaderAnnouncement {
			floodedTo[out.peerID] = true
		}
	}
	if !floodedTo[2] || !floodedTo[3] {
		t.Fatalf("flooded to %v, want both children 2 and 3", floodedTo)
	}
}

func TestAbleToRequestSignaledWhenOneCandidateRemains(t *testing.T) {
	sm, _ := newTestStateMachine(1, []int{2, 3})

	sm.mu.Lock()
	initialCandidates := len(sm.state.PossibleParents)
	sm.mu.Unlock()
	if initialCandidates != 2 {
		t.Fatalf("PossibleParents = %d, want 2 before any edge is pruned", initialCandidates)
	}

	// Accepting peer 2 as a child prunes it from PossibleParents, leaving
	// exactly one candidate, which is when ableToRequest must fire.
	signaled := make(chan struct{}, 1)
	go func() {
		sm.mu.Lock()
		for len(sm.state.PossibleParents) > 1 {
			sm.ableToRequest.Wait()
		}
		sm.mu.Unlock()
		signaled <- struct{}{}
	}()

	sm.HandleMessage(2, types.ParentRequest, 2)

	<-signaled
}
