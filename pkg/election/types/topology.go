package types

import "fmt"

// NodeAddress is a host/port pair identifying where a peer can be dialed.
type NodeAddress struct {
	Host string
	Port uint16
}

func (a NodeAddress) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Topology is the static, tree-shaped communication graph known in advance
// to every participant. It is immutable once constructed: the engine only
// ever reads from it.
type Topology struct {
	SelfID       int
	SelfAddress  NodeAddress
	Neighbors    map[int]NodeAddress
	allNodeCount int
	starterID    int
}

// NewTopology builds an immutable Topology. nodeCount and starterID are
// supplied by the loader (internal/topology), which has visibility into the
// whole graph; a single node's view only knows its own neighbors.
func NewTopology(selfID int, selfAddress NodeAddress, neighbors map[int]NodeAddress, nodeCount, starterID int) *Topology {
	frozen := make(map[int]NodeAddress, len(neighbors))
	for id, addr := range neighbors {
		frozen[id] = addr
	}
	return &Topology{
		SelfID:       selfID,
		SelfAddress:  selfAddress,
		Neighbors:    frozen,
		allNodeCount: nodeCount,
		starterID:    starterID,
	}
}

// IsLeaf reports whether this node has exactly one neighbor.
func (t *Topology) IsLeaf() bool {
	return len(t.Neighbors) == 1
}

// StarterID returns the minimum node id across the whole graph, a
// deterministic value any orchestrator can use without coordination.
func (t *Topology) StarterID() int {
	return t.starterID
}

// NodeCount returns the number of participants in the whole graph.
func (t *Topology) NodeCount() int {
	return t.allNodeCount
}

// NeighborIDs returns the neighbor ids, used to seed PossibleParents.
func (t *Topology) NeighborIDs() []int {
	ids := make([]int, 0, len(t.Neighbors))
	for id := range t.Neighbors {
		ids = append(ids, id)
	}
	return ids
}
