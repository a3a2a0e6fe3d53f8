// Package topology loads and validates the JSON topology file: a map of
// node addresses plus a symmetric adjacency list. It validates the graph
// is a tree and exposes per-node views (self address, neighbors, starter
// id, node count) that the election core consumes.
package topology

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/rafaelcarvalho/fireelect/pkg/election/definition"
	"github.com/rafaelcarvalho/fireelect/pkg/election/types"
)

// nodeEntry is one value of the "nodes" map in the topology file.
type nodeEntry struct {
	Host           string `json:"host"`
	ElectionPort   int    `json:"election_port"`
	ApplicationPort int   `json:"application_port"`
}

// document is the root shape of the topology file.
type document struct {
	Nodes       map[string]nodeEntry `json:"nodes"`
	Connections map[string][]int     `json:"connections"`
}

// Graph holds the fully parsed and validated topology, from which any
// single node's Topology view can be extracted via View.
type Graph struct {
	nodeIDs     []int
	addresses   map[int]types.NodeAddress
	connections map[int][]int
	starterID   int
}

// Load reads and validates the topology file at path. It fails with
// definition.ErrConfig if the file is malformed, references an unknown
// node, the connections are asymmetric, or the graph is not a tree.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(definition.ErrConfig, "read %s: %v", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(definition.ErrConfig, "parse %s: %v", path, err)
	}

	return build(doc)
}

func build(doc document) (*Graph, error) {
	addresses := make(map[int]types.NodeAddress, len(doc.Nodes))
	ids := make([]int, 0, len(doc.Nodes))
	for key, entry := range doc.Nodes {
		id, err := parseID(key)
		if err != nil {
			return nil, err
		}
		addresses[id] = types.NodeAddress{Host: entry.Host, Port: uint16(entry.ElectionPort)}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.Wrap(definition.ErrConfig, "topology has no nodes")
	}

	connections := make(map[int][]int, len(doc.Connections))
	edgeCount := 0
	for key, neighbors := range doc.Connections {
		id, err := parseID(key)
		if err != nil {
			return nil, err
		}
		if _, known := addresses[id]; !known {
			return nil, errors.Wrapf(definition.ErrConfig, "connections reference unknown node %d", id)
		}
		for _, n := range neighbors {
			if _, known := addresses[n]; !known {
				return nil, errors.Wrapf(definition.ErrConfig, "node %d connects to unknown node %d", id, n)
			}
			edgeCount++
		}
		connections[id] = neighbors
	}
	edgeCount /= 2 // each undirected edge is listed from both endpoints

	if err := validateSymmetric(connections); err != nil {
		return nil, err
	}
	if err := validateTree(ids, connections, edgeCount); err != nil {
		return nil, err
	}

	starter := ids[0]
	for _, id := range ids {
		if id < starter {
			starter = id
		}
	}

	return &Graph{nodeIDs: ids, addresses: addresses, connections: connections, starterID: starter}, nil
}

func parseID(key string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(key, "%d", &id); err != nil {
		return 0, errors.Wrapf(definition.ErrConfig, "non-integer node id %q", key)
	}
	return id, nil
}

func validateSymmetric(connections map[int][]int) error {
	for a, neighbors := range connections {
		for _, b := range neighbors {
			found := false
			for _, back := range connections[b] {
				if back == a {
					found = true
					break
				}
			}
			if !found {
				return errors.Wrapf(definition.ErrConfig, "connections asymmetric: %d lists %d but not vice versa", a, b)
			}
		}
	}
	return nil
}

// validateTree enforces the tree property the protocol depends on: exactly
// n-1 edges and the graph is connected. A connected graph with n-1 edges is
// necessarily acyclic.
func validateTree(ids []int, connections map[int][]int, edgeCount int) error {
	n := len(ids)
	if edgeCount != n-1 {
		return errors.Wrapf(definition.ErrConfig, "graph is not a tree: %d nodes but %d edges", n, edgeCount)
	}

	visited := make(map[int]bool, n)
	queue := []int{ids[0]}
	visited[ids[0]] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range connections[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	if len(visited) != n {
		return errors.Wrap(definition.ErrConfig, "graph is not a tree: disconnected")
	}
	return nil
}

// View extracts the Topology a single node (selfID) sees: its own address
// and its immediate neighbors' addresses.
func (g *Graph) View(selfID int) (*types.Topology, error) {
	selfAddr, ok := g.addresses[selfID]
	if !ok {
		return nil, errors.Wrapf(definition.ErrConfig, "unknown node %d", selfID)
	}
	neighbors := make(map[int]types.NodeAddress, len(g.connections[selfID]))
	for _, n := range g.connections[selfID] {
		neighbors[n] = g.addresses[n]
	}
	return types.NewTopology(selfID, selfAddr, neighbors, len(g.nodeIDs), g.starterID), nil
}

// StarterID returns the minimum node id across the whole graph.
func (g *Graph) StarterID() int {
	return g.starterID
}

// NodeIDs returns every participant's id.
func (g *Graph) NodeIDs() []int {
	out := make([]int, len(g.nodeIDs))
	copy(out, g.nodeIDs)
	return out
}
