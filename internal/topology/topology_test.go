package topology

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTopology(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write topology fixture: %v", err)
	}
	return path
}

const threeNodeLine = `{
  "nodes": {
    "1": {"host": "127.0.0.1", "election_port": 9001, "application_port": 9101},
    "2": {"host": "127.0.0.1", "election_port": 9002, "application_port": 9102},
    "3": {"host": "127.0.0.1", "election_port": 9003, "application_port": 9103}
  },
  "connections": {
    "1": [2],
    "2": [1, 3],
    "3": [2]
  }
}`

func TestLoadThreeNodeLine(t *testing.T) {
	path := writeTopology(t, threeNodeLine)
	graph, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if graph.StarterID() != 1 {
		t.Errorf("StarterID() = %d, want 1", graph.StarterID())
	}

	view, err := graph.View(2)
	if err != nil {
		t.Fatalf("View(2): %v", err)
	}
	if view.IsLeaf() {
		t.Errorf("node 2 reported as leaf, it has two neighbors")
	}
	if len(view.Neighbors) != 2 {
		t.Errorf("node 2 neighbors = %v, want 2 entries", view.Neighbors)
	}
	if view.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", view.NodeCount())
	}

	leafView, err := graph.View(1)
	if err != nil {
		t.Fatalf("View(1): %v", err)
	}
	if !leafView.IsLeaf() {
		t.Errorf("node 1 should be a leaf")
	}
}

func TestLoadStarOfFive(t *testing.T) {
	const doc = `{
	  "nodes": {
	    "1": {"host": "127.0.0.1", "election_port": 9001},
	    "2": {"host": "127.0.0.1", "election_port": 9002},
	    "3": {"host": "127.0.0.1", "election_port": 9003},
	    "4": {"host": "127.0.0.1", "election_port": 9004},
	    "5": {"host": "127.0.0.1", "election_port": 9005}
	  },
	  "connections": {
	    "1": [3], "2": [3], "4": [3], "5": [3],
	    "3": [1, 2, 4, 5]
	  }
	}`
	path := writeTopology(t, doc)
	graph, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	center, err := graph.View(3)
	if err != nil {
		t.Fatalf("View(3): %v", err)
	}
	if len(center.Neighbors) != 4 {
		t.Errorf("center neighbors = %v, want 4 entries", center.Neighbors)
	}
}

func TestLoadRejectsAsymmetricConnections(t *testing.T) {
	const doc = `{
	  "nodes": {
	    "1": {"host": "127.0.0.1", "election_port": 9001},
	    "2": {"host": "127.0.0.1", "election_port": 9002}
	  },
	  "connections": {
	    "1": [2],
	    "2": []
	  }
	}`
	path := writeTopology(t, doc)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for asymmetric connections, got nil")
	}
}

func TestLoadRejectsCycle(t *testing.T) {
	const doc = `{
	  "nodes": {
	    "1": {"host": "127.0.0.1", "election_port": 9001},
	    "2": {"host": "127.0.0.1", "election_port": 9002},
	    "3": {"host": "127.0.0.1", "election_port": 9003}
	  },
	  "connections": {
	    "1": [2, 3],
	    "2": [1, 3],
	    "3": [1, 2]
	  }
	}`
	path := writeTopology(t, doc)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a cyclic graph, got nil")
	}
}

func TestLoadRejectsDisconnectedGraph(t *testing.T) {
	const doc = `{
	  "nodes": {
	    "1": {"host": "127.0.0.1", "election_port": 9001},
	    "2": {"host": "127.0.0.1", "election_port": 9002},
	    "3": {"host": "127.0.0.1", "election_port": 9003},
	    "4": {"host": "127.0.0.1", "election_port": 9004}
	  },
	  "connections": {
	    "1": [2],
	    "2": [1],
	    "3": [4],
	    "4": [3]
	  }
	}`
	path := writeTopology(t, doc)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a disconnected graph, got nil")
	}
}

func TestLoadRejectsUnknownNeighbor(t *testing.T) {
	const doc = `{
	  "nodes": {
	    "1": {"host": "127.0.0.1", "election_port": 9001}
	  },
	  "connections": {
	    "1": [99]
	  }
	}`
	path := writeTopology(t, doc)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown neighbor reference, got nil")
	}
}
