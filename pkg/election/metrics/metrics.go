// Package metrics exposes the election engine's prometheus instrumentation.
// The counters mirror the kind of cluster-health metrics a gossip/consensus
// membership layer exports (see alertmanager's cluster package in the
// retrieval pack), scaled down to what the tree-election protocol can
// usefully report.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups the counters a single Election instance increments.
// Each Election owns its own Collectors registered under a distinct "node"
// label so multiple nodes in the same process (as in tests) don't collide.
type Collectors struct {
	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	Contentions      prometheus.Counter
	ElectionDuration prometheus.Histogram
}

// NewCollectors builds and registers a Collectors set for nodeID against
// reg. Passing a fresh prometheus.NewRegistry() per test keeps parallel
// tests from double-registering the same metric names.
func NewCollectors(reg prometheus.Registerer, nodeID int) *Collectors {
	labels := prometheus.Labels{"node": strconv.Itoa(nodeID)}
	c := &Collectors{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "election_messages_sent_total",
			Help:        "Number of protocol frames sent by this node.",
			ConstLabels: labels,
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "election_messages_received_total",
			Help:        "Number of protocol frames received by this node.",
			ConstLabels: labels,
		}),
		Contentions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "election_contention_total",
			Help:        "Number of root-contention events resolved by this node.",
			ConstLabels: labels,
		}),
		ElectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "election_duration_seconds",
			Help:        "Wall-clock time from an AwaitResult call to a known leader.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(c.MessagesSent, c.MessagesReceived, c.Contentions, c.ElectionDuration)
	}
	return c
}
