// Command fireelect launches a single node of a tree-election run over a
// known static topology: parse flags, load the topology, start the
// election, and print the result.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rafaelcarvalho/fireelect/internal/topology"
	"github.com/rafaelcarvalho/fireelect/pkg/election"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fireelect",
		Short: "Run an IEEE 1394 tree-election node over a static TCP topology",
	}
	root.AddCommand(newLaunchCmd())
	return root
}

func newLaunchCmd() *cobra.Command {
	var topologyPath string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "launch <node_id>",
		Short: "Launch one node and block until its leader is known",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return launch(args[0], topologyPath, timeout)
		},
	}
	cmd.Flags().StringVar(&topologyPath, "topology", "", "path to the topology JSON file (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "time to wait for the election result")
	_ = cmd.MarkFlagRequired("topology")
	return cmd
}

func launch(nodeArg, topologyPath string, timeout time.Duration) error {
	selfID, err := parseNodeID(nodeArg)
	if err != nil {
		return err
	}

	graph, err := topology.Load(topologyPath)
	if err != nil {
		return err
	}
	view, err := graph.View(selfID)
	if err != nil {
		return err
	}

	e := election.New(view)
	if err := e.Start(); err != nil {
		return err
	}
	defer e.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	leaderID, err := e.AwaitResult(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("elected leader: %d\n", leaderID)
	return nil
}

func parseNodeID(s string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	return id, nil
}
