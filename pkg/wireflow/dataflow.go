package wireflow

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/randalmurphal/wireflow/pkg/wireflow/topology"
)

// dataGraph is the data dependency graph of a set of sibling nodes.
type dataGraph struct {
	digraph topology.Digraph
	byKey   map[string]Node
	keyOf   map[Owner]string
	order   []Node
}

// buildDataGraph keys each node by label, or label#n when parentless
// nodes share a label, and records which nodes each depends on for data.
func buildDataGraph(nodes []Node) (*dataGraph, error) {
	g := &dataGraph{
		digraph: topology.Digraph{},
		byKey:   make(map[string]Node, len(nodes)),
		keyOf:   make(map[Owner]string, len(nodes)),
	}
	if len(nodes) == 0 {
		return g, nil
	}
	parent := nodes[0].Parent()
	for _, n := range nodes {
		if n.Parent() != parent {
			return nil, fmt.Errorf("%w: %s and %s", ErrMixedParents, nodes[0].FullLabel(), n.FullLabel())
		}
		if _, seen := g.keyOf[n]; seen {
			continue
		}
		key := n.Label()
		for i := 2; g.byKey[key] != nil; i++ {
			key = fmt.Sprintf("%s#%d", n.Label(), i)
		}
		g.byKey[key] = n
		g.keyOf[n] = key
		g.order = append(g.order, n)
	}

	for _, n := range g.order {
		key := g.keyOf[n]
		g.digraph.Add(key)
		for _, in := range n.Inputs().All() {
			for _, up := range in.Connections() {
				upKey, ok := g.keyOf[up.Owner()]
				if !ok {
					return nil, &CrossScopeError{Channel: in.FullLabel(), Upstream: up.FullLabel()}
				}
				if upKey == key {
					return nil, &CircularDataFlowError{Nodes: []string{n.FullLabel()}}
				}
				g.digraph.Add(key, upKey)
			}
		}
	}
	return g, nil
}

func (g *dataGraph) layers() ([][]string, error) {
	layers, err := topology.Generations(g.digraph)
	if err != nil {
		var cycle *topology.CycleError
		if errors.As(err, &cycle) {
			return nil, &CircularDataFlowError{Nodes: cycle.Remaining, Err: err}
		}
		return nil, err
	}
	return layers, nil
}

// NodesToDataDigraph maps sibling nodes to their data dependencies: each
// node's label to the labels of the nodes feeding its inputs. Every
// upstream node must be among nodes.
func NodesToDataDigraph(nodes []Node) (topology.Digraph, error) {
	g, err := buildDataGraph(nodes)
	if err != nil {
		return nil, err
	}
	return g.digraph, nil
}

// upstreamNodes returns the distinct owners of n's input connections in
// input order.
func upstreamNodes(n Node) []Node {
	var ups []Node
	for _, in := range n.Inputs().All() {
		for _, c := range in.Connections() {
			if up, ok := c.Owner().(Node); ok && !slices.Contains(ups, up) {
				ups = append(ups, up)
			}
		}
	}
	return ups
}

// disconnectExecution breaks the run inputs and ran output of every node.
func disconnectExecution(nodes []Node) []Pair {
	var broken []Pair
	for _, n := range nodes {
		broken = append(broken, n.Signals().DisconnectRun()...)
		broken = append(broken, n.Signals().Output.Get(SignalRan).DisconnectAll()...)
	}
	return broken
}

// SetRunConnectionsToDAG replaces the execution wiring of sibling nodes so
// each node's accumulate_and_run waits on the ran signal of every node
// feeding it data. It returns the connections it broke and the nodes
// with no data dependencies, which start the execution. On error the
// wiring is left as it was.
func SetRunConnectionsToDAG(nodes []Node) ([]Pair, []Node, error) {
	g, err := buildDataGraph(nodes)
	if err != nil {
		return nil, nil, err
	}
	layers, err := g.layers()
	if err != nil {
		return nil, nil, err
	}

	broken := disconnectExecution(g.order)
	for _, n := range g.order {
		acc := n.Signals().Input.Get(SignalAccumulateAndRun)
		for _, up := range upstreamNodes(n) {
			if err := acc.Connect(up.Signals().Output.Get(SignalRan)); err != nil {
				disconnectExecution(g.order)
				reconnect(broken)
				return nil, nil, err
			}
		}
	}

	var starters []Node
	if len(layers) > 0 {
		for _, key := range layers[0] {
			starters = append(starters, g.byKey[key])
		}
	}
	return broken, starters, nil
}

// SetRunConnectionsToLinearDAG replaces the execution wiring of sibling
// nodes with a single chain in topological order. It returns the
// connections it broke and the head of the chain.
func SetRunConnectionsToLinearDAG(nodes []Node) ([]Pair, []Node, error) {
	g, err := buildDataGraph(nodes)
	if err != nil {
		return nil, nil, err
	}
	layers, err := g.layers()
	if err != nil {
		return nil, nil, err
	}
	var order []Node
	for _, layer := range layers {
		for _, key := range layer {
			order = append(order, g.byKey[key])
		}
	}
	if len(order) == 0 {
		return nil, nil, nil
	}

	broken := disconnectExecution(g.order)
	for i := 0; i < len(order)-1; i++ {
		order[i].Then(order[i+1])
	}
	return broken, order[:1], nil
}

// NodesInDataTree returns n and every node upstream of it through data
// connections, n first.
func NodesInDataTree(n Node) []Node {
	seen := []Node{n}
	for i := 0; i < len(seen); i++ {
		for _, up := range upstreamNodes(seen[i]) {
			if !slices.Contains(seen, up) {
				seen = append(seen, up)
			}
		}
	}
	return seen
}

// runDataTree runs every node upstream of n, in a topological chain, so
// n's inputs are fresh before it runs itself. Wiring is restored
// afterwards whatever happens.
func runDataTree(ctx context.Context, n Node) error {
	tree := NodesInDataTree(n)
	if len(tree) == 1 {
		return nil
	}
	for _, node := range tree {
		if node.Executor() != nil {
			return fmt.Errorf("%w: %s", ErrDataTreeExecutor, node.FullLabel())
		}
	}
	parent := n.Parent()
	if parent != nil && parent.Running() {
		return fmt.Errorf("%w: %s", ErrParentRunning, parent.FullLabel())
	}

	broken, starters, err := SetRunConnectionsToLinearDAG(tree)
	if err != nil {
		return err
	}
	defer func() {
		disconnectExecution(tree)
		reconnect(broken)
	}()

	// Nothing upstream may trigger n; the caller runs it.
	n.Signals().DisconnectRun()

	if parent == nil {
		for _, s := range starters {
			if _, err := s.Run(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	return parent.runSubgraph(ctx, starters)
}
