package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/wireflow/pkg/wireflow"
	"github.com/randalmurphal/wireflow/pkg/wireflow/hint"
)

func incFn(_ context.Context, in wireflow.Values) (wireflow.Values, error) {
	return wireflow.Values{"y": in["x"].(int) + 1}, nil
}

// inc does minimal work to measure framework overhead.
var inc = wireflow.DefineFunction("BenchInc", incFn,
	[]wireflow.PortSpec{{Label: "x", Hint: hint.Of[int](), Default: wireflow.Present(0)}},
	[]wireflow.PortSpec{{Label: "y", Hint: hint.Of[int]()}})

func nodeID(i int) string { return fmt.Sprintf("n%d", i) }

// buildLinear chains n inc nodes in a workflow.
func buildLinear(n int) *wireflow.Workflow {
	wf, err := wireflow.NewWorkflow("bench")
	if err != nil {
		panic(err)
	}
	var prev wireflow.Node
	for i := 0; i < n; i++ {
		node, err := inc.Node(nodeID(i), wireflow.WithParent(wf.Composite))
		if err != nil {
			panic(err)
		}
		if prev != nil {
			if err := node.Inputs().Set("x", prev); err != nil {
				panic(err)
			}
		}
		prev = node
	}
	return wf
}

// BenchmarkNewWorkflow measures workflow creation overhead.
func BenchmarkNewWorkflow(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = wireflow.NewWorkflow("bench")
	}
}

// BenchmarkNewNode measures building one function node.
func BenchmarkNewNode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = inc.Node("n")
	}
}

// BenchmarkBuild_Linear_10 builds and connects a 10-node chain.
func BenchmarkBuild_Linear_10(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buildLinear(10)
	}
}

// BenchmarkBuild_Linear_100 builds and connects a 100-node chain.
func BenchmarkBuild_Linear_100(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buildLinear(100)
	}
}

// BenchmarkDataDigraph_100 extracts dependencies from a 100-node chain.
func BenchmarkDataDigraph_100(b *testing.B) {
	wf := buildLinear(100)
	children := wf.Children()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = wireflow.NodesToDataDigraph(children)
	}
}

// BenchmarkSetRunConnectionsToDAG_100 rewires a 100-node chain.
func BenchmarkSetRunConnectionsToDAG_100(b *testing.B) {
	wf := buildLinear(100)
	children := wf.Children()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = wireflow.SetRunConnectionsToDAG(children)
	}
}

// BenchmarkExport_100 describes a 100-node workflow.
func BenchmarkExport_100(b *testing.B) {
	wf := buildLinear(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wireflow.Export(wf)
	}
}
