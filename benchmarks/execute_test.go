package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/wireflow/pkg/wireflow"
	"github.com/randalmurphal/wireflow/pkg/wireflow/executor"
	"github.com/randalmurphal/wireflow/pkg/wireflow/hint"
)

func runLinear(b *testing.B, n int) {
	wf := buildLinear(n)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = wf.Run(ctx)
	}
}

// BenchmarkRun_Single runs one node on its own.
func BenchmarkRun_Single(b *testing.B) {
	n, err := inc.Node("n")
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = n.Run(ctx)
	}
}

// BenchmarkRun_Linear_5 runs a 5-node linear workflow.
func BenchmarkRun_Linear_5(b *testing.B) { runLinear(b, 5) }

// BenchmarkRun_Linear_10 runs a 10-node linear workflow.
func BenchmarkRun_Linear_10(b *testing.B) { runLinear(b, 10) }

// BenchmarkRun_Linear_50 runs a 50-node linear workflow.
func BenchmarkRun_Linear_50(b *testing.B) { runLinear(b, 50) }

// BenchmarkRun_Linear_100 runs a 100-node linear workflow.
func BenchmarkRun_Linear_100(b *testing.B) { runLinear(b, 100) }

// BenchmarkRun_FanOut_Pool runs 16 independent nodes on a worker pool.
func BenchmarkRun_FanOut_Pool(b *testing.B) {
	pool := executor.NewPool(4)
	defer pool.Shutdown(true, false)
	wf, err := wireflow.NewWorkflow("fan")
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 16; i++ {
		if _, err := inc.Node(nodeID(i), wireflow.WithParent(wf.Composite), wireflow.WithExecutor(pool)); err != nil {
			b.Fatal(err)
		}
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = wf.Run(ctx)
	}
}

// BenchmarkRun_Cached runs a linear workflow whose children hit the cache.
func BenchmarkRun_Cached(b *testing.B) {
	wf, err := wireflow.NewWorkflow("cached")
	if err != nil {
		b.Fatal(err)
	}
	var prev wireflow.Node
	for i := 0; i < 10; i++ {
		n, err := inc.Node(nodeID(i), wireflow.WithParent(wf.Composite), wireflow.WithCache())
		if err != nil {
			b.Fatal(err)
		}
		if prev != nil {
			if err := n.Inputs().Set("x", prev); err != nil {
				b.Fatal(err)
			}
		}
		prev = n
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = wf.Run(ctx)
	}
}

func lessFn(_ context.Context, in wireflow.Values) (wireflow.Values, error) {
	return wireflow.Values{"ok": in["x"].(int) < in["limit"].(int)}, nil
}

var less = wireflow.DefineFunction("BenchLess", lessFn,
	[]wireflow.PortSpec{{Label: "x", Hint: hint.Of[int]()}, {Label: "limit", Hint: hint.Of[int]()}},
	[]wireflow.PortSpec{{Label: "ok", Hint: hint.Of[bool]()}})

func runWhile(b *testing.B, iterations int) {
	class, err := wireflow.DefineWhile("BenchCount", less, inc,
		wireflow.WithBodyToTest(wireflow.Edge{From: "y", To: "x"}),
		wireflow.WithBodyToBody(wireflow.Edge{From: "y", To: "x"}),
	)
	if err != nil {
		b.Fatal(err)
	}
	loop, err := class.Node("loop", wireflow.WithValues(wireflow.Values{
		"test_x": 0, "test_limit": iterations, "body_x": 0,
	}))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = loop.Run(ctx)
	}
}

// BenchmarkRun_While_3 runs a while loop for 3 iterations.
func BenchmarkRun_While_3(b *testing.B) { runWhile(b, 3) }

// BenchmarkRun_While_10 runs a while loop for 10 iterations.
func BenchmarkRun_While_10(b *testing.B) { runWhile(b, 10) }

// BenchmarkRun_For_100 runs a for loop over 100 elements.
func BenchmarkRun_For_100(b *testing.B) {
	class, err := wireflow.DefineFor("BenchFor", inc, []string{"x"}, nil)
	if err != nil {
		b.Fatal(err)
	}
	xs := make([]int, 100)
	for i := range xs {
		xs[i] = i
	}
	loop, err := class.Node("loop", wireflow.WithValues(wireflow.Values{"x": xs}))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = loop.Run(ctx)
	}
}
