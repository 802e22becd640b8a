// Package wireflow builds and runs computational workflow graphs.
//
// A graph is made of nodes. Each node owns typed data channels (Inputs and
// Outputs) and control signals (run, accumulate_and_run, ran, failed). Data
// channels connect output to input and carry values; signal channels carry
// "go" events. A node runs by fetching its inputs, executing, writing its
// outputs and emitting ran (or failed).
//
// Composites own a subgraph. When a composite runs it starts its starting
// nodes and then dispatches child signals from a FIFO queue until no
// signals remain and no child is still running, so signal order is
// deterministic even when children run on executors.
//
// Workflow is the parent-most composite. Its IO is whatever child channels
// are not connected inside it. Macro is a composite with fixed IO whose
// channels are value-linked to child channels. For and While build their
// subgraph at run time.
//
// Basic usage:
//
//	plusOne := wireflow.DefineFunction("PlusOne",
//	    func(ctx context.Context, in wireflow.Values) (wireflow.Values, error) {
//	        return wireflow.Values{"y": in["x"].(int) + 1}, nil
//	    },
//	    []wireflow.PortSpec{{Label: "x", Hint: hint.Of[int]()}},
//	    []wireflow.PortSpec{{Label: "y", Hint: hint.Of[int]()}},
//	)
//
//	wf, _ := wireflow.NewWorkflow("wf")
//	a, _ := plusOne.Node("a", wireflow.WithParent(wf.Composite), wireflow.WithValues(wireflow.Values{"x": 0}))
//	b, _ := plusOne.Node("b", wireflow.WithParent(wf.Composite))
//	_ = b.Inputs().Set("x", a)
//
//	out, err := wf.Run(ctx)
//	// out.(wireflow.Values)["b__y"] == 2
//
// Connections are type-gated: an output may feed an input only when its
// hint is as or more specific than the input's hint (see package hint).
package wireflow
