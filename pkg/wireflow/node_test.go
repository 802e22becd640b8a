package wireflow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/wireflow/pkg/wireflow/executor"
)

// TestFunction_Run tests a single function node run.
func TestFunction_Run(t *testing.T) {
	n := mustNode(plusOne.Node("n", WithValues(Values{"x": 1})))

	out, err := n.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"y": 2}, out)
	assert.Equal(t, 2, n.Outputs().Get("y").Value())
	assert.False(t, n.Running())
	assert.False(t, n.Failed())
	assert.Equal(t, "/n", n.FullLabel())
	assert.Equal(t, "TestPlusOne", n.ClassName())
}

// TestFunction_NotReady tests that unready input refuses a run.
func TestFunction_NotReady(t *testing.T) {
	n := mustNode(add.Node("n", WithValues(Values{"obj": 1})))

	_, err := n.Run(context.Background())
	require.ErrorIs(t, err, ErrNotReady)

	var readiness *ReadinessError
	require.ErrorAs(t, err, &readiness)
	assert.False(t, readiness.Report.Ready)
	assert.Equal(t, []InputReadiness{{Label: "obj", Ready: true}, {Label: "other", Ready: false}}, readiness.Report.Inputs)
	assert.Contains(t, readiness.Report.String(), "other=false")

	out, err := n.Run(context.Background(), WithInputs(Values{"other": 2}))
	require.NoError(t, err)
	assert.Equal(t, Values{"add": 3}, out)
}

// TestFunction_Failure tests the failed state and its recovery options.
func TestFunction_Failure(t *testing.T) {
	ctx := context.Background()
	n := mustNode(failing.Node("n"))

	_, err := n.Run(ctx)
	require.ErrorIs(t, err, errBoom)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "/n", nodeErr.NodeID)
	assert.True(t, n.Failed())

	_, err = n.Run(ctx)
	assert.ErrorIs(t, err, ErrNotReady, "failed nodes refuse to run")

	_, err = n.Run(ctx, Rerun())
	assert.ErrorIs(t, err, errBoom)

	out, err := n.Run(ctx, Rerun(), SuppressErrors())
	assert.NoError(t, err)
	assert.Nil(t, out)
	assert.True(t, n.Failed())

	n.SetFailed(false)
	assert.True(t, n.Ready())
}

// TestFunction_Panic tests that a panicking function fails the node.
func TestFunction_Panic(t *testing.T) {
	n := mustNode(panicking.Node("n"))

	_, err := n.Run(context.Background())
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.True(t, n.Failed())
	assert.False(t, n.Running())
}

// TestFunction_MissingOutput tests that every declared output is required.
func TestFunction_MissingOutput(t *testing.T) {
	n := mustNode(missingOutput.Node("n"))

	_, err := n.Run(context.Background())
	assert.ErrorIs(t, err, ErrMissingOutput)
	assert.True(t, n.Failed())
}

// TestFunction_Executor tests that an executor run returns a future.
func TestFunction_Executor(t *testing.T) {
	pool := executor.NewPool(2)
	t.Cleanup(func() { pool.Shutdown(true, false) })

	n := mustNode(plusOne.Node("n", WithValues(Values{"x": 41}), WithExecutor(pool)))
	out, err := n.Run(context.Background())
	require.NoError(t, err)

	future, ok := out.(*executor.Future)
	require.True(t, ok, "executor runs return a future, got %T", out)
	assert.Same(t, future, n.Future())

	result, err := future.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, Values{"y": 42}, result)
	assert.False(t, n.Running())

	// Execute ignores the executor.
	result, err = n.Execute(context.Background(), Values{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, Values{"y": 2}, result)
}

// chain builds a -> b -> c, each adding one, with execution wired by Then.
func chain(t *testing.T) (a, b, c *Function) {
	t.Helper()
	a = mustNode(plusOne.Node("a", WithValues(Values{"x": 0})))
	b = mustNode(plusOne.Node("b"))
	c = mustNode(plusOne.Node("c"))
	require.NoError(t, b.Inputs().Set("x", a))
	require.NoError(t, c.Inputs().Set("x", b))
	a.Then(b).Then(c)
	return a, b, c
}

// TestThen_LinearChain tests that ran signals drive downstream runs.
func TestThen_LinearChain(t *testing.T) {
	a, b, c := chain(t)

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, a.Outputs().Get("y").Value())
	assert.Equal(t, 2, b.Outputs().Get("y").Value())
	assert.Equal(t, 3, c.Outputs().Get("y").Value())
}

// TestExecute_NoFetchNoEmit tests that Execute runs in isolation.
func TestExecute_NoFetchNoEmit(t *testing.T) {
	_, b, c := chain(t)

	out, err := b.Execute(context.Background(), Values{"x": 10})
	require.NoError(t, err)
	assert.Equal(t, Values{"y": 11}, out)
	assert.False(t, c.Outputs().Get("y").HasValue(), "downstream must not run")
}

// TestPull_RunsDataTree tests that Pull refreshes upstream data first.
func TestPull_RunsDataTree(t *testing.T) {
	a, b, c := chain(t)

	out, err := c.Pull(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Values{"y": 3}, out)
	assert.Equal(t, 2, b.Outputs().Get("y").Value())

	// Execution wiring is restored afterwards.
	assert.True(t, a.Signals().Output.Get(SignalRan).ConnectedTo(b.Signals().Input.Get(SignalRun)))
	assert.True(t, b.Signals().Output.Get(SignalRan).ConnectedTo(c.Signals().Input.Get(SignalRun)))
}

// TestPull_RejectsExecutors tests that data tree runs stay local.
func TestPull_RejectsExecutors(t *testing.T) {
	pool := executor.NewPool(1)
	t.Cleanup(func() { pool.Shutdown(true, false) })

	a, _, c := chain(t)
	a.SetExecutor(pool)

	_, err := c.Pull(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDataTreeExecutor)
}

// TestCache tests that unchanged input skips the work.
func TestCache(t *testing.T) {
	rec := &recorder{}
	class := newTracked("TestCacheTracked", rec, "ran", 0)
	n := mustNode(class.Node("n", WithCache(), WithValues(Values{"x": 1})))
	ctx := context.Background()

	_, err := n.Run(ctx)
	require.NoError(t, err)
	out, err := n.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Values{"y": 1}, out)
	assert.Equal(t, []string{"ran"}, rec.got(), "second run is a cache hit")

	_, err = n.Run(ctx, WithInputs(Values{"x": 2}))
	require.NoError(t, err)
	assert.Len(t, rec.got(), 2)

	n.SetCache(false)
	_, err = n.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, rec.got(), 3)
}

// TestLabels tests label validation.
func TestLabels(t *testing.T) {
	_, err := plusOne.Node("a/b")
	assert.ErrorIs(t, err, ErrInvalidLabel)
	_, err = plusOne.Node("")
	assert.ErrorIs(t, err, ErrInvalidLabel)

	parent := mustNode(NewComposite("p"))
	a := mustNode(plusOne.Node("a", WithParent(parent)))
	_ = mustNode(plusOne.Node("b", WithParent(parent)))

	assert.ErrorIs(t, a.SetLabel("b"), ErrDuplicateChild)
	require.NoError(t, a.SetLabel("c"))
	child, ok := parent.Child("c")
	require.True(t, ok)
	assert.Same(t, Node(a), child)
	assert.Equal(t, "/p/c", a.FullLabel())

	_, err = plusOne.Node("b", WithParent(parent))
	assert.ErrorIs(t, err, ErrDuplicateChild)
}

// TestStrictHints tests that hint enforcement can be turned off per node.
func TestStrictHints(t *testing.T) {
	strict := mustNode(plusOne.Node("strict"))
	assert.ErrorIs(t, strict.Inputs().Set("x", "one"), ErrValueType)

	loose := mustNode(plusOne.Node("loose", WithStrictHints(false)))
	assert.NoError(t, loose.Inputs().Set("x", "one"))
}

// TestNode_Logging tests that runs are logged through the node's logger.
func TestNode_Logging(t *testing.T) {
	h := &testHandler{}
	n := mustNode(failing.Node("n", WithLogger(slog.New(h))))

	_, _ = n.Run(context.Background())
	assert.Contains(t, h.messages(), "node starting")
	assert.Contains(t, h.messages(), "node failed")
}

// TestUserInput tests the pass-through class.
func TestUserInput(t *testing.T) {
	n := mustNode(UserInput.Node("in", WithValues(Values{"user_input": "hello"})))
	out, err := n.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"user_input": "hello"}, out)

	class, err := LookupClass("UserInput")
	require.NoError(t, err)
	assert.Same(t, UserInput, class)
}

// TestDefineFunction_Redefinition tests class name collisions.
func TestDefineFunction_Redefinition(t *testing.T) {
	again := DefineFunction("TestPlusOne", plusOneFn,
		[]PortSpec{intPortDefault("x", 0)}, []PortSpec{intPort("y")})
	assert.Same(t, plusOne, again)

	assert.Panics(t, func() {
		DefineFunction("TestPlusOne", addFn, nil, nil)
	})

	_, err := LookupClass("NoSuchClass")
	assert.ErrorIs(t, err, ErrUnknownClass)
}

// TestStrictHints_Readiness tests that a value outside the hint blocks a
// run even when hints are not enforced on writes.
func TestStrictHints_Readiness(t *testing.T) {
	tests := []struct {
		name      string
		strict    bool
		value     any
		wantReady bool
	}{
		{name: "strict valid", strict: true, value: 1, wantReady: true},
		{name: "loose valid", strict: false, value: 1, wantReady: true},
		{name: "loose invalid", strict: false, value: "one", wantReady: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := mustNode(plusOne.Node("n", WithStrictHints(tt.strict)))
			require.NoError(t, n.Inputs().Set("x", tt.value))
			assert.Equal(t, tt.wantReady, n.Ready())

			_, err := n.Run(context.Background())
			if tt.wantReady {
				assert.NoError(t, err)
				return
			}
			var readiness *ReadinessError
			require.ErrorAs(t, err, &readiness)
			assert.Equal(t, []InputReadiness{{Label: "x", Ready: false}}, readiness.Report.Inputs)
			assert.False(t, n.Failed())
		})
	}
}
