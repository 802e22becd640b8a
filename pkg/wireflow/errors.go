package wireflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for channels and values.
var (
	// ErrChannelType indicates a connection between non-conjugate channels.
	ErrChannelType = errors.New("channels are not a conjugate pair")

	// ErrIncompatibleHints indicates an output hint is not as specific as
	// the input hint it would feed.
	ErrIncompatibleHints = errors.New("incompatible type hints")

	// ErrValueType indicates a value that violates a channel's type hint.
	ErrValueType = errors.New("value does not match type hint")

	// ErrInputLocked indicates a write to input data while its owner runs.
	ErrInputLocked = errors.New("input data is locked while owner is running")

	// ErrValueReceiver indicates an invalid value receiver assignment.
	ErrValueReceiver = errors.New("invalid value receiver")

	// ErrChannelNotFound indicates a panel has no channel with a label.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrSignalValue indicates a plain value was assigned to a signal.
	ErrSignalValue = errors.New("signals accept only channel connections")

	// ErrBadCallback indicates an input signal was built without a usable callback.
	ErrBadCallback = errors.New("bad signal callback")
)

// Sentinel errors for running nodes.
var (
	// ErrNotReady indicates a run was requested on a node that is running,
	// failed, or has inputs that are not ready.
	ErrNotReady = errors.New("not ready to run")

	// ErrMissingOutput indicates a function did not return a declared output.
	ErrMissingOutput = errors.New("function did not return output")

	// ErrDataTreeExecutor indicates a pull was requested through a node
	// that runs on an executor.
	ErrDataTreeExecutor = errors.New("data tree runs are incompatible with executors")

	// ErrParentRunning indicates a pull was requested while the parent runs.
	ErrParentRunning = errors.New("parent is already running")
)

// Sentinel errors for graph structure.
var (
	// ErrMixedParents indicates topology analysis over nodes with different parents.
	ErrMixedParents = errors.New("nodes do not share a parent")

	// ErrParentMost indicates a workflow was added as a child.
	ErrParentMost = errors.New("workflows are always parent-most")

	// ErrHasParent indicates a node that already has a parent.
	ErrHasParent = errors.New("node already has a parent")

	// ErrNotChild indicates a node that is not a child of the composite.
	ErrNotChild = errors.New("node is not a child")

	// ErrDuplicateChild indicates a child label that is already taken.
	ErrDuplicateChild = errors.New("child label already taken")

	// ErrInvalidLabel indicates an empty label or one containing a path separator.
	ErrInvalidLabel = errors.New("labels must be non-empty and must not contain '/'")

	// ErrReplacementConnected indicates a replacement node with existing connections.
	ErrReplacementConnected = errors.New("replacement node has connections")

	// ErrExecutionConfig indicates a macro whose children have run signals
	// but no starting nodes, or the reverse.
	ErrExecutionConfig = errors.New("execution must be fully automatic or fully manual")

	// ErrUnknownClass indicates a saved node class that is not registered.
	ErrUnknownClass = errors.New("unknown node class")
)

// Sentinel errors for loops.
var (
	// ErrNoIteration indicates a for loop with nothing to iterate over.
	ErrNoIteration = errors.New("nothing to iterate over")
)

// ChannelTypeError reports a connection attempt between channel kinds that
// cannot be paired, such as two inputs.
type ChannelTypeError struct {
	Channel string
	Partner string
}

// Error implements the error interface.
func (e *ChannelTypeError) Error() string {
	return fmt.Sprintf("cannot connect %s to %s: %v", e.Channel, e.Partner, ErrChannelType)
}

// Unwrap returns ErrChannelType for errors.Is support.
func (e *ChannelTypeError) Unwrap() error {
	return ErrChannelType
}

// ChannelConnectionError reports conjugate channels whose hints forbid the
// connection.
type ChannelConnectionError struct {
	Output     string
	Input      string
	OutputHint string
	InputHint  string
}

// Error implements the error interface.
func (e *ChannelConnectionError) Error() string {
	return fmt.Sprintf("cannot connect %s (%s) to %s (%s): %v",
		e.Output, e.OutputHint, e.Input, e.InputHint, ErrIncompatibleHints)
}

// Unwrap returns ErrIncompatibleHints for errors.Is support.
func (e *ChannelConnectionError) Unwrap() error {
	return ErrIncompatibleHints
}

// ConnectionCopyError reports a failed copy of connections from one panel
// or channel to another. Partial copies are undone before it is returned.
type ConnectionCopyError struct {
	Channel string
	Target  string
	Err     error
}

// Error implements the error interface.
func (e *ConnectionCopyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot copy connections of %s: %s has no commensurate channel", e.Channel, e.Target)
	}
	return fmt.Sprintf("cannot copy connections of %s to %s: %v", e.Channel, e.Target, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionCopyError) Unwrap() error {
	if e.Err == nil {
		return ErrChannelNotFound
	}
	return e.Err
}

// ValueTypeError reports a value that violates a strict type hint.
type ValueTypeError struct {
	Channel string
	Hint    string
	Value   any
}

// Error implements the error interface.
func (e *ValueTypeError) Error() string {
	return fmt.Sprintf("%s: %v (%T) does not match hint %s", e.Channel, e.Value, e.Value, e.Hint)
}

// Unwrap returns ErrValueType for errors.Is support.
func (e *ValueTypeError) Unwrap() error {
	return ErrValueType
}

// InputLockedError reports a write to an input whose owner is running.
type InputLockedError struct {
	Channel string
}

// Error implements the error interface.
func (e *InputLockedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Channel, ErrInputLocked)
}

// Unwrap returns ErrInputLocked for errors.Is support.
func (e *InputLockedError) Unwrap() error {
	return ErrInputLocked
}

// ValueCopyError reports a failed hard copy of values between panels.
// Values copied before the failure are restored.
type ValueCopyError struct {
	Channel string
	Err     error
}

// Error implements the error interface.
func (e *ValueCopyError) Error() string {
	return fmt.Sprintf("cannot copy value of %s: %v", e.Channel, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValueCopyError) Unwrap() error {
	return e.Err
}

// ValueReceiverError reports an invalid value receiver assignment.
type ValueReceiverError struct {
	Channel  string
	Receiver string
	Reason   string
}

// Error implements the error interface.
func (e *ValueReceiverError) Error() string {
	return fmt.Sprintf("%s cannot push values to %s: %s", e.Channel, e.Receiver, e.Reason)
}

// Unwrap returns ErrValueReceiver for errors.Is support.
func (e *ValueReceiverError) Unwrap() error {
	return ErrValueReceiver
}

// BadCallbackError reports an input signal constructed without a callback
// or without an owner to bind it to.
type BadCallbackError struct {
	Signal string
	Reason string
}

// Error implements the error interface.
func (e *BadCallbackError) Error() string {
	return fmt.Sprintf("signal %s: %s", e.Signal, e.Reason)
}

// Unwrap returns ErrBadCallback for errors.Is support.
func (e *BadCallbackError) Unwrap() error {
	return ErrBadCallback
}

// ReadinessError is returned by a run that fails its readiness check. The
// report says which part was not ready.
type ReadinessError struct {
	Report ReadinessReport
}

// Error implements the error interface.
func (e *ReadinessError) Error() string {
	return fmt.Sprintf("%s received a run command but is not ready: %s", e.Report.Label, e.Report)
}

// Unwrap returns ErrNotReady for errors.Is support.
func (e *ReadinessError) Unwrap() error {
	return ErrNotReady
}

// CircularDataFlowError reports a data dependency cycle that prevents
// automatic execution ordering. Cyclic graphs need manual run wiring and
// starting nodes.
type CircularDataFlowError struct {
	Nodes []string
	Err   error
}

// Error implements the error interface.
func (e *CircularDataFlowError) Error() string {
	return fmt.Sprintf("detected a cycle in the data flow among [%s]; "+
		"automatic execution is only possible for acyclic data flow", strings.Join(e.Nodes, ", "))
}

// Unwrap returns the underlying sort error, if any.
func (e *CircularDataFlowError) Unwrap() error {
	return e.Err
}

// CrossScopeError reports a data connection to a node outside the set
// being ordered.
type CrossScopeError struct {
	Channel  string
	Upstream string
}

// Error implements the error interface.
func (e *CrossScopeError) Error() string {
	return fmt.Sprintf("%s is connected to %s, whose node is outside the nodes being ordered", e.Channel, e.Upstream)
}

// NodeError wraps an error with node context.
// It provides information about which node failed and what operation was attempted.
type NodeError struct {
	// NodeID is the full label of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g., "run").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from a node run.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the full label of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError reports a composite run stopped by its context.
type CancellationError struct {
	// NodeID is the full label of the composite.
	NodeID string
	// Running lists the children still running at cancellation.
	Running []string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if len(e.Running) > 0 {
		return fmt.Sprintf("cancelled %s while [%s] running: %v", e.NodeID, strings.Join(e.Running, ", "), e.Cause)
	}
	return fmt.Sprintf("cancelled %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// FailedChildError collects the errors of children that failed during a
// composite run.
type FailedChildError struct {
	NodeID   string
	Children []string
	// Err combines the child errors with multierr.
	Err error
}

// Error implements the error interface.
func (e *FailedChildError) Error() string {
	if len(e.Children) == 1 {
		return fmt.Sprintf("%s encountered an error in child %s: %v", e.NodeID, e.Children[0], e.Err)
	}
	return fmt.Sprintf("%s encountered errors in children [%s]: %v", e.NodeID, strings.Join(e.Children, ", "), e.Err)
}

// Unwrap returns the combined child errors.
func (e *FailedChildError) Unwrap() error {
	return e.Err
}

// IOMapError reports a workflow IO map key that names no child channel.
type IOMapError struct {
	Workflow string
	Keys     []string
}

// Error implements the error interface.
func (e *IOMapError) Error() string {
	return fmt.Sprintf("%s: IO map keys [%s] match no child channel", e.Workflow, strings.Join(e.Keys, ", "))
}

// MacroLinkError reports a macro port whose linked child channel is missing
// after a child was replaced.
type MacroLinkError struct {
	Macro   string
	Port    string
	Child   string
	Channel string
}

// Error implements the error interface.
func (e *MacroLinkError) Error() string {
	return fmt.Sprintf("%s: port %s links to %s.%s, which does not exist", e.Macro, e.Port, e.Child, e.Channel)
}

// UnmappedConflictError reports a for-loop body whose looped input labels
// collide with output labels without a column rename.
type UnmappedConflictError struct {
	Labels []string
}

// Error implements the error interface.
func (e *UnmappedConflictError) Error() string {
	return fmt.Sprintf("labels [%s] appear as both looped input and output; map them to new column names",
		strings.Join(e.Labels, ", "))
}

// MapsToNonexistentOutputError reports an output column map naming body
// outputs that do not exist.
type MapsToNonexistentOutputError struct {
	Labels []string
}

// Error implements the error interface.
func (e *MapsToNonexistentOutputError) Error() string {
	return fmt.Sprintf("output column map names nonexistent body outputs [%s]", strings.Join(e.Labels, ", "))
}

// InvalidTestOutputError reports a while-loop test class without a single
// boolean output.
type InvalidTestOutputError struct {
	Class string
}

// Error implements the error interface.
func (e *InvalidTestOutputError) Error() string {
	return fmt.Sprintf("while-loop test class %s must have a single bool output", e.Class)
}

// InvalidEdgeError reports a while-loop edge naming a channel that does not exist.
type InvalidEdgeError struct {
	Class   string
	Channel string
	Output  bool
}

// Error implements the error interface.
func (e *InvalidEdgeError) Error() string {
	kind := "input"
	if e.Output {
		kind = "output"
	}
	return fmt.Sprintf("while-loop class %s has no %s %s", e.Class, kind, e.Channel)
}

// NonTerminatingLoopError reports a while-loop definition without the
// body-to-test or body-to-body edges it needs to ever change state.
type NonTerminatingLoopError struct {
	Missing string
}

// Error implements the error interface.
func (e *NonTerminatingLoopError) Error() string {
	return fmt.Sprintf("while-loop has no %s edges and cannot terminate", e.Missing)
}
