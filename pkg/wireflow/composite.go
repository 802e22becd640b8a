package wireflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/randalmurphal/wireflow/pkg/wireflow/observability"
)

// signalEvent is a queued firing: sender fired and receiver must hear it.
type signalEvent struct {
	sender   *OutputSignal
	receiver SignalReceiver
}

// Composite is a node that owns a subgraph of child nodes.
//
// Running a composite runs its starting nodes and then dispatches the
// signals its children emit, one at a time and in the order they were
// emitted, until no signals are queued and no child is still running.
// Children on executors finish on other goroutines; their signals join
// the same queue, so the composite alone decides what runs next.
type Composite struct {
	nodeBase

	children []Node
	byLabel  map[string]Node
	starting []Node

	// beforeRun prepares execution wiring, e.g. a workflow's automatic DAG.
	beforeRun func() error
	// rebuildIO refreshes IO derived from children after a replacement.
	rebuildIO func() error

	mu              sync.Mutex
	cond            *sync.Cond
	queue           []signalEvent
	runningChildren []string
	byExecution     []string
	byCompletion    []string
	childErrs       map[string]error
	errOrder        []string
	runID           string
}

// NewComposite creates an empty composite with no IO of its own.
func NewComposite(label string, opts ...NodeOption) (*Composite, error) {
	c, err := newComposite(nil, label, compositeClassName)
	if err != nil {
		return nil, err
	}
	if err := c.configure(context.Background(), newNodeConfig(opts)); err != nil {
		return nil, err
	}
	return c, nil
}

// newComposite prepares a composite whose outer node is self, or the
// composite itself when self is nil.
func newComposite(self Node, label, class string) (*Composite, error) {
	c := &Composite{byLabel: make(map[string]Node)}
	c.cond = sync.NewCond(&c.mu)
	if self == nil {
		self = c
	}
	if err := c.setup(self, label, class); err != nil {
		return nil, err
	}
	c.runnable.onRun = c.onRun
	c.runnable.processRunResult = func(any) (any, error) {
		return c.self.Outputs().Values(), nil
	}
	return c, nil
}

const compositeClassName = "Composite"

type compositeClass struct{}

func (compositeClass) Name() string                        { return compositeClassName }
func (compositeClass) Ports() (inputs, outputs []PortSpec) { return nil, nil }
func (compositeClass) New(label string, opts ...NodeOption) (Node, error) {
	return NewComposite(label, opts...)
}

func init() {
	if err := RegisterClass(compositeClass{}); err != nil {
		panic(err)
	}
}

// Children returns the children in insertion order.
func (c *Composite) Children() []Node { return slices.Clone(c.children) }

// Child returns the child with the given label.
func (c *Composite) Child(label string) (Node, bool) {
	n, ok := c.byLabel[label]
	return n, ok
}

// ChildLabels returns the child labels in insertion order.
func (c *Composite) ChildLabels() []string {
	labels := make([]string, len(c.children))
	for i, n := range c.children {
		labels[i] = n.Label()
	}
	return labels
}

func (c *Composite) isAncestorOrSelf(n Node) bool {
	for p := c; p != nil; p = p.parent {
		if p.self == n || Node(p) == n {
			return true
		}
	}
	return false
}

// AddChild makes child part of this composite's subgraph.
func (c *Composite) AddChild(child Node) error {
	return c.insertChild(len(c.children), child)
}

func (c *Composite) insertChild(index int, child Node) error {
	if _, ok := child.(*Workflow); ok {
		return fmt.Errorf("%w: cannot add %s to %s", ErrParentMost, child.FullLabel(), c.FullLabel())
	}
	if c.isAncestorOrSelf(child) {
		return fmt.Errorf("%w: %s contains %s", ErrHasParent, child.FullLabel(), c.FullLabel())
	}
	if p := child.Parent(); p != nil {
		return fmt.Errorf("%w: %s", ErrHasParent, child.FullLabel())
	}
	if _, taken := c.byLabel[child.Label()]; taken {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateChild, child.Label(), c.FullLabel())
	}
	child.base().parent = c
	c.children = slices.Insert(c.children, index, child)
	c.byLabel[child.Label()] = child
	c.clearCache()
	return nil
}

// RemoveChild disconnects child, drops it from the subgraph and returns
// the connections it broke.
func (c *Composite) RemoveChild(child Node) ([]Pair, error) {
	if child.Parent() != c {
		return nil, fmt.Errorf("%w: %s of %s", ErrNotChild, child.FullLabel(), c.FullLabel())
	}
	broken := child.Disconnect()
	c.detachChild(child)
	return broken, nil
}

func (c *Composite) detachChild(child Node) {
	c.children = slices.DeleteFunc(c.children, func(n Node) bool { return n == child })
	c.starting = slices.DeleteFunc(c.starting, func(n Node) bool { return n == child })
	delete(c.byLabel, child.Label())
	child.base().parent = nil
	c.clearCache()
}

func (c *Composite) relabel(child Node, label string) error {
	if _, taken := c.byLabel[label]; taken {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateChild, label, c.FullLabel())
	}
	delete(c.byLabel, child.Label())
	child.base().label = label
	c.byLabel[label] = child
	return nil
}

// SetStartingNodes sets the children run first when the composite runs.
func (c *Composite) SetStartingNodes(nodes ...Node) error {
	for _, n := range nodes {
		if n.Parent() != c {
			return fmt.Errorf("%w: %s of %s", ErrNotChild, n.FullLabel(), c.FullLabel())
		}
	}
	c.starting = slices.Clone(nodes)
	return nil
}

// StartingNodes returns the children run first.
func (c *Composite) StartingNodes() []Node { return slices.Clone(c.starting) }

// SetRunSignalsToDAGExecution rewires the children's execution signals
// from their data flow and makes the upstream-most children the starting
// nodes.
func (c *Composite) SetRunSignalsToDAGExecution() error {
	if len(c.children) == 0 {
		return nil
	}
	_, starters, err := SetRunConnectionsToDAG(c.children)
	if err != nil {
		return err
	}
	c.starting = starters
	return nil
}

// DisconnectRun breaks the run inputs of every child.
func (c *Composite) DisconnectRun() []Pair {
	var broken []Pair
	for _, n := range c.children {
		broken = append(broken, n.Signals().DisconnectRun()...)
	}
	return broken
}

// ExecutorShutdown shuts down this composite's executor and those of all
// descendants.
func (c *Composite) ExecutorShutdown(wait, cancelFutures bool) {
	c.runnable.ExecutorShutdown(wait, cancelFutures)
	for _, n := range c.children {
		n.ExecutorShutdown(wait, cancelFutures)
	}
}

// SetStrictHints turns hint enforcement on or off for this composite and
// every descendant.
func (c *Composite) SetStrictHints(strict bool) {
	c.nodeBase.SetStrictHints(strict)
	for _, n := range c.children {
		if s, ok := n.(interface{ SetStrictHints(bool) }); ok {
			s.SetStrictHints(strict)
		}
	}
}

// RunID returns the ID of the latest run.
func (c *Composite) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// ProvenanceByExecution returns child labels in the order they started
// during the latest run.
func (c *Composite) ProvenanceByExecution() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.byExecution)
}

// ProvenanceByCompletion returns child labels in the order they finished
// during the latest run.
func (c *Composite) ProvenanceByCompletion() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.byCompletion)
}

// RunningChildren returns the labels of children still running.
func (c *Composite) RunningChildren() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.runningChildren)
}

func (c *Composite) registerChildStarting(child Node) {
	c.mu.Lock()
	c.byExecution = append(c.byExecution, child.Label())
	c.runningChildren = append(c.runningChildren, child.Label())
	c.mu.Unlock()
}

// childFinished records a finished child and, when emitting, queues its
// ran signal (failed, when err is set) for every connected receiver.
func (c *Composite) childFinished(child Node, err error, emitting bool) {
	label := child.Label()
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.Index(c.runningChildren, label); i >= 0 {
		c.runningChildren = slices.Delete(c.runningChildren, i, i+1)
	}
	c.byCompletion = append(c.byCompletion, label)
	if err != nil {
		c.recordChildErrorLocked(child.FullLabel(), err)
	}
	if emitting {
		signal := SignalRan
		if err != nil {
			signal = SignalFailed
		}
		sender := child.Signals().Output.Get(signal)
		for _, r := range sender.Connections() {
			c.queue = append(c.queue, signalEvent{sender: sender, receiver: r.(SignalReceiver)})
		}
	}
	c.cond.Broadcast()
}

func (c *Composite) recordChildErrorLocked(key string, err error) {
	if c.childErrs == nil {
		c.childErrs = make(map[string]error)
	}
	if _, seen := c.childErrs[key]; seen {
		return
	}
	c.childErrs[key] = err
	c.errOrder = append(c.errOrder, key)
}

func (c *Composite) recordChildError(key string, err error) {
	c.mu.Lock()
	c.recordChildErrorLocked(key, err)
	c.mu.Unlock()
}

func (c *Composite) onRun(ctx context.Context) (any, error) {
	if c.beforeRun != nil {
		if err := c.beforeRun(); err != nil {
			return nil, err
		}
	}
	return nil, c.runGraph(ctx, c.StartingNodes())
}

// runSubgraph runs the graph loop from starters without running the
// composite itself.
func (c *Composite) runSubgraph(ctx context.Context, starters []Node) error {
	return c.runGraph(ctx, starters)
}

func (c *Composite) runGraph(ctx context.Context, starters []Node) error {
	return c.observeRun(ctx, func(ctx context.Context) error {
		return c.drive(ctx, starters)
	})
}

// observeRun resets the run state, then runs body with logging, a
// composite span and metrics around it.
func (c *Composite) observeRun(ctx context.Context, body func(ctx context.Context) error) (err error) {
	runID := uuid.NewString()
	c.mu.Lock()
	c.runID = runID
	c.queue = nil
	c.runningChildren = nil
	c.byExecution = nil
	c.byCompletion = nil
	c.childErrs = nil
	c.errOrder = nil
	c.mu.Unlock()

	label := c.FullLabel()
	logger := c.Logger()
	start := time.Now()
	observability.LogRunStart(logger, runID, label)
	ctx, span := c.spanManager().StartCompositeSpan(ctx, label, runID)
	defer func() {
		d := time.Since(start)
		c.metricsRecorder().RecordCompositeRun(ctx, label, err == nil, d)
		if err != nil {
			observability.LogRunError(logger, runID, label, err, float64(d.Milliseconds()))
		} else {
			observability.LogRunComplete(logger, runID, label, float64(d.Milliseconds()), len(c.ProvenanceByCompletion()))
		}
		c.spanManager().EndSpanWithError(span, err)
	}()
	return body(ctx)
}

// drive runs starters, then dispatches queued signals until none are
// queued and no child is running. Child errors are collected rather than
// stopping the loop.
func (c *Composite) drive(ctx context.Context, starters []Node) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	for _, s := range starters {
		if _, err := s.Run(ctx); err != nil {
			c.recordChildError(s.FullLabel(), err)
		}
	}

	label := c.FullLabel()
	dispatchLog := observability.EnrichLogger(c.Logger(), c.RunID(), label)
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && len(c.runningChildren) > 0 && ctx.Err() == nil {
			c.cond.Wait()
		}
		if cause := ctx.Err(); cause != nil {
			running := slices.Clone(c.runningChildren)
			c.mu.Unlock()
			return &CancellationError{NodeID: label, Running: running, Cause: cause}
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			break
		}
		ev := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		dispatchLog.Debug("dispatching signal",
			slog.String("sender", ev.sender.FullLabel()),
			slog.String("receiver", ev.receiver.FullLabel()),
		)
		if err := ev.receiver.Receive(ctx, ev.sender); err != nil {
			c.recordChildError(ev.receiver.Owner().FullLabel(), err)
		}
	}

	return c.failedChildren()
}

func (c *Composite) failedChildren() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errOrder) == 0 {
		return nil
	}
	var combined error
	for _, key := range c.errOrder {
		combined = multierr.Append(combined, c.childErrs[key])
	}
	return &FailedChildError{NodeID: c.FullLabel(), Children: slices.Clone(c.errOrder), Err: combined}
}

// connectionStrings lists connections into children's inputs as
// [[inChild, inChannel], [outChild, outChannel]]. Connections to
// channels outside the composite are skipped.
func (c *Composite) connectionStrings(inputs func(Node) []Channel) [][2][2]string {
	var out [][2][2]string
	for _, child := range c.children {
		for _, in := range inputs(child) {
			for _, up := range in.Connections() {
				owner, ok := up.Owner().(Node)
				if !ok || owner.Parent() != c {
					continue
				}
				out = append(out, [2][2]string{
					{child.Label(), in.Label()},
					{owner.Label(), up.Label()},
				})
			}
		}
	}
	return out
}

// DataConnections lists the data connections among children.
func (c *Composite) DataConnections() [][2][2]string {
	return c.connectionStrings(func(n Node) []Channel {
		var chans []Channel
		for _, in := range n.Inputs().All() {
			chans = append(chans, in)
		}
		return chans
	})
}

// SignalConnections lists the signal connections among children.
func (c *Composite) SignalConnections() [][2][2]string {
	return c.connectionStrings(func(n Node) []Channel {
		var chans []Channel
		for _, in := range n.Signals().Input.All() {
			chans = append(chans, in)
		}
		return chans
	})
}

// restoreConnections connects children from connection strings.
func (c *Composite) restoreConnections(data, signals [][2][2]string) error {
	for _, pair := range data {
		in, out, err := c.resolveConnection(pair, true)
		if err != nil {
			return err
		}
		if err := in.Connect(out); err != nil {
			return err
		}
	}
	for _, pair := range signals {
		in, out, err := c.resolveConnection(pair, false)
		if err != nil {
			return err
		}
		if err := in.Connect(out); err != nil {
			return err
		}
	}
	return nil
}

// disconnectChildren breaks every connection between two children.
// Connections leaving the composite are kept.
func (c *Composite) disconnectChildren() {
	for _, pair := range c.DataConnections() {
		if in, out, err := c.resolveConnection(pair, true); err == nil {
			in.Disconnect(out)
		}
	}
	for _, pair := range c.SignalConnections() {
		if in, out, err := c.resolveConnection(pair, false); err == nil {
			in.Disconnect(out)
		}
	}
}

// resolveConnection finds the input and output channels named by pair.
func (c *Composite) resolveConnection(pair [2][2]string, data bool) (Channel, Channel, error) {
	inNode, ok := c.byLabel[pair[0][0]]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s in %s", ErrNotChild, pair[0][0], c.FullLabel())
	}
	outNode, ok := c.byLabel[pair[1][0]]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s in %s", ErrNotChild, pair[1][0], c.FullLabel())
	}
	var (
		in, out     Channel
		inOK, outOK bool
	)
	if data {
		var i *InputData
		var o *OutputData
		i, inOK = inNode.Inputs().Lookup(pair[0][1])
		o, outOK = outNode.Outputs().Lookup(pair[1][1])
		in, out = i, o
	} else {
		var i SignalReceiver
		var o *OutputSignal
		i, inOK = inNode.Signals().Input.Lookup(pair[0][1])
		o, outOK = outNode.Signals().Output.Lookup(pair[1][1])
		in, out = i, o
	}
	if !inOK {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrChannelNotFound, pair[0][0], pair[0][1])
	}
	if !outOK {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrChannelNotFound, pair[1][0], pair[1][1])
	}
	return in, out, nil
}

func (c *Composite) composite() *Composite { return c }
