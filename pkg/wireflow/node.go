package wireflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/wireflow/pkg/wireflow/executor"
	"github.com/randalmurphal/wireflow/pkg/wireflow/observability"
	"github.com/randalmurphal/wireflow/pkg/wireflow/storage"
)

// Signal labels every node carries.
const (
	SignalRun              = "run"
	SignalAccumulateAndRun = "accumulate_and_run"
	SignalRan              = "ran"
	SignalFailed           = "failed"
)

// Node is a vertex of a workflow graph. Every implementation embeds
// nodeBase.
type Node interface {
	Owner
	HasChannel

	Parent() *Composite
	SetLabel(label string) error
	ClassName() string

	Inputs() *Inputs
	Outputs() *Outputs
	Signals() *Signals

	// Run fetches input, runs, and emits ran or failed. With an executor
	// the returned value is an *executor.Future.
	Run(ctx context.Context, opts ...RunOption) (any, error)
	// Execute runs locally on the given input without fetching, checking
	// readiness or emitting.
	Execute(ctx context.Context, inputs Values) (any, error)
	// Pull runs the upstream data tree and then this node, without emitting.
	Pull(ctx context.Context, inputs Values) (any, error)

	Running() bool
	Failed() bool
	SetFailed(failed bool)
	Ready() bool
	ReadinessReport() ReadinessReport

	Then(next Node) Node
	Disconnect() []Pair

	Executor() executor.Executor
	SetExecutor(e executor.Executor)
	ExecutorShutdown(wait, cancelFutures bool)
	Future() *executor.Future

	Save(ctx context.Context, store storage.Store) error
	Load(ctx context.Context, store storage.Store) error
	HasSavedContent(ctx context.Context, store storage.Store) (bool, error)
	DeleteSaved(ctx context.Context, store storage.Store) error

	base() *nodeBase
}

// nodeBase carries the state and behavior shared by all nodes. Concrete
// nodes set self so that overridden methods (Inputs on a Workflow, say)
// are used by the shared code.
type nodeBase struct {
	self   Node
	label  string
	class  string
	parent *Composite

	inputs   *Inputs
	outputs  *Outputs
	signals  *Signals
	runnable Runnable

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	checkpoint storage.Store

	cacheMu      sync.Mutex
	useCache     bool
	cachedInputs Values
	cacheValid   bool
}

func validLabel(label string) error {
	if label == "" || strings.Contains(label, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return nil
}

// setup prepares the base before the concrete node adds data channels.
func (n *nodeBase) setup(self Node, label, class string) error {
	if err := validLabel(label); err != nil {
		return err
	}
	n.self = self
	n.label = label
	n.class = class
	n.inputs = NewInputs()
	n.outputs = NewOutputs()
	n.signals = newSignals()

	n.runnable.label = n.FullLabel
	n.runnable.readiness = n.inputReadiness

	runCallback := func(ctx context.Context) error {
		_, err := self.Run(ctx)
		return err
	}
	run, err := NewInputSignal(SignalRun, self, runCallback)
	if err != nil {
		return err
	}
	acc, err := NewAccumulatingInputSignal(SignalAccumulateAndRun, self, runCallback)
	if err != nil {
		return err
	}
	n.signals.Input.Add(run)
	n.signals.Input.Add(acc)
	n.signals.Output.Add(NewOutputSignal(SignalRan, self))
	n.signals.Output.Add(NewOutputSignal(SignalFailed, self))
	return nil
}

// configure applies construction options once the concrete node is
// complete.
func (n *nodeBase) configure(ctx context.Context, cfg nodeConfig) error {
	n.logger = cfg.logger
	n.metrics = cfg.metrics
	n.spans = cfg.spans
	n.checkpoint = cfg.checkpoint
	n.useCache = cfg.cache
	if cfg.strictHints != nil {
		if s, ok := n.self.(interface{ SetStrictHints(bool) }); ok {
			s.SetStrictHints(*cfg.strictHints)
		}
	}
	if cfg.executor != nil {
		n.runnable.SetExecutor(cfg.executor)
	}
	if cfg.parent != nil {
		if err := cfg.parent.AddChild(n.self); err != nil {
			return err
		}
	}
	if len(cfg.values) > 0 {
		if err := n.self.Inputs().SetValues(cfg.values); err != nil {
			return err
		}
	}
	if cfg.autoload != nil {
		ok, err := n.self.HasSavedContent(ctx, cfg.autoload)
		if err != nil {
			return err
		}
		if ok {
			return n.self.Load(ctx, cfg.autoload)
		}
	}
	return nil
}

func (n *nodeBase) base() *nodeBase { return n }

// Label returns the node's label.
func (n *nodeBase) Label() string { return n.label }

// FullLabel returns the slash-separated path from the graph root.
func (n *nodeBase) FullLabel() string {
	if n.parent == nil {
		return "/" + n.label
	}
	return n.parent.FullLabel() + "/" + n.label
}

// SetLabel relabels the node. Siblings must not already use the label.
func (n *nodeBase) SetLabel(label string) error {
	if err := validLabel(label); err != nil {
		return err
	}
	if label == n.label {
		return nil
	}
	if n.parent != nil {
		return n.parent.relabel(n.self, label)
	}
	n.label = label
	return nil
}

// ClassName returns the name of the node's class.
func (n *nodeBase) ClassName() string { return n.class }

// Parent returns the owning composite, nil at the graph root.
func (n *nodeBase) Parent() *Composite { return n.parent }

// DataInputLocked reports whether input values are refused. They are
// while the node runs.
func (n *nodeBase) DataInputLocked() bool { return n.runnable.Running() }

// Inputs returns the input data panel.
func (n *nodeBase) Inputs() *Inputs { return n.inputs }

// Outputs returns the output data panel.
func (n *nodeBase) Outputs() *Outputs { return n.outputs }

// Signals returns the signal panels.
func (n *nodeBase) Signals() *Signals { return n.signals }

// Channel returns the single output, letting a one-output node stand in
// for its output when connecting. It returns nil otherwise.
func (n *nodeBase) Channel() Channel {
	outs := n.self.Outputs()
	if outs.Len() != 1 {
		return nil
	}
	return outs.All()[0]
}

func (n *nodeBase) graphRoot() Node {
	root := n.self
	for p := root.Parent(); p != nil; p = root.Parent() {
		root = p.self
	}
	return root
}

// Logger returns the node's logger, inherited from the parent if unset.
func (n *nodeBase) Logger() *slog.Logger {
	switch {
	case n.logger != nil:
		return n.logger
	case n.parent != nil:
		return n.parent.Logger()
	}
	return slog.Default()
}

func (n *nodeBase) metricsRecorder() observability.MetricsRecorder {
	switch {
	case n.metrics != nil:
		return n.metrics
	case n.parent != nil:
		return n.parent.metricsRecorder()
	}
	return observability.NoopMetrics{}
}

func (n *nodeBase) spanManager() observability.SpanManager {
	switch {
	case n.spans != nil:
		return n.spans
	case n.parent != nil:
		return n.parent.spanManager()
	}
	return observability.NoopSpanManager{}
}

// Running reports whether the node is running.
func (n *nodeBase) Running() bool { return n.runnable.Running() }

// Failed reports whether the last run failed.
func (n *nodeBase) Failed() bool { return n.runnable.Failed() }

// SetFailed overrides the failed status.
func (n *nodeBase) SetFailed(failed bool) { n.runnable.SetFailed(failed) }

// Executor returns the node's executor, if any.
func (n *nodeBase) Executor() executor.Executor { return n.runnable.Executor() }

// SetExecutor sets the executor for future runs.
func (n *nodeBase) SetExecutor(e executor.Executor) { n.runnable.SetExecutor(e) }

// ExecutorShutdown shuts down the node's executor.
func (n *nodeBase) ExecutorShutdown(wait, cancelFutures bool) {
	n.runnable.ExecutorShutdown(wait, cancelFutures)
}

// Future returns the pending result of the latest executor run.
func (n *nodeBase) Future() *executor.Future { return n.runnable.Future() }

// ReadinessReport describes the node's status and input readiness.
func (n *nodeBase) ReadinessReport() ReadinessReport { return n.runnable.ReadinessReport() }

// Ready reports whether the node could run now.
func (n *nodeBase) Ready() bool { return n.self.ReadinessReport().Ready }

func (n *nodeBase) inputReadiness(r *ReadinessReport) {
	in := n.self.Inputs()
	for _, key := range in.Labels() {
		ready := in.Get(key).Ready()
		r.Inputs = append(r.Inputs, InputReadiness{Label: key, Ready: ready})
		if !ready {
			r.Ready = false
		}
	}
}

// Then connects this node's ran signal to next's run signal and returns
// next, so chains read a.Then(b).Then(c).
func (n *nodeBase) Then(next Node) Node {
	ran := n.signals.Output.Get(SignalRan)
	_ = ran.Connect(next.Signals().Input.Get(SignalRun))
	return next
}

// Disconnect breaks every data and signal connection of the node.
func (n *nodeBase) Disconnect() []Pair {
	broken := n.self.Inputs().DisconnectAll()
	broken = append(broken, n.self.Outputs().DisconnectAll()...)
	return append(broken, n.signals.DisconnectAll()...)
}

// Run runs the node. See Node.
func (n *nodeBase) Run(ctx context.Context, opts ...RunOption) (any, error) {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return n.run(ctx, cfg)
}

// Execute runs the node. See Node.
func (n *nodeBase) Execute(ctx context.Context, inputs Values) (any, error) {
	return n.self.Run(ctx, WithInputs(inputs), WithoutFetch(), WithoutReadinessCheck(), ForceLocal(), WithoutEmit())
}

// Pull runs the node. See Node.
func (n *nodeBase) Pull(ctx context.Context, inputs Values) (any, error) {
	return n.self.Run(ctx, WithInputs(inputs), RunDataTree(), WithoutEmit())
}

func (n *nodeBase) run(ctx context.Context, cfg runConfig) (any, error) {
	self := n.self
	if len(cfg.inputs) > 0 {
		if err := self.Inputs().SetValues(cfg.inputs); err != nil {
			return nil, err
		}
	}
	if cfg.runDataTree {
		if err := runDataTree(ctx, self); err != nil {
			return nil, err
		}
	}
	if cfg.fetch {
		if err := self.Inputs().Fetch(); err != nil {
			return nil, err
		}
	}

	if n.cacheHit() {
		observability.LogCacheHit(n.Logger(), n.FullLabel())
		if p := n.parent; p != nil {
			p.registerChildStarting(self)
			p.childFinished(self, nil, cfg.emit)
		} else if cfg.emit {
			if err := n.emit(ctx, nil); err != nil {
				return nil, err
			}
		}
		return self.Outputs().Values(), nil
	}
	n.writeCache()

	var (
		started time.Time
		span    trace.Span
	)
	hooks := runHooks{
		start: func(ctx context.Context, remote bool) context.Context {
			started = time.Now()
			if p := n.parent; p != nil {
				p.registerChildStarting(self)
			}
			observability.LogNodeStart(n.Logger(), n.FullLabel(), remote)
			ctx, span = n.spanManager().StartNodeSpan(ctx, n.FullLabel())
			return ctx
		},
		finish: func(ctx context.Context, err error) error {
			return n.finishRun(ctx, cfg, time.Since(started), span, err)
		},
	}
	return n.runnable.run(ctx, cfg, hooks)
}

func (n *nodeBase) finishRun(ctx context.Context, cfg runConfig, d time.Duration, span trace.Span, err error) error {
	label := n.FullLabel()
	n.metricsRecorder().RecordNodeRun(ctx, label, d, err)
	if err != nil {
		observability.LogNodeError(n.Logger(), label, err)
		n.clearCache()
	} else {
		observability.LogNodeComplete(n.Logger(), label, float64(d.Milliseconds()))
	}
	n.spanManager().EndSpanWithError(span, err)

	var emitErr error
	if p := n.parent; p != nil {
		p.childFinished(n.self, err, cfg.emit)
	} else if cfg.emit {
		emitErr = n.emit(ctx, err)
	}

	if n.checkpoint != nil {
		root := n.graphRoot()
		if serr := root.Save(ctx, n.checkpoint); serr != nil {
			observability.LogStorageError(n.Logger(), root.FullLabel(), "checkpoint", serr)
		}
	}
	return emitErr
}

// emit fires ran, or failed when err is set, directly to connected nodes.
func (n *nodeBase) emit(ctx context.Context, err error) error {
	if err != nil {
		return n.signals.Output.Get(SignalFailed).Fire(ctx)
	}
	return n.signals.Output.Get(SignalRan).Fire(ctx)
}

// wrapRunError gives onRun errors node context. Panics already carry it.
func (n *nodeBase) wrapRunError(err error) error {
	if err == nil {
		return nil
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return err
	}
	return &NodeError{NodeID: n.FullLabel(), Op: "run", Err: err}
}

func (n *nodeBase) cacheHit() bool {
	n.cacheMu.Lock()
	defer n.cacheMu.Unlock()
	if !n.useCache || !n.cacheValid || n.self.Running() || n.self.Failed() {
		return false
	}
	return reflect.DeepEqual(n.cachedInputs, n.self.Inputs().Values())
}

func (n *nodeBase) writeCache() {
	n.cacheMu.Lock()
	defer n.cacheMu.Unlock()
	if n.useCache {
		n.cachedInputs = n.self.Inputs().Values()
		n.cacheValid = true
	}
}

func (n *nodeBase) clearCache() {
	n.cacheMu.Lock()
	n.cachedInputs = nil
	n.cacheValid = false
	n.cacheMu.Unlock()
}

// SetStrictHints turns hint enforcement on or off for every data channel.
func (n *nodeBase) SetStrictHints(strict bool) {
	for _, c := range n.inputs.All() {
		c.SetStrict(strict)
	}
	for _, c := range n.outputs.All() {
		c.SetStrict(strict)
	}
}

// SetCache turns input caching on or off.
func (n *nodeBase) SetCache(enabled bool) {
	n.cacheMu.Lock()
	n.useCache = enabled
	if !enabled {
		n.cachedInputs, n.cacheValid = nil, false
	}
	n.cacheMu.Unlock()
}
