package wireflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/randalmurphal/wireflow/pkg/wireflow/config"
	"github.com/randalmurphal/wireflow/pkg/wireflow/executor"
	"github.com/randalmurphal/wireflow/pkg/wireflow/observability"
	"github.com/randalmurphal/wireflow/pkg/wireflow/storage"
)

// runConfig holds configuration for a single run.
type runConfig struct {
	rerun          bool
	checkReadiness bool
	suppressErrors bool
	forceLocal     bool
	fetch          bool
	emit           bool
	runDataTree    bool
	inputs         Values
}

// defaultRunConfig returns the default run configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		checkReadiness: true,
		fetch:          true,
		emit:           true,
	}
}

// RunOption configures a run.
type RunOption func(*runConfig)

// Rerun clears the running and failed status before the readiness check.
func Rerun() RunOption {
	return func(c *runConfig) { c.rerun = true }
}

// WithoutReadinessCheck runs even when the node reports it is not ready.
func WithoutReadinessCheck() RunOption {
	return func(c *runConfig) { c.checkReadiness = false }
}

// SuppressErrors makes a failed run return nil, nil. The node is still
// marked failed and still emits its failed signal.
func SuppressErrors() RunOption {
	return func(c *runConfig) { c.suppressErrors = true }
}

// ForceLocal ignores the node's executor for this run.
func ForceLocal() RunOption {
	return func(c *runConfig) { c.forceLocal = true }
}

// WithoutFetch skips fetching input values from connections.
func WithoutFetch() RunOption {
	return func(c *runConfig) { c.fetch = false }
}

// WithoutEmit skips emitting the ran or failed signal afterwards.
func WithoutEmit() RunOption {
	return func(c *runConfig) { c.emit = false }
}

// RunDataTree first runs every upstream node in the data graph, in
// topological order. Only valid for acyclic data flow without executors.
func RunDataTree() RunOption {
	return func(c *runConfig) { c.runDataTree = true }
}

// WithInputs sets input values before anything else happens. Values set
// this way are overwritten by fetched connection values.
func WithInputs(values Values) RunOption {
	return func(c *runConfig) {
		if c.inputs == nil {
			c.inputs = make(Values, len(values))
		}
		for k, v := range values {
			c.inputs[k] = v
		}
	}
}

// nodeConfig holds construction-time configuration for a node.
type nodeConfig struct {
	parent      *Composite
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	executor    executor.Executor
	cache       bool
	checkpoint  storage.Store
	autoload    storage.Store
	values      Values
	strictHints *bool
}

// NodeOption configures a node at construction.
type NodeOption func(*nodeConfig)

// WithParent adds the new node to parent as a child.
func WithParent(parent *Composite) NodeOption {
	return func(c *nodeConfig) { c.parent = parent }
}

// WithLogger sets the node's logger. Children inherit it unless they set
// their own. Default: slog.Default().
func WithLogger(logger *slog.Logger) NodeOption {
	return func(c *nodeConfig) { c.logger = logger }
}

// WithMetrics sets the metrics recorder. Default: observability.NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) NodeOption {
	return func(c *nodeConfig) { c.metrics = m }
}

// WithSpanManager sets the span manager. Default: observability.NoopSpanManager.
func WithSpanManager(s observability.SpanManager) NodeOption {
	return func(c *nodeConfig) { c.spans = s }
}

// WithExecutor runs the node's work on e. Use executor.Lazy for an
// executor that survives saving.
func WithExecutor(e executor.Executor) NodeOption {
	return func(c *nodeConfig) { c.executor = e }
}

// WithCache skips runs whose input values equal those of the last
// successful run.
func WithCache() NodeOption {
	return func(c *nodeConfig) { c.cache = true }
}

// WithCheckpoint saves the graph root to store after each of this node's runs.
func WithCheckpoint(store storage.Store) NodeOption {
	return func(c *nodeConfig) { c.checkpoint = store }
}

// WithAutoload loads saved state from store at construction, when any exists.
func WithAutoload(store storage.Store) NodeOption {
	return func(c *nodeConfig) { c.autoload = store }
}

// WithValues sets initial input values.
func WithValues(values Values) NodeOption {
	return func(c *nodeConfig) { c.values = values }
}

// WithStrictHints turns hint enforcement on or off for every data channel
// of the node.
func WithStrictHints(strict bool) NodeOption {
	return func(c *nodeConfig) { c.strictHints = &strict }
}

// ExecutorFromSettings returns lazy pool instructions for the configured
// worker count, or nil when no workers are configured.
func ExecutorFromSettings(s config.Settings) executor.Executor {
	if s.Executor.Workers <= 0 {
		return nil
	}
	return executor.Lazy("pool", map[string]any{"workers": s.Executor.Workers})
}

// OptionsFromSettings turns runtime settings into options for a graph
// root. The returned store is the checkpoint store; the caller closes it.
// The executor is left to ExecutorFromSettings since it belongs on the
// children doing the work.
func OptionsFromSettings(ctx context.Context, s config.Settings) ([]NodeOption, storage.Store, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	opts := []NodeOption{
		WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: s.Level()}))),
		WithStrictHints(s.StrictHints),
	}
	if s.Metrics {
		opts = append(opts, WithMetrics(observability.NewMetricsRecorder()))
	}
	if s.Tracing {
		opts = append(opts, WithSpanManager(observability.NewSpanManager()))
	}
	store, err := storage.Open(ctx, s.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	opts = append(opts, WithCheckpoint(store))
	return opts, store, nil
}
