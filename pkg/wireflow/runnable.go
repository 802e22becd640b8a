package wireflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/randalmurphal/wireflow/pkg/wireflow/executor"
)

// ReadinessReport explains why a node is or is not ready to run.
type ReadinessReport struct {
	Label   string
	Ready   bool
	Running bool
	Failed  bool
	Inputs  []InputReadiness
}

// InputReadiness is the readiness of one input channel.
type InputReadiness struct {
	Label string
	Ready bool
}

// String renders the report in a compact, human-readable form.
func (r ReadinessReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ready=%t running=%t failed=%t", r.Ready, r.Running, r.Failed)
	if len(r.Inputs) > 0 {
		b.WriteString(" inputs:")
		for _, in := range r.Inputs {
			fmt.Fprintf(&b, " %s=%t", in.Label, in.Ready)
		}
	}
	return b.String()
}

// Runnable is the run state machine shared by every node:
//
//	idle -> running -> idle (success) | failed
//
// A run is refused, unless readiness checks are disabled, while the node is
// running, after it failed, or when its extra readiness conditions are not
// met. With an executor the work is submitted and Run returns a Future
// that resolves once the result has been processed.
type Runnable struct {
	mu       sync.Mutex
	running  bool
	failed   bool
	executor executor.Executor
	future   *executor.Future

	// label names the runnable in errors.
	label func() string
	// onRun does the work.
	onRun func(ctx context.Context) (any, error)
	// processRunResult turns the work's result into the run's return value.
	// It runs on whichever goroutine finished the work.
	processRunResult func(out any) (any, error)
	// readiness reports conditions beyond running and failed. Nil means
	// always ready.
	readiness func(r *ReadinessReport)
}

// runHooks let a node observe a run without the runnable knowing about
// parents, logs or spans.
type runHooks struct {
	// start runs once the run is accepted, before the work.
	start func(ctx context.Context, remote bool) context.Context
	// finish runs after the state is updated, with the final error.
	finish func(ctx context.Context, err error) error
}

// Running reports whether a run is in progress.
func (r *Runnable) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Failed reports whether the last run failed.
func (r *Runnable) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// SetFailed overrides the failed status, e.g. to retry after fixing input.
func (r *Runnable) SetFailed(failed bool) {
	r.mu.Lock()
	r.failed = failed
	r.mu.Unlock()
}

func (r *Runnable) setRunning(running bool) {
	r.mu.Lock()
	r.running = running
	r.mu.Unlock()
}

// SetExecutor sets the executor used for future runs. Nil runs locally.
func (r *Runnable) SetExecutor(e executor.Executor) {
	r.mu.Lock()
	r.executor = e
	r.mu.Unlock()
}

// Executor returns the configured executor, if any.
func (r *Runnable) Executor() executor.Executor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executor
}

// Future returns the pending result of the latest executor run.
func (r *Runnable) Future() *executor.Future {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.future
}

// ExecutorShutdown shuts the executor down, if there is one.
func (r *Runnable) ExecutorShutdown(wait, cancelFutures bool) {
	if e := r.Executor(); e != nil {
		e.Shutdown(wait, cancelFutures)
	}
}

// ReadinessReport describes whether the runnable may run now.
func (r *Runnable) ReadinessReport() ReadinessReport {
	r.mu.Lock()
	rep := ReadinessReport{Running: r.running, Failed: r.failed}
	r.mu.Unlock()
	if r.label != nil {
		rep.Label = r.label()
	}
	rep.Ready = !rep.Running && !rep.Failed
	if r.readiness != nil {
		r.readiness(&rep)
	}
	return rep
}

func (r *Runnable) name() string {
	if r.label == nil {
		return ""
	}
	return r.label()
}

// run drives one pass through the state machine.
func (r *Runnable) run(ctx context.Context, cfg runConfig, h runHooks) (any, error) {
	if cfg.rerun {
		r.mu.Lock()
		r.running, r.failed = false, false
		r.mu.Unlock()
	}
	if cfg.checkReadiness {
		if rep := r.ReadinessReport(); !rep.Ready {
			return nil, &ReadinessError{Report: rep}
		}
	}

	exec := r.Executor()
	remote := exec != nil && !cfg.forceLocal

	r.mu.Lock()
	r.running, r.failed = true, false
	r.mu.Unlock()

	if h.start != nil {
		ctx = h.start(ctx, remote)
	}

	if !remote {
		out, err := r.invoke(ctx)
		return r.finish(ctx, cfg, h, out, err)
	}

	pending := executor.NewFuture()
	r.mu.Lock()
	r.future = pending
	r.mu.Unlock()

	f, err := exec.Submit(func() (any, error) { return r.invoke(ctx) })
	if err != nil {
		out, err := r.finish(ctx, cfg, h, nil, err)
		pending.SetResult(out, err)
		return out, err
	}
	f.AddDoneCallback(func(f *executor.Future) {
		out, err := f.Result(context.Background())
		pending.SetResult(r.finish(ctx, cfg, h, out, err))
	})
	return pending, nil
}

// invoke runs onRun, turning a panic into an error.
func (r *Runnable) invoke(ctx context.Context) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{NodeID: r.name(), Value: p, Stack: string(debug.Stack())}
		}
	}()
	return r.onRun(ctx)
}

func (r *Runnable) finish(ctx context.Context, cfg runConfig, h runHooks, out any, err error) (any, error) {
	if err == nil && r.processRunResult != nil {
		out, err = r.processRunResult(out)
	}

	r.mu.Lock()
	r.running = false
	r.failed = err != nil
	r.mu.Unlock()

	if h.finish != nil {
		if herr := h.finish(ctx, err); err == nil {
			err = herr
		}
	}
	if err != nil {
		if cfg.suppressErrors {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}
