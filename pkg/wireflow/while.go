package wireflow

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/randalmurphal/wireflow/pkg/wireflow/executor"
	"github.com/randalmurphal/wireflow/pkg/wireflow/hint"
)

const (
	testPrefix       = "test_"
	bodyPrefix       = "body_"
	maxIterationsKey = "max_iterations"
)

// Edge connects output From of one loop body to input To of the next test
// or body.
type Edge struct {
	From string
	To   string
}

// WhileOption configures a while-loop class.
type WhileOption func(*WhileClass)

// WithBodyToTest sets the edges from each body to the following test.
func WithBodyToTest(edges ...Edge) WhileOption {
	return func(c *WhileClass) { c.bodyToTest = append(c.bodyToTest, edges...) }
}

// WithBodyToBody sets the edges from each body to the following body.
func WithBodyToBody(edges ...Edge) WhileOption {
	return func(c *WhileClass) { c.bodyToBody = append(c.bodyToBody, edges...) }
}

// WithLooseCondition accepts a test output that is not hinted bool. Its
// value is then judged by truthiness.
func WithLooseCondition() WhileOption {
	return func(c *WhileClass) { c.loose = true }
}

// WhileClass is a node class that alternates test and body instances for
// as long as the test output holds.
type WhileClass struct {
	name       string
	test       NodeClass
	body       NodeClass
	bodyToTest []Edge
	bodyToBody []Edge
	loose      bool
	inputs     []PortSpec
	outputs    []PortSpec
}

// DefineWhile declares and registers a while-loop class. Inputs are the
// test inputs prefixed test_, the body inputs prefixed body_, and
// max_iterations; outputs are the body outputs of the last iteration.
func DefineWhile(name string, test, body NodeClass, opts ...WhileOption) (*WhileClass, error) {
	c := &WhileClass{name: name, test: test, body: body}
	for _, opt := range opts {
		opt(c)
	}

	testIn, testOut := test.Ports()
	if len(testOut) != 1 || (!c.loose && !isBoolHint(testOut[0].Hint)) {
		return nil, &InvalidTestOutputError{Class: test.Name()}
	}
	if len(c.bodyToTest) == 0 {
		return nil, &NonTerminatingLoopError{Missing: "body-to-test"}
	}
	if len(c.bodyToBody) == 0 {
		return nil, &NonTerminatingLoopError{Missing: "body-to-body"}
	}
	bodyIn, bodyOut := body.Ports()
	if err := checkEdges(c.name, bodyOut, testIn, c.bodyToTest); err != nil {
		return nil, err
	}
	if err := checkEdges(c.name, bodyOut, bodyIn, c.bodyToBody); err != nil {
		return nil, err
	}

	for _, p := range testIn {
		p.Label = testPrefix + p.Label
		c.inputs = append(c.inputs, p)
	}
	for _, p := range bodyIn {
		p.Label = bodyPrefix + p.Label
		c.inputs = append(c.inputs, p)
	}
	c.inputs = append(c.inputs, PortSpec{Label: maxIterationsKey, Default: Present(nil)})
	c.outputs = slices.Clone(bodyOut)

	return defineClass(c, func(prior *WhileClass) bool {
		return prior.test.Name() == test.Name() &&
			prior.body.Name() == body.Name() &&
			slices.Equal(prior.bodyToTest, c.bodyToTest) &&
			slices.Equal(prior.bodyToBody, c.bodyToBody) &&
			prior.loose == c.loose
	}), nil
}

func isBoolHint(h *hint.Hint) bool {
	if h == nil || h.Kind() != hint.KindType {
		return false
	}
	t, ok := h.GoType()
	return ok && t.Kind() == reflect.Bool
}

func checkEdges(class string, from, to []PortSpec, edges []Edge) error {
	for _, e := range edges {
		if _, ok := findPort(from, e.From); !ok {
			return &InvalidEdgeError{Class: class, Channel: e.From, Output: true}
		}
		if _, ok := findPort(to, e.To); !ok {
			return &InvalidEdgeError{Class: class, Channel: e.To}
		}
	}
	return nil
}

// Name implements NodeClass.
func (c *WhileClass) Name() string { return c.name }

// Ports implements NodeClass.
func (c *WhileClass) Ports() (inputs, outputs []PortSpec) {
	return slices.Clone(c.inputs), slices.Clone(c.outputs)
}

// New implements NodeClass.
func (c *WhileClass) New(label string, opts ...NodeOption) (Node, error) {
	w, err := c.Node(label, opts...)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// While is a composite that grows test_n and body_n children on every
// run until the test output is false or max_iterations bodies have run.
type While struct {
	*Composite
	class        *WhileClass
	testExecutor executor.Executor
	bodyExecutor executor.Executor
	iterations   int
}

// Node builds a while-loop node.
func (c *WhileClass) Node(label string, opts ...NodeOption) (*While, error) {
	w := &While{class: c}
	comp, err := newComposite(w, label, c.name)
	if err != nil {
		return nil, err
	}
	w.Composite = comp
	for _, p := range c.inputs {
		w.inputs.Add(NewInputData(p.Label, w, p.options()...))
	}
	for _, p := range c.outputs {
		w.outputs.Add(NewOutputData(p.Label, w, p.options()...))
	}
	comp.runnable.onRun = w.onRun
	if err := comp.configure(context.Background(), newNodeConfig(opts)); err != nil {
		return nil, err
	}
	return w, nil
}

// SetTestExecutor sets the executor given to each test instance.
func (w *While) SetTestExecutor(e executor.Executor) { w.testExecutor = e }

// SetBodyExecutor sets the executor given to each body instance.
func (w *While) SetBodyExecutor(e executor.Executor) { w.bodyExecutor = e }

// Iterations returns how many bodies ran in the latest run.
func (w *While) Iterations() int { return w.iterations }

func (w *While) onRun(ctx context.Context) (any, error) {
	for _, child := range w.Children() {
		if _, err := w.RemoveChild(child); err != nil {
			return nil, err
		}
	}
	w.iterations = 0
	limit, bounded, err := w.maxIterations()
	if err != nil {
		return nil, err
	}

	err = w.observeRun(ctx, func(ctx context.Context) error {
		n := 0
		test, body, err := w.extend(n)
		if err != nil {
			return err
		}
		lastBody := body
		if err := w.drive(ctx, []Node{test}); err != nil {
			return err
		}
		for truthy(test.Outputs().All()[0].Value()) && (!bounded || n < limit) {
			test.Then(body)
			if err := w.SetStartingNodes(body); err != nil {
				return err
			}
			if err := w.drive(ctx, []Node{body}); err != nil {
				return err
			}
			lastBody = body
			n++
			w.iterations = n

			if test, body, err = w.extend(n); err != nil {
				return err
			}
			lastBody.Then(test)
			if err := w.connectCycles(lastBody, test, body); err != nil {
				return err
			}
			if err := w.drive(ctx, []Node{test}); err != nil {
				return err
			}
		}
		return w.linkOutputs(lastBody)
	})
	return nil, err
}

func (w *While) maxIterations() (int, bool, error) {
	v := w.inputs.Get(maxIterationsKey).Value()
	if v == nil {
		return 0, false, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.CanInt() {
		return 0, false, &NodeError{NodeID: w.FullLabel(), Op: "input", Err: fmt.Errorf("%s must be an integer or nil, got %T", maxIterationsKey, v)}
	}
	return int(rv.Int()), true, nil
}

// extend adds test_n and body_n and points the loop's own inputs at them.
func (w *While) extend(n int) (Node, Node, error) {
	test, err := w.newChild(w.class.test, fmt.Sprintf("%s%d", testPrefix, n), w.testExecutor)
	if err != nil {
		return nil, nil, err
	}
	body, err := w.newChild(w.class.body, fmt.Sprintf("%s%d", bodyPrefix, n), w.bodyExecutor)
	if err != nil {
		return nil, nil, err
	}
	for _, in := range w.inputs.All() {
		var target Node
		key := in.Label()
		switch {
		case strings.HasPrefix(key, testPrefix):
			target, key = test, strings.TrimPrefix(key, testPrefix)
		case strings.HasPrefix(key, bodyPrefix):
			target, key = body, strings.TrimPrefix(key, bodyPrefix)
		default:
			continue
		}
		if err := in.SetValueReceiver(target.Inputs().Get(key)); err != nil {
			return nil, nil, err
		}
	}
	if err := w.SetStartingNodes(test); err != nil {
		return nil, nil, err
	}
	return test, body, nil
}

func (w *While) newChild(class NodeClass, label string, e executor.Executor) (Node, error) {
	opts := []NodeOption{WithParent(w.Composite)}
	if e != nil {
		opts = append(opts, WithExecutor(e))
	}
	return class.New(label, opts...)
}

func (w *While) connectCycles(lastBody, test, body Node) error {
	for _, e := range w.class.bodyToTest {
		if err := lastBody.Outputs().Get(e.From).Connect(test.Inputs().Get(e.To)); err != nil {
			return err
		}
	}
	for _, e := range w.class.bodyToBody {
		if err := lastBody.Outputs().Get(e.From).Connect(body.Inputs().Get(e.To)); err != nil {
			return err
		}
	}
	return nil
}

func (w *While) linkOutputs(body Node) error {
	for _, out := range body.Outputs().All() {
		if err := out.SetValueReceiver(w.outputs.Get(out.Label())); err != nil {
			return err
		}
	}
	return nil
}

// truthy judges a loop condition: bools by value, nil and zero values as
// false, and empty collections as false.
func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String, reflect.Chan:
		return rv.Len() > 0
	}
	return !rv.IsZero()
}
