package wireflow

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/randalmurphal/wireflow/pkg/wireflow/hint"
	"github.com/randalmurphal/wireflow/pkg/wireflow/registry"
)

// PortSpec declares one data channel of a node class.
type PortSpec struct {
	Label   string
	Hint    *hint.Hint
	Default Datum
}

func (p PortSpec) options() []DataOption {
	opts := []DataOption{WithHint(p.Hint)}
	if v, ok := p.Default.Get(); ok {
		opts = append(opts, WithDefault(v))
	}
	return opts
}

func portLabels(ports []PortSpec) []string {
	labels := make([]string, len(ports))
	for i, p := range ports {
		labels[i] = p.Label
	}
	return labels
}

func findPort(ports []PortSpec, label string) (PortSpec, bool) {
	for _, p := range ports {
		if p.Label == label {
			return p, true
		}
	}
	return PortSpec{}, false
}

// NodeClass builds nodes of one kind. Classes are registered by name so
// saved graphs can rebuild their children.
type NodeClass interface {
	Name() string
	Ports() (inputs, outputs []PortSpec)
	New(label string, opts ...NodeOption) (Node, error)
}

var classes = registry.New[string, NodeClass]()

// RegisterClass makes c available to LookupClass. Registering a second
// class under the same name fails.
func RegisterClass(c NodeClass) error {
	if err := classes.RegisterOnce(c.Name(), c); err != nil {
		return fmt.Errorf("register class %q: %w", c.Name(), err)
	}
	return nil
}

// LookupClass returns the class registered under name.
func LookupClass(name string) (NodeClass, error) {
	c, ok := classes.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, name)
	}
	return c, nil
}

// ClassNames returns the registered class names, sorted.
func ClassNames() []string {
	return registry.SortedKeys(classes)
}

// defineClass registers c, or returns the class already registered under
// its name when same reports it is the same definition. A different
// definition under a taken name is a programming error.
func defineClass[C NodeClass](c C, same func(C) bool) C {
	existing, err := classes.Define(c.Name(), c, func(prior NodeClass) bool {
		p, ok := prior.(C)
		return ok && (any(p) == any(c) || same(p))
	})
	if err != nil {
		panic(fmt.Sprintf("wireflow: class %q: %v", c.Name(), err))
	}
	return existing.(C)
}

// Func is the work of a function node: input values in, output values out.
type Func func(ctx context.Context, in Values) (Values, error)

// FunctionClass is a node class wrapping a Func.
type FunctionClass struct {
	name    string
	fn      Func
	inputs  []PortSpec
	outputs []PortSpec
}

// DefineFunction declares and registers a function node class. Defining
// the same name again with the same function and ports returns the first
// definition; anything else panics.
func DefineFunction(name string, fn Func, inputs, outputs []PortSpec) *FunctionClass {
	c := &FunctionClass{name: name, fn: fn, inputs: inputs, outputs: outputs}
	return defineClass(c, func(prior *FunctionClass) bool {
		return reflect.ValueOf(prior.fn).Pointer() == reflect.ValueOf(fn).Pointer() &&
			slices.Equal(portLabels(prior.inputs), portLabels(inputs)) &&
			slices.Equal(portLabels(prior.outputs), portLabels(outputs))
	})
}

// Name implements NodeClass.
func (c *FunctionClass) Name() string { return c.name }

// Ports implements NodeClass.
func (c *FunctionClass) Ports() (inputs, outputs []PortSpec) {
	return slices.Clone(c.inputs), slices.Clone(c.outputs)
}

// New implements NodeClass.
func (c *FunctionClass) New(label string, opts ...NodeOption) (Node, error) {
	f, err := c.Node(label, opts...)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Node builds a function node.
func (c *FunctionClass) Node(label string, opts ...NodeOption) (*Function, error) {
	f := &Function{fn: c.fn, ports: c.outputs}
	if err := f.setup(f, label, c.name); err != nil {
		return nil, err
	}
	for _, p := range c.inputs {
		f.inputs.Add(NewInputData(p.Label, f, p.options()...))
	}
	for _, p := range c.outputs {
		f.outputs.Add(NewOutputData(p.Label, f, p.options()...))
	}
	f.runnable.onRun = f.onRun
	f.runnable.processRunResult = f.processRunResult
	if err := f.configure(context.Background(), newNodeConfig(opts)); err != nil {
		return nil, err
	}
	return f, nil
}

func newNodeConfig(opts []NodeOption) nodeConfig {
	var cfg nodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Function is a node that runs a Func.
type Function struct {
	nodeBase
	fn    Func
	ports []PortSpec
}

func (f *Function) onRun(ctx context.Context) (any, error) {
	out, err := f.fn(ctx, f.Inputs().Values())
	if err != nil {
		return nil, f.wrapRunError(err)
	}
	return out, nil
}

func (f *Function) processRunResult(out any) (any, error) {
	values, _ := out.(Values)
	for _, p := range f.ports {
		v, ok := values[p.Label]
		if !ok {
			return nil, &NodeError{NodeID: f.FullLabel(), Op: "output", Err: fmt.Errorf("%w: %s", ErrMissingOutput, p.Label)}
		}
		if err := f.outputs.Get(p.Label).SetValue(v); err != nil {
			return nil, &NodeError{NodeID: f.FullLabel(), Op: "output", Err: err}
		}
	}
	return f.outputs.Values(), nil
}

func passThrough(_ context.Context, in Values) (Values, error) {
	return Values{"user_input": in["user_input"]}, nil
}

// UserInput is a pass-through node: whatever arrives at user_input is
// published on user_input.
var UserInput = DefineFunction("UserInput", passThrough,
	[]PortSpec{{Label: "user_input"}},
	[]PortSpec{{Label: "user_input"}},
)
