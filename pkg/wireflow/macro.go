package wireflow

import (
	"context"
	"fmt"
	"reflect"
	"slices"
)

// ChannelRef names a child channel by labels.
type ChannelRef struct {
	Child   string
	Channel string
}

// Ref names channel on child.
func Ref(child Node, channel string) ChannelRef {
	return ChannelRef{Child: child.Label(), Channel: channel}
}

// MacroLinks ties each macro port to the child channel it stands for:
// macro inputs push their values to child inputs, and child outputs push
// theirs to macro outputs.
type MacroLinks struct {
	Inputs  map[string]ChannelRef
	Outputs map[string]ChannelRef
}

// MacroBuilder creates a macro's children, connects them and returns the
// port links. It may also wire execution by hand, in which case it must
// set starting nodes too.
type MacroBuilder func(m *Macro) (MacroLinks, error)

// MacroClass is a node class for composites with declared IO.
type MacroClass struct {
	name    string
	inputs  []PortSpec
	outputs []PortSpec
	build   MacroBuilder
}

// DefineMacro declares and registers a macro class. A port without a hint
// takes the hint of the child channel it links to.
func DefineMacro(name string, inputs, outputs []PortSpec, build MacroBuilder) *MacroClass {
	c := &MacroClass{name: name, inputs: inputs, outputs: outputs, build: build}
	return defineClass(c, func(prior *MacroClass) bool {
		return reflect.ValueOf(prior.build).Pointer() == reflect.ValueOf(build).Pointer() &&
			slices.Equal(portLabels(prior.inputs), portLabels(inputs)) &&
			slices.Equal(portLabels(prior.outputs), portLabels(outputs))
	})
}

// Name implements NodeClass.
func (c *MacroClass) Name() string { return c.name }

// Ports implements NodeClass.
func (c *MacroClass) Ports() (inputs, outputs []PortSpec) {
	return slices.Clone(c.inputs), slices.Clone(c.outputs)
}

// New implements NodeClass.
func (c *MacroClass) New(label string, opts ...NodeOption) (Node, error) {
	m, err := c.Node(label, opts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Macro is a composite whose IO is declared by its class and linked by
// value to child channels.
type Macro struct {
	*Composite

	links         MacroLinks
	linkedOutputs map[string]*OutputData
}

// Node builds a macro: the builder populates the subgraph, then the ports
// are created and linked, then execution is configured.
func (c *MacroClass) Node(label string, opts ...NodeOption) (*Macro, error) {
	m := &Macro{linkedOutputs: make(map[string]*OutputData)}
	comp, err := newComposite(m, label, c.name)
	if err != nil {
		return nil, err
	}
	m.Composite = comp
	comp.rebuildIO = m.relink

	links, err := c.build(m)
	if err != nil {
		return nil, fmt.Errorf("build macro %s: %w", c.name, err)
	}
	m.links = links

	for _, p := range c.inputs {
		childIn, err := m.linkedInput(p.Label)
		if err != nil {
			return nil, err
		}
		if p.Hint == nil {
			p.Hint = childIn.Hint()
		}
		in := NewInputData(p.Label, m, p.options()...)
		if !p.Default.IsPresent() {
			in.def = childIn.Default()
			in.value = childIn.Datum()
		}
		if err := in.SetValueReceiver(childIn); err != nil {
			return nil, err
		}
		m.inputs.Add(in)
	}
	for _, p := range c.outputs {
		childOut, err := m.linkedOutput(p.Label)
		if err != nil {
			return nil, err
		}
		if p.Hint == nil {
			p.Hint = childOut.Hint()
		}
		out := NewOutputData(p.Label, m, p.options()...)
		if err := childOut.SetValueReceiver(out); err != nil {
			return nil, err
		}
		m.outputs.Add(out)
		m.linkedOutputs[p.Label] = childOut
	}

	if err := m.configureExecution(); err != nil {
		return nil, err
	}
	if err := comp.configure(context.Background(), newNodeConfig(opts)); err != nil {
		return nil, err
	}
	return m, nil
}

// Links returns the port links as labels.
func (m *Macro) Links() MacroLinks {
	out := MacroLinks{Inputs: make(map[string]ChannelRef), Outputs: make(map[string]ChannelRef)}
	for k, v := range m.links.Inputs {
		out.Inputs[k] = v
	}
	for k, v := range m.links.Outputs {
		out.Outputs[k] = v
	}
	return out
}

func (m *Macro) linkedInput(port string) (*InputData, error) {
	ref, ok := m.links.Inputs[port]
	if !ok {
		return nil, &MacroLinkError{Macro: m.FullLabel(), Port: port}
	}
	child, ok := m.byLabel[ref.Child]
	if !ok {
		return nil, &MacroLinkError{Macro: m.FullLabel(), Port: port, Child: ref.Child, Channel: ref.Channel}
	}
	in, ok := child.Inputs().Lookup(ref.Channel)
	if !ok {
		return nil, &MacroLinkError{Macro: m.FullLabel(), Port: port, Child: ref.Child, Channel: ref.Channel}
	}
	return in, nil
}

func (m *Macro) linkedOutput(port string) (*OutputData, error) {
	ref, ok := m.links.Outputs[port]
	if !ok {
		return nil, &MacroLinkError{Macro: m.FullLabel(), Port: port}
	}
	child, ok := m.byLabel[ref.Child]
	if !ok {
		return nil, &MacroLinkError{Macro: m.FullLabel(), Port: port, Child: ref.Child, Channel: ref.Channel}
	}
	out, ok := child.Outputs().Lookup(ref.Channel)
	if !ok {
		return nil, &MacroLinkError{Macro: m.FullLabel(), Port: port, Child: ref.Child, Channel: ref.Channel}
	}
	return out, nil
}

// configureExecution derives execution wiring from data flow when the
// builder wired none, and otherwise insists the builder wired it fully.
func (m *Macro) configureExecution() error {
	wired := false
	for _, child := range m.children {
		if child.Signals().Input.Get(SignalRun).Connected() ||
			child.Signals().Input.Get(SignalAccumulateAndRun).Connected() {
			wired = true
			break
		}
	}
	hasStarters := len(m.starting) > 0
	switch {
	case !wired && !hasStarters:
		return m.SetRunSignalsToDAGExecution()
	case wired && hasStarters:
		return nil
	}
	return fmt.Errorf("%w: %s has run signals=%t, starting nodes=%t", ErrExecutionConfig, m.FullLabel(), wired, hasStarters)
}

// relink points every port at the child channel its link names, after a
// child was replaced. All links are resolved before any is changed, and
// a failure while changing them restores the previous links.
func (m *Macro) relink() error {
	ins := make(map[string]*InputData, m.inputs.Len())
	outs := make(map[string]*OutputData, m.outputs.Len())
	for _, port := range m.inputs.Labels() {
		in, err := m.linkedInput(port)
		if err != nil {
			return err
		}
		ins[port] = in
	}
	for _, port := range m.outputs.Labels() {
		out, err := m.linkedOutput(port)
		if err != nil {
			return err
		}
		outs[port] = out
	}

	type prior struct {
		port     string
		output   bool
		receiver DataChannel
		source   *OutputData
	}
	var undo []prior
	restore := func() {
		for _, p := range slices.Backward(undo) {
			if !p.output {
				_ = m.inputs.Get(p.port).SetValueReceiver(p.receiver)
				continue
			}
			_ = outs[p.port].SetValueReceiver(nil)
			if p.source != nil {
				_ = p.source.SetValueReceiver(m.outputs.Get(p.port))
			}
			m.linkedOutputs[p.port] = p.source
		}
	}

	for _, port := range m.inputs.Labels() {
		in := m.inputs.Get(port)
		prev := in.ValueReceiver()
		if err := in.SetValueReceiver(ins[port]); err != nil {
			restore()
			return err
		}
		undo = append(undo, prior{port: port, receiver: prev})
	}
	for _, port := range m.outputs.Labels() {
		prev := m.linkedOutputs[port]
		if prev != nil && prev != outs[port] {
			_ = prev.SetValueReceiver(nil)
		}
		if err := outs[port].SetValueReceiver(m.outputs.Get(port)); err != nil {
			if prev != nil {
				_ = prev.SetValueReceiver(m.outputs.Get(port))
			}
			restore()
			return err
		}
		m.linkedOutputs[port] = outs[port]
		undo = append(undo, prior{port: port, output: true, source: prev})
	}
	return nil
}
