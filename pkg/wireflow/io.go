package wireflow

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

// panel is an insertion-ordered set of channels. Keys usually equal the
// channel label; workflows key child channels as child__channel.
type panel[C Channel] struct {
	keys  []string
	chans map[string]C
}

func newPanel[C Channel]() panel[C] {
	return panel[C]{chans: make(map[string]C)}
}

func (p *panel[C]) add(key string, c C) {
	if _, ok := p.chans[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.chans[key] = c
}

// Get returns the channel under key, or the zero value.
func (p *panel[C]) Get(key string) C { return p.chans[key] }

// Lookup returns the channel under key.
func (p *panel[C]) Lookup(key string) (C, bool) {
	c, ok := p.chans[key]
	return c, ok
}

// Labels returns the keys in insertion order.
func (p *panel[C]) Labels() []string { return slices.Clone(p.keys) }

// Len returns the number of channels.
func (p *panel[C]) Len() int { return len(p.keys) }

// All returns the channels in insertion order.
func (p *panel[C]) All() []C {
	out := make([]C, 0, len(p.keys))
	for _, k := range p.keys {
		out = append(out, p.chans[k])
	}
	return out
}

// Connected reports whether any channel has a connection.
func (p *panel[C]) Connected() bool {
	for _, c := range p.chans {
		if c.Connected() {
			return true
		}
	}
	return false
}

// DisconnectAll breaks every connection of every channel.
func (p *panel[C]) DisconnectAll() []Pair {
	var broken []Pair
	for _, k := range p.keys {
		broken = append(broken, p.chans[k].DisconnectAll()...)
	}
	return broken
}

func (p *panel[C]) lookupForSet(key string) (C, error) {
	c, ok := p.chans[key]
	if !ok {
		return c, fmt.Errorf("%w: %q among %v", ErrChannelNotFound, key, p.keys)
	}
	return c, nil
}

// copyConnections gives each channel here the connections of the channel
// under the same key in other. Either every connection is copied or none
// of those made by this call remain.
func (p *panel[C]) copyConnections(other *panel[C]) error {
	var made []Pair
	for _, key := range other.keys {
		src := other.chans[key]
		if !src.Connected() {
			continue
		}
		dst, ok := p.chans[key]
		if !ok {
			undo(made)
			return &ConnectionCopyError{Channel: src.FullLabel(), Target: key}
		}
		before := dst.Connections()
		if err := dst.CopyConnections(src); err != nil {
			undo(made)
			return &ConnectionCopyError{Channel: src.FullLabel(), Target: dst.FullLabel(), Err: err}
		}
		for _, c := range dst.Connections() {
			if !slices.Contains(before, c) {
				made = append(made, Pair{A: dst, B: c})
			}
		}
	}
	return nil
}

func undo(made []Pair) {
	for _, p := range made {
		p.A.Disconnect(p.B)
	}
}

// dataPanel adds value handling to panels of data channels.
type dataPanel[C DataChannel] struct {
	panel[C]
}

// Set connects key to v when v has a channel, and otherwise writes v as
// the value.
func (p *dataPanel[C]) Set(key string, v any) error {
	c, err := p.lookupForSet(key)
	if err != nil {
		return err
	}
	if hc, ok := v.(HasChannel); ok {
		if ch := hc.Channel(); ch != nil {
			return c.Connect(ch)
		}
		return fmt.Errorf("cannot connect %s: %T has no single channel", c.FullLabel(), v)
	}
	return c.SetValue(v)
}

// SetValues writes each value to the channel under its key.
func (p *dataPanel[C]) SetValues(values Values) error {
	var err error
	for _, k := range sortedKeys(values) {
		err = multierr.Append(err, p.Set(k, values[k]))
	}
	return err
}

// Values returns the present values by key.
func (p *dataPanel[C]) Values() Values {
	out := make(Values, len(p.keys))
	for _, k := range p.keys {
		if v, ok := p.chans[k].Datum().Get(); ok {
			out[k] = v
		}
	}
	return out
}

// Ready reports whether every channel is ready.
func (p *dataPanel[C]) Ready() bool {
	for _, c := range p.chans {
		if !c.Ready() {
			return false
		}
	}
	return true
}

// Reset restores every channel's default.
func (p *dataPanel[C]) Reset() {
	for _, c := range p.chans {
		c.Reset()
	}
}

func (p *dataPanel[C]) snapshot() map[string]Datum {
	out := make(map[string]Datum, len(p.keys))
	for _, k := range p.keys {
		out[k] = p.chans[k].Datum()
	}
	return out
}

// copyValues writes other's present values to the channels here under the
// same keys. Soft copies skip values that fail; hard copies restore the
// values already written, receivers included, and return a ValueCopyError.
func (p *dataPanel[C]) copyValues(other *dataPanel[C], failHard bool) error {
	type prior struct {
		c C
		d Datum
	}
	var written []prior
	for _, key := range other.keys {
		dv := other.chans[key].Datum()
		dst, ok := p.chans[key]
		if !dv.IsPresent() || !ok {
			continue
		}
		old := dst.Datum()
		if err := dst.SetValue(dv); err != nil {
			if !failHard {
				continue
			}
			for i := len(written) - 1; i >= 0; i-- {
				w := written[i]
				err = multierr.Append(err, w.c.data().store(w.d))
			}
			return &ValueCopyError{Channel: dst.FullLabel(), Err: err}
		}
		written = append(written, prior{c: dst, d: old})
	}
	return nil
}

// Inputs is a node's input data panel.
type Inputs struct {
	dataPanel[*InputData]
}

// NewInputs returns an empty panel.
func NewInputs() *Inputs {
	return &Inputs{dataPanel[*InputData]{newPanel[*InputData]()}}
}

// Add adds a channel under its own label.
func (p *Inputs) Add(c *InputData) { p.add(c.Label(), c) }

// Fetch fetches every input.
func (p *Inputs) Fetch() error {
	var err error
	for _, c := range p.All() {
		err = multierr.Append(err, c.Fetch())
	}
	return err
}

// CopyConnections copies other's connections, all or nothing.
func (p *Inputs) CopyConnections(other *Inputs) error {
	return p.copyConnections(&other.panel)
}

// CopyValues copies other's values.
func (p *Inputs) CopyValues(other *Inputs, failHard bool) error {
	return p.copyValues(&other.dataPanel, failHard)
}

// Outputs is a node's output data panel.
type Outputs struct {
	dataPanel[*OutputData]
}

// NewOutputs returns an empty panel.
func NewOutputs() *Outputs {
	return &Outputs{dataPanel[*OutputData]{newPanel[*OutputData]()}}
}

// Add adds a channel under its own label.
func (p *Outputs) Add(c *OutputData) { p.add(c.Label(), c) }

// CopyConnections copies other's connections, all or nothing.
func (p *Outputs) CopyConnections(other *Outputs) error {
	return p.copyConnections(&other.panel)
}

// CopyValues copies other's values.
func (p *Outputs) CopyValues(other *Outputs, failHard bool) error {
	return p.copyValues(&other.dataPanel, failHard)
}

// InputSignals is a node's input signal panel.
type InputSignals struct {
	panel[SignalReceiver]
}

// Add adds a signal under its own label.
func (p *InputSignals) Add(s SignalReceiver) { p.add(s.Label(), s) }

// Set connects key to v's channel. Signals hold no values, so anything
// else is an error.
func (p *InputSignals) Set(key string, v any) error {
	s, err := p.lookupForSet(key)
	if err != nil {
		return err
	}
	hc, ok := v.(HasChannel)
	if !ok || hc.Channel() == nil {
		return fmt.Errorf("%s: %w", s.FullLabel(), ErrSignalValue)
	}
	return s.Connect(hc.Channel())
}

// OutputSignals is a node's output signal panel.
type OutputSignals struct {
	panel[*OutputSignal]
}

// Add adds a signal under its own label.
func (p *OutputSignals) Add(s *OutputSignal) { p.add(s.Label(), s) }

// Set connects key to v's channel.
func (p *OutputSignals) Set(key string, v any) error {
	s, err := p.lookupForSet(key)
	if err != nil {
		return err
	}
	hc, ok := v.(HasChannel)
	if !ok || hc.Channel() == nil {
		return fmt.Errorf("%s: %w", s.FullLabel(), ErrSignalValue)
	}
	return s.Connect(hc.Channel())
}

// Signals groups a node's input and output signals.
type Signals struct {
	Input  *InputSignals
	Output *OutputSignals
}

func newSignals() *Signals {
	return &Signals{
		Input:  &InputSignals{newPanel[SignalReceiver]()},
		Output: &OutputSignals{newPanel[*OutputSignal]()},
	}
}

// DisconnectRun breaks the connections of the run and accumulate_and_run
// inputs.
func (s *Signals) DisconnectRun() []Pair {
	var broken []Pair
	for _, key := range []string{SignalRun, SignalAccumulateAndRun} {
		if c, ok := s.Input.Lookup(key); ok {
			broken = append(broken, c.DisconnectAll()...)
		}
	}
	return broken
}

// DisconnectAll breaks every signal connection.
func (s *Signals) DisconnectAll() []Pair {
	return append(s.Input.DisconnectAll(), s.Output.DisconnectAll()...)
}

// Connected reports whether any signal has a connection.
func (s *Signals) Connected() bool {
	return s.Input.Connected() || s.Output.Connected()
}
