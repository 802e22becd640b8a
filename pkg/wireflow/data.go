package wireflow

import (
	"reflect"
	"sync"

	"github.com/randalmurphal/wireflow/pkg/wireflow/hint"
)

// DataChannel is the value-carrying side shared by InputData and OutputData.
type DataChannel interface {
	Channel
	Datum() Datum
	Value() any
	HasValue() bool
	SetValue(v any) error
	Hint() *hint.Hint
	Strict() bool
	SetStrict(strict bool)
	Default() Datum
	HasDefault() bool
	Reset()
	Ready() bool
	ValueReceiver() DataChannel
	SetValueReceiver(r DataChannel) error

	data() *dataCore
}

// DataOption configures a data channel.
type DataOption func(*dataCore)

// WithHint sets the channel's type hint.
func WithHint(h *hint.Hint) DataOption {
	return func(d *dataCore) { d.hint = h }
}

// WithDefault sets the default value, which is also the initial value.
func WithDefault(v any) DataOption {
	return func(d *dataCore) { d.def = Present(v) }
}

// NotStrict disables hint enforcement for value writes and incoming
// connections.
func NotStrict() DataOption {
	return func(d *dataCore) { d.strict = false }
}

type dataCore struct {
	channelCore
	input  bool
	hint   *hint.Hint
	strict bool
	def    Datum

	mu       sync.RWMutex
	value    Datum
	receiver DataChannel
}

func newDataCore(label string, owner Owner, input bool, opts []DataOption) *dataCore {
	d := &dataCore{
		channelCore: channelCore{label: label, owner: owner},
		input:       input,
		strict:      true,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.value = d.def
	return d
}

func (d *dataCore) data() *dataCore { return d }

// Datum returns the current value, which may be absent.
func (d *dataCore) Datum() Datum {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value
}

// Value returns the current value, or nil when absent.
func (d *dataCore) Value() any { return d.Datum().Value() }

// HasValue reports whether a value is present.
func (d *dataCore) HasValue() bool { return d.Datum().IsPresent() }

// Hint returns the type hint, nil when unhinted.
func (d *dataCore) Hint() *hint.Hint { return d.hint }

// Strict reports whether the hint is enforced.
func (d *dataCore) Strict() bool { return d.strict }

// SetStrict turns hint enforcement on or off.
func (d *dataCore) SetStrict(strict bool) { d.strict = strict }

// Default returns the default value.
func (d *dataCore) Default() Datum { return d.def }

// HasDefault reports whether a default was declared.
func (d *dataCore) HasDefault() bool { return d.def.IsPresent() }

// Reset restores the default value, or clears the channel when there is none.
func (d *dataCore) Reset() {
	d.mu.Lock()
	d.value = d.def
	d.mu.Unlock()
}

// Ready reports whether a value is present and conforms to the hint, if
// there is one. Strictness only governs writes, not readiness.
func (d *dataCore) Ready() bool {
	v, ok := d.Datum().Get()
	if !ok {
		return false
	}
	return hint.Valid(d.hint, v)
}

// SetValue writes a value. A Datum argument is unwrapped, so SetValue(Absent())
// clears the channel. Under strict hints the value is type checked; inputs
// refuse writes while their owner runs. The value is mirrored to the value
// receiver, if any, before it is stored.
func (d *dataCore) SetValue(v any) error {
	dv := toDatum(v)
	if val, ok := dv.Get(); ok && d.strict && !hint.Valid(d.hint, val) {
		return &ValueTypeError{Channel: d.FullLabel(), Hint: d.hint.String(), Value: val}
	}
	return d.store(dv)
}

// store writes without type checking. Receivers are written this way, so
// the receiver's hint is not consulted, but its input lock still is.
func (d *dataCore) store(dv Datum) error {
	if d.input && d.owner != nil && d.owner.DataInputLocked() {
		return &InputLockedError{Channel: d.FullLabel()}
	}
	d.mu.RLock()
	r := d.receiver
	d.mu.RUnlock()
	if r != nil {
		if err := r.data().store(dv); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.value = dv
	d.mu.Unlock()
	return nil
}

// ValueReceiver returns the channel that mirrors this one's writes.
func (d *dataCore) ValueReceiver() DataChannel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.receiver
}

// SetValueReceiver links r so every write here is pushed to r. The
// receiver must be the same kind of channel and not this channel. When
// both are hinted and r is strict, this channel's hint must be as or more
// specific than r's. The current value is pushed immediately. A nil r
// removes the link.
func (d *dataCore) SetValueReceiver(r DataChannel) error {
	if r == nil || reflect.ValueOf(r).IsNil() {
		d.mu.Lock()
		d.receiver = nil
		d.mu.Unlock()
		return nil
	}
	if r.data() == d {
		return &ValueReceiverError{Channel: d.FullLabel(), Receiver: r.FullLabel(), Reason: "a channel cannot be its own receiver"}
	}
	if reflect.TypeOf(r) != reflect.TypeOf(d.self) {
		return &ValueReceiverError{Channel: d.FullLabel(), Receiver: r.FullLabel(), Reason: "receiver must be the same kind of channel"}
	}
	if !hintsCompatible(d, r.data()) {
		return &ValueReceiverError{
			Channel:  d.FullLabel(),
			Receiver: r.FullLabel(),
			Reason:   "hint " + d.hint.String() + " is not as specific as " + r.Hint().String(),
		}
	}
	if err := r.data().store(d.Datum()); err != nil {
		return err
	}
	d.mu.Lock()
	d.receiver = r
	d.mu.Unlock()
	return nil
}

// hintsCompatible reports whether values may flow from src to dst: true
// unless both are hinted, dst is strict and src's hint is less specific.
func hintsCompatible(src, dst *dataCore) bool {
	if src.hint == nil || dst.hint == nil || !dst.strict {
		return true
	}
	return hint.IsAsOrMoreSpecific(src.hint, dst.hint)
}

// InputData receives values from connected outputs.
type InputData struct {
	*dataCore
}

// NewInputData creates an input owned by owner.
func NewInputData(label string, owner Owner, opts ...DataOption) *InputData {
	in := &InputData{dataCore: newDataCore(label, owner, true, opts)}
	in.self = in
	return in
}

// Fetch adopts the value of the first connected output that has one,
// newest connection first. With no such output the value is unchanged.
func (in *InputData) Fetch() error {
	for _, c := range in.connections {
		if dv := c.(*OutputData).Datum(); dv.IsPresent() {
			return in.SetValue(dv)
		}
	}
	return nil
}

// OutputData publishes a node's results.
type OutputData struct {
	*dataCore
}

// NewOutputData creates an output owned by owner.
func NewOutputData(label string, owner Owner, opts ...DataOption) *OutputData {
	out := &OutputData{dataCore: newDataCore(label, owner, false, opts)}
	out.self = out
	return out
}
