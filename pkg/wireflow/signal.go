package wireflow

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/multierr"
)

// Callback is what an input signal invokes when it is triggered.
type Callback func(ctx context.Context) error

// SignalReceiver is an input signal: something an OutputSignal can trigger.
type SignalReceiver interface {
	Channel
	Receive(ctx context.Context, sender *OutputSignal) error
}

// InputSignal invokes its callback whenever any connected output fires.
type InputSignal struct {
	channelCore
	callback Callback
}

// NewInputSignal creates an input signal bound to owner.
func NewInputSignal(label string, owner Owner, callback Callback) (*InputSignal, error) {
	if err := checkCallback(label, owner, callback); err != nil {
		return nil, err
	}
	s := &InputSignal{
		channelCore: channelCore{label: label, owner: owner},
		callback:    callback,
	}
	s.self = s
	return s, nil
}

func checkCallback(label string, owner Owner, callback Callback) error {
	if owner == nil {
		return &BadCallbackError{Signal: label, Reason: "no owner to bind the callback to"}
	}
	if callback == nil {
		return &BadCallbackError{Signal: owner.FullLabel() + "." + label, Reason: "callback is nil"}
	}
	return nil
}

// Receive invokes the callback. The sender is ignored.
func (s *InputSignal) Receive(ctx context.Context, _ *OutputSignal) error {
	return s.callback(ctx)
}

// AccumulatingInputSignal invokes its callback only once every currently
// connected output has fired since the last invocation.
type AccumulatingInputSignal struct {
	channelCore
	callback Callback

	mu       sync.Mutex
	received map[string]struct{}
}

// NewAccumulatingInputSignal creates an accumulating input signal bound to owner.
func NewAccumulatingInputSignal(label string, owner Owner, callback Callback) (*AccumulatingInputSignal, error) {
	if err := checkCallback(label, owner, callback); err != nil {
		return nil, err
	}
	s := &AccumulatingInputSignal{
		channelCore: channelCore{label: label, owner: owner},
		callback:    callback,
		received:    make(map[string]struct{}),
	}
	s.self = s
	return s, nil
}

// Receive records the sender. When every connected sender has been
// received, the record is cleared and the callback invoked.
func (s *AccumulatingInputSignal) Receive(ctx context.Context, sender *OutputSignal) error {
	s.mu.Lock()
	s.received[sender.FullLabel()] = struct{}{}
	for _, c := range s.connections {
		if _, ok := s.received[c.FullLabel()]; !ok {
			s.mu.Unlock()
			return nil
		}
	}
	clear(s.received)
	s.mu.Unlock()
	return s.callback(ctx)
}

// Received returns the full labels of senders heard since the last firing.
func (s *AccumulatingInputSignal) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.received))
	for k := range s.received {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// ResetReceived forgets every sender heard so far.
func (s *AccumulatingInputSignal) ResetReceived() {
	s.mu.Lock()
	clear(s.received)
	s.mu.Unlock()
}

// OutputSignal triggers connected input signals.
type OutputSignal struct {
	channelCore
}

// NewOutputSignal creates an output signal owned by owner.
func NewOutputSignal(label string, owner Owner) *OutputSignal {
	s := &OutputSignal{channelCore: channelCore{label: label, owner: owner}}
	s.self = s
	return s
}

// Fire triggers every connected input, newest connection first, and
// returns their combined errors.
func (s *OutputSignal) Fire(ctx context.Context) error {
	var err error
	for _, c := range s.Connections() {
		err = multierr.Append(err, c.(SignalReceiver).Receive(ctx, s))
	}
	return err
}
