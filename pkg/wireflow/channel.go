package wireflow

import (
	"slices"
)

// Owner is whatever a channel belongs to, usually a Node.
type Owner interface {
	Label() string
	FullLabel() string
	// DataInputLocked reports whether input data writes are refused,
	// which nodes do while they run.
	DataInputLocked() bool
}

// HasChannel is implemented by anything that can stand in for a channel
// when connecting: channels return themselves, and single-output nodes
// return their output.
type HasChannel interface {
	Channel() Channel
}

// Channel is a connection endpoint. Connections are reflexive: if a is
// connected to b then b is connected to a. They are only changed through
// Connect, Disconnect, DisconnectAll and CopyConnections.
type Channel interface {
	HasChannel
	Label() string
	Owner() Owner
	FullLabel() string
	// Connections returns the partners, newest connection first.
	Connections() []Channel
	Connected() bool
	ConnectedTo(other Channel) bool
	Connect(others ...Channel) error
	Disconnect(others ...Channel) []Pair
	DisconnectAll() []Pair
	CopyConnections(other Channel) error

	core() *channelCore
}

// Pair is a broken or made connection, self first.
type Pair struct {
	A, B Channel
}

// reconnect restores broken pairs. Errors are ignored since every pair was
// valid before it was broken.
func reconnect(pairs []Pair) {
	for _, p := range pairs {
		_ = p.A.Connect(p.B)
	}
}

// channelCore carries what every channel kind shares. self is the outer
// channel so conjugate checks and partner lists see the concrete kind.
type channelCore struct {
	label       string
	owner       Owner
	self        Channel
	connections []Channel
}

func (c *channelCore) core() *channelCore { return c }

// Label returns the channel label.
func (c *channelCore) Label() string { return c.label }

// Owner returns the owning node.
func (c *channelCore) Owner() Owner { return c.owner }

// FullLabel returns the owner's full label and the channel label.
func (c *channelCore) FullLabel() string {
	if c.owner == nil {
		return c.label
	}
	return c.owner.FullLabel() + "." + c.label
}

// Channel implements HasChannel.
func (c *channelCore) Channel() Channel { return c.self }

// Connections returns a copy of the partner list, newest first.
func (c *channelCore) Connections() []Channel {
	return slices.Clone(c.connections)
}

// Connected reports whether the channel has any partner.
func (c *channelCore) Connected() bool { return len(c.connections) > 0 }

// ConnectedTo reports whether other is a partner.
func (c *channelCore) ConnectedTo(other Channel) bool {
	return slices.Contains(c.connections, other)
}

// Connect forms a connection with each of others that is not already a
// partner. It stops at the first invalid partner; connections formed
// before it remain.
func (c *channelCore) Connect(others ...Channel) error {
	for _, other := range others {
		if other == nil || c.ConnectedTo(other) {
			continue
		}
		if err := validConnection(c.self, other); err != nil {
			return err
		}
		c.connections = slices.Insert(c.connections, 0, other)
		oc := other.core()
		oc.connections = slices.Insert(oc.connections, 0, c.self)
	}
	return nil
}

// Disconnect breaks the connection with each of others that is a partner.
func (c *channelCore) Disconnect(others ...Channel) []Pair {
	var broken []Pair
	for _, other := range others {
		if other == nil || !c.ConnectedTo(other) {
			continue
		}
		c.connections = slices.DeleteFunc(c.connections, func(x Channel) bool { return x == other })
		oc := other.core()
		oc.connections = slices.DeleteFunc(oc.connections, func(x Channel) bool { return x == c.self })
		broken = append(broken, Pair{A: c.self, B: other})
	}
	return broken
}

// DisconnectAll breaks every connection.
func (c *channelCore) DisconnectAll() []Pair {
	return c.Disconnect(c.Connections()...)
}

// CopyConnections connects this channel to every partner of other. Either
// all of them are connected or, on error, none of the connections made by
// this call remain. Partner priority order is preserved.
func (c *channelCore) CopyConnections(other Channel) error {
	partners := other.Connections()
	var made []Channel
	for i := len(partners) - 1; i >= 0; i-- {
		p := partners[i]
		if c.ConnectedTo(p) {
			continue
		}
		if err := c.Connect(p); err != nil {
			c.Disconnect(made...)
			return err
		}
		made = append(made, p)
	}
	return nil
}

// conjugate reports whether a and b are an input/output pair of the same
// family.
func conjugate(a, b Channel) bool {
	switch a.(type) {
	case *InputData:
		_, ok := b.(*OutputData)
		return ok
	case *OutputData:
		_, ok := b.(*InputData)
		return ok
	case *InputSignal, *AccumulatingInputSignal:
		_, ok := b.(*OutputSignal)
		return ok
	case *OutputSignal:
		switch b.(type) {
		case *InputSignal, *AccumulatingInputSignal:
			return true
		}
	}
	return false
}

func validConnection(self, other Channel) error {
	if !conjugate(self, other) {
		return &ChannelTypeError{Channel: self.FullLabel(), Partner: other.FullLabel()}
	}
	var in *InputData
	var out *OutputData
	switch s := self.(type) {
	case *InputData:
		in, out = s, other.(*OutputData)
	case *OutputData:
		in, out = other.(*InputData), s
	default:
		return nil
	}
	if !hintsCompatible(out.dataCore, in.dataCore) {
		return &ChannelConnectionError{
			Output:     out.FullLabel(),
			Input:      in.FullLabel(),
			OutputHint: out.Hint().String(),
			InputHint:  in.Hint().String(),
		}
	}
	return nil
}
