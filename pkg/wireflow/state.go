package wireflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/randalmurphal/wireflow/pkg/wireflow/executor"
	"github.com/randalmurphal/wireflow/pkg/wireflow/hint"
	"github.com/randalmurphal/wireflow/pkg/wireflow/observability"
	"github.com/randalmurphal/wireflow/pkg/wireflow/storage"
)

// NodeState is the serializable form of a node. It carries no parent, no
// live executor and no futures; only lazy executor instructions survive.
type NodeState struct {
	Class   string                     `json:"class"`
	Label   string                     `json:"label"`
	Running bool                       `json:"running,omitempty"`
	Failed  bool                       `json:"failed,omitempty"`
	Inputs  map[string]json.RawMessage `json:"inputs,omitempty"`
	Outputs map[string]json.RawMessage `json:"outputs,omitempty"`

	Executor *executor.Instructions `json:"executor,omitempty"`

	Children          []NodeState    `json:"children,omitempty"`
	StartingNodes     []string       `json:"starting_nodes,omitempty"`
	DataConnections   [][2][2]string `json:"data_connections,omitempty"`
	SignalConnections [][2][2]string `json:"signal_connections,omitempty"`

	InputsMap         IOMap `json:"inputs_map,omitempty"`
	OutputsMap        IOMap `json:"outputs_map,omitempty"`
	AutomateExecution *bool `json:"automate_execution,omitempty"`
}

// hasComposite is implemented by every node that owns children.
type hasComposite interface {
	composite() *Composite
}

// derivedIO reports whether a node's IO is a view of its children's
// channels rather than channels of its own.
func derivedIO(n Node) bool {
	switch n.(type) {
	case *Workflow, *Composite:
		return true
	}
	return false
}

// State captures the node, and for composites the whole subgraph.
func State(n Node) (NodeState, error) {
	s := NodeState{
		Class:   n.ClassName(),
		Label:   n.Label(),
		Running: n.Running(),
		Failed:  n.Failed(),
	}
	if lazy, ok := n.Executor().(*executor.Instructions); ok {
		s.Executor = executor.Lazy(lazy.Name, lazy.Args)
	}
	if !derivedIO(n) {
		var err error
		if s.Inputs, err = encodeValues(n.Inputs().snapshot()); err != nil {
			return NodeState{}, &NodeError{NodeID: n.FullLabel(), Op: "save", Err: err}
		}
		if s.Outputs, err = encodeValues(n.Outputs().snapshot()); err != nil {
			return NodeState{}, &NodeError{NodeID: n.FullLabel(), Op: "save", Err: err}
		}
	}

	hc, ok := n.(hasComposite)
	if !ok {
		return s, nil
	}
	c := hc.composite()
	for _, child := range c.children {
		cs, err := State(child)
		if err != nil {
			return NodeState{}, err
		}
		s.Children = append(s.Children, cs)
	}
	for _, st := range c.starting {
		s.StartingNodes = append(s.StartingNodes, st.Label())
	}
	s.DataConnections = c.DataConnections()
	s.SignalConnections = c.SignalConnections()
	if w, ok := n.(*Workflow); ok {
		s.InputsMap = w.InputsMap()
		s.OutputsMap = w.OutputsMap()
		automate := w.automate
		s.AutomateExecution = &automate
	}
	return s, nil
}

// Restore applies s to n. Missing children are built from the class
// registry; children absent from s are removed. A restored node is never
// running, whatever it was when saved.
func Restore(n Node, s NodeState) error {
	if s.Class != n.ClassName() {
		return &NodeError{NodeID: n.FullLabel(), Op: "load", Err: fmt.Errorf("saved class %q does not match %q", s.Class, n.ClassName())}
	}
	if n.Running() {
		return &NodeError{NodeID: n.FullLabel(), Op: "load", Err: ErrParentRunning}
	}

	if hc, ok := n.(hasComposite); ok {
		if err := restoreSubgraph(hc.composite(), s); err != nil {
			return err
		}
	}
	if !derivedIO(n) {
		if err := restoreValues(n.Inputs().All(), s.Inputs); err != nil {
			return &NodeError{NodeID: n.FullLabel(), Op: "load", Err: err}
		}
		if err := restoreValues(n.Outputs().All(), s.Outputs); err != nil {
			return &NodeError{NodeID: n.FullLabel(), Op: "load", Err: err}
		}
	}
	if s.Executor != nil {
		n.SetExecutor(s.Executor)
	}
	n.SetFailed(s.Failed)
	n.base().clearCache()
	return nil
}

func restoreSubgraph(c *Composite, s NodeState) error {
	saved := make(map[string]bool, len(s.Children))
	for _, cs := range s.Children {
		saved[cs.Label] = true
	}
	for _, child := range c.Children() {
		if !saved[child.Label()] {
			if _, err := c.RemoveChild(child); err != nil {
				return err
			}
		}
	}

	c.disconnectChildren()
	for _, cs := range s.Children {
		child, ok := c.Child(cs.Label)
		if ok && child.ClassName() != cs.Class {
			if _, err := c.RemoveChild(child); err != nil {
				return err
			}
			ok = false
		}
		if !ok {
			class, err := LookupClass(cs.Class)
			if err != nil {
				return &NodeError{NodeID: c.FullLabel() + "/" + cs.Label, Op: "load", Err: err}
			}
			if child, err = class.New(cs.Label, WithParent(c)); err != nil {
				return err
			}
		}
		if err := Restore(child, cs); err != nil {
			return err
		}
	}
	if err := c.restoreConnections(s.DataConnections, s.SignalConnections); err != nil {
		return err
	}

	starting := make([]Node, 0, len(s.StartingNodes))
	for _, label := range s.StartingNodes {
		child, ok := c.Child(label)
		if !ok {
			return fmt.Errorf("%w: starting node %s in %s", ErrNotChild, label, c.FullLabel())
		}
		starting = append(starting, child)
	}
	c.starting = starting

	if w, ok := c.self.(*Workflow); ok {
		w.inputsMap = s.InputsMap
		w.outputsMap = s.OutputsMap
		if s.AutomateExecution != nil {
			w.automate = *s.AutomateExecution
		}
	}
	if c.rebuildIO != nil {
		return c.rebuildIO()
	}
	return nil
}

func encodeValues(values map[string]Datum) (map[string]json.RawMessage, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(values))
	for key, dv := range values {
		v, ok := dv.Get()
		if !ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = raw
	}
	return out, nil
}

func restoreValues[C DataChannel](chans []C, saved map[string]json.RawMessage) error {
	for _, ch := range chans {
		raw, ok := saved[ch.Label()]
		if !ok {
			if err := ch.SetValue(Absent()); err != nil {
				return err
			}
			continue
		}
		v, err := decodeValue(ch.Hint(), raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", ch.Label(), err)
		}
		if err := ch.SetValue(Present(v)); err != nil {
			return err
		}
	}
	return nil
}

// decodeValue decodes raw into the Go type the hint implies. Union
// members are tried in order; the first decoding the hint accepts wins.
func decodeValue(h *hint.Hint, raw json.RawMessage) (any, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	if h != nil {
		for _, m := range h.Members() {
			t, ok := m.GoType()
			if !ok {
				continue
			}
			ptr := reflect.New(t)
			if err := json.Unmarshal(raw, ptr.Interface()); err == nil && hint.Valid(h, ptr.Elem().Interface()) {
				return ptr.Elem().Interface(), nil
			}
		}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Save writes the node's state to store under its full label.
func (n *nodeBase) Save(ctx context.Context, store storage.Store) error {
	key := n.FullLabel()
	s, err := State(n.self)
	if err != nil {
		observability.LogStorageError(n.Logger(), key, "save", err)
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state of %s: %w", key, err)
	}
	if err := store.Save(ctx, key, data); err != nil {
		observability.LogStorageError(n.Logger(), key, "save", err)
		return fmt.Errorf("save %s: %w", key, err)
	}
	observability.LogStorage(n.Logger(), key, "save", len(data))
	n.metricsRecorder().RecordStorage(ctx, "save", int64(len(data)))
	return nil
}

// Load restores the node from the state saved under its full label.
func (n *nodeBase) Load(ctx context.Context, store storage.Store) error {
	key := n.FullLabel()
	data, err := store.Load(ctx, key)
	if err != nil {
		observability.LogStorageError(n.Logger(), key, "load", err)
		return fmt.Errorf("load %s: %w", key, err)
	}
	var s NodeState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal state of %s: %w", key, err)
	}
	if err := Restore(n.self, s); err != nil {
		observability.LogStorageError(n.Logger(), key, "load", err)
		return err
	}
	observability.LogStorage(n.Logger(), key, "load", len(data))
	n.metricsRecorder().RecordStorage(ctx, "load", int64(len(data)))
	return nil
}

// HasSavedContent reports whether store holds state for the node.
func (n *nodeBase) HasSavedContent(ctx context.Context, store storage.Store) (bool, error) {
	ok, err := store.Has(ctx, n.FullLabel())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("check saved %s: %w", n.FullLabel(), err)
	}
	return ok, nil
}

// DeleteSaved removes the node's saved state from store.
func (n *nodeBase) DeleteSaved(ctx context.Context, store storage.Store) error {
	if err := store.Delete(ctx, n.FullLabel()); err != nil {
		return fmt.Errorf("delete saved %s: %w", n.FullLabel(), err)
	}
	observability.LogStorage(n.Logger(), n.FullLabel(), "delete", 0)
	return nil
}
