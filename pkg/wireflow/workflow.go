package wireflow

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// IOEntry adjusts how one child channel appears in a workflow's IO.
type IOEntry struct {
	// Label renames the channel. A renamed channel is shown even when it
	// is connected.
	Label string `json:"label,omitempty"`
	// Hide removes the channel from the IO.
	Hide bool `json:"hide,omitempty"`
	// Expose shows the channel under its default key even when it is
	// connected.
	Expose bool `json:"expose,omitempty"`
}

// IOMap adjusts workflow IO. Keys are child__channel.
type IOMap map[string]IOEntry

// Workflow is the parent-most composite. Its IO is not declared: it is
// every unconnected channel of its children, keyed child__channel, as
// adjusted by the IO maps.
type Workflow struct {
	*Composite

	inputsMap  IOMap
	outputsMap IOMap
	automate   bool
}

const workflowClassName = "Workflow"

// NewWorkflow creates an empty workflow. Workflows cannot have parents.
func NewWorkflow(label string, opts ...NodeOption) (*Workflow, error) {
	cfg := newNodeConfig(opts)
	if cfg.parent != nil {
		return nil, fmt.Errorf("%w: %s", ErrParentMost, label)
	}
	w := &Workflow{automate: true}
	c, err := newComposite(w, label, workflowClassName)
	if err != nil {
		return nil, err
	}
	w.Composite = c
	c.beforeRun = w.prepareExecution
	c.rebuildIO = w.checkIOMaps
	if err := c.configure(context.Background(), cfg); err != nil {
		return nil, err
	}
	return w, nil
}

// AutomateExecution reports whether execution wiring is derived from data
// flow before each run.
func (w *Workflow) AutomateExecution() bool { return w.automate }

// SetAutomateExecution turns automatic execution wiring on or off.
func (w *Workflow) SetAutomateExecution(automate bool) { w.automate = automate }

// SetStartingNodes sets the starting nodes and turns off automatic
// execution wiring, since the caller is wiring execution by hand.
func (w *Workflow) SetStartingNodes(nodes ...Node) error {
	if err := w.Composite.SetStartingNodes(nodes...); err != nil {
		return err
	}
	w.automate = false
	return nil
}

func (w *Workflow) prepareExecution() error {
	if !w.automate {
		return nil
	}
	return w.SetRunSignalsToDAGExecution()
}

// SetInputsMap replaces the inputs map. Every key must name a child input.
func (w *Workflow) SetInputsMap(m IOMap) error {
	prev := w.inputsMap
	w.inputsMap = maps.Clone(m)
	if err := w.checkIOMaps(); err != nil {
		w.inputsMap = prev
		return err
	}
	return nil
}

// SetOutputsMap replaces the outputs map. Every key must name a child output.
func (w *Workflow) SetOutputsMap(m IOMap) error {
	prev := w.outputsMap
	w.outputsMap = maps.Clone(m)
	if err := w.checkIOMaps(); err != nil {
		w.outputsMap = prev
		return err
	}
	return nil
}

// InputsMap returns a copy of the inputs map.
func (w *Workflow) InputsMap() IOMap { return maps.Clone(w.inputsMap) }

// OutputsMap returns a copy of the outputs map.
func (w *Workflow) OutputsMap() IOMap { return maps.Clone(w.outputsMap) }

func ioKey(child, channel string) string { return child + "__" + channel }

// exposed decides whether and under what key a child channel is shown.
func exposed(m IOMap, key string, connected bool) (string, bool) {
	entry, mapped := m[key]
	switch {
	case mapped && entry.Hide:
		return "", false
	case mapped && entry.Label != "":
		return entry.Label, true
	case mapped && entry.Expose:
		return key, true
	case connected:
		return "", false
	}
	return key, true
}

// Inputs returns the exposed child inputs.
func (w *Workflow) Inputs() *Inputs {
	panel := NewInputs()
	for _, child := range w.children {
		for _, in := range child.Inputs().All() {
			if key, ok := exposed(w.inputsMap, ioKey(child.Label(), in.Label()), in.Connected()); ok {
				panel.add(key, in)
			}
		}
	}
	return panel
}

// Outputs returns the exposed child outputs.
func (w *Workflow) Outputs() *Outputs {
	panel := NewOutputs()
	for _, child := range w.children {
		for _, out := range child.Outputs().All() {
			if key, ok := exposed(w.outputsMap, ioKey(child.Label(), out.Label()), out.Connected()); ok {
				panel.add(key, out)
			}
		}
	}
	return panel
}

// checkIOMaps reports map keys that no longer name a child channel.
func (w *Workflow) checkIOMaps() error {
	inKeys := make(map[string]bool)
	outKeys := make(map[string]bool)
	for _, child := range w.children {
		for _, in := range child.Inputs().All() {
			inKeys[ioKey(child.Label(), in.Label())] = true
		}
		for _, out := range child.Outputs().All() {
			outKeys[ioKey(child.Label(), out.Label())] = true
		}
	}
	var stale []string
	for key := range w.inputsMap {
		if !inKeys[key] {
			stale = append(stale, key)
		}
	}
	for key := range w.outputsMap {
		if !outKeys[key] {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		slices.Sort(stale)
		return &IOMapError{Workflow: w.FullLabel(), Keys: stale}
	}
	return nil
}
