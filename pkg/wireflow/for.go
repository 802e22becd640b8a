package wireflow

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/randalmurphal/wireflow/pkg/wireflow/executor"
	"github.com/randalmurphal/wireflow/pkg/wireflow/hint"
)

// Row is one iteration of a for loop: its looped input values and its
// body's outputs, keyed by column name.
type Row map[string]any

// IndexMaps returns, for each iteration, the index into each looped input.
// The nested inputs form a full product; the zipped inputs advance
// together and stop at the shortest. When both are given, every nested
// combination is paired with every zipped index, zipped varying fastest.
func IndexMaps(lengths map[string]int, nested, zipped []string) ([]map[string]int, error) {
	if len(nested) == 0 && len(zipped) == 0 {
		return nil, fmt.Errorf("%w: no nested or zipped inputs", ErrNoIteration)
	}
	for _, key := range slices.Concat(nested, zipped) {
		if _, ok := lengths[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, key)
		}
	}

	var combos []map[string]int
	if len(nested) > 0 {
		combos = []map[string]int{{}}
		for _, key := range nested {
			var next []map[string]int
			for _, c := range combos {
				for i := 0; i < lengths[key]; i++ {
					m := make(map[string]int, len(c)+1)
					for k, v := range c {
						m[k] = v
					}
					m[key] = i
					next = append(next, m)
				}
			}
			combos = next
		}
	}

	if len(zipped) > 0 {
		nZip := lengths[zipped[0]]
		for _, key := range zipped[1:] {
			nZip = min(nZip, lengths[key])
		}
		if combos == nil {
			combos = []map[string]int{{}}
		}
		var next []map[string]int
		for _, c := range combos {
			for i := 0; i < nZip; i++ {
				m := make(map[string]int, len(c)+len(zipped))
				for k, v := range c {
					m[k] = v
				}
				for _, key := range zipped {
					m[key] = i
				}
				next = append(next, m)
			}
		}
		combos = next
	}

	if len(combos) == 0 {
		return nil, fmt.Errorf("%w: every looped input is empty", ErrNoIteration)
	}
	return combos, nil
}

// ForOption configures a for-loop class.
type ForOption func(*ForClass)

// WithOutputColumnMap renames body outputs in the output rows. It is
// required for body outputs that share a label with a looped input.
func WithOutputColumnMap(m map[string]string) ForOption {
	return func(c *ForClass) {
		for k, v := range m {
			c.columns[k] = v
		}
		c.renamed = append(c.renamed, sortedKeys(m)...)
	}
}

// ForClass is a node class that runs a body class once per element of its
// looped inputs and collects the results as rows.
type ForClass struct {
	name    string
	body    NodeClass
	iterOn  []string
	zipOn   []string
	columns map[string]string
	renamed []string
	inputs  []PortSpec
	outputs []PortSpec
}

// DefineFor declares and registers a for-loop class over body. Inputs
// named in iterOn and zipOn take lists of the body input's type; other
// inputs are passed unchanged to every body instance.
func DefineFor(name string, body NodeClass, iterOn, zipOn []string, opts ...ForOption) (*ForClass, error) {
	c := &ForClass{
		name:    name,
		body:    body,
		iterOn:  slices.Clone(iterOn),
		zipOn:   slices.Clone(zipOn),
		columns: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	bodyIn, bodyOut := body.Ports()
	looped := slices.Concat(c.iterOn, c.zipOn)
	for _, key := range looped {
		if _, ok := findPort(bodyIn, key); !ok {
			return nil, fmt.Errorf("%w: %s has no input %s", ErrChannelNotFound, body.Name(), key)
		}
	}

	var conflicts []string
	for _, key := range looped {
		if _, isOut := findPort(bodyOut, key); isOut && !slices.Contains(c.renamed, key) {
			conflicts = append(conflicts, key)
		}
	}
	if len(conflicts) > 0 {
		slices.Sort(conflicts)
		return nil, &UnmappedConflictError{Labels: conflicts}
	}
	var missing []string
	for _, key := range c.renamed {
		if _, ok := findPort(bodyOut, key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MapsToNonexistentOutputError{Labels: missing}
	}

	for _, p := range bodyIn {
		if slices.Contains(looped, p.Label) {
			listHint := hint.Bare(hint.OriginList)
			if p.Hint != nil {
				listHint = hint.ListOf(p.Hint)
			}
			p = PortSpec{Label: p.Label, Hint: listHint}
		}
		c.inputs = append(c.inputs, p)
	}
	for _, p := range bodyOut {
		if _, ok := c.columns[p.Label]; !ok {
			c.columns[p.Label] = p.Label
		}
	}
	c.outputs = []PortSpec{{Label: "df", Hint: hint.Of[[]Row]()}}

	return defineClass(c, func(prior *ForClass) bool {
		return prior.body.Name() == body.Name() &&
			slices.Equal(prior.iterOn, c.iterOn) &&
			slices.Equal(prior.zipOn, c.zipOn) &&
			reflect.DeepEqual(prior.columns, c.columns)
	}), nil
}

// Name implements NodeClass.
func (c *ForClass) Name() string { return c.name }

// Ports implements NodeClass.
func (c *ForClass) Ports() (inputs, outputs []PortSpec) {
	return slices.Clone(c.inputs), slices.Clone(c.outputs)
}

// New implements NodeClass.
func (c *ForClass) New(label string, opts ...NodeOption) (Node, error) {
	f, err := c.Node(label, opts...)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// For is a composite that rebuilds its body instances, body_0, body_1 and
// so on, on every run.
type For struct {
	*Composite
	class        *ForClass
	bodyExecutor executor.Executor
	iterations   []map[string]int
}

// Node builds a for-loop node.
func (c *ForClass) Node(label string, opts ...NodeOption) (*For, error) {
	f := &For{class: c}
	comp, err := newComposite(f, label, c.name)
	if err != nil {
		return nil, err
	}
	f.Composite = comp
	for _, p := range c.inputs {
		f.inputs.Add(NewInputData(p.Label, f, p.options()...))
	}
	for _, p := range c.outputs {
		f.outputs.Add(NewOutputData(p.Label, f, p.options()...))
	}
	comp.runnable.onRun = f.onRun
	comp.runnable.processRunResult = f.collect
	if err := comp.configure(context.Background(), newNodeConfig(opts)); err != nil {
		return nil, err
	}
	return f, nil
}

// SetBodyExecutor sets the executor given to each body instance.
func (f *For) SetBodyExecutor(e executor.Executor) { f.bodyExecutor = e }

// BodyExecutor returns the executor given to each body instance.
func (f *For) BodyExecutor() executor.Executor { return f.bodyExecutor }

func (f *For) looped() []string { return slices.Concat(f.class.iterOn, f.class.zipOn) }

func (f *For) onRun(ctx context.Context) (any, error) {
	lengths := make(map[string]int)
	for _, key := range f.looped() {
		v := reflect.ValueOf(f.inputs.Get(key).Value())
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, &NodeError{NodeID: f.FullLabel(), Op: "iterate", Err: fmt.Errorf("input %s is %T, not a list", key, f.inputs.Get(key).Value())}
		}
		lengths[key] = v.Len()
	}
	maps, err := IndexMaps(lengths, f.class.iterOn, f.class.zipOn)
	if err != nil {
		return nil, &NodeError{NodeID: f.FullLabel(), Op: "iterate", Err: err}
	}

	for _, child := range f.Children() {
		if _, err := f.RemoveChild(child); err != nil {
			return nil, err
		}
	}
	f.iterations = maps

	bodies := make([]Node, 0, len(maps))
	for n, idx := range maps {
		opts := []NodeOption{WithParent(f.Composite)}
		if f.bodyExecutor != nil {
			opts = append(opts, WithExecutor(f.bodyExecutor))
		}
		body, err := f.class.body.New(fmt.Sprintf("body_%d", n), opts...)
		if err != nil {
			return nil, err
		}
		for _, key := range f.inputs.Labels() {
			in := f.inputs.Get(key)
			if !in.HasValue() {
				continue
			}
			v := in.Value()
			if i, looped := idx[key]; looped {
				v = reflect.ValueOf(v).Index(i).Interface()
			}
			if err := body.Inputs().Set(key, v); err != nil {
				return nil, &NodeError{NodeID: body.FullLabel(), Op: "input", Err: err}
			}
		}
		bodies = append(bodies, body)
	}
	if err := f.SetStartingNodes(bodies...); err != nil {
		return nil, err
	}
	return nil, f.runGraph(ctx, bodies)
}

// collect gathers one row per body instance into df.
func (f *For) collect(any) (any, error) {
	rows := make([]Row, len(f.iterations))
	for n, idx := range f.iterations {
		row := make(Row)
		for key, i := range idx {
			row[key] = reflect.ValueOf(f.inputs.Get(key).Value()).Index(i).Interface()
		}
		body, ok := f.Child(fmt.Sprintf("body_%d", n))
		if !ok {
			return nil, fmt.Errorf("%w: body_%d", ErrNotChild, n)
		}
		for _, out := range body.Outputs().All() {
			row[f.class.columns[out.Label()]] = out.Value()
		}
		rows[n] = row
	}
	if err := f.outputs.Get("df").SetValue(rows); err != nil {
		return nil, err
	}
	return f.outputs.Values(), nil
}
