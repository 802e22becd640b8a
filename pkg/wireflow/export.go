package wireflow

// ChannelView describes one data channel.
type ChannelView struct {
	Label      string `json:"label"`
	Value      any    `json:"value,omitempty"`
	HasValue   bool   `json:"has_value"`
	Hint       string `json:"hint,omitempty"`
	Default    any    `json:"default,omitempty"`
	HasDefault bool   `json:"has_default"`
	Connected  bool   `json:"connected"`
}

// SignalView describes one signal channel.
type SignalView struct {
	Label     string `json:"label"`
	Connected bool   `json:"connected"`
}

// EdgeView is a connection between two children, written child.channel.
type EdgeView struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NodeView is a read-only description of a node and, for composites, its
// subgraph.
type NodeView struct {
	Label     string `json:"label"`
	FullLabel string `json:"full_label"`
	Class     string `json:"class"`
	Running   bool   `json:"running"`
	Failed    bool   `json:"failed"`
	Ready     bool   `json:"ready"`

	Inputs        []ChannelView `json:"inputs"`
	Outputs       []ChannelView `json:"outputs"`
	InputSignals  []SignalView  `json:"input_signals"`
	OutputSignals []SignalView  `json:"output_signals"`

	Children      []NodeView `json:"children,omitempty"`
	StartingNodes []string   `json:"starting_nodes,omitempty"`
	DataEdges     []EdgeView `json:"data_edges,omitempty"`
	SignalEdges   []EdgeView `json:"signal_edges,omitempty"`
}

// Export describes n without running anything.
func Export(n Node) NodeView {
	v := NodeView{
		Label:     n.Label(),
		FullLabel: n.FullLabel(),
		Class:     n.ClassName(),
		Running:   n.Running(),
		Failed:    n.Failed(),
		Ready:     n.Ready(),
	}
	// Panel keys, not channel labels: workflows expose child channels
	// under child__channel keys.
	ins, outs := n.Inputs(), n.Outputs()
	for _, key := range ins.Labels() {
		v.Inputs = append(v.Inputs, channelView(key, ins.Get(key)))
	}
	for _, key := range outs.Labels() {
		v.Outputs = append(v.Outputs, channelView(key, outs.Get(key)))
	}
	for _, s := range n.Signals().Input.All() {
		v.InputSignals = append(v.InputSignals, SignalView{Label: s.Label(), Connected: s.Connected()})
	}
	for _, s := range n.Signals().Output.All() {
		v.OutputSignals = append(v.OutputSignals, SignalView{Label: s.Label(), Connected: s.Connected()})
	}

	hc, ok := n.(hasComposite)
	if !ok {
		return v
	}
	c := hc.composite()
	for _, child := range c.Children() {
		v.Children = append(v.Children, Export(child))
	}
	for _, s := range c.StartingNodes() {
		v.StartingNodes = append(v.StartingNodes, s.Label())
	}
	v.DataEdges = edgeViews(c.DataConnections())
	v.SignalEdges = edgeViews(c.SignalConnections())
	return v
}

// ToDict describes the node. See Export.
func (n *nodeBase) ToDict() NodeView { return Export(n.self) }

func channelView(key string, c DataChannel) ChannelView {
	v := ChannelView{
		Label:      key,
		Value:      c.Value(),
		HasValue:   c.HasValue(),
		Default:    c.Default().Value(),
		HasDefault: c.HasDefault(),
		Connected:  c.Connected(),
	}
	if h := c.Hint(); h != nil {
		v.Hint = h.String()
	}
	return v
}

func edgeViews(pairs [][2][2]string) []EdgeView {
	var edges []EdgeView
	for _, p := range pairs {
		edges = append(edges, EdgeView{
			From: p[1][0] + "." + p[1][1],
			To:   p[0][0] + "." + p[0][1],
		})
	}
	return edges
}
