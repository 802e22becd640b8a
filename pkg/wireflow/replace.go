package wireflow

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

func hasConnections(n Node) bool {
	return n.Inputs().Connected() || n.Outputs().Connected() || n.Signals().Connected()
}

// copyIO gives dst the connections of src, all or nothing, then copies
// src's values where dst accepts them.
func copyIO(dst, src Node) error {
	steps := []func() error{
		func() error { return dst.Inputs().CopyConnections(src.Inputs()) },
		func() error { return dst.Outputs().CopyConnections(src.Outputs()) },
		func() error { return dst.Signals().Input.copyConnections(&src.Signals().Input.panel) },
		func() error { return dst.Signals().Output.copyConnections(&src.Signals().Output.panel) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			dst.Disconnect()
			return err
		}
	}
	// Soft copies never fail.
	_ = dst.Inputs().CopyValues(src.Inputs(), false)
	_ = dst.Outputs().CopyValues(src.Outputs(), false)
	return nil
}

// ReplaceChild swaps old for replacement. The replacement takes old's
// label, position, starting-node slot, connections and, where its hints
// allow, values. Composites whose IO derives from their children rebuild
// it; if that fails the swap is undone and the error returned. On
// success the detached old node is returned.
func (c *Composite) ReplaceChild(old, replacement Node) (Node, error) {
	return c.replaceChild(old, replacement, false)
}

func (c *Composite) replaceChild(old, replacement Node, undoing bool) (Node, error) {
	if _, ok := replacement.(*Workflow); ok {
		return nil, fmt.Errorf("%w: cannot add %s to %s", ErrParentMost, replacement.FullLabel(), c.FullLabel())
	}
	if old.Parent() != c {
		return nil, fmt.Errorf("%w: %s of %s", ErrNotChild, old.FullLabel(), c.FullLabel())
	}
	if replacement.Parent() != nil || c.isAncestorOrSelf(replacement) {
		return nil, fmt.Errorf("%w: %s", ErrHasParent, replacement.FullLabel())
	}
	if hasConnections(replacement) {
		return nil, fmt.Errorf("%w: %s", ErrReplacementConnected, replacement.FullLabel())
	}

	if err := copyIO(replacement, old); err != nil {
		return nil, err
	}
	index := slices.Index(c.children, old)
	startIndex := slices.Index(c.starting, old)

	if _, err := c.RemoveChild(old); err != nil {
		replacement.Disconnect()
		return nil, err
	}
	oldLabel := old.Label()
	old.base().label, replacement.base().label = replacement.Label(), oldLabel
	if err := c.insertChild(index, replacement); err != nil {
		return nil, err
	}
	if startIndex >= 0 {
		c.starting = slices.Insert(c.starting, startIndex, replacement)
	}

	if c.rebuildIO != nil {
		if err := c.rebuildIO(); err != nil {
			if undoing {
				return nil, err
			}
			if _, rerr := c.replaceChild(replacement, old, true); rerr != nil {
				return nil, multierr.Append(err, rerr)
			}
			return nil, err
		}
	}
	return old, nil
}

// ReplaceChildWithClass builds a node of class and swaps it in for the
// child labelled label.
func (c *Composite) ReplaceChildWithClass(label string, class NodeClass) (Node, error) {
	old, ok := c.byLabel[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotChild, label, c.FullLabel())
	}
	replacement, err := class.New(label)
	if err != nil {
		return nil, err
	}
	return c.ReplaceChild(old, replacement)
}
