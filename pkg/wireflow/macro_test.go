package wireflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildAddThree chains three plusOne children.
func buildAddThree(m *Macro) (MacroLinks, error) {
	p1, err := plusOne.Node("p1", WithParent(m.Composite))
	if err != nil {
		return MacroLinks{}, err
	}
	p2, err := plusOne.Node("p2", WithParent(m.Composite))
	if err != nil {
		return MacroLinks{}, err
	}
	p3, err := plusOne.Node("p3", WithParent(m.Composite))
	if err != nil {
		return MacroLinks{}, err
	}
	if err := p2.Inputs().Set("x", p1); err != nil {
		return MacroLinks{}, err
	}
	if err := p3.Inputs().Set("x", p2); err != nil {
		return MacroLinks{}, err
	}
	return MacroLinks{
		Inputs:  map[string]ChannelRef{"x": Ref(p1, "x")},
		Outputs: map[string]ChannelRef{"y": Ref(p3, "y")},
	}, nil
}

func buildHalfManual(m *Macro) (MacroLinks, error) {
	p1, err := plusOne.Node("p1", WithParent(m.Composite))
	if err != nil {
		return MacroLinks{}, err
	}
	if err := m.SetStartingNodes(p1); err != nil {
		return MacroLinks{}, err
	}
	return MacroLinks{
		Inputs:  map[string]ChannelRef{"x": Ref(p1, "x")},
		Outputs: map[string]ChannelRef{"y": Ref(p1, "y")},
	}, nil
}

func buildBadLink(m *Macro) (MacroLinks, error) {
	if _, err := plusOne.Node("p1", WithParent(m.Composite)); err != nil {
		return MacroLinks{}, err
	}
	return MacroLinks{Inputs: map[string]ChannelRef{"x": {Child: "ghost", Channel: "x"}}}, nil
}

var (
	addThree = DefineMacro("TestAddThree",
		[]PortSpec{{Label: "x"}}, []PortSpec{{Label: "y"}}, buildAddThree)

	halfManual = DefineMacro("TestHalfManual",
		[]PortSpec{{Label: "x"}}, []PortSpec{{Label: "y"}}, buildHalfManual)

	badLink = DefineMacro("TestBadLink",
		[]PortSpec{{Label: "x"}}, nil, buildBadLink)
)

// TestMacro_Run tests a macro run on its own.
func TestMacro_Run(t *testing.T) {
	m := mustNode(addThree.Node("m"))
	assert.Equal(t, "int", m.Inputs().Get("x").Hint().String(), "port hint comes from the child")
	assert.Equal(t, 0, m.Inputs().Get("x").Value(), "port default comes from the child")

	require.NoError(t, m.Inputs().Set("x", 1))
	out, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"y": 4}, out)
	assert.Equal(t, []string{"p1", "p2", "p3"}, m.ProvenanceByExecution())
	assert.Equal(t, MacroLinks{
		Inputs:  map[string]ChannelRef{"x": {Child: "p1", Channel: "x"}},
		Outputs: map[string]ChannelRef{"y": {Child: "p3", Channel: "y"}},
	}, m.Links())
}

// TestMacro_InWorkflow tests a macro fed by a sibling.
func TestMacro_InWorkflow(t *testing.T) {
	wf := mustNode(NewWorkflow("wf"))
	src := mustNode(plusOne.Node("src", WithParent(wf.Composite), WithValues(Values{"x": 0})))
	m := mustNode(addThree.Node("m", WithParent(wf.Composite)))
	require.NoError(t, m.Inputs().Set("x", src))

	out, err := wf.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"m__y": 4}, out)
	assert.Equal(t, "/wf/m/p3", mustChild(t, m.Composite, "p3").FullLabel())
}

// TestMacro_ExecutionConfig tests that half-manual wiring is refused.
func TestMacro_ExecutionConfig(t *testing.T) {
	_, err := halfManual.Node("m")
	assert.ErrorIs(t, err, ErrExecutionConfig)

	_, err = badLink.Node("m")
	var linkErr *MacroLinkError
	require.ErrorAs(t, err, &linkErr)
	assert.Equal(t, "ghost", linkErr.Child)
}

// TestMacro_Replace tests relinking after a swap.
func TestMacro_Replace(t *testing.T) {
	m := mustNode(addThree.Node("m", WithValues(Values{"x": 1})))
	p3 := mustChild(t, m.Composite, "p3")

	_, err := m.ReplaceChild(p3, mustNode(plusTwo.Node("two")))
	require.NoError(t, err)

	out, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"y": 5}, out)
	assert.Equal(t, "TestPlusTwo", mustChild(t, m.Composite, "p3").ClassName())
	assert.Equal(t, "two", p3.Label())
}

// TestMacro_ReplaceRollback tests that an unlinkable replacement is undone.
func TestMacro_ReplaceRollback(t *testing.T) {
	m := mustNode(addThree.Node("m", WithValues(Values{"x": 1})))
	p3 := mustChild(t, m.Composite, "p3")
	repl := mustNode(plusOneZ.Node("z"))

	_, err := m.ReplaceChild(p3, repl)
	var linkErr *MacroLinkError
	require.ErrorAs(t, err, &linkErr)
	assert.Equal(t, "y", linkErr.Port)

	assert.Same(t, p3, mustChild(t, m.Composite, "p3"))
	assert.Nil(t, repl.Parent())
	assert.False(t, repl.Inputs().Get("x").Connected())

	out, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"y": 4}, out)
}
