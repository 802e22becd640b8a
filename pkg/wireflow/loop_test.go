package wireflow

import (
	"context"
	"testing"

	"github.com/randalmurphal/wireflow/pkg/wireflow/hint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoFn(_ context.Context, in Values) (Values, error) {
	return Values{"x": in["x"].(int) * 10}, nil
}

// echo reads and writes a channel named x.
var echo = DefineFunction("TestLoopEcho", echoFn,
	[]PortSpec{intPort("x")}, []PortSpec{intPort("x")})

// TestIndexMaps tests nested and zipped iteration orders.
func TestIndexMaps(t *testing.T) {
	tests := []struct {
		name    string
		lengths map[string]int
		nested  []string
		zipped  []string
		want    []map[string]int
		wantErr error
	}{
		{
			name:    "nested product",
			lengths: map[string]int{"a": 2, "b": 2},
			nested:  []string{"a", "b"},
			want: []map[string]int{
				{"a": 0, "b": 0}, {"a": 0, "b": 1},
				{"a": 1, "b": 0}, {"a": 1, "b": 1},
			},
		},
		{
			name:    "zip stops at shortest",
			lengths: map[string]int{"a": 3, "b": 2},
			zipped:  []string{"a", "b"},
			want:    []map[string]int{{"a": 0, "b": 0}, {"a": 1, "b": 1}},
		},
		{
			name:    "nested outside zip",
			lengths: map[string]int{"a": 2, "b": 2, "c": 3},
			nested:  []string{"a"},
			zipped:  []string{"b", "c"},
			want: []map[string]int{
				{"a": 0, "b": 0, "c": 0}, {"a": 0, "b": 1, "c": 1},
				{"a": 1, "b": 0, "c": 0}, {"a": 1, "b": 1, "c": 1},
			},
		},
		{
			name:    "nothing looped",
			lengths: map[string]int{"a": 2},
			wantErr: ErrNoIteration,
		},
		{
			name:    "empty input",
			lengths: map[string]int{"a": 0, "b": 4},
			nested:  []string{"a", "b"},
			wantErr: ErrNoIteration,
		},
		{
			name:    "unknown input",
			lengths: map[string]int{"a": 1},
			zipped:  []string{"a", "z"},
			wantErr: ErrChannelNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IndexMaps(tt.lengths, tt.nested, tt.zipped)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestDefineFor_Errors tests for-loop class validation.
func TestDefineFor_Errors(t *testing.T) {
	_, err := DefineFor("TestForMissing", plusOne, []string{"nope"}, nil)
	assert.ErrorIs(t, err, ErrChannelNotFound)

	_, err = DefineFor("TestForConflict", echo, []string{"x"}, nil)
	var conflict *UnmappedConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"x"}, conflict.Labels)

	_, err = DefineFor("TestForBadMap", plusOne, []string{"x"}, nil,
		WithOutputColumnMap(map[string]string{"nope": "n"}))
	var missing *MapsToNonexistentOutputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"nope"}, missing.Labels)
}

// TestFor_Run tests a for loop collecting rows.
func TestFor_Run(t *testing.T) {
	class, err := DefineFor("TestForPlusOne", plusOne, []string{"x"}, nil)
	require.NoError(t, err)
	in, out := class.Ports()
	assert.Equal(t, hint.ListOf(hint.Of[int]()).String(), in[0].Hint.String())
	assert.Equal(t, "df", out[0].Label)

	f := mustNode(class.Node("loop", WithValues(Values{"x": []int{1, 2, 3}})))
	got, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"df": []Row{
		{"x": 1, "y": 2},
		{"x": 2, "y": 3},
		{"x": 3, "y": 4},
	}}, got)
	assert.Equal(t, []string{"body_0", "body_1", "body_2"}, f.ChildLabels())

	t.Run("rebuilds bodies on rerun", func(t *testing.T) {
		require.NoError(t, f.Inputs().Set("x", []int{5}))
		got, err := f.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Values{"df": []Row{{"x": 5, "y": 6}}}, got)
		assert.Equal(t, []string{"body_0"}, f.ChildLabels())
	})
}

// TestFor_Broadcast tests unlooped inputs reaching every body.
func TestFor_Broadcast(t *testing.T) {
	class, err := DefineFor("TestForAdd", add, []string{"obj"}, nil)
	require.NoError(t, err)
	f := mustNode(class.Node("loop", WithValues(Values{"obj": []int{1, 2}, "other": 10})))

	got, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"df": []Row{
		{"obj": 1, "add": 11},
		{"obj": 2, "add": 12},
	}}, got)
}

// TestFor_ColumnMap tests renaming a body output that shadows an input.
func TestFor_ColumnMap(t *testing.T) {
	class, err := DefineFor("TestForEcho", echo, nil, []string{"x"},
		WithOutputColumnMap(map[string]string{"x": "x_out"}))
	require.NoError(t, err)
	f := mustNode(class.Node("loop", WithValues(Values{"x": []int{1, 2}})))

	got, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"df": []Row{
		{"x": 1, "x_out": 10},
		{"x": 2, "x_out": 20},
	}}, got)
}

// TestFor_NoIteration tests that empty looped inputs fail the run.
func TestFor_NoIteration(t *testing.T) {
	class, err := DefineFor("TestForPlusOne", plusOne, []string{"x"}, nil)
	require.NoError(t, err)
	f := mustNode(class.Node("loop", WithValues(Values{"x": []int{}})))

	_, err = f.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoIteration)
	assert.True(t, f.Failed())
}

func counterLoop(t *testing.T, name string, test NodeClass, opts ...WhileOption) *WhileClass {
	t.Helper()
	opts = append(opts,
		WithBodyToTest(Edge{From: "add", To: "obj"}),
		WithBodyToBody(Edge{From: "add", To: "obj"}))
	class, err := DefineWhile(name, test, add, opts...)
	require.NoError(t, err)
	return class
}

// TestWhile_Run tests a counting loop.
func TestWhile_Run(t *testing.T) {
	class := counterLoop(t, "TestWhileCount", lessThan)
	in, out := class.Ports()
	labels := make([]string, len(in))
	for i, p := range in {
		labels[i] = p.Label
	}
	assert.Equal(t, []string{"test_obj", "test_other", "body_obj", "body_other", "max_iterations"}, labels)
	assert.Equal(t, "add", out[0].Label)

	w := mustNode(class.Node("loop", WithValues(Values{
		"test_obj": 0, "test_other": 5, "body_obj": 0, "body_other": 2,
	})))
	got, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"add": 6}, got)
	assert.Equal(t, 3, w.Iterations())
	assert.Equal(t, []string{
		"test_0", "body_0", "test_1", "body_1", "test_2", "body_2", "test_3", "body_3",
	}, w.ChildLabels())
	assert.Equal(t, []string{
		"test_0", "body_0", "test_1", "body_1", "test_2", "body_2", "test_3",
	}, w.ProvenanceByExecution())
}

// TestWhile_LooseCondition tests an unhinted test output.
func TestWhile_LooseCondition(t *testing.T) {
	_, err := DefineWhile("TestWhileStrict", lessThanLoose, add,
		WithBodyToTest(Edge{From: "add", To: "obj"}),
		WithBodyToBody(Edge{From: "add", To: "obj"}))
	var invalid *InvalidTestOutputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "TestLessThanLoose", invalid.Class)

	class := counterLoop(t, "TestWhileLoose", lessThanLoose, WithLooseCondition())
	w := mustNode(class.Node("loop", WithValues(Values{
		"test_obj": 0, "test_other": 5, "body_obj": 0, "body_other": 2,
	})))
	got, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"add": 6}, got)
}

// TestWhile_MaxIterations tests the iteration cap.
func TestWhile_MaxIterations(t *testing.T) {
	class := counterLoop(t, "TestWhileCount", lessThan)
	w := mustNode(class.Node("loop", WithValues(Values{
		"test_obj": 0, "test_other": 100, "body_obj": 0, "body_other": 2,
		"max_iterations": 2,
	})))
	got, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Values{"add": 4}, got)
	assert.Equal(t, 2, w.Iterations())

	t.Run("rejects non-integers", func(t *testing.T) {
		require.NoError(t, w.Inputs().Set("max_iterations", "many"))
		_, err := w.Run(context.Background())
		var nodeErr *NodeError
		require.ErrorAs(t, err, &nodeErr)
		assert.ErrorContains(t, err, "max_iterations must be an integer")
	})
}

// TestDefineWhile_Errors tests while-loop class validation.
func TestDefineWhile_Errors(t *testing.T) {
	_, err := DefineWhile("TestWhileNoTestEdge", lessThan, add,
		WithBodyToBody(Edge{From: "add", To: "obj"}))
	var loop *NonTerminatingLoopError
	require.ErrorAs(t, err, &loop)
	assert.Equal(t, "body-to-test", loop.Missing)

	_, err = DefineWhile("TestWhileNoBodyEdge", lessThan, add,
		WithBodyToTest(Edge{From: "add", To: "obj"}))
	require.ErrorAs(t, err, &loop)
	assert.Equal(t, "body-to-body", loop.Missing)

	_, err = DefineWhile("TestWhileBadOutput", lessThan, add,
		WithBodyToTest(Edge{From: "sum", To: "obj"}),
		WithBodyToBody(Edge{From: "add", To: "obj"}))
	var edge *InvalidEdgeError
	require.ErrorAs(t, err, &edge)
	assert.Equal(t, "sum", edge.Channel)
	assert.True(t, edge.Output)

	_, err = DefineWhile("TestWhileBadInput", lessThan, add,
		WithBodyToTest(Edge{From: "add", To: "obj"}),
		WithBodyToBody(Edge{From: "add", To: "nope"}))
	require.ErrorAs(t, err, &edge)
	assert.Equal(t, "nope", edge.Channel)
	assert.False(t, edge.Output)
}

// TestTruthy tests loop condition coercion.
func TestTruthy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{true, true},
		{false, false},
		{nil, false},
		{0, false},
		{3, true},
		{"", false},
		{"x", true},
		{[]int{}, false},
		{[]int{1}, true},
		{map[string]int{}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truthy(tt.v), "%#v", tt.v)
	}
}
