package wireflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/wireflow/pkg/wireflow/hint"
)

// copyFixture is a source panel with a good and a bad value, and a
// destination whose first input mirrors its writes to recv.
type copyFixture struct {
	src, dst *Inputs
	recv     *InputData
}

func newCopyFixture(t *testing.T) copyFixture {
	t.Helper()
	owner := &stubOwner{label: "n"}

	src := NewInputs()
	srcA := NewInputData("a", owner)
	srcB := NewInputData("b", owner)
	require.NoError(t, srcA.SetValue(10))
	require.NoError(t, srcB.SetValue("bad"))
	src.Add(srcA)
	src.Add(srcB)

	dst := NewInputs()
	a := NewInputData("a", owner, WithHint(hint.Of[int]()), WithDefault(1))
	b := NewInputData("b", owner, WithHint(hint.Of[int]()))
	recv := NewInputData("recv", &stubOwner{label: "m"})
	require.NoError(t, a.SetValueReceiver(recv))
	dst.Add(a)
	dst.Add(b)

	return copyFixture{src: src, dst: dst, recv: recv}
}

// TestCopyValues tests soft and hard value copies between panels.
func TestCopyValues(t *testing.T) {
	tests := []struct {
		name     string
		failHard bool
		wantErr  bool
		wantA    int
	}{
		{name: "soft skips failures", failHard: false, wantErr: false, wantA: 10},
		{name: "hard restores earlier writes", failHard: true, wantErr: true, wantA: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCopyFixture(t)
			assert.Equal(t, 1, f.recv.Value())

			err := f.dst.CopyValues(f.src, tt.failHard)
			if tt.wantErr {
				var copyErr *ValueCopyError
				require.ErrorAs(t, err, &copyErr)
				assert.Equal(t, "/n.b", copyErr.Channel)
				assert.ErrorIs(t, err, ErrValueType)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantA, f.dst.Get("a").Value())
			assert.Equal(t, tt.wantA, f.recv.Value(), "receiver follows the copied channel")
			assert.False(t, f.dst.Get("b").HasValue())
		})
	}
}
