package braillex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChordRecorder returns a driver whose handler appends every gesture to
// the returned slice. handleKeys runs synchronously here, so the slice is
// safe to read between calls.
func newChordRecorder(repeatInterval int) (*Driver, *[]KeyEvent) {
	var events []KeyEvent
	d := &Driver{
		repeatInterval: repeatInterval,
		handler:        func(ev KeyEvent) { events = append(events, ev) },
	}
	return d, &events
}

func TestHandleKeys_ChordStateMachine(t *testing.T) {
	t.Parallel()

	t.Run("empty report with nothing held stays silent", func(t *testing.T) {
		t.Parallel()
		d, events := newChordRecorder(defaultRepeatInterval)

		d.handleKeys(nil)
		d.handleKeys([]int{})

		assert.Empty(t, *events)
	})

	t.Run("growing set presses with names in index order", func(t *testing.T) {
		t.Parallel()
		d, events := newChordRecorder(defaultRepeatInterval)

		d.handleKeys([]int{11})
		d.handleKeys([]int{3, 11})

		require.Len(t, *events, 2)
		assert.True(t, (*events)[0].Pressed)
		assert.Equal(t, []string{"l1"}, (*events)[0].Names)
		assert.True(t, (*events)[1].Pressed)
		assert.Equal(t, []string{"up", "l1"}, (*events)[1].Names)
		assert.Equal(t, "up,l1", (*events)[1].Label)
	})

	t.Run("shrinking set fires the chord once", func(t *testing.T) {
		t.Parallel()
		d, events := newChordRecorder(defaultRepeatInterval)

		d.handleKeys([]int{3, 11})
		d.handleKeys([]int{11})
		d.handleKeys(nil)

		require.Len(t, *events, 2)
		rel := (*events)[1]
		assert.False(t, rel.Pressed)
		assert.Equal(t, []int{3, 11}, rel.Keys)
		assert.Equal(t, "l1,up", rel.Label)
	})

	t.Run("press after an empty report starts a fresh gesture", func(t *testing.T) {
		t.Parallel()
		d, events := newChordRecorder(defaultRepeatInterval)

		d.handleKeys([]int{3})
		d.handleKeys(nil)
		d.handleKeys([]int{5})

		require.Len(t, *events, 3)
		assert.True(t, (*events)[2].Pressed)
		assert.Equal(t, "right", (*events)[2].Label)
	})

	t.Run("unassigned indices carry keys but no names", func(t *testing.T) {
		t.Parallel()
		d, events := newChordRecorder(defaultRepeatInterval)

		d.handleKeys([]int{20})
		d.handleKeys(nil)

		require.Len(t, *events, 2)
		assert.Equal(t, []int{20}, (*events)[0].Keys)
		assert.Empty(t, (*events)[0].Names)
		rel := (*events)[1]
		assert.Empty(t, rel.Label, "an unrecognized chord must release without a label")
	})
}

func TestHandleKeys_Repeat(t *testing.T) {
	t.Parallel()

	t.Run("held navigation keys repeat at the interval", func(t *testing.T) {
		t.Parallel()
		d, events := newChordRecorder(2)

		d.handleKeys([]int{3})
		d.handleKeys([]int{3})
		d.handleKeys([]int{3})

		require.Len(t, *events, 2)
		rep := (*events)[1]
		assert.True(t, rep.Repeat)
		assert.True(t, rep.Pressed)
		assert.Equal(t, "up", rep.Label)
	})

	t.Run("a fired repeat restarts the count", func(t *testing.T) {
		t.Parallel()
		d, events := newChordRecorder(2)

		d.handleKeys([]int{3})
		d.handleKeys([]int{3})
		d.handleKeys([]int{3})
		d.handleKeys([]int{3})

		require.Len(t, *events, 2, "one report past the repeat is below the next threshold")
	})

	t.Run("chord repeat keeps only the repeatable subset", func(t *testing.T) {
		t.Parallel()
		d, events := newChordRecorder(1)

		d.handleKeys([]int{3, 11})
		d.handleKeys([]int{3, 11})

		require.Len(t, *events, 2)
		rep := (*events)[1]
		assert.True(t, rep.Repeat)
		assert.Equal(t, []string{"up"}, rep.Names)
		assert.Equal(t, []int{3, 11}, rep.Keys)
	})

	t.Run("display keys never repeat", func(t *testing.T) {
		t.Parallel()
		d, events := newChordRecorder(1)

		d.handleKeys([]int{11})
		d.handleKeys([]int{11})
		d.handleKeys([]int{11})

		require.Len(t, *events, 1)
	})

	t.Run("release resets the repeat count", func(t *testing.T) {
		t.Parallel()
		d, events := newChordRecorder(2)

		d.handleKeys([]int{3})
		d.handleKeys([]int{3})
		d.handleKeys(nil)
		d.handleKeys([]int{3})
		d.handleKeys([]int{3})

		require.Len(t, *events, 3, "the count must not carry across gestures")
		assert.False(t, (*events)[1].Pressed)
		assert.True(t, (*events)[2].Pressed)
		assert.False(t, (*events)[2].Repeat)
	})
}
