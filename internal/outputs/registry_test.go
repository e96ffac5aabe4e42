// ABOUTME: Tests for the output registry and selection navigation
// ABOUTME: Validates in-place replacement, ordering, and clamped index moves

package outputs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PublishAppends(t *testing.T) {
	r := NewRegistry()

	i, replaced := r.Publish(Entry{ID: "a1", AgentName: "Coder Agent", Output: "one"})
	assert.Equal(t, 0, i)
	assert.False(t, replaced)

	i, replaced = r.Publish(Entry{ID: "b2", AgentName: "Planner Agent", Output: "two"})
	assert.Equal(t, 1, i)
	assert.False(t, replaced)

	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RepublishReplacesInPlace(t *testing.T) {
	r := NewRegistry()
	r.Publish(Entry{ID: "a1", AgentName: "Coder Agent", Output: "print(1)"})
	r.Publish(Entry{ID: "b2", AgentName: "Planner Agent", Output: "plan"})

	i, replaced := r.Publish(Entry{ID: "a1", AgentName: "Coder Agent", Output: "print(2)"})
	assert.Equal(t, 0, i)
	assert.True(t, replaced)

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a1", entries[0].ID)
	assert.Equal(t, "print(2)", entries[0].Output)
	assert.Equal(t, "b2", entries[1].ID)
}

func TestRegistry_GetAndAt(t *testing.T) {
	r := NewRegistry()
	r.Publish(Entry{ID: "a1", Output: "x"})

	e, ok := r.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "x", e.Output)
	assert.False(t, e.UpdatedAt.IsZero())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	_, ok = r.At(5)
	assert.False(t, ok)
	_, ok = r.At(-1)
	assert.False(t, ok)
}

func TestRegistry_EntriesIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Publish(Entry{ID: "a1", Output: "x"})

	entries := r.Entries()
	entries[0].Output = "mutated"

	e, _ := r.Get("a1")
	assert.Equal(t, "x", e.Output)
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry()
	r.Publish(Entry{ID: "a1"})
	r.Reset()

	assert.Equal(t, 0, r.Len())
	_, ok := r.Get("a1")
	assert.False(t, ok)
}

func newSelectorWith(n int) *Selector {
	r := NewRegistry()
	for i := 0; i < n; i++ {
		r.Publish(Entry{ID: string(rune('a' + i))})
	}
	return NewSelector(r)
}

func TestSelector_Select(t *testing.T) {
	s := newSelectorWith(3)
	assert.Equal(t, NoSelection, s.Current())

	tr, ok := s.Select(1)
	require.True(t, ok)
	assert.Equal(t, Transition{Exit: NoSelection, Enter: 1}, tr)

	tr, ok = s.Select(2)
	require.True(t, ok)
	assert.Equal(t, Transition{Exit: 1, Enter: 2}, tr)

	e, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "c", e.ID)
}

func TestSelector_SelectSameIndexIsNoop(t *testing.T) {
	s := newSelectorWith(2)
	s.Select(0)

	_, ok := s.Select(0)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Current())
}

func TestSelector_SelectOutOfRangeIsNoop(t *testing.T) {
	s := newSelectorWith(2)
	s.Select(1)

	for _, i := range []int{-1, 2, 100} {
		_, ok := s.Select(i)
		assert.False(t, ok, "index %d", i)
		assert.Equal(t, 1, s.Current())
	}
}

func TestSelector_PreviousAndNextClamp(t *testing.T) {
	s := newSelectorWith(3)

	// Nothing selected: both are no-ops.
	_, ok := s.Previous()
	assert.False(t, ok)
	_, ok = s.Next()
	assert.False(t, ok)

	s.Select(0)
	_, ok = s.Previous()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Current())

	tr, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, Transition{Exit: 0, Enter: 1}, tr)

	s.Next()
	assert.Equal(t, 2, s.Current())

	_, ok = s.Next()
	assert.False(t, ok)
	assert.Equal(t, 2, s.Current())

	tr, ok = s.Previous()
	require.True(t, ok)
	assert.Equal(t, Transition{Exit: 2, Enter: 1}, tr)
}

func TestSelector_Clear(t *testing.T) {
	s := newSelectorWith(1)
	assert.False(t, s.Clear())

	s.Select(0)
	assert.True(t, s.Clear())
	assert.Equal(t, NoSelection, s.Current())
}

func TestSelector_ResetRegistryDropsSelection(t *testing.T) {
	r := NewRegistry()
	r.Publish(Entry{ID: "a"})
	s := NewSelector(r)
	s.Select(0)

	r.Reset()
	assert.Equal(t, NoSelection, s.Current())
	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestSelector_CurrentDoesNotMutate(t *testing.T) {
	r := NewRegistry()
	r.Publish(Entry{ID: "a"})
	r.Publish(Entry{ID: "b"})
	s := NewSelector(r)
	s.Select(1)

	r.Reset()
	assert.Equal(t, NoSelection, s.Current())
	assert.Equal(t, NoSelection, s.Current())

	// Reading did not drop the stored index; only Reset or Clear does.
	r.Publish(Entry{ID: "x"})
	r.Publish(Entry{ID: "y"})
	assert.Equal(t, 1, s.Current())

	s.Reset()
	r.Reset()
	r.Publish(Entry{ID: "p"})
	r.Publish(Entry{ID: "q"})
	assert.Equal(t, NoSelection, s.Current())
}

func TestSelector_ClearAfterRegistryReset(t *testing.T) {
	r := NewRegistry()
	r.Publish(Entry{ID: "a"})
	s := NewSelector(r)
	s.Select(0)

	r.Reset()
	assert.False(t, s.Clear(), "stale index is not a selection")
	r.Publish(Entry{ID: "b"})
	assert.Equal(t, NoSelection, s.Current())
}
