// ABOUTME: Selection state for browsing registry entries one at a time
// ABOUTME: Index moves are clamped to the registry bounds and never wrap around

package outputs

// NoSelection is the selector position when nothing is selected.
const NoSelection = -1

// Transition describes a selection change: the panel showing Exit leaves
// before the panel showing Enter comes in. Exit is NoSelection when nothing
// was selected before.
type Transition struct {
	Exit  int
	Enter int
}

// Selector tracks which registry entry is open in the detail panel.
// It performs no I/O; callers sequence any animation from the returned
// Transition.
type Selector struct {
	registry *Registry
	current  int
}

// NewSelector creates a selector over the given registry with nothing selected.
func NewSelector(registry *Registry) *Selector {
	return &Selector{registry: registry, current: NoSelection}
}

// Current returns the selected index, or NoSelection. An index the registry
// no longer holds reads as NoSelection.
func (s *Selector) Current() int {
	if s.current < 0 || s.current >= s.registry.Len() {
		return NoSelection
	}
	return s.current
}

// Selected returns the selected entry, if any.
func (s *Selector) Selected() (Entry, bool) {
	return s.registry.At(s.Current())
}

// Select moves the selection to index i. Selecting an index outside the
// registry or the index already selected is a no-op and returns false.
func (s *Selector) Select(i int) (Transition, bool) {
	if i < 0 || i >= s.registry.Len() {
		return Transition{}, false
	}
	cur := s.Current()
	if i == cur {
		return Transition{}, false
	}
	s.current = i
	return Transition{Exit: cur, Enter: i}, true
}

// Previous selects the entry before the current one. It is a no-op at the
// first entry or when nothing is selected.
func (s *Selector) Previous() (Transition, bool) {
	cur := s.Current()
	if cur <= 0 {
		return Transition{}, false
	}
	return s.Select(cur - 1)
}

// Next selects the entry after the current one. It is a no-op at the last
// entry or when nothing is selected.
func (s *Selector) Next() (Transition, bool) {
	cur := s.Current()
	if cur == NoSelection {
		return Transition{}, false
	}
	return s.Select(cur + 1)
}

// Clear deselects. Returns false when nothing was selected.
func (s *Selector) Clear() bool {
	selected := s.Current() != NoSelection
	s.current = NoSelection
	return selected
}

// Reset deselects unconditionally. Call it after resetting the registry so a
// later publish cannot revive the old index.
func (s *Selector) Reset() {
	s.current = NoSelection
}
