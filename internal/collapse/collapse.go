// Package collapse tracks which messages of an open thread are folded.
//
// A thread view starts with every body except the last folded to a one-line
// summary, and, for threads longer than three messages, the middle messages
// hidden behind a single group indicator. Expanding the group is one-way for
// the lifetime of the view.
package collapse

import "sort"

// State is the fold state of one thread view. The zero value is an empty
// thread. State is not safe for concurrent use.
type State struct {
	count   int
	content map[int]struct{}
	groups  map[int]struct{}
}

// New returns a State for a thread of count messages.
func New(count int) *State {
	s := &State{}
	s.SetCount(count)
	return s
}

// SetCount resets the state for a thread of count messages.
func (s *State) SetCount(count int) {
	if count < 0 {
		count = 0
	}
	s.count = count
	s.groups = make(map[int]struct{})
	s.content = make(map[int]struct{})

	if count > 3 {
		for i := 1; i <= count-3; i++ {
			s.groups[i] = struct{}{}
		}
	}
	s.collapseContent()
}

// collapseContent folds every body except the last.
func (s *State) collapseContent() {
	s.content = make(map[int]struct{})
	for i := 0; i < s.count-1; i++ {
		s.content[i] = struct{}{}
	}
}

// Count returns the message count the state was last reset with.
func (s *State) Count() int { return s.count }

// ToggleContent flips whether the body at index i is folded. Indexes
// outside the thread are ignored.
func (s *State) ToggleContent(i int) {
	if i < 0 || i >= s.count {
		return
	}
	if s.content == nil {
		s.content = make(map[int]struct{})
	}
	if _, ok := s.content[i]; ok {
		delete(s.content, i)
		return
	}
	s.content[i] = struct{}{}
}

// ExpandGroup reveals the hidden middle messages. It cannot be undone short
// of SetCount.
func (s *State) ExpandGroup() {
	s.groups = make(map[int]struct{})
}

// ToggleAll expands everything when anything is folded, otherwise folds
// every body except the last. Groups are never re-collapsed.
func (s *State) ToggleAll() {
	if s.HasCollapsed() {
		s.content = make(map[int]struct{})
		s.groups = make(map[int]struct{})
		return
	}
	s.collapseContent()
}

// HasCollapsed reports whether any body or group is folded.
func (s *State) HasCollapsed() bool {
	return len(s.content) > 0 || len(s.groups) > 0
}

// HasGroup reports whether middle messages are hidden.
func (s *State) HasGroup() bool {
	return len(s.groups) > 0
}

// ContentCollapsed reports whether the body at index i is folded.
func (s *State) ContentCollapsed(i int) bool {
	_, ok := s.content[i]
	return ok
}

// GroupCollapsed reports whether the message at index i is hidden in the
// group.
func (s *State) GroupCollapsed(i int) bool {
	_, ok := s.groups[i]
	return ok
}

// GroupSize returns the number of hidden messages.
func (s *State) GroupSize() int { return len(s.groups) }

// FirstHidden returns the index the group indicator is drawn at, or -1.
func (s *State) FirstHidden() int {
	idx := s.GroupIndexes()
	if len(idx) == 0 {
		return -1
	}
	return idx[0]
}

// ContentIndexes returns the folded body indexes in ascending order.
func (s *State) ContentIndexes() []int { return sortedKeys(s.content) }

// GroupIndexes returns the hidden message indexes in ascending order.
func (s *State) GroupIndexes() []int { return sortedKeys(s.groups) }

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
