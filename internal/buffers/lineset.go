package buffers

import "github.com/google/btree"

// LineSet is a sparse ordered set of zero-based line numbers, used for folds
// and bookmarks. A nil *LineSet reads as empty and ignores writes.
type LineSet struct {
	tree *btree.BTreeG[int]
}

// NewLineSet returns a set holding lines.
func NewLineSet(lines ...int) *LineSet {
	s := &LineSet{tree: btree.NewG(16, func(a, b int) bool { return a < b })}
	for _, l := range lines {
		s.Add(l)
	}
	return s
}

// Add inserts line. Negative lines are ignored.
func (s *LineSet) Add(line int) {
	if s == nil || line < 0 {
		return
	}
	s.tree.ReplaceOrInsert(line)
}

// Remove deletes line.
func (s *LineSet) Remove(line int) {
	if s == nil {
		return
	}
	s.tree.Delete(line)
}

// Toggle flips membership of line and reports whether it is now present.
func (s *LineSet) Toggle(line int) bool {
	if s == nil {
		return false
	}
	if _, found := s.tree.Delete(line); found {
		return false
	}
	s.Add(line)
	return line >= 0
}

// Contains reports whether line is in the set.
func (s *LineSet) Contains(line int) bool {
	if s == nil {
		return false
	}
	return s.tree.Has(line)
}

// Len returns the number of lines.
func (s *LineSet) Len() int {
	if s == nil {
		return 0
	}
	return s.tree.Len()
}

// Lines returns the lines in ascending order.
func (s *LineSet) Lines() []int {
	if s == nil {
		return nil
	}
	out := make([]int, 0, s.tree.Len())
	s.tree.Ascend(func(l int) bool {
		out = append(out, l)
		return true
	})
	return out
}

// Next returns the first line after line.
func (s *LineSet) Next(line int) (int, bool) {
	if s == nil {
		return 0, false
	}
	next, found := 0, false
	s.tree.AscendGreaterOrEqual(line+1, func(l int) bool {
		next, found = l, true
		return false
	})
	return next, found
}

// Prev returns the last line before line.
func (s *LineSet) Prev(line int) (int, bool) {
	if s == nil || line <= 0 {
		return 0, false
	}
	prev, found := 0, false
	s.tree.DescendLessOrEqual(line-1, func(l int) bool {
		prev, found = l, true
		return false
	})
	return prev, found
}

// Clear removes every line.
func (s *LineSet) Clear() {
	if s == nil {
		return
	}
	s.tree.Clear(false)
}

// Replace sets the content to exactly lines.
func (s *LineSet) Replace(lines []int) {
	if s == nil {
		return
	}
	s.Clear()
	for _, l := range lines {
		s.Add(l)
	}
}
