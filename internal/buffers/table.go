// Package buffers implements the fixed-capacity table of open documents and
// the most-recently-used stack used to cycle between them.
//
// A Table is owned by the control goroutine and is not safe for concurrent
// use. Out-of-range indices are ignored or clamped; no operation panics on
// bad input.
package buffers

import (
	"errors"
	"fmt"

	"github.com/dshills/bufkeep/internal/document"
)

// NotFound is returned by lookups that match no slot.
const NotFound = -1

// ErrInvalidCapacity is returned by Allocate for a capacity below one.
var ErrInvalidCapacity = errors.New("buffer capacity must be at least 1")

// Table is the buffer slot table.
type Table struct {
	arena    *document.Arena
	slots    []Slot
	capacity int
	current  int

	// stack is a permutation of slot indices, most recent first.
	stack    []int
	stackPos int

	untitledSeq int
}

// NewTable creates an empty table whose documents live in arena.
// Allocate must be called before use.
func NewTable(arena *document.Arena) *Table {
	if arena == nil {
		arena = document.NewArena()
	}
	return &Table{arena: arena}
}

// Arena returns the arena holding the table's documents.
func (t *Table) Arena() *document.Arena {
	return t.arena
}

// Allocate fixes the capacity and leaves a single untitled current slot.
// Documents held by a previous allocation are released.
func (t *Table) Allocate(capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	t.Destroy()
	t.capacity = capacity
	t.slots = make([]Slot, 1, capacity)
	t.slots[0] = t.newUntitled()
	t.stack = make([]int, 1, capacity)
	t.current = 0
	t.stackPos = 0
	return nil
}

// Destroy releases every document and empties the table.
func (t *Table) Destroy() {
	for i := range t.slots {
		t.arena.Release(t.slots[i].Doc)
	}
	t.slots = nil
	t.stack = nil
	t.current = 0
	t.stackPos = 0
	t.untitledSeq = 0
}

func (t *Table) newUntitled() Slot {
	t.untitledSeq++
	return newSlot(t.untitledSeq)
}

// Len returns the number of slots in use.
func (t *Table) Len() int {
	return len(t.slots)
}

// Capacity returns the maximum number of slots.
func (t *Table) Capacity() int {
	return t.capacity
}

// IsBufferAvailable reports whether AddSlot would succeed.
func (t *Table) IsBufferAvailable() bool {
	return len(t.slots) < t.capacity
}

func (t *Table) valid(i int) bool {
	return i >= 0 && i < len(t.slots)
}

// Slot returns the slot at i, or nil when out of range. The pointer is
// invalidated by operations that move slots.
func (t *Table) Slot(i int) *Slot {
	if !t.valid(i) {
		return nil
	}
	return &t.slots[i]
}

// Current returns the current slot index, NotFound for an empty table.
func (t *Table) Current() int {
	if len(t.slots) == 0 {
		return NotFound
	}
	return t.current
}

// CurrentSlot returns the current slot, nil for an empty table.
func (t *Table) CurrentSlot() *Slot {
	return t.Slot(t.Current())
}

// SetCurrent makes i current without touching the stack.
func (t *Table) SetCurrent(i int) {
	if t.valid(i) {
		t.current = i
	}
}

// Activate makes i current and moves it to the top of the stack.
func (t *Table) Activate(i int) {
	if !t.valid(i) {
		return
	}
	t.current = i
	t.MoveToStackTop(i)
}

// AddSlot appends an untitled slot, moves it to the top of the stack and
// returns its index. A full table is left unchanged and NotFound returned.
func (t *Table) AddSlot() int {
	if len(t.slots) == 0 || len(t.slots) >= t.capacity {
		return NotFound
	}
	t.slots = append(t.slots, t.newUntitled())
	idx := len(t.slots) - 1
	t.stack = append(t.stack, idx)
	t.MoveToStackTop(idx)
	return idx
}

// RemoveCurrent removes the current slot and shifts later slots down. The
// removed slot's document is released after the shift. The last remaining
// slot is reset to untitled instead of removed.
func (t *Table) RemoveCurrent() {
	if len(t.slots) == 0 {
		return
	}
	removed := t.current
	outgoing := t.slots[removed].Doc

	if len(t.slots) == 1 {
		t.slots[0] = t.newUntitled()
		t.arena.Release(outgoing)
		t.stack = t.stack[:1]
		t.stack[0] = 0
		t.stackPos = 0
		return
	}

	t.CommitStackSelection()

	copy(t.slots[removed:], t.slots[removed+1:])
	t.slots[len(t.slots)-1] = Slot{}
	t.slots = t.slots[:len(t.slots)-1]

	kept := t.stack[:0]
	for _, idx := range t.stack {
		switch {
		case idx == removed:
			continue
		case idx > removed:
			idx--
		}
		kept = append(kept, idx)
	}
	t.stack = kept

	t.arena.Release(outgoing)

	if t.current >= len(t.slots) {
		t.current = len(t.slots) - 1
	}
	t.MoveToStackTop(t.current)
}

// Reset returns slot i to the untitled state, releasing its document.
func (t *Table) Reset(i int) {
	if !t.valid(i) {
		return
	}
	outgoing := t.slots[i].Doc
	t.slots[i] = t.newUntitled()
	t.arena.Release(outgoing)
}

// FindByPath returns the slot holding path, skipping the current slot when
// excludeCurrent is set.
func (t *Table) FindByPath(path string, excludeCurrent bool) int {
	if path == "" {
		return NotFound
	}
	for i := range t.slots {
		if excludeCurrent && i == t.current {
			continue
		}
		if t.slots[i].SameNameAs(path) {
			return i
		}
	}
	return NotFound
}

// FindByJob returns the slot reserved for the file job id.
func (t *Table) FindByJob(id string) int {
	if id == "" {
		return NotFound
	}
	for i := range t.slots {
		if t.slots[i].JobID == id {
			return i
		}
	}
	return NotFound
}

// ShiftTo moves slot from to position to, shifting the slots in between by
// one. Stack entries and the current index follow the slots they name.
func (t *Table) ShiftTo(from, to int) {
	if from == to || !t.valid(from) || !t.valid(to) {
		return
	}
	step := 1
	if from > to {
		step = -1
	}
	moving := t.slots[from]
	for i := from; i != to; i += step {
		t.slots[i] = t.slots[i+step]
	}
	t.slots[to] = moving

	for i, idx := range t.stack {
		t.stack[i] = remapShift(idx, from, to, step)
	}
	t.current = remapShift(t.current, from, to, step)
}

func remapShift(idx, from, to, step int) int {
	switch {
	case idx == from:
		return to
	case step == 1 && from < idx && idx <= to:
		return idx - 1
	case step == -1 && to <= idx && idx < from:
		return idx + 1
	}
	return idx
}

// DocumentAt returns the document handle of slot i, creating the document on
// first use. It returns the zero handle for an invalid index.
func (t *Table) DocumentAt(i int) document.Handle {
	if !t.valid(i) {
		return document.Handle{}
	}
	if t.slots[i].Doc.IsZero() {
		t.slots[i].Doc = t.arena.New()
	}
	return t.slots[i].Doc
}

// Document resolves the document of slot i, creating it on first use.
func (t *Table) Document(i int) (*document.Document, bool) {
	h := t.DocumentAt(i)
	if h.IsZero() {
		return nil, false
	}
	return t.arena.Get(h)
}

// Install gives slot i the document h, taking over one reference held by the
// caller. The slot's previous document is released.
func (t *Table) Install(i int, h document.Handle) {
	if !t.valid(i) {
		t.arena.Release(h)
		return
	}
	outgoing := t.slots[i].Doc
	t.slots[i].Doc = h
	t.arena.Release(outgoing)
}

// Next returns the slot after the current one, wrapping.
func (t *Table) Next() int {
	if len(t.slots) == 0 {
		return NotFound
	}
	return (t.current + 1) % len(t.slots)
}

// Prev returns the slot before the current one, wrapping.
func (t *Table) Prev() int {
	if len(t.slots) == 0 {
		return NotFound
	}
	return (t.current - 1 + len(t.slots)) % len(t.slots)
}

// Paths returns the paths of all titled slots in table order.
func (t *Table) Paths() []string {
	var out []string
	for i := range t.slots {
		if !t.slots[i].IsUntitled() {
			out = append(out, t.slots[i].Path)
		}
	}
	return out
}
