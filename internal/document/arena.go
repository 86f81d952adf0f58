package document

import (
	"fmt"
	"sync"
)

// Handle identifies a document in an Arena. The zero Handle is invalid.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero (invalid) handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

// String implements fmt.Stringer.
func (h Handle) String() string {
	if h.IsZero() {
		return "doc(nil)"
	}
	return fmt.Sprintf("doc(%d#%d)", h.index, h.gen)
}

type entry struct {
	doc  *Document
	gen  uint32
	refs int
}

// Arena owns documents and their reference counts.
type Arena struct {
	mu      sync.Mutex
	entries []entry
	free    []uint32
	live    int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// New allocates an empty document holding one reference.
func (a *Arena) New() Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.entries))
		a.entries = append(a.entries, entry{})
	}

	e := &a.entries[idx]
	e.gen++
	if e.gen == 0 {
		e.gen = 1
	}
	e.doc = &Document{}
	e.refs = 1
	a.live++
	return Handle{index: idx, gen: e.gen}
}

// lookup returns the live entry for h. Caller holds a.mu.
func (a *Arena) lookup(h Handle) *entry {
	if h.IsZero() || int(h.index) >= len(a.entries) {
		return nil
	}
	e := &a.entries[h.index]
	if e.gen != h.gen || e.refs == 0 {
		return nil
	}
	return e
}

// Get returns the document for h, or false if h is stale.
func (a *Arena) Get(h Handle) (*Document, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.lookup(h)
	if e == nil {
		return nil, false
	}
	return e.doc, true
}

// Retain adds a reference to h. It reports false for stale handles.
func (a *Arena) Retain(h Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.lookup(h)
	if e == nil {
		return false
	}
	e.refs++
	return true
}

// Release drops a reference to h and frees the document when none remain.
// Releasing a stale or zero handle is a no-op.
func (a *Arena) Release(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.lookup(h)
	if e == nil {
		return
	}
	e.refs--
	if e.refs == 0 {
		e.doc = nil
		a.free = append(a.free, h.index)
		a.live--
	}
}

// Refs returns the reference count of h, zero if stale.
func (a *Arena) Refs(h Handle) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e := a.lookup(h); e != nil {
		return e.refs
	}
	return 0
}

// Live returns the number of documents currently allocated.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}
