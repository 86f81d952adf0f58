// Package document holds in-memory text documents shared between the buffer
// table and the editing view.
//
// Documents live in an Arena and are addressed by Handle, a generational
// index. Each document carries a reference count; it is freed when the last
// reference is released, after which stale handles no longer resolve.
package document

import (
	"bytes"
	"errors"
	"sync"
)

// ErrReadOnly is returned when editing a read-only document.
var ErrReadOnly = errors.New("document is read-only")

// Document is the text content of one buffer. Its methods are safe for
// concurrent use so a loader can append while the control goroutine reads
// progress.
type Document struct {
	mu       sync.RWMutex
	text     []byte
	readOnly bool
	revision uint64
}

// AddData appends a chunk of text. It satisfies the loader sink contract.
func (d *Document) AddData(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = append(d.text, p...)
	d.revision++
	return nil
}

// Text returns a copy of the full content.
func (d *Document) Text() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return bytes.Clone(d.text)
}

// String returns the full content as a string.
func (d *Document) String() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return string(d.text)
}

// Len returns the content length in bytes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.text)
}

// Revision increases with every change.
func (d *Document) Revision() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// SetText replaces the full content.
func (d *Document) SetText(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readOnly {
		return ErrReadOnly
	}
	d.text = bytes.Clone(p)
	d.revision++
	return nil
}

// Insert inserts p at byte offset pos, clamped to the content.
func (d *Document) Insert(pos int, p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readOnly {
		return ErrReadOnly
	}
	pos = clamp(pos, 0, len(d.text))
	d.text = append(d.text[:pos], append(bytes.Clone(p), d.text[pos:]...)...)
	d.revision++
	return nil
}

// Delete removes n bytes starting at pos, clamped to the content.
func (d *Document) Delete(pos, n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readOnly {
		return ErrReadOnly
	}
	pos = clamp(pos, 0, len(d.text))
	end := clamp(pos+n, pos, len(d.text))
	d.text = append(d.text[:pos], d.text[end:]...)
	d.revision++
	return nil
}

// Clear empties the document, ignoring the read-only flag.
func (d *Document) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = nil
	d.revision++
}

// SetReadOnly sets the read-only flag.
func (d *Document) SetReadOnly(ro bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readOnly = ro
}

// ReadOnly reports the read-only flag.
func (d *Document) ReadOnly() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readOnly
}

// LineCount returns the number of lines; an empty document has one line.
func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return bytes.Count(d.text, []byte{'\n'}) + 1
}

// LineOfOffset returns the zero-based line containing byte offset pos.
func (d *Document) LineOfOffset(pos int) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pos = clamp(pos, 0, len(d.text))
	return bytes.Count(d.text[:pos], []byte{'\n'})
}

// Snapshot returns an immutable copy of the content.
func (d *Document) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{data: bytes.Clone(d.text), revision: d.revision}
}

// Snapshot is an immutable copy of a document's bytes taken at one revision.
// It can be read from any goroutine while the document keeps changing.
type Snapshot struct {
	data     []byte
	revision uint64
}

// NewSnapshot wraps a copy of p.
func NewSnapshot(p []byte) Snapshot {
	return Snapshot{data: bytes.Clone(p)}
}

// Len returns the snapshot length in bytes.
func (s Snapshot) Len() int {
	return len(s.data)
}

// Revision returns the document revision the snapshot was taken at.
func (s Snapshot) Revision() uint64 {
	return s.revision
}

// Slice returns the bytes in [start, end). Callers must not modify them.
func (s Snapshot) Slice(start, end int) []byte {
	start = clamp(start, 0, len(s.data))
	end = clamp(end, start, len(s.data))
	return s.data[start:end:end]
}

// Bytes returns a copy of the snapshot content.
func (s Snapshot) Bytes() []byte {
	return bytes.Clone(s.data)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
