package buffers

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dshills/bufkeep/internal/document"
	"github.com/dshills/bufkeep/internal/encoding"
)

// Selection is the anchor and caret byte offsets of a slot's selection.
type Selection struct {
	Anchor int
	Caret  int
}

// Slot is one entry of the buffer table.
type Slot struct {
	// Doc references the slot's text in the table's arena. The zero handle
	// means no document has been created yet.
	Doc document.Handle

	// Path is the absolute file path, empty for untitled slots.
	Path string

	// Untitled distinguishes untitled slots from each other.
	Untitled int

	Dirty    bool
	ReadOnly bool
	Encoding encoding.Encoding

	Selection  Selection
	ScrollLine int

	// Folds holds the collapsed line numbers, Bookmarks the marked ones.
	Folds     *LineSet
	Bookmarks *LineSet

	// OverrideExtension is a language detection hint used instead of the
	// path's extension.
	OverrideExtension string

	// JobID names the file job queued or running for this slot, empty when
	// none is pending.
	JobID string

	// ModTime is the file modification time seen by the last load or store.
	ModTime time.Time

	// ChangedOnDisk is set when the file changed externally while dirty.
	ChangedOnDisk bool

	LineEnding encoding.LineEnding
}

func newSlot(untitled int) Slot {
	return Slot{
		Untitled:  untitled,
		Encoding:  encoding.Encoding8Bit,
		Folds:     NewLineSet(),
		Bookmarks: NewLineSet(),
	}
}

// IsUntitled reports whether the slot has no file path.
func (s *Slot) IsUntitled() bool {
	return s.Path == ""
}

// Name returns a display name for the slot.
func (s *Slot) Name() string {
	if s.IsUntitled() {
		if s.Untitled <= 1 {
			return "Untitled"
		}
		return fmt.Sprintf("Untitled %d", s.Untitled)
	}
	return filepath.Base(s.Path)
}

// SameNameAs reports whether the slot holds path. Untitled slots never match.
func (s *Slot) SameNameAs(path string) bool {
	return !s.IsUntitled() && SamePath(s.Path, path)
}

// Busy reports whether a file job is pending for the slot.
func (s *Slot) Busy() bool {
	return s.JobID != ""
}
