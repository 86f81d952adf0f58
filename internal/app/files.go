package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/bufkeep/internal/buffers"
	"github.com/dshills/bufkeep/internal/document"
	"github.com/dshills/bufkeep/internal/worker"
)

// Open opens path in a buffer and makes it current. See OpenAt.
func (a *Application) Open(path string) (int, error) {
	return a.OpenAt(path, 0)
}

// OpenAt opens path with the caret at byte offset caret and returns its
// slot. A file that is already open is activated instead. A missing file
// opens as an empty buffer with that name. The file's text arrives
// asynchronously; the slot is Busy until the load finishes.
func (a *Application) OpenAt(path string, caret int) (int, error) {
	if err := a.checkOpen(); err != nil {
		return buffers.NotFound, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return buffers.NotFound, NewOperationError("open", path, err)
	}

	if idx := a.table.FindByPath(abs, false); idx != buffers.NotFound {
		a.Activate(idx)
		return idx, nil
	}

	info, statErr := os.Stat(abs)
	switch {
	case statErr == nil && info.IsDir():
		return buffers.NotFound, NewOperationError("open", abs, errors.New("is a directory"))
	case statErr != nil && !errors.Is(statErr, os.ErrNotExist):
		return buffers.NotFound, NewOperationError("open", abs, statErr)
	}

	idx, err := a.claimSlot()
	if err != nil {
		return buffers.NotFound, NewOperationError("open", abs, err)
	}
	slot := a.table.Slot(idx)
	slot.Path = abs
	slot.Selection = buffers.Selection{Anchor: caret, Caret: caret}
	a.table.Activate(idx)

	if statErr != nil {
		a.logger.Info("new file %s", abs)
		a.table.DocumentAt(idx)
		a.watch(abs)
		a.hookErr(a.ext.OnOpen(abs))
		return idx, nil
	}

	a.enqueue(slot, &request{op: worker.OpLoad, path: abs, caret: caret})
	return idx, nil
}

// NewBuffer adds an empty untitled buffer and makes it current.
func (a *Application) NewBuffer() (int, error) {
	if err := a.checkOpen(); err != nil {
		return buffers.NotFound, err
	}
	idx := a.table.AddSlot()
	if idx == buffers.NotFound {
		if err := a.makeRoom(); err != nil {
			return buffers.NotFound, err
		}
		if idx = a.table.AddSlot(); idx == buffers.NotFound {
			return buffers.NotFound, ErrNoRoom
		}
	}
	a.Activate(idx)
	return idx, nil
}

// claimSlot returns the slot a newly opened file goes into: the pristine
// untitled buffer left at startup, or a new slot.
func (a *Application) claimSlot() (int, error) {
	if a.table.Len() == 1 && a.pristine(0) {
		return 0, nil
	}
	if idx := a.table.AddSlot(); idx != buffers.NotFound {
		return idx, nil
	}
	if err := a.makeRoom(); err != nil {
		return buffers.NotFound, err
	}
	if a.table.Len() == 1 && a.pristine(0) {
		return 0, nil
	}
	if idx := a.table.AddSlot(); idx != buffers.NotFound {
		return idx, nil
	}
	return buffers.NotFound, ErrNoRoom
}

// pristine reports whether slot i is an unmodified empty untitled buffer.
func (a *Application) pristine(i int) bool {
	s := a.table.Slot(i)
	if s == nil || !s.IsUntitled() || s.Dirty || s.Busy() {
		return false
	}
	if s.Doc.IsZero() {
		return true
	}
	doc, ok := a.arena.Get(s.Doc)
	return !ok || doc.Len() == 0
}

// makeRoom closes the current buffer when the table is full and that
// buffer has nothing to lose.
func (a *Application) makeRoom() error {
	if a.table.IsBufferAvailable() {
		return nil
	}
	cur := a.table.CurrentSlot()
	if cur == nil || cur.Dirty || cur.Busy() {
		return ErrNoRoom
	}
	return a.CloseSlot(a.table.Current(), false)
}

// Edit runs fn on the current buffer's text and marks the buffer dirty.
func (a *Application) Edit(fn func(doc *document.Document) error) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	idx := a.table.Current()
	slot := a.table.Slot(idx)
	if slot == nil {
		return ErrNoBuffer
	}
	if slot.ReadOnly {
		return ErrReadOnly
	}
	if slot.Busy() && a.loadPending(slot) {
		return ErrBusy
	}
	doc, _ := a.table.Document(idx)
	if err := fn(doc); err != nil {
		return err
	}
	slot.Dirty = true
	return nil
}

func (a *Application) loadPending(slot *buffers.Slot) bool {
	if a.running != nil && a.running.id == slot.JobID {
		return a.running.op == worker.OpLoad
	}
	for _, req := range a.queue {
		if req.id == slot.JobID {
			return req.op == worker.OpLoad
		}
	}
	return false
}

// Save writes the current buffer to its file.
func (a *Application) Save() error {
	return a.SaveSlot(a.table.Current())
}

// SaveSlot writes slot i to its file in the slot's encoding. The write runs
// in the background from a snapshot, so the buffer stays editable; it is
// marked clean when the write finishes if it has not changed since.
func (a *Application) SaveSlot(i int) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	slot := a.table.Slot(i)
	switch {
	case slot == nil:
		return ErrNoBuffer
	case slot.IsUntitled():
		return ErrNoPath
	case slot.ReadOnly:
		return NewOperationError("save", slot.Path, ErrReadOnly)
	case slot.Busy():
		return NewOperationError("save", slot.Path, ErrBusy)
	}

	handled, err := a.ext.OnBeforeSave(slot.Path)
	a.hookErr(err)
	if handled {
		slot.Dirty = false
		a.logger.Info("save of %s handled by extension", slot.Path)
		return nil
	}

	doc, _ := a.table.Document(i)
	a.enqueue(slot, &request{
		op:   worker.OpStore,
		path: slot.Path,
		snap: doc.Snapshot(),
		enc:  slot.Encoding,
	})
	return nil
}

// SaveAs gives the current buffer a new file name and saves it.
func (a *Application) SaveAs(path string) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return NewOperationError("save", path, err)
	}
	idx := a.table.Current()
	slot := a.table.Slot(idx)
	if slot == nil {
		return ErrNoBuffer
	}
	if a.table.FindByPath(abs, true) != buffers.NotFound {
		return NewOperationError("save", abs, ErrAlreadyOpen)
	}
	if slot.Busy() {
		return NewOperationError("save", abs, ErrBusy)
	}

	if !slot.IsUntitled() && !buffers.SamePath(slot.Path, abs) {
		a.unwatch(slot.Path)
	}
	slot.Path = abs
	slot.ReadOnly = false
	return a.SaveSlot(idx)
}

// SaveAll saves every titled dirty buffer that is not busy.
func (a *Application) SaveAll() error {
	errs := NewErrorList()
	for i := 0; i < a.table.Len(); i++ {
		s := a.table.Slot(i)
		if s.IsUntitled() || !s.Dirty || s.Busy() {
			continue
		}
		err := a.SaveSlot(i)
		var opErr *OperationError
		if errors.As(err, &opErr) {
			opErr.WithContext("save all")
		}
		errs.Add(err)
	}
	return errs.AsError()
}

// Dirty returns the slots with unsaved changes.
func (a *Application) Dirty() []int {
	var out []int
	for i := 0; i < a.table.Len(); i++ {
		if a.table.Slot(i).Dirty {
			out = append(out, i)
		}
	}
	return out
}

// Close closes the current buffer. See CloseSlot.
func (a *Application) Close(force bool) error {
	return a.CloseSlot(a.table.Current(), force)
}

// CloseSlot closes slot i, cancelling its pending load. A pending save
// still runs to completion and reports with Slot NotFound. A dirty buffer
// is only closed when force is set. A titled buffer goes on the recent-file
// list. The last buffer is reset to untitled rather than removed.
func (a *Application) CloseSlot(i int, force bool) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	slot := a.table.Slot(i)
	if slot == nil {
		return ErrNoBuffer
	}
	if slot.Dirty && !force {
		return NewOperationError("close", slot.Name(), ErrUnsavedChanges)
	}

	a.cancelSlot(slot)
	if path := slot.Path; path != "" {
		a.recent.Add(path)
		a.unwatch(path)
		a.hookErr(a.ext.OnClose(path))
	}
	a.removeSlot(i)
	return nil
}

// CloseAll closes every buffer, leaving one untitled buffer. Pending loads
// are abandoned and pending saves finish. Without force it refuses while any
// buffer has unsaved changes.
func (a *Application) CloseAll(force bool) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if dirty := a.Dirty(); len(dirty) > 0 && !force {
		return fmt.Errorf("%w in %d buffers", ErrUnsavedChanges, len(dirty))
	}

	a.cancelAll()
	for i := 0; i < a.table.Len(); i++ {
		if path := a.table.Slot(i).Path; path != "" {
			a.recent.Add(path)
			a.unwatch(path)
			a.hookErr(a.ext.OnClose(path))
		}
	}
	return a.table.Allocate(a.table.Capacity())
}

// removeSlot removes slot i and keeps the previously current slot current.
func (a *Application) removeSlot(i int) {
	cur := a.table.Current()
	a.table.SetCurrent(i)
	a.table.RemoveCurrent()
	if cur == i {
		return
	}
	if cur > i {
		cur--
	}
	a.table.Activate(cur)
}

func (a *Application) watch(path string) {
	if a.watcher == nil || path == "" {
		return
	}
	if err := a.watcher.Add(path); err != nil {
		a.logger.Debug("watch %s: %v", path, err)
	}
}

func (a *Application) unwatch(path string) {
	if a.watcher == nil || path == "" {
		return
	}
	_ = a.watcher.Remove(path)
}
