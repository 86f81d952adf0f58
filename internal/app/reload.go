package app

import (
	"os"

	"github.com/dshills/bufkeep/internal/buffers"
	"github.com/dshills/bufkeep/internal/watcher"
	"github.com/dshills/bufkeep/internal/worker"
)

// handleChange reacts to an external change of an open file.
func (a *Application) handleChange(ev watcher.Event) {
	idx := a.table.FindByPath(ev.Path, false)
	if idx == buffers.NotFound {
		return
	}
	a.logger.Debug("%s changed on disk (%s)", ev.Path, ev.Op)
	a.CheckReload(idx)
}

// CheckReload compares slot i with its file. A clean buffer whose file has
// a new modification time is reloaded, keeping the caret. A dirty buffer is
// only flagged ChangedOnDisk, as is a buffer whose file has disappeared.
// It reports whether a reload was queued.
func (a *Application) CheckReload(i int) bool {
	slot := a.table.Slot(i)
	if slot == nil || slot.IsUntitled() || slot.Busy() || a.closed || a.stopping {
		return false
	}

	info, err := os.Stat(slot.Path)
	if err != nil {
		if !slot.ChangedOnDisk {
			a.logger.Warn("%s is no longer on disk: %v", slot.Path, err)
		}
		slot.ChangedOnDisk = true
		return false
	}
	if info.ModTime().Equal(slot.ModTime) {
		return false
	}
	if slot.Dirty || !a.cfg.ReloadOnChange {
		slot.ChangedOnDisk = true
		return false
	}

	a.enqueue(slot, &request{op: worker.OpLoad, path: slot.Path, reload: true})
	return true
}

// Reload rereads slot i from disk, discarding unsaved changes.
func (a *Application) Reload(i int) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	slot := a.table.Slot(i)
	switch {
	case slot == nil:
		return ErrNoBuffer
	case slot.IsUntitled():
		return ErrNoPath
	case slot.Busy():
		return NewOperationError("reload", slot.Path, ErrBusy)
	}
	a.enqueue(slot, &request{op: worker.OpLoad, path: slot.Path, reload: true})
	return nil
}
