package app

import (
	"errors"

	"github.com/dshills/bufkeep/internal/session"
)

// SaveSession writes the open buffers, the recent-file list and the window
// geometry to the session file at path. An empty path uses the configured
// session path.
func (a *Application) SaveSession(path string) error {
	if path == "" {
		path = a.cfg.SessionPath()
	}
	if err := a.store.SaveFile(path, a.geometry); err != nil {
		return NewOperationError("save session", path, err)
	}
	return nil
}

// RestoreSession closes every buffer and reopens those recorded in the
// session file at path. Without force it refuses while buffers have unsaved
// changes. Records whose files cannot be opened are skipped and reported.
// Files load in the background: one that fails after being queued arrives
// as a Failed Result with Slot NotFound, and the slots in the returned
// result shift accordingly.
func (a *Application) RestoreSession(path string, force bool) (session.RestoreResult, error) {
	if err := a.checkOpen(); err != nil {
		return session.RestoreResult{}, err
	}
	if path == "" {
		path = a.cfg.SessionPath()
	}
	sess, err := a.store.LoadFile(path)
	if err != nil {
		return session.RestoreResult{}, NewOperationError("restore session", path, err)
	}
	if sess.Geometry != nil {
		a.geometry = sess.Geometry
	}

	result, err := a.store.Restore(sess, sessionOpener{a: a, force: force})
	if err != nil {
		return result, NewOperationError("restore session", path, err)
	}
	return result, nil
}

// Session captures the current state without writing it.
func (a *Application) Session() session.Session {
	return a.store.Capture(a.geometry)
}

// sessionOpener drives a restore through the application's buffer
// operations.
type sessionOpener struct {
	a     *Application
	force bool
}

func (o sessionOpener) CloseAll() error {
	return o.a.CloseAll(o.force)
}

func (o sessionOpener) Open(path string, position int) (int, error) {
	idx, err := o.a.OpenAt(path, position)
	var opErr *OperationError
	if errors.As(err, &opErr) {
		opErr.WithContext("restore")
	}
	return idx, err
}

func (o sessionOpener) Activate(slot int) {
	o.a.Activate(slot)
}

var _ session.Opener = sessionOpener{}
