package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/dshills/bufkeep/internal/buffers"
	"github.com/dshills/bufkeep/internal/logging"
)

// ErrRestoreAborted is returned when the open buffers could not be closed
// before a restore.
var ErrRestoreAborted = errors.New("session restore aborted")

// Opener performs the buffer operations a restore needs. It is implemented
// by the application's control goroutine.
type Opener interface {
	// CloseAll closes every open buffer. Confirming unsaved changes is the
	// opener's concern; an error aborts the restore.
	CloseAll() error

	// Open opens path with the caret at position and returns its slot.
	Open(path string, position int) (int, error)

	// Activate makes slot the current buffer.
	Activate(slot int)
}

// Options selects what a session carries.
type Options struct {
	// Recent saves and restores the recent-file list.
	Recent bool

	// Geometry saves the window placement.
	Geometry bool

	// Bookmarks saves and re-applies bookmarks.
	Bookmarks bool

	// Folds saves and re-applies collapsed lines.
	Folds bool

	// FoldOnOpen means every buffer is folded when opened, so saved folds
	// are written but not re-applied.
	FoldOnOpen bool

	// Exclude lists glob patterns of paths kept out of saved sessions.
	Exclude []string
}

// Skipped describes a record a restore could not open.
type Skipped struct {
	Path string
	Err  error
}

// RestoreResult reports the outcome of a restore. Opened and Current are
// the slots at the time the loads were queued. A load that later fails
// removes its slot, so these indices hold only until the file jobs finish;
// such failures are reported by the caller's job results.
type RestoreResult struct {
	// Opened holds the slot of every restored record, in file order.
	Opened []int

	// Current is the activated slot, buffers.NotFound when no record was
	// marked current.
	Current int

	Skipped []Skipped
}

// Store captures the buffer table into sessions and restores them.
// It runs on the control goroutine.
type Store struct {
	table   *buffers.Table
	recent  *RecentFiles
	opts    Options
	exclude []glob.Glob
	logger  *logging.Logger
}

// NewStore creates a store over table and recent. It fails on an invalid
// exclude pattern.
func NewStore(table *buffers.Table, recent *RecentFiles, opts Options, logger *logging.Logger) (*Store, error) {
	if recent == nil {
		recent = NewRecentFiles(DefaultRecentMax)
	}
	s := &Store{
		table:  table,
		recent: recent,
		opts:   opts,
		logger: logging.OrNull(logger).WithComponent("session"),
	}
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern, filepath.Separator)
		if err != nil {
			return nil, fmt.Errorf("session exclude pattern %q: %w", pattern, err)
		}
		s.exclude = append(s.exclude, g)
	}
	return s, nil
}

// Recent returns the recent-file list.
func (s *Store) Recent() *RecentFiles {
	return s.recent
}

// Excluded reports whether path matches an exclude pattern.
func (s *Store) Excluded(path string) bool {
	for _, g := range s.exclude {
		if g.Match(path) || g.Match(filepath.Base(path)) {
			return true
		}
	}
	return false
}

// Capture builds a session from the current table state.
func (s *Store) Capture(geometry *Geometry) Session {
	var out Session
	if s.opts.Geometry && geometry != nil {
		g := *geometry
		out.Geometry = &g
	}
	if s.opts.Recent {
		out.Recent = s.recent.Paths()
	}

	current := s.table.Current()
	for i := 0; i < s.table.Len(); i++ {
		slot := s.table.Slot(i)
		if slot.IsUntitled() || s.Excluded(slot.Path) {
			continue
		}
		rec := BufferRecord{
			Index:    i + 1,
			Path:     slot.Path,
			Position: slot.Selection.Caret,
			Current:  i == current,
		}
		if s.opts.Bookmarks {
			rec.Bookmarks = slot.Bookmarks.Lines()
		}
		if s.opts.Folds {
			rec.Folds = slot.Folds.Lines()
		}
		out.Buffers = append(out.Buffers, rec)
	}
	return out
}

// Save writes the captured session to w.
func (s *Store) Save(w io.Writer, geometry *Geometry) error {
	return Write(w, s.Capture(geometry))
}

// SaveFile writes the captured session to path, replacing it atomically.
func (s *Store) SaveFile(path string, geometry *Geometry) error {
	var buf bytes.Buffer
	if err := s.Save(&buf, geometry); err != nil {
		return err
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("save session %s: %w", path, err)
	}
	s.logger.Info("saved session %s", path)
	return nil
}

// Load parses a session from r.
func (s *Store) Load(r io.Reader) (Session, error) {
	return read(r, s.logger)
}

// LoadFile parses the session file at path.
func (s *Store) LoadFile(path string) (Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	defer f.Close()
	return s.Load(f)
}

// Restore closes all buffers through opener and reopens the buffers of
// sess. Records whose file is gone or fails to open are skipped. The record
// marked current is activated after every record has been opened.
func (s *Store) Restore(sess Session, opener Opener) (RestoreResult, error) {
	result := RestoreResult{Current: buffers.NotFound}

	if err := opener.CloseAll(); err != nil {
		return result, fmt.Errorf("%w: %w", ErrRestoreAborted, err)
	}
	if s.opts.Recent {
		s.recent.Restore(sess.Recent)
	}

	for _, rec := range sess.Buffers {
		if rec.Path == "" {
			continue
		}
		if _, err := os.Stat(rec.Path); err != nil {
			s.logger.Warn("session: skipping %s: %v", rec.Path, err)
			result.Skipped = append(result.Skipped, Skipped{Path: rec.Path, Err: err})
			continue
		}
		slot, err := opener.Open(rec.Path, rec.Position)
		if err != nil {
			s.logger.Warn("session: skipping %s: %v", rec.Path, err)
			result.Skipped = append(result.Skipped, Skipped{Path: rec.Path, Err: err})
			continue
		}
		result.Opened = append(result.Opened, slot)

		if sl := s.table.Slot(slot); sl != nil {
			if s.opts.Bookmarks && len(rec.Bookmarks) > 0 {
				sl.Bookmarks.Replace(rec.Bookmarks)
			}
			if s.opts.Folds && !s.opts.FoldOnOpen && len(rec.Folds) > 0 {
				sl.Folds.Replace(rec.Folds)
			}
		}
		if rec.Current {
			result.Current = slot
		}
	}

	if result.Current != buffers.NotFound {
		opener.Activate(result.Current)
	}
	s.logger.Info("restored %d buffers, skipped %d", len(result.Opened), len(result.Skipped))
	return result, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
