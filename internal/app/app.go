// Package app coordinates the buffer table, the file worker, the session
// store, the file watcher and extension hooks.
//
// An Application is owned by one control goroutine. Every method must be
// called from that goroutine; background work reaches it only through the
// worker mailbox and the watcher's event channel, which Poll, Wait and Run
// consume.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dshills/bufkeep/internal/buffers"
	"github.com/dshills/bufkeep/internal/config"
	"github.com/dshills/bufkeep/internal/document"
	"github.com/dshills/bufkeep/internal/extender"
	"github.com/dshills/bufkeep/internal/logging"
	"github.com/dshills/bufkeep/internal/session"
	"github.com/dshills/bufkeep/internal/watcher"
	"github.com/dshills/bufkeep/internal/worker"
)

// Application is the central coordinator.
type Application struct {
	cfg    *config.Config
	logger *logging.Logger

	arena   *document.Arena
	table   *buffers.Table
	manager *worker.Manager
	metrics *worker.Metrics

	recent   *session.RecentFiles
	store    *session.Store
	geometry *session.Geometry

	watcher *watcher.Watcher
	ext     extender.Extension

	queue    []*request
	running  *request
	progress *worker.Notification
	closed   bool
	stopping bool

	noWatch bool
}

// Option configures an Application.
type Option func(*Application)

// WithLogger sets the logger. By default one is built from the
// configuration.
func WithLogger(l *logging.Logger) Option {
	return func(a *Application) {
		a.logger = l
	}
}

// WithExtension replaces the extension named by the configuration.
func WithExtension(ext extender.Extension) Option {
	return func(a *Application) {
		a.ext = ext
	}
}

// WithoutWatcher disables external change detection regardless of the
// configuration.
func WithoutWatcher() Option {
	return func(a *Application) {
		a.noWatch = true
	}
}

// New creates an application from cfg. A nil cfg uses config.Default.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewLogger(cfg.LoggerConfig())
	}
	a.logger = a.logger.WithComponent("app")

	a.arena = document.NewArena()
	a.table = buffers.NewTable(a.arena)
	if err := a.table.Allocate(cfg.Buffers.Count); err != nil {
		return nil, err
	}

	a.metrics = worker.NewMetrics()
	a.manager = worker.NewManager(
		worker.WithOptions(worker.Options{
			ChunkSize:        cfg.Worker.ChunkSize,
			ProgressInterval: cfg.ProgressInterval(),
			Delay:            cfg.Delay(),
			DetectUTF8:       cfg.Worker.DetectUTF8,
		}),
		worker.WithLogger(a.logger),
		worker.WithMetrics(a.metrics),
	)

	a.recent = session.NewRecentFiles(cfg.Recent.Max)
	store, err := session.NewStore(a.table, a.recent, session.Options{
		Recent:     cfg.Session.Recent,
		Geometry:   cfg.Session.Position,
		Bookmarks:  cfg.Session.Bookmarks,
		Folds:      cfg.SaveFolds(),
		FoldOnOpen: cfg.Fold.OnOpen,
		Exclude:    cfg.Session.Exclude,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = store

	if a.ext == nil {
		ext, err := a.loadExtension()
		if err != nil {
			return nil, err
		}
		a.ext = ext
	}

	if cfg.ReloadOnChange && !a.noWatch {
		w, err := watcher.New(watcher.WithLogger(a.logger))
		if err != nil {
			a.logger.Warn("file watching disabled: %v", err)
		} else {
			a.watcher = w
		}
	}
	return a, nil
}

func (a *Application) loadExtension() (extender.Extension, error) {
	script := a.cfg.Extension.Script
	if script == "" {
		return extender.Nop{}, nil
	}
	ext := extender.NewLua(extender.WithHost(a), extender.WithLogger(a.logger))
	if err := ext.LoadFile(script); err != nil {
		ext.Close()
		return nil, NewOperationError("load extension", script, err)
	}
	a.logger.Info("loaded extension %s", script)
	return ext, nil
}

// Config returns the configuration.
func (a *Application) Config() *config.Config {
	return a.cfg
}

// Table returns the buffer table.
func (a *Application) Table() *buffers.Table {
	return a.table
}

// Recent returns the recent-file list.
func (a *Application) Recent() *session.RecentFiles {
	return a.recent
}

// Metrics returns the file job statistics.
func (a *Application) Metrics() worker.MetricsSnapshot {
	return a.metrics.Snapshot()
}

// Watching reports whether external changes are being detected.
func (a *Application) Watching() bool {
	return a.watcher != nil
}

// Document returns the text of slot i.
func (a *Application) Document(i int) (*document.Document, bool) {
	return a.table.Document(i)
}

// BufferPaths returns the path of every slot, empty for untitled ones.
func (a *Application) BufferPaths() []string {
	out := make([]string, a.table.Len())
	for i := range out {
		out[i] = a.table.Slot(i).Path
	}
	return out
}

// CurrentPath returns the current slot's path.
func (a *Application) CurrentPath() string {
	if s := a.table.CurrentSlot(); s != nil {
		return s.Path
	}
	return ""
}

// Geometry returns the window placement last set or restored.
func (a *Application) Geometry() *session.Geometry {
	return a.geometry
}

// SetGeometry records the window placement saved with sessions.
func (a *Application) SetGeometry(g *session.Geometry) {
	a.geometry = g
}

// Shutdown abandons pending loads, waits until ctx is done for pending
// saves, stops the watcher and releases every document.
func (a *Application) Shutdown(ctx context.Context) error {
	if a.closed {
		return nil
	}
	a.stopping = true
	a.dropLoads()
	errs := NewErrorList()
	if _, err := a.Wait(ctx); err != nil {
		a.logger.Warn("%d file jobs unfinished at shutdown", a.Pending())
		errs.Add(fmt.Errorf("flush saves: %w", err))
	}
	a.closed = true
	a.queue = nil

	if err := a.manager.Shutdown(ctx); err != nil {
		errs.Add(fmt.Errorf("stop worker: %w", err))
	}
	if a.running != nil {
		a.arena.Release(a.running.doc)
		a.running = nil
	}
	if a.watcher != nil {
		errs.Add(a.watcher.Close())
	}
	if c, ok := a.ext.(io.Closer); ok {
		errs.Add(c.Close())
	}
	a.table.Destroy()

	if live := a.arena.Live(); live != 0 {
		a.logger.Warn("%d documents still referenced at shutdown", live)
	}
	return errs.AsError()
}

func (a *Application) checkOpen() error {
	if a.closed {
		return ErrClosed
	}
	return nil
}

// hookErr logs a failing extension hook. Hooks never abort buffer
// operations.
func (a *Application) hookErr(err error) {
	if err != nil && !errors.Is(err, extender.ErrClosed) {
		a.logger.Warn("extension: %v", err)
	}
}
