package worker

import (
	"context"
	"os"
	"sync"

	"github.com/dshills/bufkeep/internal/document"
	"github.com/dshills/bufkeep/internal/encoding"
	"github.com/dshills/bufkeep/internal/logging"
)

// Manager runs at most one file job at a time.
//
// A started job stays active until the control goroutine has received its
// terminal notification and called Acknowledge. Until then no other job can
// start, so the job is never dropped while its goroutine still uses it.
type Manager struct {
	opts    Options
	mailbox *Mailbox
	logger  *logging.Logger
	metrics *Metrics

	mu     sync.Mutex
	active *Job
	closed bool
	wg     sync.WaitGroup
}

// NewManager creates a manager with DefaultOptions.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		opts:    DefaultOptions(),
		mailbox: NewMailbox(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrNull(m.logger).WithComponent("worker")
	return m
}

// Notifications returns the mailbox jobs post to.
func (m *Manager) Notifications() *Mailbox {
	return m.mailbox
}

// Metrics returns the metrics tracker, which may be nil.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Options returns the job options.
func (m *Manager) Options() Options {
	return m.opts
}

// Active returns the job awaiting acknowledgement, or nil.
func (m *Manager) Active() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// reserve registers job as active.
func (m *Manager) reserve(job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.active != nil {
		return ErrBusy
	}
	m.active = job
	m.wg.Add(1)
	m.metrics.RecordStart()
	return nil
}

// StartLoad loads path into sink in the background.
func (m *Manager) StartLoad(path string, sink Sink) (*Job, error) {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	job := NewJob(OpLoad, path, size)
	if err := m.reserve(job); err != nil {
		return nil, err
	}
	m.logger.Debug("load %s (%d bytes) as job %s", path, size, job.ID())

	l := NewLoader(job, OpenFile(path), sink, m.mailbox, m.opts).withObservers(m.logger, m.metrics)
	go func() {
		defer m.wg.Done()
		l.Run()
	}()
	return job, nil
}

// StartStore writes snap to path as enc in the background.
func (m *Manager) StartStore(path string, snap document.Snapshot, enc encoding.Encoding) (*Job, error) {
	job := NewJob(OpStore, path, int64(snap.Len()))
	if err := m.reserve(job); err != nil {
		return nil, err
	}
	m.logger.Debug("store %s (%d bytes, %s) as job %s", path, snap.Len(), enc, job.ID())

	s := NewStorer(job, CreateFile(path), snap, enc, m.mailbox, m.opts).withObservers(m.logger, m.metrics)
	go func() {
		defer m.wg.Done()
		s.Run()
	}()
	return job, nil
}

// Cancel asks job to stop. It is safe at any point of the job's life.
func (m *Manager) Cancel(job *Job) {
	if job != nil {
		job.Cancel()
	}
}

// Acknowledge releases the active job after its terminal notification has
// been handled.
func (m *Manager) Acknowledge(job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job == nil || m.active != job {
		return ErrNotActive
	}
	if !job.State().Terminal() {
		return ErrNotFinished
	}
	m.active = nil
	return nil
}

// Shutdown cancels the active job, waits for its goroutine and closes the
// mailbox.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	if m.active != nil {
		m.active.Cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.mailbox.Close()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
