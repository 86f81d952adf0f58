// Package worker runs file loads and stores as cancellable background jobs.
//
// A job reports to the control goroutine only through notifications posted
// to a Mailbox. Every job posts progress while it runs and exactly one
// terminal notification: Completed, Cancelled or Failed. Cancellation is
// cooperative and polled once per chunk.
package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/bufkeep/internal/encoding"
)

// Errors reported by jobs and the Manager.
var (
	ErrZeroWrite   = errors.New("write returned no bytes")
	ErrBusy        = errors.New("a file operation is already in progress")
	ErrNotActive   = errors.New("job is not the active job")
	ErrNotFinished = errors.New("job has not finished")
	ErrClosed      = errors.New("worker manager is closed")
)

// Op is the kind of file operation a job performs.
type Op int

const (
	OpLoad Op = iota
	OpStore
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a job.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Job is one load or store request. Its accessors are safe to call from any
// goroutine.
type Job struct {
	id   string
	op   Op
	path string
	size int64

	cancelling atomic.Bool
	processed  atomic.Int64
	state      atomic.Int32

	mu       sync.Mutex
	err      error
	enc      encoding.Encoding
	started  time.Time
	finished time.Time
}

// NewJob creates a job for path with the expected byte size.
func NewJob(op Op, path string, size int64) *Job {
	return &Job{
		id:   uuid.NewString(),
		op:   op,
		path: path,
		size: size,
	}
}

// ID returns the unique job identifier.
func (j *Job) ID() string { return j.id }

// Op returns the job's operation.
func (j *Job) Op() Op { return j.op }

// Path returns the file path.
func (j *Job) Path() string { return j.path }

// Size returns the expected byte count.
func (j *Job) Size() int64 { return j.size }

// Processed returns the bytes processed so far.
func (j *Job) Processed() int64 { return j.processed.Load() }

// State returns the current state.
func (j *Job) State() State { return State(j.state.Load()) }

// Cancel asks the job to stop at the next chunk boundary. It is idempotent
// and does nothing once the job has finished.
func (j *Job) Cancel() {
	if j.State().Terminal() {
		return
	}
	j.cancelling.Store(true)
}

// Cancelling reports whether cancellation was requested.
func (j *Job) Cancelling() bool {
	return j.cancelling.Load()
}

// Err returns the failure cause of a failed job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Encoding returns the detected encoding of a load, or the written encoding
// of a store.
func (j *Job) Encoding() encoding.Encoding {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc
}

// Duration returns how long the job ran, or has been running.
func (j *Job) Duration() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.started.IsZero():
		return 0
	case j.finished.IsZero():
		return time.Since(j.started)
	default:
		return j.finished.Sub(j.started)
	}
}

// Percent returns progress in the range [0, 100].
func (j *Job) Percent() float64 {
	if j.size <= 0 {
		if j.State() == StateCompleted {
			return 100
		}
		return 0
	}
	p := float64(j.Processed()) / float64(j.size) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// start moves the job from Created to Running.
func (j *Job) start() bool {
	if !j.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return false
	}
	j.mu.Lock()
	j.started = time.Now()
	j.mu.Unlock()
	return true
}

// finish moves a running job to a terminal state exactly once.
func (j *Job) finish(state State, err error) bool {
	if !j.state.CompareAndSwap(int32(StateRunning), int32(state)) {
		return false
	}
	j.mu.Lock()
	j.err = err
	j.finished = time.Now()
	j.mu.Unlock()
	return true
}

func (j *Job) setEncoding(enc encoding.Encoding) {
	j.mu.Lock()
	j.enc = enc
	j.mu.Unlock()
}
