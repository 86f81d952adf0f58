package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/bufkeep/internal/encoding"
)

// ErrMailboxClosed is returned by Receive once the mailbox is closed and
// drained.
var ErrMailboxClosed = errors.New("mailbox closed")

// Kind identifies a notification.
type Kind int

const (
	KindProgress Kind = iota
	KindCompleted
	KindCancelled
	KindFailed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindCompleted:
		return "completed"
	case KindCancelled:
		return "cancelled"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether k ends a job.
func (k Kind) Terminal() bool {
	return k != KindProgress
}

// Notification is posted by a job to the control goroutine.
type Notification struct {
	Kind           Kind
	Job            *Job
	BytesProcessed int64
	TotalBytes     int64

	// Encoding is the detected (load) or written (store) encoding on
	// completion.
	Encoding encoding.Encoding

	// Err is set for KindFailed.
	Err error
}

// String implements fmt.Stringer.
func (n Notification) String() string {
	id := ""
	if n.Job != nil {
		id = n.Job.ID()
	}
	return fmt.Sprintf("%s %s %d/%d", id, n.Kind, n.BytesProcessed, n.TotalBytes)
}

// Mailbox is an unbounded FIFO of notifications with a single consumer.
// Post never blocks, so a worker cannot stall on a busy control goroutine.
type Mailbox struct {
	mu     sync.Mutex
	queue  []Notification
	ready  chan struct{}
	closed bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Post appends n. It reports false if the mailbox is closed.
func (m *Mailbox) Post(n Notification) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, n)
	m.mu.Unlock()
	m.signal()
	return true
}

func (m *Mailbox) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// TryReceive pops the oldest notification without waiting.
func (m *Mailbox) TryReceive() (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return Notification{}, false
	}
	n := m.queue[0]
	m.queue[0] = Notification{}
	m.queue = m.queue[1:]
	return n, true
}

// Receive waits for the next notification. Pending notifications are still
// delivered after Close; ErrMailboxClosed follows once they are drained.
func (m *Mailbox) Receive(ctx context.Context) (Notification, error) {
	for {
		if n, ok := m.TryReceive(); ok {
			return n, nil
		}
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return Notification{}, ErrMailboxClosed
		}
		select {
		case <-m.ready:
		case <-ctx.Done():
			return Notification{}, ctx.Err()
		}
	}
}

// Ready is signalled after a Post. A receive on it may be spurious; callers
// drain with TryReceive.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Len returns the number of queued notifications.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops accepting posts and wakes a waiting receiver.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}
