package worker

import (
	"time"

	"github.com/dshills/bufkeep/internal/encoding"
	"github.com/dshills/bufkeep/internal/logging"
)

const (
	// DefaultChunkSize is the number of bytes read or written per step.
	DefaultChunkSize = 128 * 1024

	// DefaultProgressInterval is the minimum time between progress
	// notifications of one job.
	DefaultProgressInterval = 400 * time.Millisecond
)

// Options tunes how jobs run.
type Options struct {
	// ChunkSize is the bytes transferred per step; zero means the default.
	ChunkSize int

	// ProgressInterval is the minimum time between progress notifications.
	// Zero reports after every chunk.
	ProgressInterval time.Duration

	// Delay sleeps after every chunk. It makes progress and cancellation
	// timing reproducible in tests.
	Delay time.Duration

	// DetectUTF8 promotes BOM-less files that are valid UTF-8 with at least
	// one non-ASCII character to utf-8.
	DetectUTF8 bool

	// Cookie detects in-text encoding declarations on load. Nil uses
	// encoding.CodingCookie.
	Cookie encoding.CookieDetector
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		ChunkSize:        DefaultChunkSize,
		ProgressInterval: DefaultProgressInterval,
		DetectUTF8:       true,
	}
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

func (o Options) cookie() encoding.CookieDetector {
	if o.Cookie == nil {
		return encoding.CodingCookie
	}
	return o.Cookie
}

// Option configures a Manager.
type Option func(*Manager)

// WithOptions replaces the job options.
func WithOptions(opts Options) Option {
	return func(m *Manager) {
		m.opts = opts
	}
}

// WithChunkSize sets the chunk size.
func WithChunkSize(size int) Option {
	return func(m *Manager) {
		if size > 0 {
			m.opts.ChunkSize = size
		}
	}
}

// WithProgressInterval sets the minimum time between progress notifications.
func WithProgressInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.opts.ProgressInterval = d
	}
}

// WithDelay sets the per-chunk delay.
func WithDelay(d time.Duration) Option {
	return func(m *Manager) {
		m.opts.Delay = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics sets where job statistics are recorded.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithMailbox sets the mailbox notifications are posted to.
func WithMailbox(mb *Mailbox) Option {
	return func(m *Manager) {
		if mb != nil {
			m.mailbox = mb
		}
	}
}
