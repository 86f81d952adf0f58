package worker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dshills/bufkeep/internal/encoding"
	"github.com/dshills/bufkeep/internal/logging"
)

// maxCookieHead bounds the decoded text kept for the coding cookie scan when
// the first lines are very long.
const maxCookieHead = 4096

// Sink receives decoded text as it is loaded.
type Sink interface {
	AddData(p []byte) error
}

// OpenFunc opens the source of a load.
type OpenFunc func() (io.ReadCloser, error)

// CreateFunc opens the destination of a store.
type CreateFunc func() (io.WriteCloser, error)

// OpenFile returns an OpenFunc for path.
func OpenFile(path string) OpenFunc {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// CreateFile returns a CreateFunc that truncates or creates path.
func CreateFile(path string) CreateFunc {
	return func() (io.WriteCloser, error) {
		return os.Create(path)
	}
}

// reporter posts a job's notifications and rate limits progress.
type reporter struct {
	job          *Job
	mailbox      *Mailbox
	interval     time.Duration
	lastProgress time.Time
	metrics      *Metrics
	logger       *logging.Logger
}

func (r *reporter) progress(force bool) {
	now := time.Now()
	if !force && now.Sub(r.lastProgress) < r.interval {
		return
	}
	r.lastProgress = now
	r.mailbox.Post(Notification{
		Kind:           KindProgress,
		Job:            r.job,
		BytesProcessed: r.job.Processed(),
		TotalBytes:     r.job.Size(),
	})
}

// finish records the terminal state and posts its notification.
func (r *reporter) finish(state State, err error) {
	if !r.job.finish(state, err) {
		return
	}
	kind := KindCompleted
	switch state {
	case StateCancelled:
		kind = KindCancelled
		r.logger.Info("%s of %s cancelled after %d bytes", r.job.Op(), r.job.Path(), r.job.Processed())
	case StateFailed:
		kind = KindFailed
		r.logger.Warn("%s of %s failed: %v", r.job.Op(), r.job.Path(), err)
	default:
		r.logger.Debug("%s of %s completed, %d bytes in %s", r.job.Op(), r.job.Path(), r.job.Processed(), r.job.Duration())
	}
	r.metrics.RecordJob(r.job)
	r.mailbox.Post(Notification{
		Kind:           kind,
		Job:            r.job,
		BytesProcessed: r.job.Processed(),
		TotalBytes:     r.job.Size(),
		Encoding:       r.job.Encoding(),
		Err:            err,
	})
}

// Loader streams a file into a Sink, converting it to UTF-8 text.
type Loader struct {
	job  *Job
	open OpenFunc
	sink Sink
	opts Options
	rep  *reporter
}

// NewLoader creates a loader for job. Run performs the load.
func NewLoader(job *Job, open OpenFunc, sink Sink, mailbox *Mailbox, opts Options) *Loader {
	return &Loader{
		job:  job,
		open: open,
		sink: sink,
		opts: opts,
		rep: &reporter{
			job:      job,
			mailbox:  mailbox,
			interval: opts.ProgressInterval,
			logger:   logging.NullLogger,
		},
	}
}

func (l *Loader) withObservers(logger *logging.Logger, metrics *Metrics) *Loader {
	l.rep.logger = logging.OrNull(logger)
	l.rep.metrics = metrics
	return l
}

// Run loads the file on the calling goroutine. It returns after the terminal
// notification has been posted.
func (l *Loader) Run() {
	if !l.job.start() {
		return
	}
	l.rep.lastProgress = time.Now()
	l.rep.progress(true)

	if l.job.Cancelling() {
		l.rep.finish(StateCancelled, nil)
		return
	}

	f, err := l.open()
	if err != nil {
		l.rep.finish(StateFailed, fmt.Errorf("open %s: %w", l.job.Path(), err))
		return
	}

	state, err := l.stream(f)
	if cerr := f.Close(); cerr != nil && state == StateCompleted {
		state, err = StateFailed, fmt.Errorf("close %s: %w", l.job.Path(), cerr)
	}
	l.rep.finish(state, err)
}

func (l *Loader) stream(r io.Reader) (State, error) {
	buf := make([]byte, l.opts.chunkSize())
	st := encoding.NewDecodeState(l.opts.DetectUTF8)
	var head []byte

	for {
		if l.job.Cancelling() {
			return StateCancelled, nil
		}

		n, err := io.ReadFull(r, buf)
		atEOF := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !atEOF {
			return StateFailed, fmt.Errorf("read %s: %w", l.job.Path(), err)
		}

		var text []byte
		text, st = encoding.Decode(st, buf[:n], atEOF)
		if len(text) > 0 {
			if len(head) < maxCookieHead && !encoding.HasTwoLines(head) {
				head = append(head, text[:min(len(text), maxCookieHead-len(head))]...)
			}
			if err := l.sink.AddData(text); err != nil {
				return StateFailed, fmt.Errorf("append %s: %w", l.job.Path(), err)
			}
		}
		l.job.processed.Add(int64(n))

		if atEOF {
			break
		}
		if l.opts.Delay > 0 {
			time.Sleep(l.opts.Delay)
		}
		l.rep.progress(false)
	}

	// A declaration in the first two lines overrides everything but a BOM.
	enc := st.Encoding()
	if st.BOMEncoding() == encoding.Encoding8Bit {
		if cookie := l.opts.cookie()(head); cookie != encoding.Encoding8Bit {
			enc = cookie
		}
	}
	l.job.setEncoding(enc)
	return StateCompleted, nil
}
