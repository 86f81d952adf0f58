package worker

import (
	"fmt"
	"io"
	"time"

	"github.com/dshills/bufkeep/internal/document"
	"github.com/dshills/bufkeep/internal/encoding"
	"github.com/dshills/bufkeep/internal/logging"
)

// Storer writes a document snapshot to a file in a chosen encoding.
type Storer struct {
	job    *Job
	create CreateFunc
	snap   document.Snapshot
	enc    encoding.Encoding
	opts   Options
	rep    *reporter
}

// NewStorer creates a storer for job. Run performs the store.
func NewStorer(job *Job, create CreateFunc, snap document.Snapshot, enc encoding.Encoding, mailbox *Mailbox, opts Options) *Storer {
	return &Storer{
		job:    job,
		create: create,
		snap:   snap,
		enc:    enc,
		opts:   opts,
		rep: &reporter{
			job:      job,
			mailbox:  mailbox,
			interval: opts.ProgressInterval,
			logger:   logging.NullLogger,
		},
	}
}

func (s *Storer) withObservers(logger *logging.Logger, metrics *Metrics) *Storer {
	s.rep.logger = logging.OrNull(logger)
	s.rep.metrics = metrics
	return s
}

// Run stores the snapshot on the calling goroutine. It returns after the
// terminal notification has been posted.
func (s *Storer) Run() {
	if !s.job.start() {
		return
	}
	s.job.setEncoding(s.enc)
	s.rep.lastProgress = time.Now()
	s.rep.progress(true)

	if s.job.Cancelling() {
		s.rep.finish(StateCancelled, nil)
		return
	}

	w, err := s.create()
	if err != nil {
		s.rep.finish(StateFailed, fmt.Errorf("create %s: %w", s.job.Path(), err))
		return
	}

	state, err := s.stream(w)
	if cerr := w.Close(); cerr != nil && state == StateCompleted {
		state, err = StateFailed, fmt.Errorf("close %s: %w", s.job.Path(), cerr)
	}
	s.rep.finish(state, err)
}

func (s *Storer) stream(w io.Writer) (State, error) {
	data := s.snap.Slice(0, s.snap.Len())
	chunk := s.opts.chunkSize()
	st := encoding.NewEncodeState(s.enc)

	for start := 0; start < len(data); {
		if s.job.Cancelling() {
			return StateCancelled, nil
		}

		size := min(chunk, len(data)-start)
		if s.enc != encoding.Encoding8Bit {
			size = encoding.StoreChunkSize(data, start, size)
		}

		var out []byte
		out, st = encoding.Encode(st, data[start:start+size], false)
		if err := writeChunk(w, out); err != nil {
			return StateFailed, fmt.Errorf("write %s: %w", s.job.Path(), err)
		}
		start += size
		s.job.processed.Add(int64(size))

		if start < len(data) {
			if s.opts.Delay > 0 {
				time.Sleep(s.opts.Delay)
			}
			s.rep.progress(false)
		}
	}

	out, _ := encoding.Encode(st, nil, true)
	if err := writeChunk(w, out); err != nil {
		return StateFailed, fmt.Errorf("write %s: %w", s.job.Path(), err)
	}
	return StateCompleted, nil
}

// writeChunk writes p fully. A write that accepts nothing of a non-empty
// chunk is fatal.
func writeChunk(w io.Writer, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := w.Write(p)
	switch {
	case n == 0 && err != nil:
		return fmt.Errorf("%w: %w", ErrZeroWrite, err)
	case n == 0:
		return ErrZeroWrite
	case err != nil:
		return err
	case n < len(p):
		return io.ErrShortWrite
	}
	return nil
}
