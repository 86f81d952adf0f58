package app

import (
	"context"
	"os"

	"github.com/google/uuid"

	"github.com/dshills/bufkeep/internal/buffers"
	"github.com/dshills/bufkeep/internal/document"
	"github.com/dshills/bufkeep/internal/encoding"
	"github.com/dshills/bufkeep/internal/watcher"
	"github.com/dshills/bufkeep/internal/worker"
)

// request is a file job waiting for, or holding, the worker. Slots find
// their request through Slot.JobID, which stays valid while slots move.
type request struct {
	id     string
	op     worker.Op
	path   string
	caret  int
	reload bool

	// Store input.
	snap document.Snapshot
	enc  encoding.Encoding

	// Load target, created when the job starts.
	doc document.Handle
	job *worker.Job
}

// Result reports a finished file job.
type Result struct {
	Op       worker.Op
	Path     string
	Slot     int
	State    worker.State
	Bytes    int64
	Encoding encoding.Encoding
	Reload   bool
	Err      error
}

// Pending returns the number of queued and running file jobs.
func (a *Application) Pending() int {
	n := len(a.queue)
	if a.running != nil {
		n++
	}
	return n
}

// Progress returns the latest progress notification of the running job.
func (a *Application) Progress() (worker.Notification, bool) {
	if a.running == nil || a.progress == nil {
		return worker.Notification{}, false
	}
	return *a.progress, true
}

func (a *Application) enqueue(slot *buffers.Slot, req *request) {
	req.id = uuid.NewString()
	slot.JobID = req.id
	a.queue = append(a.queue, req)
	a.pump()
}

// pump starts queued jobs while the worker is free. A load whose slot is
// gone is dropped; a store runs even after its slot has closed.
func (a *Application) pump() {
	for a.running == nil && len(a.queue) > 0 && !a.closed {
		req := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]

		idx := a.table.FindByJob(req.id)
		if idx == buffers.NotFound && req.op == worker.OpLoad {
			continue
		}
		if err := a.start(req); err != nil {
			a.logger.Error("start %s %s: %v", req.op, req.path, err)
			if idx != buffers.NotFound {
				a.table.Slot(idx).JobID = ""
			}
		}
	}
}

func (a *Application) start(req *request) error {
	var (
		job *worker.Job
		err error
	)
	switch req.op {
	case worker.OpLoad:
		req.doc = a.arena.New()
		doc, _ := a.arena.Get(req.doc)
		job, err = a.manager.StartLoad(req.path, doc)
		if err != nil {
			a.arena.Release(req.doc)
			req.doc = document.Handle{}
		}
	case worker.OpStore:
		job, err = a.manager.StartStore(req.path, req.snap, req.enc)
	}
	if err != nil {
		return err
	}
	req.job = job
	a.running = req
	a.progress = nil
	return nil
}

// cancelSlot detaches slot from its request. A load is dropped from the
// queue or cancelled; a cancelled load still reports through the mailbox
// and its document is released then. A store is left to finish, since
// cancelling it would leave a truncated file behind.
func (a *Application) cancelSlot(slot *buffers.Slot) {
	if slot.JobID == "" {
		return
	}
	id := slot.JobID
	slot.JobID = ""
	if a.running != nil && a.running.id == id {
		if a.running.op == worker.OpLoad {
			a.manager.Cancel(a.running.job)
		}
		return
	}
	for i, req := range a.queue {
		if req.id == id {
			if req.op == worker.OpLoad {
				a.queue = append(a.queue[:i], a.queue[i+1:]...)
			}
			return
		}
	}
}

// cancelAll detaches every slot and abandons all loads. Stores keep
// running.
func (a *Application) cancelAll() {
	for i := 0; i < a.table.Len(); i++ {
		a.table.Slot(i).JobID = ""
	}
	a.dropLoads()
}

// dropLoads removes queued loads and cancels a running one.
func (a *Application) dropLoads() {
	kept := a.queue[:0]
	for _, req := range a.queue {
		if req.op != worker.OpLoad {
			kept = append(kept, req)
		}
	}
	for i := len(kept); i < len(a.queue); i++ {
		a.queue[i] = nil
	}
	a.queue = kept
	if a.running != nil && a.running.op == worker.OpLoad {
		a.manager.Cancel(a.running.job)
	}
}

// Poll handles every notification and watcher event already waiting
// without blocking.
func (a *Application) Poll() []Result {
	var results []Result
	mailbox := a.manager.Notifications()
	for {
		n, ok := mailbox.TryReceive()
		if !ok {
			break
		}
		if r, done := a.handle(n); done {
			results = append(results, r)
		}
	}
	if a.watcher == nil {
		return results
	}
drain:
	for {
		select {
		case ev, ok := <-a.watcher.Events():
			if !ok {
				break drain
			}
			a.handleChange(ev)
		default:
			break drain
		}
	}
	return results
}

// Wait handles notifications until every queued and running job has
// finished or ctx is done.
func (a *Application) Wait(ctx context.Context) ([]Result, error) {
	results := a.Poll()
	for a.Pending() > 0 {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-a.manager.Notifications().Ready():
			results = append(results, a.Poll()...)
		case ev, ok := <-a.watcherEvents():
			if ok {
				a.handleChange(ev)
			}
		}
	}
	return results, nil
}

// Run handles notifications and watcher events until ctx is done. Each
// finished job is passed to onResult, which may be nil.
func (a *Application) Run(ctx context.Context, onResult func(Result)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.manager.Notifications().Ready():
			for _, r := range a.Poll() {
				if onResult != nil {
					onResult(r)
				}
			}
		case ev, ok := <-a.watcherEvents():
			if ok {
				a.handleChange(ev)
			}
		}
	}
}

// watcherEvents returns nil, which blocks forever, when nothing is watched.
func (a *Application) watcherEvents() <-chan watcher.Event {
	if a.watcher == nil || a.closed {
		return nil
	}
	return a.watcher.Events()
}

// handle applies one worker notification. It reports a Result once the
// job has finished.
func (a *Application) handle(n worker.Notification) (Result, bool) {
	req := a.running
	if req == nil || n.Job != req.job {
		a.logger.Debug("stale notification %s", n)
		return Result{}, false
	}
	if !n.Kind.Terminal() {
		a.progress = &n
		return Result{}, false
	}

	a.running = nil
	a.progress = nil
	if err := a.manager.Acknowledge(req.job); err != nil {
		a.logger.Error("acknowledge %s: %v", req.job.ID(), err)
	}

	r := Result{
		Op:       req.op,
		Path:     req.path,
		Slot:     a.table.FindByJob(req.id),
		State:    req.job.State(),
		Bytes:    n.BytesProcessed,
		Encoding: n.Encoding,
		Reload:   req.reload,
	}
	if n.Err != nil {
		r.Err = NewOperationError(req.op.String(), req.path, n.Err)
	}

	switch req.op {
	case worker.OpLoad:
		a.finishLoad(req, n, &r)
	case worker.OpStore:
		a.finishStore(req, n, r.Slot)
	}

	a.pump()
	return r, true
}

func (a *Application) finishLoad(req *request, n worker.Notification, r *Result) {
	idx := r.Slot
	if idx == buffers.NotFound {
		a.arena.Release(req.doc)
		return
	}
	slot := a.table.Slot(idx)
	slot.JobID = ""

	if n.Kind != worker.KindCompleted {
		a.arena.Release(req.doc)
		if req.reload {
			a.logger.Warn("reload %s: %s", req.path, n.Kind)
			return
		}
		a.logger.Warn("open %s: %s", req.path, n.Kind)
		a.removeSlot(idx)
		r.Slot = buffers.NotFound
		return
	}

	a.table.Install(idx, req.doc)
	slot = a.table.Slot(idx)
	doc, _ := a.table.Document(idx)
	text := doc.Text()

	slot.Encoding = n.Encoding
	slot.LineEnding = encoding.DetectLineEnding(text)
	slot.Dirty = false
	slot.ChangedOnDisk = false
	if info, err := os.Stat(req.path); err == nil {
		slot.ModTime = info.ModTime()
	}
	caret := min(req.caret, len(text))
	if req.reload {
		caret = min(slot.Selection.Caret, len(text))
	}
	slot.Selection = buffers.Selection{Anchor: caret, Caret: caret}
	if !req.reload && a.cfg.Fold.OnOpen {
		slot.Folds.Replace(allLines(doc.LineCount()))
	}

	a.watch(slot.Path)
	if req.reload {
		a.logger.Info("reloaded %s", req.path)
		return
	}
	a.logger.Info("opened %s (%d bytes, %s)", req.path, len(text), slot.Encoding)
	a.hookErr(a.ext.OnOpen(req.path))
}

func (a *Application) finishStore(req *request, n worker.Notification, idx int) {
	if n.Kind != worker.KindCompleted {
		a.logger.Warn("save %s: %s", req.path, n.Kind)
		if idx != buffers.NotFound {
			a.table.Slot(idx).JobID = ""
		}
		return
	}
	if idx == buffers.NotFound {
		a.logger.Info("saved %s (%d bytes, %s) after close", req.path, n.BytesProcessed, req.enc)
		return
	}
	slot := a.table.Slot(idx)
	slot.JobID = ""

	if doc, ok := a.table.Document(idx); ok && doc.Revision() == req.snap.Revision() {
		slot.Dirty = false
	}
	slot.Encoding = req.enc
	slot.ChangedOnDisk = false
	if info, err := os.Stat(req.path); err == nil {
		slot.ModTime = info.ModTime()
	}
	a.watch(req.path)
	a.logger.Info("saved %s (%d bytes, %s)", req.path, n.BytesProcessed, req.enc)
	a.hookErr(a.ext.OnSave(req.path))
}

func allLines(n int) []int {
	lines := make([]int, n)
	for i := range lines {
		lines[i] = i
	}
	return lines
}
