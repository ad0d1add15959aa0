package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Pool grades students on a bounded set of workers. Each student has
// at most one pending task; submitting an already-queued student is
// rejected. Stop requests are cooperative and take effect on the next
// stage boundary.
type Pool struct {
	driver *Driver

	queue   chan *task
	pending *xsync.MapOf[string, *task]
	wg      sync.WaitGroup
	closed  atomic.Bool
}

type task struct {
	studentID string
	stop      atomic.Bool
}

func NewPool(driver *Driver, workers int) *Pool {
	p := &Pool{
		driver:  driver,
		queue:   make(chan *task, workers*16),
		pending: xsync.NewMapOf[string, *task](),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues the student for grading. Returns false when the pool
// is shut down, the student is already pending, or the queue is full.
func (p *Pool) Submit(studentID string) bool {
	if p.closed.Load() {
		return false
	}
	t := &task{studentID: studentID}
	if _, loaded := p.pending.LoadOrStore(studentID, t); loaded {
		return false
	}
	select {
	case p.queue <- t:
		return true
	default:
		p.pending.Delete(studentID)
		return false
	}
}

// Stop requests that the student's pending task finish at the next
// stage boundary. Results written so far stay in the store.
func (p *Pool) Stop(studentID string) {
	if t, ok := p.pending.Load(studentID); ok {
		t.stop.Store(true)
	}
}

// Pending reports whether the student has a queued or running task.
func (p *Pool) Pending(studentID string) bool {
	_, ok := p.pending.Load(studentID)
	return ok
}

// Wait stops accepting work and blocks until every queued task has
// run to completion.
func (p *Pool) Wait() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.queue)
	}
	p.wg.Wait()
}

// Terminate asks every pending task to stop at its next stage
// boundary and waits for the workers to wind down. Queued tasks that
// never started exit without doing any work.
func (p *Pool) Terminate() {
	p.pending.Range(func(_ string, t *task) bool {
		t.stop.Store(true)
		return true
	})
	p.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.queue {
		err := p.driver.RunUntilDone(context.Background(), t.studentID, t.stop.Load)
		p.pending.Delete(t.studentID)
		if err != nil {
			slog.Error("grading aborted", "student", t.studentID, "error", err)
		}
	}
}
