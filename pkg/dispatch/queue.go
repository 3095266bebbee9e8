// ABOUTME: Serial task queue backed by a single worker goroutine
// ABOUTME: Runs posted tasks one at a time in FIFO order
package dispatch

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sync"
)

// ErrStopped is returned by Post after the queue has been stopped
var ErrStopped = errors.New("dispatch: queue stopped")

// Task is a unit of work with no return value
type Task func()

// Option configures a Queue
type Option func(*Queue)

// WithLockedThread pins the worker goroutine to its own OS thread for
// the lifetime of the queue
func WithLockedThread() Option {
	return func(q *Queue) {
		q.lockThread = true
	}
}

// Queue executes posted tasks strictly in posting order on one worker
type Queue struct {
	name       string
	lockThread bool

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []Task
	stopped bool
	drain   bool

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a queue and starts its worker
func New(name string, opts ...Option) *Queue {
	q := &Queue{
		name: name,
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)

	for _, opt := range opts {
		opt(q)
	}

	go q.run()
	return q
}

// Name returns the queue name
func (q *Queue) Name() string {
	return q.name
}

// Post enqueues a task and returns immediately
func (q *Queue) Post(task Task) error {
	if task == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrStopped
	}

	q.tasks = append(q.tasks, task)
	q.cond.Signal()
	return nil
}

// Len returns the number of tasks waiting to run
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Sync blocks until every task posted before the call has run, or ctx is done.
// It must not be called from a task running on this queue.
func (q *Queue) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if err := q.Post(func() { close(reached) }); err != nil {
		return err
	}

	select {
	case <-reached:
		return nil
	case <-q.done:
		// Stopped without drain: the barrier may have been discarded
		select {
		case <-reached:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects further posts. With drain set, pending tasks still run before
// the worker exits; otherwise they are discarded. Stop does not wait.
func (q *Queue) Stop(drain bool) {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		q.drain = drain
		if !drain {
			q.tasks = nil
		}
		q.cond.Broadcast()
		q.mu.Unlock()
	})
}

// Wait blocks until the worker has exited
func (q *Queue) Wait() {
	<-q.done
}

// Done is closed once the worker has exited
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) run() {
	defer close(q.done)

	if q.lockThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	for {
		task, ok := q.next()
		if !ok {
			return
		}
		q.execute(task)
	}
}

// next blocks for the next task; ok is false once the worker should exit
func (q *Queue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.tasks) == 0 && !q.stopped {
		q.cond.Wait()
	}

	if len(q.tasks) == 0 || (q.stopped && !q.drain) {
		return nil, false
	}

	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return task, true
}

func (q *Queue) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: task on %s panicked: %v", q.name, r)
		}
	}()
	task()
}
