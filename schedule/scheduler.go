// Package schedule implements the process scheduler described in spec.md
// §4.4: inbound items are tagged Serial or Parallel; a Serial item waits for
// every in-flight Parallel item to finish, then runs to completion before
// the next queued item starts. Two Parallel items may run concurrently.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ProcessType is the scheduling class of an inbound item.
type ProcessType int

const (
	// Serial items are mutually exclusive with all other work: the
	// scheduler drains in-flight Parallel items first, runs the Serial item
	// to completion, and only then takes the next queued item.
	Serial ProcessType = iota
	// Parallel items may overlap with other Parallel items; they start
	// immediately without waiting on anything already in flight.
	Parallel
)

func (t ProcessType) String() string {
	if t == Serial {
		return "serial"
	}
	return "parallel"
}

// ErrStopped is returned by Submit once the scheduler has been stopped.
var ErrStopped = errors.New("schedule: scheduler stopped")

// Item is one unit of scheduled work. Run is invoked on the scheduler's
// dedicated worker goroutine (Serial) or on a fresh goroutine (Parallel);
// it must itself honor ctx for cancellation.
type Item struct {
	Type ProcessType
	Run  func(ctx context.Context)
}

// Config configures a Scheduler. The zero value is valid: unbounded
// parallelism, a queue capacity of 64, and a 5s shutdown grace period.
type Config struct {
	// QueueCapacity bounds the pending-item queue. 0 means use the default (64).
	QueueCapacity int
	// MaxParallel bounds concurrently running Parallel items. 0 means unbounded.
	MaxParallel int64
	// ShutdownGrace is how long Stop waits for outstanding work before
	// abandoning it. 0 means use the default (5s).
	ShutdownGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 64
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = 5 * time.Second
	}
	return c
}

// Scheduler runs queued Items on a dedicated worker, enforcing the
// Serial/Parallel ordering rule. The zero value is not usable; use New.
type Scheduler struct {
	cfg   Config
	queue chan Item
	sem   *semaphore.Weighted

	parallelWG sync.WaitGroup

	workerCtx    context.Context
	stopWorker   context.CancelFunc
	workerDone   chan struct{}
	stopOnce     sync.Once
	closedQueue  atomic32
}

// atomic32 avoids importing sync/atomic just for one bool-ish flag while
// still being race-safe; it wraps the one operation we need.
type atomic32 struct {
	mu sync.Mutex
	v  bool
}

func (a *atomic32) set() {
	a.mu.Lock()
	a.v = true
	a.mu.Unlock()
}

func (a *atomic32) get() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}

// New creates and starts a Scheduler.
func New(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cfg:        cfg,
		queue:      make(chan Item, cfg.QueueCapacity),
		workerCtx:  ctx,
		stopWorker: cancel,
		workerDone: make(chan struct{}),
	}
	if cfg.MaxParallel > 0 {
		s.sem = semaphore.NewWeighted(cfg.MaxParallel)
	}
	go s.run()
	return s
}

// Submit enqueues an item for scheduling. It blocks if the queue is full and
// returns ErrStopped if the scheduler has already been stopped.
func (s *Scheduler) Submit(it Item) error {
	if s.closedQueue.get() {
		return ErrStopped
	}
	select {
	case s.queue <- it:
		return nil
	case <-s.workerCtx.Done():
		return ErrStopped
	}
}

func (s *Scheduler) run() {
	defer close(s.workerDone)
	for {
		select {
		case <-s.workerCtx.Done():
			return
		case it, ok := <-s.queue:
			if !ok {
				return
			}
			s.dispatch(it)
		}
	}
}

func (s *Scheduler) dispatch(it Item) {
	switch it.Type {
	case Parallel:
		if s.sem != nil {
			// Best-effort acquire honoring worker shutdown; on shutdown we
			// still run the item inline rather than drop it silently.
			if err := s.sem.Acquire(s.workerCtx, 1); err != nil {
				it.Run(s.workerCtx)
				return
			}
		}
		s.parallelWG.Add(1)
		go func() {
			defer s.parallelWG.Done()
			if s.sem != nil {
				defer s.sem.Release(1)
			}
			it.Run(s.workerCtx)
		}()
	case Serial:
		// Wait for every in-flight Parallel item to complete before running
		// this Serial item to completion (spec.md §4.4). Completed Parallel
		// tasks are reaped implicitly by the WaitGroup's internal counter —
		// no separate bookkeeping is needed.
		s.parallelWG.Wait()
		it.Run(s.workerCtx)
	}
}

// Stop cancels the worker and waits up to the configured ShutdownGrace for
// outstanding Parallel tasks to finish. Returns true if everything drained
// cleanly, false if the grace period elapsed with work still outstanding —
// that work is abandoned (its goroutines keep running to completion, but
// Stop no longer waits on them).
func (s *Scheduler) Stop() bool {
	drained := true
	s.stopOnce.Do(func() {
		s.closedQueue.set()
		s.stopWorker()
		<-s.workerDone

		done := make(chan struct{})
		go func() {
			s.parallelWG.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(s.cfg.ShutdownGrace):
			drained = false
		}
	})
	return drained
}
