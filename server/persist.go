package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"jumpi/store"
)

const writeTimeout = 5 * time.Second

// writeJob is one durable write. run executes on the persistence worker; done,
// when set, runs back on the world loop with the result.
type writeJob struct {
	name string
	run  func(ctx context.Context, s store.UserStore) error
	done func(w *World, err error, fx *effects)
}

// saveJob writes users in a single transaction.
func saveJob(name string, users []*store.User, done func(w *World, err error, fx *effects)) writeJob {
	return writeJob{
		name: name,
		run: func(ctx context.Context, s store.UserStore) error {
			return s.SaveMany(ctx, users...)
		},
		done: done,
	}
}

// writeBehind serialises store writes off the world loop. Jobs run in
// submission order, so later saves of the same user win.
type writeBehind struct {
	w *World

	mu     sync.Mutex
	queue  []writeJob
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newWriteBehind(w *World) *writeBehind {
	return &writeBehind{
		w:    w,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// submit is safe from any goroutine. Returns false after close.
func (q *writeBehind) submit(job writeJob) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.w.log.Warnw("write dropped after shutdown", "job", job.name)
		return false
	}
	q.queue = append(q.queue, job)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *writeBehind) pop() (writeJob, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return writeJob{}, false, q.closed
	}
	job := q.queue[0]
	q.queue[0] = writeJob{}
	q.queue = q.queue[1:]
	return job, true, false
}

func (q *writeBehind) run(ctx context.Context) {
	defer close(q.done)
	for {
		job, ok, closed := q.pop()
		if closed {
			return
		}
		if !ok {
			<-q.wake
			continue
		}
		q.exec(ctx, job)
	}
}

func (q *writeBehind) exec(ctx context.Context, job writeJob) {
	// the queue is drained on shutdown, so a cancelled ctx must not abort writes
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	err := job.run(jctx, q.w.store)
	cancel()
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		q.w.metrics.persistFailures.WithLabelValues(job.name).Inc()
		q.w.log.Errorw("persist failed", "job", job.name, "err", err)
	}
	if job.done != nil {
		q.w.post(func(w *World, fx *effects) { job.done(w, err, fx) })
	}
}

// close stops accepting jobs and waits for the queue to drain.
func (q *writeBehind) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

// persistPlayer queues a save of p's current state. A failed write is reported
// to p; live state is kept as is.
func (w *World) persistPlayer(name string, p *Player, fx *effects) {
	id := p.ID
	fx.persist(saveJob(name, []*store.User{p.Record()}, func(w *World, err error, fx *effects) {
		if err != nil {
			fx.send(id, "actionFeedback", feedback{Success: false, Message: ErrPersistence.Error()})
		}
	}))
}
