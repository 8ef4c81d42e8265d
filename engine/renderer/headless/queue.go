package headless

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type work struct {
	lists  [][]op
	signal uint64
}

// Queue runs submitted command lists in order on its own goroutine, the GPU
// timeline. Fence values complete only after every earlier submission ran.
type Queue struct {
	kind    rhi.QueueKind
	latency time.Duration

	sendMu sync.Mutex
	work   chan work
	done   chan struct{}

	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
	signaled  uint64
	executed  []Command
	destroyed bool
	lost      bool
}

func newQueue(kind rhi.QueueKind, latency time.Duration) *Queue {
	q := &Queue{
		kind:    kind,
		latency: latency,
		work:    make(chan work, 256),
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.timeline()
	return q
}

func (q *Queue) timeline() {
	defer close(q.done)
	for w := range q.work {
		if len(w.lists) > 0 {
			if q.latency > 0 {
				time.Sleep(q.latency)
			}
			var out []Command
			emit := func(c Command) { out = append(out, c) }
			for _, ops := range w.lists {
				st := &bindState{}
				for _, o := range ops {
					o(st, emit)
				}
			}
			q.mu.Lock()
			q.executed = append(q.executed, out...)
			q.mu.Unlock()
		}
		if w.signal > 0 {
			q.mu.Lock()
			if w.signal > q.completed {
				q.completed = w.signal
			}
			q.cond.Broadcast()
			q.mu.Unlock()
		}
	}
}

func (q *Queue) Submit(lists []rhi.NativeCommandList) error {
	batch := make([][]op, 0, len(lists))
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return fmt.Errorf("submit foreign command list %T", l)
		}
		if !cl.closed {
			return fmt.Errorf("submit open %s command list", cl.kind)
		}
		batch = append(batch, cl.snapshot())
	}
	return q.push(work{lists: batch})
}

func (q *Queue) Signal(value uint64) error {
	q.mu.Lock()
	if q.lost {
		q.mu.Unlock()
		return fmt.Errorf("%s queue: %w", q.kind, rhi.ErrDeviceLost)
	}
	if value <= q.signaled {
		q.mu.Unlock()
		return fmt.Errorf("fence value %d not above %d", value, q.signaled)
	}
	q.signaled = value
	q.mu.Unlock()
	return q.push(work{signal: value})
}

func (q *Queue) push(w work) error {
	q.sendMu.Lock()
	defer q.sendMu.Unlock()
	q.mu.Lock()
	destroyed, lost := q.destroyed, q.lost
	q.mu.Unlock()
	if destroyed {
		return ErrQueueDestroyed
	}
	if lost {
		return fmt.Errorf("%s queue: %w", q.kind, rhi.ErrDeviceLost)
	}
	q.work <- w
	return nil
}

func (q *Queue) CompletedValue() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

func (q *Queue) Wait(value uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.completed < value {
		if q.destroyed {
			return ErrQueueDestroyed
		}
		if value > q.signaled {
			return fmt.Errorf("wait for %d which was never signaled (last %d)", value, q.signaled)
		}
		q.cond.Wait()
	}
	return nil
}

// idle waits for everything signaled so far.
func (q *Queue) idle() error {
	q.mu.Lock()
	v := q.signaled
	q.mu.Unlock()
	return q.Wait(v)
}

// lose fails every later submission and signal, the way a driver reports a
// removed device. Work already pushed still completes.
func (q *Queue) lose() {
	q.mu.Lock()
	q.lost = true
	q.mu.Unlock()
}

// Executed returns a copy of every command the timeline ran.
func (q *Queue) Executed() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Command(nil), q.executed...)
}

func (q *Queue) Destroy() {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return
	}
	q.destroyed = true
	q.mu.Unlock()
	q.sendMu.Lock()
	close(q.work)
	q.sendMu.Unlock()
	<-q.done
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}
