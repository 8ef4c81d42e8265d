package rhi

import "fmt"

// CommandQueue owns one monotonically increasing fence timeline.
type CommandQueue struct {
	native       NativeQueue
	kind         QueueKind
	lastSignaled uint64
}

func newCommandQueue(native NativeQueue, kind QueueKind) *CommandQueue {
	return &CommandQueue{native: native, kind: kind}
}

func (q *CommandQueue) Kind() QueueKind {
	return q.kind
}

func (q *CommandQueue) Native() NativeQueue {
	return q.native
}

// Execute closes every list and submits them as one batch.
func (q *CommandQueue) Execute(lists ...*CommandList) error {
	native := make([]NativeCommandList, 0, len(lists))
	for _, cl := range lists {
		if cl.Kind() != q.kind {
			return fmt.Errorf("submit %s command list to %s queue", cl.Kind(), q.kind)
		}
		if err := cl.Close(); err != nil {
			return err
		}
		native = append(native, cl.Native())
	}
	if err := q.native.Submit(native); err != nil {
		return fmt.Errorf("%s queue submit: %w", q.kind, err)
	}
	return nil
}

// Signal enqueues the next fence value and returns it.
func (q *CommandQueue) Signal() (uint64, error) {
	q.lastSignaled++
	if err := q.native.Signal(q.lastSignaled); err != nil {
		return 0, fmt.Errorf("%s queue signal %d: %w", q.kind, q.lastSignaled, err)
	}
	return q.lastSignaled, nil
}

// WaitForFenceValue blocks until the fence reaches v. It returns immediately
// if the value is already complete.
func (q *CommandQueue) WaitForFenceValue(v uint64) error {
	if q.native.CompletedValue() >= v {
		return nil
	}
	if err := q.native.Wait(v); err != nil {
		return fmt.Errorf("%s queue wait %d: %w", q.kind, v, err)
	}
	return nil
}

// Flush waits for everything submitted so far.
func (q *CommandQueue) Flush() error {
	v, err := q.Signal()
	if err != nil {
		return err
	}
	return q.WaitForFenceValue(v)
}

func (q *CommandQueue) CompletedValue() uint64 {
	return q.native.CompletedValue()
}

func (q *CommandQueue) LastSignaled() uint64 {
	return q.lastSignaled
}

func (q *CommandQueue) Destroy() {
	if q.native != nil {
		q.native.Destroy()
		q.native = nil
	}
}
