package levin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethpandaops/levin/pkg/portable"
)

type invocationState int

const (
	invocationQueued invocationState = iota
	invocationCancelled
	invocationWritten
	invocationAbandoned
	invocationCompleted
)

// Invocation is an outstanding request awaiting its response. Buckets carry no
// correlation id, so responses are paired with invocations in write order.
// Each invocation holds a unique token identifying it in logs and errors.
type Invocation struct {
	conn    *Conn
	token   uint64
	command uint32
	started time.Time

	// state is guarded by the owning pendingQueue's mutex.
	state invocationState

	once sync.Once
	done chan struct{}
	resp *portable.Section
	err  error
}

// Token returns the invocation's unique token on its connection.
func (i *Invocation) Token() uint64 {
	return i.token
}

// Command returns the invoked command id.
func (i *Invocation) Command() uint32 {
	return i.command
}

// Done is closed once the invocation has a result.
func (i *Invocation) Done() <-chan struct{} {
	return i.done
}

// Result returns the response or the failure. It is only meaningful after
// Done is closed.
func (i *Invocation) Result() (*portable.Section, error) {
	return i.resp, i.err
}

// Wait blocks until the response arrives, the connection closes or ctx is
// done. When ctx ends first the invocation is cancelled.
func (i *Invocation) Wait(ctx context.Context) (*portable.Section, error) {
	select {
	case <-i.done:
		return i.resp, i.err
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrInvokeTimeout, err)
		}

		i.cancel(err)

		<-i.done

		return i.resp, i.err
	case <-i.conn.Done():
		i.complete(nil, i.conn.Err())

		return i.resp, i.err
	}
}

// Cancel abandons the invocation. If the request has not been written yet it
// is never sent. Once written, the peer may still answer it or never answer
// at all, and buckets carry no correlation id to tell which, so the
// connection is closed with ErrInvocationAbandoned.
func (i *Invocation) Cancel() {
	i.cancel(context.Canceled)
}

func (i *Invocation) cancel(err error) {
	written := i.conn.pending.cancel(i)

	i.complete(nil, err)

	if written {
		i.conn.abort(fmt.Errorf("%w: command %d token %d", ErrInvocationAbandoned, i.command, i.token))
	}
}

func (i *Invocation) complete(resp *portable.Section, err error) {
	i.once.Do(func() {
		i.resp = resp
		i.err = err

		i.conn.metrics.recordInvocation(i.command, err, time.Since(i.started))

		close(i.done)
	})
}

// pendingQueue holds written invocations in write order.
type pendingQueue struct {
	mu    sync.Mutex
	items []*Invocation
	err   error
}

// markWritten moves inv from queued to written and appends it to the queue.
// It reports false when inv was cancelled or the queue has failed.
func (q *pendingQueue) markWritten(inv *Invocation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.err != nil || inv.state != invocationQueued {
		return false
	}

	inv.state = invocationWritten
	q.items = append(q.items, inv)

	return true
}

// cancel releases inv and reports whether it had already been written. A
// queued invocation will be skipped by the writer. A written one keeps its
// slot, so a response arriving before the connection closes is dropped.
func (q *pendingQueue) cancel(inv *Invocation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch inv.state {
	case invocationQueued:
		inv.state = invocationCancelled
	case invocationWritten:
		inv.state = invocationAbandoned

		return q.err == nil
	}

	return false
}

// match pairs a response for command with the oldest written invocation. On
// a mismatch the queue is left untouched.
func (q *pendingQueue) match(command uint32) (*Invocation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, ErrUnexpectedResponse
	}

	head := q.items[0]
	if head.command != command {
		return nil, &FrameError{Err: ErrResponseMismatch, Value: uint64(head.command)}
	}

	q.items[0] = nil
	q.items = q.items[1:]

	if head.state == invocationAbandoned {
		return nil, nil
	}

	head.state = invocationCompleted

	return head, nil
}

// failAll fails every written invocation and rejects later writes.
func (q *pendingQueue) failAll(err error) {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.err = err
	q.mu.Unlock()

	for _, inv := range items {
		inv.complete(nil, err)
	}
}

// Len returns the number of written invocations awaiting a response,
// abandoned ones included.
func (q *pendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
