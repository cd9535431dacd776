package levin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethpandaops/levin/pkg/portable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var connIDs atomic.Uint64

type jobState = int32

const (
	jobQueued jobState = iota
	jobCancelled
	jobWriting
)

// outboundJob is one encoded bucket waiting in the outbound queue.
type outboundJob struct {
	command uint32
	flags   Flags
	writer  *FrameWriter
	inv     *Invocation
	state   atomic.Int32
	result  chan error
	// closeAfter shuts the connection down once the frame is written.
	closeAfter bool
}

// claim reports whether the writer may flush the job.
func (j *outboundJob) claim(q *pendingQueue) bool {
	if j.inv != nil {
		return q.markWritten(j.inv)
	}

	return j.state.CompareAndSwap(jobQueued, jobWriting)
}

func (j *outboundJob) finish(err error) {
	if j.inv != nil && err != nil {
		j.inv.complete(nil, err)
	}

	if j.result != nil {
		j.result <- err
	}
}

// Conn runs the bucket protocol over one transport connection. Reads and
// writes progress independently; within each side buckets are processed one
// at a time and in order.
//
// Handlers run on the read loop, so a handler must not wait on an invocation
// over its own connection.
type Conn struct {
	id        uint64
	outbound  bool
	log       logrus.FieldLogger
	cfg       Config
	codec     *portable.Codec
	registry  *Registry
	metrics   *Metrics
	transport net.Conn

	queue   chan *outboundJob
	pending *pendingQueue
	tokens  atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	closed   bool
	started  bool
	err      error
	abortErr error
	done     chan struct{}
}

// NewConn wraps transport. The connection does nothing until Start is called.
// metrics may be nil.
func NewConn(
	log logrus.FieldLogger,
	transport net.Conn,
	registry *Registry,
	cfg Config,
	metrics *Metrics,
	outbound bool,
) *Conn {
	id := connIDs.Add(1)

	return &Conn{
		id:       id,
		outbound: outbound,
		log: log.WithFields(logrus.Fields{
			"component": "levin_conn",
			"conn":      id,
			"remote":    transport.RemoteAddr().String(),
		}),
		cfg:       cfg,
		codec:     cfg.codec(),
		registry:  registry,
		metrics:   metrics,
		transport: transport,
		queue:     make(chan *outboundJob, cfg.OutboundQueueSize),
		pending:   &pendingQueue{},
		done:      make(chan struct{}),
	}
}

// ID returns the process-unique connection id.
func (c *Conn) ID() uint64 {
	return c.id
}

// Outbound reports whether the connection was dialed locally.
func (c *Conn) Outbound() bool {
	return c.outbound
}

// RemoteAddr returns the address of the peer.
func (c *Conn) RemoteAddr() net.Addr {
	return c.transport.RemoteAddr()
}

// Done is closed once the connection has shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection shut down, or nil while it runs.
func (c *Conn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.err
}

// Pending returns the number of written invocations awaiting a response.
func (c *Conn) Pending() int {
	return c.pending.Len()
}

// Start launches the read and write loops. The connection shuts down when
// either loop fails, ctx is cancelled or Close is called.
func (c *Conn) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()

		return
	}

	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.metrics.connectionOpened()

	g, gctx := errgroup.WithContext(c.ctx)

	g.Go(func() error {
		return c.readLoop(gctx)
	})

	g.Go(func() error {
		return c.writeLoop(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		return c.transport.Close()
	})

	c.log.Debug("Connection started")

	go func() {
		c.shutdown(g.Wait())
	}()
}

// Close shuts the connection down and waits for both loops to exit.
func (c *Conn) Close() error {
	c.mu.Lock()
	if !c.started {
		c.started = true
		c.closed = true
		c.err = ErrConnectionClosed
		c.mu.Unlock()

		close(c.done)

		return c.transport.Close()
	}
	c.mu.Unlock()

	c.cancel()
	<-c.done

	return nil
}

func (c *Conn) shutdown(err error) {
	c.cancel()

	c.mu.RLock()
	if c.abortErr != nil {
		err = c.abortErr
	}
	c.mu.RUnlock()

	switch {
	case err == nil,
		errors.Is(err, errClosedAfterResponse),
		errors.Is(err, context.Canceled),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrClosedPipe):
		err = ErrConnectionClosed
	case errors.Is(err, ErrConnectionClosed):
	default:
		err = fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}

	c.mu.Lock()
	c.closed = true
	c.err = err
	c.mu.Unlock()

	c.pending.failAll(err)

	for {
		select {
		case job := <-c.queue:
			job.finish(err)

			continue
		default:
		}

		break
	}

	c.metrics.connectionClosed()

	c.log.WithError(err).Debug("Connection closed")

	close(c.done)
}

// abort shuts the connection down with err as the reason. It does not wait
// for the loops to exit, so it is safe to call from a handler.
func (c *Conn) abort(err error) {
	c.mu.Lock()
	if c.closed || !c.started || c.abortErr != nil {
		c.mu.Unlock()

		return
	}

	c.abortErr = err
	cancel := c.cancel
	c.mu.Unlock()

	c.log.WithError(err).Debug("Aborting connection")

	cancel()
}

// enqueue hands job to the write loop.
func (c *Conn) enqueue(ctx context.Context, job *outboundJob) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return c.err
	}

	if !c.started {
		return ErrConnectionClosed
	}

	select {
	case c.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// InvokeAsync writes a request for command and returns a handle on its
// response. A nil body is sent as an empty section.
func (c *Conn) InvokeAsync(ctx context.Context, command uint32, body *portable.Section) (*Invocation, error) {
	if body == nil {
		body = portable.NewSection()
	}

	data, err := c.codec.Marshal(body)
	if err != nil {
		return nil, err
	}

	inv := &Invocation{
		conn:    c,
		token:   c.tokens.Add(1),
		command: command,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	job := &outboundJob{
		command: command,
		flags:   FlagRequest,
		writer:  NewFrameWriter(RequestFrame(command, data)),
		inv:     inv,
	}

	if err := c.enqueue(ctx, job); err != nil {
		return nil, err
	}

	return inv, nil
}

// Invoke writes a request for command and waits for the matching response.
// Without a context deadline the configured invoke timeout applies. A
// response carrying a negative return code yields a *ReturnCodeError.
func (c *Conn) Invoke(ctx context.Context, command uint32, body *portable.Section) (*portable.Section, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.cfg.InvokeTimeout)
		defer cancel()
	}

	inv, err := c.InvokeAsync(ctx, command, body)
	if err != nil {
		return nil, err
	}

	return inv.Wait(ctx)
}

// Notify writes a one-way request and waits until it has been flushed. If
// ctx ends before the write starts the notification is dropped.
func (c *Conn) Notify(ctx context.Context, command uint32, body *portable.Section) error {
	if body == nil {
		body = portable.NewSection()
	}

	data, err := c.codec.Marshal(body)
	if err != nil {
		return err
	}

	job := &outboundJob{
		command: command,
		flags:   FlagRequest,
		writer:  NewFrameWriter(NotifyFrame(command, data)),
		result:  make(chan error, 1),
	}

	if err := c.enqueue(ctx, job); err != nil {
		return err
	}

	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		if job.state.CompareAndSwap(jobQueued, jobCancelled) {
			return ctx.Err()
		}

		return <-job.result
	}
}

// respond queues a response without waiting for it to be written. With
// closeAfter set the connection shuts down once the response is out.
func (c *Conn) respond(ctx context.Context, command uint32, code ReturnCode, body []byte, closeAfter bool) error {
	job := &outboundJob{
		command:    command,
		flags:      FlagResponse,
		writer:     NewFrameWriter(ResponseFrame(command, code, body)),
		closeAfter: closeAfter,
	}

	return c.enqueue(ctx, job)
}

func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-c.queue:
			if !job.claim(c.pending) {
				if job.result != nil {
					job.result <- context.Canceled
				}

				continue
			}

			err := c.flush(ctx, job.writer)

			job.finish(err)

			if err != nil {
				return fmt.Errorf("writing command %d: %w", job.command, err)
			}

			c.metrics.recordFrameSent(job.command, job.flags, len(job.writer.frame))

			if job.closeAfter {
				return errClosedAfterResponse
			}
		}
	}
}

// flush writes one frame, resuming after every expired write deadline until
// the frame is out or the connection stops.
func (c *Conn) flush(ctx context.Context, w *FrameWriter) error {
	for {
		if err := c.transport.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return err
		}

		status, err := w.Resume(c.transport)
		if err != nil {
			return err
		}

		if status == portable.Done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.log.WithField("written", w.Written()).Debug("Write deadline expired, resuming")
	}
}

func (c *Conn) readLoop(ctx context.Context) error {
	buf := make([]byte, c.cfg.ReadBufferSize)
	fr := NewFrameReader(c.codec, c.cfg.MaxBodySize)

	for {
		if c.cfg.IdleTimeout > 0 {
			if err := c.transport.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout)); err != nil {
				return err
			}
		}

		n, readErr := c.transport.Read(buf)

		data := buf[:n]
		for len(data) > 0 {
			k, msg, err := fr.Resume(data)
			if err != nil {
				c.metrics.recordError(err)
				c.log.WithError(err).Debug("Failed to decode bucket")

				return err
			}

			data = data[k:]

			if msg == nil {
				if k == 0 {
					break
				}

				continue
			}

			c.metrics.recordFrameReceived(msg.Header)

			if err := c.dispatch(ctx, msg); err != nil {
				return err
			}
		}

		if readErr != nil {
			if isTimeout(readErr) {
				return fmt.Errorf("idle timeout: %w", readErr)
			}

			if errors.Is(readErr, io.EOF) && fr.Buffered() {
				return io.ErrUnexpectedEOF
			}

			return readErr
		}
	}
}

func (c *Conn) dispatch(ctx context.Context, msg *Message) error {
	c.log.WithFields(logrus.Fields{
		"command": msg.Header.Command,
		"flags":   msg.Header.Flags.String(),
		"code":    msg.Header.ReturnCode.String(),
		"size":    msg.Header.BodySize,
	}).Debug("Received bucket")

	if msg.Header.IsResponse() {
		return c.handleResponse(ctx, msg)
	}

	return c.handleRequest(ctx, msg)
}

func (c *Conn) handleResponse(ctx context.Context, msg *Message) error {
	h := msg.Header

	inv, err := c.pending.match(h.Command)
	if err != nil {
		c.metrics.recordError(err)

		log := c.log.WithError(err).WithFields(logrus.Fields{
			"command": h.Command,
			"code":    h.ReturnCode.String(),
		})

		if !h.ReturnCode.Success() {
			log.Debug("Dropping unexpected error response")

			return nil
		}

		log.Debug("Rejecting unexpected response")

		return c.respond(ctx, h.Command, ReturnErrFormat, nil, false)
	}

	if inv == nil {
		c.log.WithField("command", h.Command).Debug("Dropping response to abandoned invocation")

		return nil
	}

	if !h.ReturnCode.Success() {
		inv.complete(nil, &ReturnCodeError{Code: h.ReturnCode})

		return nil
	}

	inv.complete(msg.Body, nil)

	return nil
}

func (c *Conn) handleRequest(ctx context.Context, msg *Message) error {
	h := msg.Header

	handler, ok := c.registry.Lookup(h.Command)
	if !ok || (h.ExpectsResponse && handler.Invoke == nil) || (!h.ExpectsResponse && handler.Notify == nil) {
		c.metrics.recordError(ErrNoHandler)
		c.log.WithFields(logrus.Fields{
			"command":          h.Command,
			"expects_response": h.ExpectsResponse,
		}).Debug("No handler for command")

		if !h.ExpectsResponse {
			return nil
		}

		return c.respond(ctx, h.Command, ReturnErrHandlerNotDefined, nil, false)
	}

	if handler.Notify != nil {
		if err := handler.Notify(ctx, c, msg.Body); err != nil {
			c.metrics.recordError(err)
			c.log.WithError(err).WithField("command", handler.Name).Debug("Notification handler failed")
		}

		return nil
	}

	resp, err := handler.Invoke(ctx, c, msg.Body)
	if err != nil {
		c.metrics.recordError(err)
		c.log.WithError(err).WithField("command", handler.Name).Debug("Invocation handler failed")

		return c.respond(ctx, h.Command, returnCodeFor(err), nil, disconnectAfter(err))
	}

	if resp == nil {
		return nil
	}

	data, err := c.codec.Marshal(resp)
	if err != nil {
		c.log.WithError(err).WithField("command", handler.Name).Warn("Failed to encode response")

		return c.respond(ctx, h.Command, ReturnErrFormat, nil, false)
	}

	return c.respond(ctx, h.Command, ReturnOK, data, false)
}

func disconnectAfter(err error) bool {
	var codeErr *ReturnCodeError

	return errors.As(err, &codeErr) && codeErr.Disconnect
}

func returnCodeFor(err error) ReturnCode {
	var codeErr *ReturnCodeError
	if errors.As(err, &codeErr) && !codeErr.Code.Success() {
		return codeErr.Code
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return ReturnErrFormat
	}

	return ReturnErrConnection
}
