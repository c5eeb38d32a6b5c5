// Package portworker implements the per-physical-port actor (spec 4.F):
// a single-consumer FIFO queue that serializes every read and write
// against one transport handle, tracks per-slave consecutive-timeout
// counts, and enforces the three-timeout skip policy.
package portworker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/log"
)

// MaxConsecutiveTimeouts is the skip-policy threshold.
const MaxConsecutiveTimeouts = 3

// DefaultTimeout is the per-request wall-clock deadline.
const DefaultTimeout = 3000 * time.Millisecond

type opKind int

const (
	opRead opKind = iota
	opWrite
	opReset
	opUnskip
	opStats
)

// Job is the dispatched I/O call a request carries; the worker has no
// visibility into what it does beyond its slave ID, for skip bookkeeping.
type Job func(ctx context.Context) (any, error)

type request struct {
	id      string
	kind    opKind
	slaveID int
	timeout time.Duration
	job     Job
	reply   chan result
}

type result struct {
	value any
	err   error
}

// Stats is a point-in-time snapshot of a worker's skip/failure state.
type Stats struct {
	SkippedSlaves    []int
	FailureCounts    map[int]int
}

// Worker owns one physical port's transport handle and serializes every
// request against it, one in flight at a time.
type Worker struct {
	portPath string
	reqCh    chan request
	stopped  chan struct{}
	observe  func(op string, d time.Duration)
}

// Option configures New.
type Option func(*Worker)

// WithLatencyObserver registers a callback invoked after every read and
// write with the wall time the job spent executing against the driver.
func WithLatencyObserver(fn func(op string, d time.Duration)) Option {
	return func(w *Worker) { w.observe = fn }
}

// New creates a Worker for portPath. Call Start to begin processing.
func New(portPath string, opts ...Option) *Worker {
	w := &Worker{
		portPath: portPath,
		reqCh:    make(chan request),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start runs the worker's single consumer loop until ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stopped)

	skip := make(map[int]bool)
	fail := make(map[int]int)

	for {
		select {
		case <-ctx.Done():
			w.drainPending()
			return
		case req := <-w.reqCh:
			w.handle(ctx, req, skip, fail)
		}
	}
}

// drainPending best-effort drains any request already queued behind a
// context cancellation, answering Disconnected rather than hanging the
// caller. The channel is unbuffered, so this loop answers every sender
// already blocked on it and returns as soon as none is left waiting.
func (w *Worker) drainPending() {
	for {
		select {
		case req := <-w.reqCh:
			req.reply <- result{err: errdefs.ErrDisconnected}
		default:
			return
		}
	}
}

func (w *Worker) handle(ctx context.Context, req request, skip map[int]bool, fail map[int]int) {
	switch req.kind {
	case opReset:
		for k := range skip {
			delete(skip, k)
		}
		for k := range fail {
			delete(fail, k)
		}
		req.reply <- result{}
		return

	case opUnskip:
		delete(skip, req.slaveID)
		delete(fail, req.slaveID)
		req.reply <- result{}
		return

	case opStats:
		slaves := make([]int, 0, len(skip))
		for s := range skip {
			slaves = append(slaves, s)
		}
		counts := make(map[int]int, len(fail))
		for k, v := range fail {
			counts[k] = v
		}
		req.reply <- result{value: Stats{SkippedSlaves: slaves, FailureCounts: counts}}
		return
	}

	if skip[req.slaveID] {
		req.reply <- result{err: errdefs.ErrDeviceOfflineSkipped}
		return
	}

	timeout := req.timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	val, err := req.job(cctx)
	elapsed := time.Since(start)
	cancel()

	if w.observe != nil && (req.kind == opRead || req.kind == opWrite) {
		op := "read"
		if req.kind == opWrite {
			op = "write"
		}
		w.observe(op, elapsed)
	}

	if req.kind == opRead {
		switch {
		case err == nil:
			delete(fail, req.slaveID)
		case errors.Is(err, errdefs.ErrTimeout):
			fail[req.slaveID]++
			if fail[req.slaveID] >= MaxConsecutiveTimeouts {
				skip[req.slaveID] = true
				log.Logger.Infow("slave entered skip set after consecutive timeouts",
					"port", w.portPath, "slave_id", req.slaveID, "consecutive_timeouts", fail[req.slaveID],
					"request_id", req.id)
			}
		default:
			// Structural error: logged and cached by the caller, not
			// counted toward the skip threshold.
		}
	}

	req.reply <- result{value: val, err: err}
}

func (w *Worker) submit(ctx context.Context, req request) (any, error) {
	req.id = uuid.NewString()
	req.reply = make(chan result, 1)
	select {
	case w.reqCh <- req:
	case <-ctx.Done():
		return nil, errdefs.ErrDisconnected
	case <-w.stopped:
		return nil, errdefs.ErrDisconnected
	}

	select {
	case res := <-req.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, errdefs.ErrDisconnected
	}
}

// Read enqueues a read job for slaveID, honoring the skip policy and
// the per-slave consecutive-timeout counter.
func (w *Worker) Read(ctx context.Context, slaveID int, timeout time.Duration, job Job) (any, error) {
	return w.submit(ctx, request{kind: opRead, slaveID: slaveID, timeout: timeout, job: job})
}

// Write enqueues a write job for slaveID. Writes honor the skip policy
// but never themselves increment the failure counter.
func (w *Worker) Write(ctx context.Context, slaveID int, timeout time.Duration, job Job) (any, error) {
	return w.submit(ctx, request{kind: opWrite, slaveID: slaveID, timeout: timeout, job: job})
}

// Reset clears every slave's skip state and failure counter, used after
// a successful reconnect.
func (w *Worker) Reset(ctx context.Context) error {
	_, err := w.submit(ctx, request{kind: opReset})
	return err
}

// Unskip clears one slave's skip state and failure counter without
// affecting the rest of the port.
func (w *Worker) Unskip(ctx context.Context, slaveID int) error {
	_, err := w.submit(ctx, request{kind: opUnskip, slaveID: slaveID})
	return err
}

// Stats reports the worker's current skip set and failure counters.
func (w *Worker) Stats(ctx context.Context) (Stats, error) {
	v, err := w.submit(ctx, request{kind: opStats})
	if err != nil {
		return Stats{}, err
	}
	return v.(Stats), nil
}
