// Package runner implements the Runner family (spec.md §4.7): the
// synchronous-executor-to-asynchronous-consumer bridge, and the Pipeline,
// Compiler, and Editor runner flavors built on top of it. Grounded on
// internal/build/queue/build_queue.go's worker-goroutine shape, generalized
// from a build queue to a single-run event bridge (without its retry loop).
package runner

import (
	"context"
	"sync"

	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/verrors"
)

// State is a Runner instance's position in the HITL protocol (spec.md §4.7).
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateAwaitingDecision
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateAwaitingDecision:
		return "awaiting_decision"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Decision is the shape resume() accepts for a HumanApprovalRequired pause.
type Decision struct {
	Approved     bool
	ModifiedArgs map[string]any
	Feedback     string
}

// bridge is the bounded single-producer/single-consumer queue described in
// spec.md §4.7's scheduling model: a worker goroutine runs the synchronous
// executor and pushes events into a buffered channel; the foreground
// consumer drains it; channel close is the sentinel signaling end-of-stream.
type bridge struct {
	out    chan events.Event
	cancel chan struct{}
	once   sync.Once
}

func newBridge(buffer int) *bridge {
	return &bridge{out: make(chan events.Event, buffer), cancel: make(chan struct{})}
}

// emit pushes evt onto the bridge, blocking if the buffer is full
// (intentional backpressure) or returning early if the consumer cancelled.
func (b *bridge) emit(evt events.Event) bool {
	select {
	case b.out <- evt:
		return true
	case <-b.cancel:
		return false
	}
}

// start runs work on a dedicated goroutine and closes the output channel
// (the sentinel) once work returns, regardless of outcome.
func (b *bridge) start(work func()) {
	go func() {
		defer close(b.out)
		work()
	}()
}

// Events returns the consumer-facing event stream.
func (b *bridge) Events() <-chan events.Event { return b.out }

// Cancel signals the worker to stop producing. Per spec.md §4.7 this does
// not force-kill the worker; it lets the worker's next checkpoint observe
// cancellation and wind down naturally.
func (b *bridge) Cancel() {
	b.once.Do(func() { close(b.cancel) })
}

func (b *bridge) cancelled() bool {
	select {
	case <-b.cancel:
		return true
	default:
		return false
	}
}

// protocolError builds the PROTOCOL_ERROR verrors used when a caller
// violates the Runner state machine (e.g. resume() while not awaiting a
// decision).
func protocolError(msg string) error {
	return verrors.ProtocolError(msg)
}

// ctxDone reports whether ctx has already been cancelled, for a non-blocking
// check at loop checkpoints.
func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
