package runner

import (
	"context"
	"sync"

	"github.com/stubborncoder/vdocs/internal/events"
)

// CompilerOutcomeKind tags what a CompilerAgent turn produced.
type CompilerOutcomeKind int

const (
	OutcomeApprovalRequired CompilerOutcomeKind = iota
	OutcomeContinuing
	OutcomeComplete
)

// CompilerTurn is one input to a CompilerAgent turn: either the initial
// goal, a follow-up message, or a resume decision.
type CompilerTurn struct {
	Message  *string
	Decision *Decision
}

// CompilerOutcome is what a CompilerAgent turn produced.
type CompilerOutcome struct {
	Kind        CompilerOutcomeKind
	InterruptID string
	ToolName    string
	ToolArgs    map[string]any
	Message     string
	Result      map[string]any
}

// CompilerAgent is the goal-directed agent the Compiler Runner drives. It
// performs one turn of planning/execution, streaming Token/ToolCall events
// through emit, and reports whether the turn paused for approval, wants
// another turn, or completed.
type CompilerAgent interface {
	Act(ctx context.Context, threadID string, turn CompilerTurn, emit func(events.Event) bool) (CompilerOutcome, error)
}

// CompilerRunner drives a goal-directed agent that plans, pauses for
// approval, and executes; supports resume and free-form follow-up messages
// (spec.md §4.7's HITL protocol).
type CompilerRunner struct {
	userID   string
	threadID string
	agent    CompilerAgent

	mu        sync.Mutex
	state     State
	b         *bridge
	resumeCh  chan Decision
	messageCh chan string
}

// NewCompilerRunner constructs a Compiler Runner. threadID is the single
// conversational/graph state id this instance's resumes and follow-ups
// operate on (spec.md §4.7).
func NewCompilerRunner(userID, threadID string, agent CompilerAgent) *CompilerRunner {
	return &CompilerRunner{userID: userID, threadID: threadID, agent: agent, state: StateIdle}
}

// State reports the runner's current HITL state.
func (r *CompilerRunner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *CompilerRunner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run starts the agent on goal and returns the bridged event stream plus a
// cancel func.
func (r *CompilerRunner) Run(ctx context.Context, goal string) (<-chan events.Event, func()) {
	r.b = newBridge(16)
	r.resumeCh = make(chan Decision, 1)
	r.messageCh = make(chan string, 1)
	r.setState(StateStreaming)

	turn := CompilerTurn{Message: &goal}
	r.b.start(func() { r.loop(ctx, turn) })
	return r.b.Events(), r.b.Cancel
}

func (r *CompilerRunner) loop(ctx context.Context, turn CompilerTurn) {
	for {
		if ctxDone(ctx) || r.b.cancelled() {
			return
		}
		outcome, err := r.agent.Act(ctx, r.threadID, turn, func(e events.Event) bool { return r.b.emit(e) })
		if err != nil {
			r.setState(StateError)
			r.b.emit(events.NewError(err.Error(), "", false))
			return
		}

		switch outcome.Kind {
		case OutcomeApprovalRequired:
			r.setState(StateAwaitingDecision)
			if !r.b.emit(events.NewHumanApprovalRequired(outcome.InterruptID, outcome.ToolName, outcome.ToolArgs, outcome.Message)) {
				return
			}
			next, ok := r.awaitNext(ctx)
			if !ok {
				return
			}
			turn = next
			r.setState(StateStreaming)
		case OutcomeComplete:
			r.setState(StateComplete)
			r.b.emit(events.NewComplete(outcome.Result, outcome.Message))
			return
		default:
			next, ok := r.awaitNext(ctx)
			if !ok {
				return
			}
			turn = next
		}
	}
}

func (r *CompilerRunner) awaitNext(ctx context.Context) (CompilerTurn, bool) {
	select {
	case d := <-r.resumeCh:
		if !d.Approved {
			msg := d.Feedback
			return CompilerTurn{Message: &msg}, true
		}
		dCopy := d
		return CompilerTurn{Decision: &dCopy}, true
	case m := <-r.messageCh:
		return CompilerTurn{Message: &m}, true
	case <-ctx.Done():
		return CompilerTurn{}, false
	case <-r.b.cancel:
		return CompilerTurn{}, false
	}
}

// Resume delivers a human decision for a pending HumanApprovalRequired. It
// is only valid while AWAITING_DECISION (spec.md §4.7).
func (r *CompilerRunner) Resume(d Decision) error {
	if r.State() != StateAwaitingDecision {
		return protocolError("resume is only valid while awaiting a decision")
	}
	select {
	case r.resumeCh <- d:
		return nil
	default:
		return protocolError("a decision is already pending")
	}
}

// SendMessage delivers a free-form follow-up. Valid in STREAMING between
// turns; rejected as a protocol error during AWAITING_DECISION (resume is
// the only valid response to a pending approval in this implementation).
func (r *CompilerRunner) SendMessage(text string) error {
	switch r.State() {
	case StateAwaitingDecision:
		return protocolError("send_message is not valid while awaiting a decision; use resume")
	case StateStreaming:
		select {
		case r.messageCh <- text:
			return nil
		default:
			return protocolError("a message is already pending")
		}
	default:
		return protocolError("send_message is only valid while streaming")
	}
}
