package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/verrors"
)

// scriptedAgent pauses for approval exactly once, then completes on the
// next turn.
type scriptedAgent struct {
	turns int
}

func (a *scriptedAgent) Act(ctx context.Context, threadID string, turn CompilerTurn, emit func(events.Event) bool) (CompilerOutcome, error) {
	a.turns++
	if a.turns == 1 {
		emit(events.NewToolCall("write_file", "tool-1", map[string]any{"path": "x.md"}))
		return CompilerOutcome{Kind: OutcomeApprovalRequired, InterruptID: "int-1", ToolName: "write_file", Message: "approve?"}, nil
	}
	return CompilerOutcome{Kind: OutcomeComplete, Result: map[string]any{"ok": true}, Message: "done"}, nil
}

func TestCompilerRunner_ApproveThenComplete(t *testing.T) {
	agent := &scriptedAgent{}
	r := NewCompilerRunner("user-1", "thread-1", agent)
	ch, _ := r.Run(context.Background(), "write the docs")

	// Wait for the approval request.
	var approval events.Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Kind() == events.KindHumanApprovalRequired {
				approval = e
			}
			if e.Kind() == events.KindComplete {
				t.Fatal("should not complete before resume")
			}
		case <-deadline:
			t.Fatal("timed out waiting for approval")
		}
		if approval != nil {
			break
		}
	}
	assert.Equal(t, StateAwaitingDecision, r.State())

	require.NoError(t, r.Resume(Decision{Approved: true}))

	evts := drain(t, ch, 2*time.Second)
	require.NotEmpty(t, evts)
	last := evts[len(evts)-1]
	assert.Equal(t, events.KindComplete, last.Kind())
	assert.Equal(t, StateComplete, r.State())
}

func TestCompilerRunner_SendMessageDuringAwaitingDecisionRejected(t *testing.T) {
	agent := &scriptedAgent{}
	r := NewCompilerRunner("user-1", "thread-1", agent)
	ch, _ := r.Run(context.Background(), "goal")

	for e := range ch {
		if e.Kind() == events.KindHumanApprovalRequired {
			break
		}
	}

	err := r.SendMessage("hello")
	require.Error(t, err)
	assert.True(t, verrors.Is(err, verrors.CategoryProtocol))

	// Unblock the worker so the goroutine doesn't leak past the test.
	require.NoError(t, r.Resume(Decision{Approved: true}))
	drain(t, ch, 2*time.Second)
}

func TestCompilerRunner_ResumeOutsideAwaitingDecisionRejected(t *testing.T) {
	agent := &scriptedAgent{}
	r := NewCompilerRunner("user-1", "thread-1", agent)
	err := r.Resume(Decision{Approved: true})
	require.Error(t, err)
	assert.True(t, verrors.Is(err, verrors.CategoryProtocol))
}

// rejectingAgent expects a rejection message fed back as a Message turn.
type rejectingAgent struct {
	sawRejectionFeedback bool
}

func (a *rejectingAgent) Act(ctx context.Context, threadID string, turn CompilerTurn, emit func(events.Event) bool) (CompilerOutcome, error) {
	if turn.Message != nil && *turn.Message == "revise the plan" {
		a.sawRejectionFeedback = true
		return CompilerOutcome{Kind: OutcomeComplete, Result: map[string]any{}, Message: "revised"}, nil
	}
	return CompilerOutcome{Kind: OutcomeApprovalRequired, InterruptID: "int-1", ToolName: "t", Message: "approve?"}, nil
}

func TestCompilerRunner_RejectFeedsBackMessage(t *testing.T) {
	agent := &rejectingAgent{}
	r := NewCompilerRunner("user-1", "thread-1", agent)
	ch, _ := r.Run(context.Background(), "goal")

	for e := range ch {
		if e.Kind() == events.KindHumanApprovalRequired {
			break
		}
	}
	require.NoError(t, r.Resume(Decision{Approved: false, Feedback: "revise the plan"}))
	drain(t, ch, 2*time.Second)
	assert.True(t, agent.sawRejectionFeedback)
}
