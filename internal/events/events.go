// Package events defines the tagged ProgressEvent variants a Runner emits
// (spec.md §4.6) and the wire frame adapters serialize them into.
package events

import "time"

// Kind tags a ProgressEvent's concrete variant for dispatch by adapters.
type Kind string

const (
	KindStageStarted           Kind = "stage_started"
	KindStageCompleted         Kind = "stage_completed"
	KindToken                  Kind = "token"
	KindToolCall               Kind = "tool_call"
	KindPendingChange          Kind = "pending_change"
	KindHumanApprovalRequired  Kind = "human_approval_required"
	KindError                  Kind = "error"
	KindComplete               Kind = "complete"
)

// Event is implemented by every ProgressEvent variant. Adapters dispatch on
// Kind() rather than a single untyped map (spec.md §9).
type Event interface {
	Kind() Kind
	OccurredAt() time.Time
}

type base struct {
	At time.Time
}

// OccurredAt implements Event.
func (b base) OccurredAt() time.Time { return b.At }

func newBase() base { return base{At: time.Now()} }

// StageStarted is emitted before a pipeline stage begins.
type StageStarted struct {
	base
	StageName string
	Index     int
	Total     int
}

// Kind implements Event.
func (StageStarted) Kind() Kind { return KindStageStarted }

// NewStageStarted constructs a StageStarted event.
func NewStageStarted(stageName string, index, total int) StageStarted {
	return StageStarted{base: newBase(), StageName: stageName, Index: index, Total: total}
}

// StageCompleted is emitted when a stage finishes successfully.
type StageCompleted struct {
	base
	StageName string
	Index     int
	Total     int
	Details   map[string]any
}

// Kind implements Event.
func (StageCompleted) Kind() Kind { return KindStageCompleted }

// NewStageCompleted constructs a StageCompleted event.
func NewStageCompleted(stageName string, index, total int, details map[string]any) StageCompleted {
	return StageCompleted{base: newBase(), StageName: stageName, Index: index, Total: total, Details: details}
}

// Token is one delta from a streaming text generator.
type Token struct {
	base
	Token   string
	IsFirst bool
	IsLast  bool
}

// Kind implements Event.
func (Token) Kind() Kind { return KindToken }

// NewToken constructs a Token event.
func NewToken(token string, isFirst, isLast bool) Token {
	return Token{base: newBase(), Token: token, IsFirst: isFirst, IsLast: isLast}
}

// ToolCall is emitted when the agent commits a tool invocation.
type ToolCall struct {
	base
	ToolName  string
	ToolID    string
	Arguments map[string]any
}

// Kind implements Event.
func (ToolCall) Kind() Kind { return KindToolCall }

// NewToolCall constructs a ToolCall event.
func NewToolCall(toolName, toolID string, arguments map[string]any) ToolCall {
	return ToolCall{base: newBase(), ToolName: toolName, ToolID: toolID, Arguments: arguments}
}

// PendingChange is emitted when the agent proposes an editable change.
type PendingChange struct {
	base
	ChangeID   string
	ChangeType string
	ChangeData map[string]any
}

// Kind implements Event.
func (PendingChange) Kind() Kind { return KindPendingChange }

// NewPendingChange constructs a PendingChange event.
func NewPendingChange(changeID, changeType string, changeData map[string]any) PendingChange {
	return PendingChange{base: newBase(), ChangeID: changeID, ChangeType: changeType, ChangeData: changeData}
}

// HumanApprovalRequired pauses execution awaiting a decision.
type HumanApprovalRequired struct {
	base
	InterruptID string
	ToolName    string
	ToolArgs    map[string]any
	Message     string
}

// Kind implements Event.
func (HumanApprovalRequired) Kind() Kind { return KindHumanApprovalRequired }

// NewHumanApprovalRequired constructs a HumanApprovalRequired event.
func NewHumanApprovalRequired(interruptID, toolName string, toolArgs map[string]any, message string) HumanApprovalRequired {
	return HumanApprovalRequired{base: newBase(), InterruptID: interruptID, ToolName: toolName, ToolArgs: toolArgs, Message: message}
}

// Error is a terminal or recoverable failure.
type Error struct {
	base
	ErrorMessage string
	StageName    string
	Recoverable  bool
}

// Kind implements Event.
func (Error) Kind() Kind { return KindError }

// NewError constructs an Error event.
func NewError(message, stageName string, recoverable bool) Error {
	return Error{base: newBase(), ErrorMessage: message, StageName: stageName, Recoverable: recoverable}
}

// Complete is the terminal success event.
type Complete struct {
	base
	Result  map[string]any
	Message string
}

// Kind implements Event.
func (Complete) Kind() Kind { return KindComplete }

// NewComplete constructs a Complete event.
func NewComplete(result map[string]any, message string) Complete {
	return Complete{base: newBase(), Result: result, Message: message}
}

// IsTerminal reports whether e ends the event stream for a run (spec.md
// §8 property 6: exactly one terminal event, and it is the last one).
func IsTerminal(e Event) bool {
	switch e.(type) {
	case Error, Complete:
		return true
	default:
		return false
	}
}

// Frame is the wire representation of a ProgressEvent (spec.md §6):
// { "event_type": ..., "timestamp": <float seconds>, "data": {...} }.
type Frame struct {
	EventType string         `json:"event_type"`
	Timestamp float64        `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// ToFrame converts an Event into its wire Frame.
func ToFrame(e Event) Frame {
	ts := float64(e.OccurredAt().UnixNano()) / 1e9
	data := map[string]any{}
	switch v := e.(type) {
	case StageStarted:
		data["stage_name"] = v.StageName
		data["index"] = v.Index
		data["total"] = v.Total
	case StageCompleted:
		data["stage_name"] = v.StageName
		data["index"] = v.Index
		data["total"] = v.Total
		data["details"] = v.Details
	case Token:
		data["token"] = v.Token
		data["is_first"] = v.IsFirst
		data["is_last"] = v.IsLast
	case ToolCall:
		data["tool_name"] = v.ToolName
		data["tool_id"] = v.ToolID
		data["arguments"] = v.Arguments
	case PendingChange:
		data["change_id"] = v.ChangeID
		data["change_type"] = v.ChangeType
		data["change_data"] = v.ChangeData
	case HumanApprovalRequired:
		data["interrupt_id"] = v.InterruptID
		data["tool_name"] = v.ToolName
		data["tool_args"] = v.ToolArgs
		data["message"] = v.Message
	case Error:
		data["error_message"] = v.ErrorMessage
		if v.StageName != "" {
			data["stage_name"] = v.StageName
		}
		data["recoverable"] = v.Recoverable
	case Complete:
		data["result"] = v.Result
		data["message"] = v.Message
	}
	return Frame{EventType: string(e.Kind()), Timestamp: ts, Data: data}
}
