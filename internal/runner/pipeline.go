package runner

import (
	"context"

	"github.com/stubborncoder/vdocs/internal/events"
)

// PipelineStages is the canonical stage order for the video-documentation
// pipeline (spec.md §4.7: "analyze, identify_keyframes, generate").
var PipelineStages = []string{"analyze", "identify_keyframes", "generate"}

// PipelineJob is the per-run input to the Pipeline Runner.
type PipelineJob struct {
	UserID    string
	DocID     string
	VideoPath string
	Languages []string
}

// PipelineResult is the Complete event's result mapping (spec.md §4.7:
// "doc_id, doc_path, screenshots, and the output directory").
type PipelineResult struct {
	DocID       string
	DocPath     string
	Screenshots []string
	OutputDir   string
}

func (r PipelineResult) toMap() map[string]any {
	return map[string]any{
		"doc_id":      r.DocID,
		"doc_path":    r.DocPath,
		"screenshots": r.Screenshots,
		"output_dir":  r.OutputDir,
	}
}

// StageFunc executes one pipeline stage. It returns stage-completion details
// to surface on the StageCompleted event.
type StageFunc func(ctx context.Context, job PipelineJob, state *PipelineState) (map[string]any, error)

// PipelineState accumulates stage outputs across a run; stage functions
// may read earlier stages' results from it.
type PipelineState struct {
	StageResults map[string]map[string]any
	Result       PipelineResult
}

func newPipelineState() *PipelineState {
	return &PipelineState{StageResults: make(map[string]map[string]any)}
}

// NamedStage pairs a stage name (as emitted on StageStarted/StageCompleted)
// with the function that executes it.
type NamedStage struct {
	Name string
	Fn   StageFunc
}

// DefaultPipelineStages wires PipelineStages' names to stage functions.
func DefaultPipelineStages(analyze, identifyKeyframes, generate StageFunc) []NamedStage {
	return []NamedStage{
		{Name: PipelineStages[0], Fn: analyze},
		{Name: PipelineStages[1], Fn: identifyKeyframes},
		{Name: PipelineStages[2], Fn: generate},
	}
}

// PipelineRunner drives a fixed staged pipeline to completion with no HITL
// and no follow-up messages (spec.md §4.7).
type PipelineRunner struct {
	userID string
	stages []NamedStage
}

// NewPipelineRunner constructs a Pipeline Runner for userID, driving stages
// in order.
func NewPipelineRunner(userID string, stages []NamedStage) *PipelineRunner {
	return &PipelineRunner{userID: userID, stages: stages}
}

// Run starts the pipeline on a worker goroutine and returns the bridged
// event stream. The returned cancel func implements spec.md §4.7's
// out-of-band cancellation signal.
func (r *PipelineRunner) Run(ctx context.Context, job PipelineJob) (<-chan events.Event, func()) {
	b := newBridge(16)
	total := len(r.stages)
	state := newPipelineState()

	b.start(func() {
		b.emit(events.NewStageStarted(r.stages[0].Name, 0, total))
		for i, stage := range r.stages {
			if ctxDone(ctx) || b.cancelled() {
				return
			}
			details, err := stage.Fn(ctx, job, state)
			if err != nil {
				b.emit(events.NewError(err.Error(), stage.Name, false))
				return
			}
			state.StageResults[stage.Name] = details
			if !b.emit(events.NewStageCompleted(stage.Name, i, total, details)) {
				return
			}
			if i+1 < total {
				if !b.emit(events.NewStageStarted(r.stages[i+1].Name, i+1, total)) {
					return
				}
			}
		}
		b.emit(events.NewComplete(state.Result.toMap(), "pipeline complete"))
	})

	return b.Events(), b.Cancel
}
