package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/events"
)

func drain(t *testing.T, ch <-chan events.Event, timeout time.Duration) []events.Event {
	t.Helper()
	var out []events.Event
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-deadline:
			t.Fatal("timed out draining events")
		}
	}
}

func TestPipelineRunner_HappyPath(t *testing.T) {
	stages := DefaultPipelineStages(
		func(ctx context.Context, job PipelineJob, st *PipelineState) (map[string]any, error) {
			return map[string]any{"frames": 10}, nil
		},
		func(ctx context.Context, job PipelineJob, st *PipelineState) (map[string]any, error) {
			return map[string]any{"keyframes": 3}, nil
		},
		func(ctx context.Context, job PipelineJob, st *PipelineState) (map[string]any, error) {
			st.Result = PipelineResult{DocID: job.DocID, DocPath: "/docs/" + job.DocID, Screenshots: []string{"a.png"}, OutputDir: "/out"}
			return map[string]any{"generated": true}, nil
		},
	)
	r := NewPipelineRunner("user-1", stages)
	ch, _ := r.Run(context.Background(), PipelineJob{DocID: "doc-1"})

	evts := drain(t, ch, 2*time.Second)
	require.Len(t, evts, 7) // 3xStarted/Completed pairs + final Complete
	assert.Equal(t, events.KindStageStarted, evts[0].Kind())
	assert.Equal(t, events.KindComplete, evts[len(evts)-1].Kind())
	comp := evts[len(evts)-1].(events.Complete)
	assert.Equal(t, "doc-1", comp.Result["doc_id"])
}

func TestPipelineRunner_StageErrorIsTerminal(t *testing.T) {
	stages := DefaultPipelineStages(
		func(ctx context.Context, job PipelineJob, st *PipelineState) (map[string]any, error) {
			return nil, errors.New("boom")
		},
		func(ctx context.Context, job PipelineJob, st *PipelineState) (map[string]any, error) { return nil, nil },
		func(ctx context.Context, job PipelineJob, st *PipelineState) (map[string]any, error) { return nil, nil },
	)
	r := NewPipelineRunner("user-1", stages)
	ch, _ := r.Run(context.Background(), PipelineJob{DocID: "doc-1"})

	evts := drain(t, ch, 2*time.Second)
	last := evts[len(evts)-1]
	require.Equal(t, events.KindError, last.Kind())
	assert.True(t, events.IsTerminal(last))
	assert.False(t, last.(events.Error).Recoverable)
}
