package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/events"
)

type fakeEditorAgent struct {
	results []EditorToolResult
}

func (a *fakeEditorAgent) Reply(ctx context.Context, threadID string, turn EditorTurnInput, emit func(events.Event) bool) (EditorTurnOutcome, error) {
	emit(events.NewToken("hello", true, true))
	return EditorTurnOutcome{ToolResults: a.results}, nil
}

func TestEditorRunner_StartIsIdempotent(t *testing.T) {
	agent := &fakeEditorAgent{}
	r := NewEditorRunner("user-1", "thread-1", agent, nil)
	r.Start("# Doc")
	r.Start("# Different, ignored")
	assert.Equal(t, "# Doc", r.documentContent)
}

func TestEditorRunner_SendMessage_DedupesChangeID(t *testing.T) {
	agent := &fakeEditorAgent{results: []EditorToolResult{
		{ToolName: "replace_text", ChangeID: "c1", ChangeType: "replace", ChangeData: map[string]any{}},
	}}
	r := NewEditorRunner("user-1", "thread-1", agent, nil)
	r.Start("# Doc")

	ch1 := r.SendMessage(context.Background(), EditorMessage{Text: "fix typo"})
	evts1 := drain(t, ch1, 2*time.Second)

	var pending int
	for _, e := range evts1 {
		if e.Kind() == events.KindPendingChange {
			pending++
		}
	}
	assert.Equal(t, 1, pending)

	// Same change_id delivered again via a second streaming mode: dropped.
	ch2 := r.SendMessage(context.Background(), EditorMessage{Text: "fix typo again"})
	evts2 := drain(t, ch2, 2*time.Second)
	for _, e := range evts2 {
		assert.NotEqual(t, events.KindPendingChange, e.Kind())
	}
}

func TestEditorRunner_ImageOversizeRejected(t *testing.T) {
	agent := &fakeEditorAgent{}
	big := make([]byte, MaxImageBytes+1)
	fetch := func(ref string) ([]byte, error) { return big, nil }
	r := NewEditorRunner("user-1", "thread-1", agent, fetch)
	r.Start("# Doc")

	ch := r.SendMessage(context.Background(), EditorMessage{Text: "look", ImageRef: "shot.png"})
	evts := drain(t, ch, 2*time.Second)
	require.Len(t, evts, 1)
	assert.Equal(t, events.KindError, evts[0].Kind())
	assert.True(t, evts[0].(events.Error).Recoverable)
}

func TestEditorRunner_ImageMissingRejected(t *testing.T) {
	agent := &fakeEditorAgent{}
	fetch := func(ref string) ([]byte, error) { return nil, assertErr }
	r := NewEditorRunner("user-1", "thread-1", agent, fetch)
	r.Start("# Doc")

	ch := r.SendMessage(context.Background(), EditorMessage{Text: "look", ImageRef: "missing.png"})
	evts := drain(t, ch, 2*time.Second)
	require.Len(t, evts, 1)
	assert.Equal(t, events.KindError, evts[0].Kind())
}

func TestOffsetToLine(t *testing.T) {
	content := "line1\nline2\nline3"
	assert.Equal(t, 1, offsetToLine(content, 0))
	assert.Equal(t, 2, offsetToLine(content, 6))
	assert.Equal(t, 3, offsetToLine(content, 12))
}

var assertErr = &simpleErr{"not found"}

type simpleErr struct{ msg string }

func (e *simpleErr) Error() string { return e.msg }
