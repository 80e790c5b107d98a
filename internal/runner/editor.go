package runner

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/verrors"
)

// MaxImageBytes is the attachment size limit (spec.md §4.7: "enforces a
// 5 MiB limit").
const MaxImageBytes = 5 * 1024 * 1024

// textMutationTools are the tool names whose results carry a change_id
// the Editor Runner must translate into a PendingChange event.
var textMutationTools = map[string]bool{
	"replace_text":         true,
	"insert_text":          true,
	"delete_text":          true,
	"update_image_caption": true,
}

// ImageFetcher resolves a screenshot reference (as stored alongside a
// document) to its raw bytes.
type ImageFetcher func(ref string) ([]byte, error)

// Selection carries the user's current text selection; CharStart/CharEnd
// are 0-based character offsets into DocumentContent, translated to line
// numbers before being handed to the agent.
type Selection struct {
	Text       string
	CharStart  int
	CharEnd    int
}

// EditorMessage is one send_message call's payload (spec.md §4.7).
type EditorMessage struct {
	Text              string
	Selection         *Selection
	DocumentContent   *string
	ImageRef          string
}

// EditorToolResult is a raw tool result the agent framework surfaced,
// possibly duplicated across two streaming delivery modes (spec.md §9).
type EditorToolResult struct {
	ToolName   string
	ChangeID   string
	ChangeType string
	ChangeData map[string]any
}

// EditorTurnInput is what one EditorAgent turn receives.
type EditorTurnInput struct {
	DocumentContent string
	Message         EditorMessage
	SelectionLine   int // 0 if no selection
	ImageBase64     string
}

// EditorTurnOutcome is what one EditorAgent turn produced: streamed
// Token/ToolCall events plus any raw tool results to translate into
// PendingChange.
type EditorTurnOutcome struct {
	ToolResults []EditorToolResult
}

// EditorAgent is the conversational agent the Editor Runner drives.
type EditorAgent interface {
	Reply(ctx context.Context, threadID string, turn EditorTurnInput, emit func(events.Event) bool) (EditorTurnOutcome, error)
}

// EditorRunner drives a conversational agent that streams tokens and emits
// PendingChange events (spec.md §4.7).
type EditorRunner struct {
	userID   string
	threadID string
	agent    EditorAgent
	fetch    ImageFetcher

	mu              sync.Mutex
	started         bool
	documentContent string
	seenChangeIDs   map[string]bool
}

// NewEditorRunner constructs an Editor Runner.
func NewEditorRunner(userID, threadID string, agent EditorAgent, fetch ImageFetcher) *EditorRunner {
	return &EditorRunner{
		userID: userID, threadID: threadID, agent: agent, fetch: fetch,
		seenChangeIDs: make(map[string]bool),
	}
}

// Start initializes the session with the document's current content.
// Idempotent after the first call for this runner instance (spec.md §4.7):
// later calls are no-ops so a reconnecting client can't reset history.
func (r *EditorRunner) Start(documentContent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.documentContent = documentContent
}

// SendMessage processes one conversational turn, translating offsets to
// lines, fetching and size-checking any attached image, and deduping
// change_id-bearing tool results into PendingChange events.
func (r *EditorRunner) SendMessage(ctx context.Context, msg EditorMessage) <-chan events.Event {
	out := newBridge(16)

	r.mu.Lock()
	if msg.DocumentContent != nil {
		r.documentContent = *msg.DocumentContent
	}
	docContent := r.documentContent
	r.mu.Unlock()

	turn := EditorTurnInput{DocumentContent: docContent, Message: msg}

	if msg.Selection != nil {
		turn.SelectionLine = offsetToLine(docContent, msg.Selection.CharStart)
	}

	if msg.ImageRef != "" {
		data, err := r.fetch(msg.ImageRef)
		if err != nil {
			out.start(func() {
				out.emit(events.NewError(verrors.NotFound("screenshot", msg.ImageRef).Error(), "", true))
			})
			return out.Events()
		}
		if len(data) > MaxImageBytes {
			out.start(func() {
				out.emit(events.NewError("image exceeds the 5 MiB attachment limit", "", true))
			})
			return out.Events()
		}
		turn.ImageBase64 = base64.StdEncoding.EncodeToString(data)
	}

	out.start(func() {
		outcome, err := r.agent.Reply(ctx, r.threadID, turn, func(e events.Event) bool { return out.emit(e) })
		if err != nil {
			out.emit(events.NewError(err.Error(), "", true))
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, tr := range outcome.ToolResults {
			if !textMutationTools[tr.ToolName] {
				continue
			}
			if tr.ChangeID == "" || r.seenChangeIDs[tr.ChangeID] {
				continue
			}
			r.seenChangeIDs[tr.ChangeID] = true
			if !out.emit(events.NewPendingChange(tr.ChangeID, tr.ChangeType, tr.ChangeData)) {
				return
			}
		}
	})

	return out.Events()
}

// offsetToLine converts a 0-based character offset into a 1-based line
// number, generalizing the offset-to-line conversion the teacher performs
// for frontmatter-aware documents (internal/docmodel/line_mapping.go) to
// plain document content.
func offsetToLine(content string, offset int) int {
	if offset < 0 {
		offset = 0
	}
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}
