package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/runner"
)

func TestStages_StubProviderRunsPipelineEndToEnd(t *testing.T) {
	userDir := t.TempDir()
	docs := docstore.Open(userDir)
	_, docID, err := docs.CreateDoc("intro.mp4", docstore.ConflictNew)
	require.NoError(t, err)

	analyze, identifyKeyframes, generate := Stages(StubProvider{}, docs)
	stages := runner.DefaultPipelineStages(analyze, identifyKeyframes, generate)
	r := runner.NewPipelineRunner("user-1", stages)

	job := runner.PipelineJob{UserID: "user-1", DocID: docID, VideoPath: "intro.mp4", Languages: []string{"en"}}
	evtCh, _ := r.Run(context.Background(), job)
	for range evtCh {
	}

	content, ok := docs.GetContent(docID, "en")
	require.True(t, ok)
	assert.Contains(t, content, "Untitled")
}

func TestStages_GenerateCopiesKeyframeIntoBlobStore(t *testing.T) {
	userDir := t.TempDir()
	docs := docstore.Open(userDir)
	_, docID, err := docs.CreateDoc("demo.mov", docstore.ConflictNew)
	require.NoError(t, err)

	framePath := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(framePath, []byte("fake png bytes"), 0o640))

	provider := fixedKeyframeProvider{keyframe: Keyframe{SourcePath: framePath, Caption: "step 1"}}
	_, _, generate := Stages(provider, docs)

	state := &runner.PipelineState{StageResults: map[string]map[string]any{
		"__analysis":  {"result": AnalysisResult{}},
		"__keyframes": {"result": []Keyframe{provider.keyframe}},
	}}
	job := runner.PipelineJob{DocID: docID, VideoPath: "demo.mov", Languages: []string{"en"}}

	details, err := generate(context.Background(), job, state)
	require.NoError(t, err)
	assert.Equal(t, []string{"en"}, details["languages"])
	assert.Equal(t, []string{"frame.png"}, state.Result.Screenshots)

	blobEntries, err := os.ReadDir(filepath.Join(docs.DocDir(docID), ".blob_store"))
	require.NoError(t, err)
	assert.Len(t, blobEntries, 1)
}

type fixedKeyframeProvider struct {
	keyframe Keyframe
}

func (fixedKeyframeProvider) Analyze(ctx context.Context, videoPath string) (AnalysisResult, error) {
	return AnalysisResult{}, nil
}

func (p fixedKeyframeProvider) IdentifyKeyframes(ctx context.Context, videoPath string, a AnalysisResult) ([]Keyframe, error) {
	return []Keyframe{p.keyframe}, nil
}

func (fixedKeyframeProvider) Generate(ctx context.Context, videoPath string, a AnalysisResult, keyframes []Keyframe, languages []string) ([]GeneratedDoc, error) {
	docs := make([]GeneratedDoc, 0, len(languages))
	for _, lang := range languages {
		docs = append(docs, GeneratedDoc{Language: lang, Markdown: "# doc\n"})
	}
	return docs, nil
}
