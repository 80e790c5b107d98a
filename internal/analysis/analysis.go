// Package analysis defines the boundary contract to the external
// large-model service that does the actual video analysis and text
// generation (spec.md §1: "explicitly OUT OF SCOPE ... treated as opaque
// staged functions with declared inputs/outputs"). This package owns only
// that contract and the stage functions that persist a Provider's output
// into the Document Store; it never implements vision or language-model
// inference itself.
package analysis

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/stubborncoder/vdocs/internal/blobstore"
	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/runner"
	"github.com/stubborncoder/vdocs/internal/verrors"
)

// Keyframe is one frame selected from the source video as a documentation
// screenshot candidate.
type Keyframe struct {
	SourcePath  string
	TimestampMs int64
	Caption     string
}

// AnalysisResult is the structured understanding of a video's content:
// a transcript-like narration plus the segment boundaries the generation
// stage composes into section headings.
type AnalysisResult struct {
	Summary  string
	Segments []string
}

// GeneratedDoc is one language's rendered documentation body plus the
// screenshots it references.
type GeneratedDoc struct {
	Language    string
	Markdown    string
	Screenshots []Keyframe
}

// Provider is the external collaborator contract: an LLM-backed service
// (or a local stand-in) that turns a video into documentation. Swap in a
// real implementation (e.g. a provider backed by an Anthropic or OpenAI
// client, configured via .env-sourced API keys per spec.md §6) without
// touching the Runner or Document Store.
type Provider interface {
	Analyze(ctx context.Context, videoPath string) (AnalysisResult, error)
	IdentifyKeyframes(ctx context.Context, videoPath string, analysis AnalysisResult) ([]Keyframe, error)
	Generate(ctx context.Context, videoPath string, analysis AnalysisResult, keyframes []Keyframe, languages []string) ([]GeneratedDoc, error)
}

// Stages builds the three Runner stage functions that call provider and
// persist its output through docs, following the same dependency-injection
// shape as every other Runner flavor: the pipeline stays ignorant of what
// Provider implementation is wired in.
func Stages(provider Provider, docs *docstore.Store) (analyze, identifyKeyframes, generate runner.StageFunc) {
	analyze = func(ctx context.Context, job runner.PipelineJob, state *runner.PipelineState) (map[string]any, error) {
		result, err := provider.Analyze(ctx, job.VideoPath)
		if err != nil {
			return nil, err
		}
		state.StageResults["__analysis"] = map[string]any{"result": result}
		return map[string]any{"segment_count": len(result.Segments)}, nil
	}

	identifyKeyframes = func(ctx context.Context, job runner.PipelineJob, state *runner.PipelineState) (map[string]any, error) {
		analysisResult, _ := state.StageResults["__analysis"]["result"].(AnalysisResult)
		keyframes, err := provider.IdentifyKeyframes(ctx, job.VideoPath, analysisResult)
		if err != nil {
			return nil, err
		}
		state.StageResults["__keyframes"] = map[string]any{"result": keyframes}
		return map[string]any{"keyframe_count": len(keyframes)}, nil
	}

	generate = func(ctx context.Context, job runner.PipelineJob, state *runner.PipelineState) (map[string]any, error) {
		analysisResult, _ := state.StageResults["__analysis"]["result"].(AnalysisResult)
		keyframes, _ := state.StageResults["__keyframes"]["result"].([]Keyframe)

		generated, err := provider.Generate(ctx, job.VideoPath, analysisResult, keyframes, job.Languages)
		if err != nil {
			return nil, err
		}

		var screenshotNames []string
		blobs, err := openBlobStore(docs, job.DocID)
		if err != nil {
			return nil, err
		}
		screenshotsDir := docs.ScreenshotsDir(job.DocID)
		if err := os.MkdirAll(screenshotsDir, 0o750); err != nil {
			return nil, verrors.IOError("mkdir screenshots dir", err)
		}
		for _, kf := range keyframes {
			if kf.SourcePath == "" {
				continue
			}
			if _, err := blobs.Store(kf.SourcePath); err != nil {
				return nil, err
			}
			name := filepath.Base(kf.SourcePath)
			if err := copyKeyframe(kf.SourcePath, filepath.Join(screenshotsDir, name)); err != nil {
				return nil, err
			}
			screenshotNames = append(screenshotNames, name)
		}

		for _, d := range generated {
			if err := docs.PutContent(job.DocID, d.Language, d.Markdown); err != nil {
				return nil, err
			}
		}

		state.Result = runner.PipelineResult{
			DocID:       job.DocID,
			DocPath:     docs.DocDir(job.DocID),
			Screenshots: screenshotNames,
			OutputDir:   docs.ScreenshotsDir(job.DocID),
		}
		return map[string]any{"languages": job.Languages}, nil
	}
	return
}

func openBlobStore(docs *docstore.Store, docID string) (*blobstore.Store, error) {
	return blobstore.Open(filepath.Join(docs.DocDir(docID), ".blob_store"))
}

// copyKeyframe materializes a keyframe image into the document's working
// screenshots/ directory so the Blob Store's next snapshot (auto-save
// before a version bump) actually has something to capture there; storing
// the bytes under .blob_store alone is not enough since Snapshot reads
// from the working directory, not the content-addressed store.
func copyKeyframe(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- src comes from the analysis Provider, a local collaborator
	if err != nil {
		return verrors.IOError("open keyframe source", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return verrors.IOError("create working screenshot", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return verrors.IOError("copy keyframe bytes", err)
	}
	return nil
}
