package analysis

import "context"

// StubProvider is a local, zero-dependency Provider used when no real
// LLM-backed provider is configured: it lets the Pipeline Runner run
// end-to-end (useful for dry runs and tests) without ever fabricating
// plausible-looking generated content.
type StubProvider struct{}

func (StubProvider) Analyze(ctx context.Context, videoPath string) (AnalysisResult, error) {
	return AnalysisResult{Summary: "no provider configured", Segments: nil}, nil
}

func (StubProvider) IdentifyKeyframes(ctx context.Context, videoPath string, analysis AnalysisResult) ([]Keyframe, error) {
	return nil, nil
}

func (StubProvider) Generate(ctx context.Context, videoPath string, analysis AnalysisResult, keyframes []Keyframe, languages []string) ([]GeneratedDoc, error) {
	docs := make([]GeneratedDoc, 0, len(languages))
	for _, lang := range languages {
		docs = append(docs, GeneratedDoc{
			Language: lang,
			Markdown: "# Untitled\n\nNo analysis provider configured; run with a real Provider to generate content.\n",
		})
	}
	return docs, nil
}
