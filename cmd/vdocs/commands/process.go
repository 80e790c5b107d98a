package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/stubborncoder/vdocs/internal/analysis"
	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/runner"
)

// ProcessCmd runs the Pipeline Runner on a video file end to end, printing
// each ProgressEvent to stdout as it arrives.
type ProcessCmd struct {
	VideoPath string   `arg:"" help:"Path to the source video file"`
	Languages []string `short:"l" help:"Target languages for generated documentation" default:"en"`
}

func (p *ProcessCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	userDir := filepath.Join(cfg.DataDir, "users", root.UserID)
	docs := docstore.Open(userDir)

	docDir, docID, err := docs.CreateDoc(p.VideoPath, docstore.ConflictNew)
	if err != nil {
		return err
	}
	fmt.Printf("Created document %s at %s\n", docID, docDir)

	release, err := docs.TryLock(docID)
	if err != nil {
		return err
	}
	defer release()

	analyze, identifyKeyframes, generate := analysis.Stages(analysis.StubProvider{}, docs)
	stages := runner.DefaultPipelineStages(analyze, identifyKeyframes, generate)
	r := runner.NewPipelineRunner(root.UserID, stages)

	job := runner.PipelineJob{
		UserID:    root.UserID,
		DocID:     docID,
		VideoPath: p.VideoPath,
		Languages: p.Languages,
	}

	ctx := context.Background()
	evtCh, _ := r.Run(ctx, job)

	for evt := range evtCh {
		printEvent(evt)
		if e, ok := evt.(events.Error); ok {
			return fmt.Errorf("stage %s failed: %s", e.StageName, e.ErrorMessage)
		}
	}
	return nil
}

func printEvent(evt events.Event) {
	frame := events.ToFrame(evt)
	var fields []string
	for k, v := range frame.Data {
		fields = append(fields, fmt.Sprintf("%s=%v", k, v))
	}
	fmt.Printf("[%s] %s\n", frame.EventType, strings.Join(fields, " "))
}
