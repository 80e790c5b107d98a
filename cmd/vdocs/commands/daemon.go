package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"github.com/stubborncoder/vdocs/internal/analysis"
	"github.com/stubborncoder/vdocs/internal/config"
	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/jobs"
	"github.com/stubborncoder/vdocs/internal/logging"
	"github.com/stubborncoder/vdocs/internal/metrics"
	"github.com/stubborncoder/vdocs/internal/projectstore"
	"github.com/stubborncoder/vdocs/internal/runner"
	"github.com/stubborncoder/vdocs/internal/scheduler"
	"github.com/stubborncoder/vdocs/internal/sharetoken"
	"github.com/stubborncoder/vdocs/internal/versioning"
	"github.com/stubborncoder/vdocs/internal/watcher"
	"github.com/stubborncoder/vdocs/internal/wsserver"
)

// DaemonCmd implements the 'daemon' command: it watches every user's
// videos/ directory for new source video, runs the Pipeline Runner on each
// one, serves a websocket endpoint (which relays no pipeline events; see
// handleStreamConn), and periodically sweeps the
// Doc/Compilation Version Stores and the Job Registry, grounded on
// cmd/docbuilder/commands/daemon.go's RunDaemon shape (signal-context,
// start-in-goroutine-with-error-channel, timed graceful Stop).
type DaemonCmd struct {
	DataDir string `short:"d" help:"Root data directory (overrides config data_dir)"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if d.DataDir != "" {
		cfg.DataDir = d.DataDir
	}
	return RunDaemon(cfg)
}

// RunDaemon starts the watcher, scheduler, Job Registry and streaming
// server, and blocks until SIGINT/SIGTERM or a fatal component error.
func RunDaemon(cfg *config.Config) error {
	logging.Setup(true, false)
	slog.Info("starting vdocs daemon", "data_dir", cfg.DataDir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry, err := jobs.Open(cfg.Jobs.DBPath, nil)
	if err != nil {
		return fmt.Errorf("open job registry: %w", err)
	}
	defer registry.Close()

	sched, err := scheduler.New()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	if err := scheduleGC(sched, cfg, registry); err != nil {
		return fmt.Errorf("schedule gc tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	usersRoot := filepath.Join(cfg.DataDir, "users")
	watchers, err := startWatchers(ctx, usersRoot, registry, recorder)
	if err != nil {
		return fmt.Errorf("start watchers: %w", err)
	}
	defer func() {
		for _, w := range watchers {
			w.Stop()
		}
	}()

	resolver, err := loadShareResolver(cfg, usersRoot)
	if err != nil {
		return fmt.Errorf("load share resolver: %w", err)
	}

	wsServer := wsserver.NewServer(cfg.Server.Addr, websocket.Handler(func(ws *websocket.Conn) {
		handleStreamConn(ws, cfg)
	}))
	wsServer.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	wsServer.Handle("/share/", shareHandler(resolver, usersRoot))
	if err := wsServer.Start(ctx); err != nil {
		return fmt.Errorf("start streaming server: %w", err)
	}

	slog.Info("daemon started, waiting for shutdown signal", "addr", cfg.Server.Addr)
	<-ctx.Done()
	slog.Info("shutdown signal received, stopping daemon")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := wsServer.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop streaming server: %w", err)
	}

	slog.Info("daemon stopped successfully")
	return nil
}

// startWatchers opens one watcher per existing user directory's videos/
// folder. New users (and therefore new watched directories) require a
// daemon restart; spec.md's CLI-first surface doesn't need live user
// provisioning.
func startWatchers(ctx context.Context, usersRoot string, registry *jobs.Registry, recorder metrics.Recorder) ([]*watcher.Watcher, error) {
	entries, err := os.ReadDir(usersRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var watchers []*watcher.Watcher
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		userID := e.Name()
		videosDir := filepath.Join(usersRoot, userID, "videos")
		if err := os.MkdirAll(videosDir, 0o750); err != nil {
			return nil, err
		}

		w, err := watcher.New(videosDir, onNewVideo(userID, usersRoot, registry, recorder))
		if err != nil {
			return nil, err
		}
		if err := w.Start(ctx); err != nil {
			return nil, err
		}
		watchers = append(watchers, w)
		slog.Info("watching for new videos", "user_id", userID, "dir", videosDir)
	}
	return watchers, nil
}

// onNewVideo enqueues a Job Registry entry and kicks off the Pipeline
// Runner in the background for every video the watcher reports settled.
func onNewVideo(userID, usersRoot string, registry *jobs.Registry, recorder metrics.Recorder) watcher.OnNewVideo {
	return func(ctx context.Context, videoPath string) error {
		jobID, err := registry.Create(ctx, userID, filepath.Base(videoPath))
		if err != nil {
			return err
		}

		docs := docstore.Open(filepath.Join(usersRoot, userID))
		analyze, identifyKeyframes, generate := analysis.Stages(analysis.StubProvider{}, docs)
		stages := runner.DefaultPipelineStages(analyze, identifyKeyframes, generate)
		r := runner.NewPipelineRunner(userID, stages)

		docDir, docID, err := docs.CreateDoc(videoPath, docstore.ConflictNew)
		if err != nil {
			_ = registry.MarkError(ctx, jobID, err.Error())
			return err
		}
		slog.Info("created document for watched video", "doc_id", docID, "dir", docDir)

		release, err := docs.TryLock(docID)
		if err != nil {
			_ = registry.MarkError(ctx, jobID, err.Error())
			return err
		}

		go runJobInBackground(r, registry, recorder, jobID, userID, docID, videoPath, release)
		return nil
	}
}

func runJobInBackground(r *runner.PipelineRunner, registry *jobs.Registry, recorder metrics.Recorder, jobID, userID, docID, videoPath string, release func()) {
	defer release()

	ctx := context.Background()
	ctx = logging.WithUserID(ctx, userID)
	ctx = logging.WithDocID(ctx, docID)
	ctx = logging.WithJobID(ctx, jobID)

	_ = registry.Update(ctx, jobID, jobs.Patch{Status: statusPtr(jobs.StatusProcessing)})
	logging.InfoContext(ctx, "pipeline job started", slog.String("video_path", videoPath))
	start := time.Now()

	evtCh, _ := r.Run(ctx, runner.PipelineJob{
		UserID:    userID,
		DocID:     docID,
		VideoPath: videoPath,
		Languages: []string{"en"},
	})

	for evt := range evtCh {
		if se, ok := evt.(events.StageStarted); ok {
			logging.InfoContext(logging.WithStage(ctx, se.StageName), "stage started")
		}
		if e, ok := evt.(events.Error); ok {
			recorder.ObserveRunDuration("pipeline", time.Since(start))
			recorder.IncRunOutcome("pipeline", metrics.OutcomeError)
			logging.ErrorContext(ctx, "pipeline job failed", slog.String("error", e.ErrorMessage))
			_ = registry.MarkError(ctx, jobID, e.ErrorMessage)
			return
		}
	}
	recorder.ObserveRunDuration("pipeline", time.Since(start))
	recorder.IncRunOutcome("pipeline", metrics.OutcomeComplete)
	logging.InfoContext(ctx, "pipeline job completed")
	_ = registry.MarkComplete(ctx, jobID, docID)
}

func statusPtr(s jobs.Status) *jobs.Status { return &s }

// loadShareResolver builds a sharetoken.Resolver warmed from every active
// share token already recorded in each document's and project's own
// metadata, so the daemon's public /share/ route resolves in one index
// lookup instead of the CLI's per-request metadata scan
// (internal/sharetoken/sharetoken.go's documented
// division of labor between the authoritative metadata record and the
// index that fronts it).
func loadShareResolver(cfg *config.Config, usersRoot string) (*sharetoken.Resolver, error) {
	var index sharetoken.Index
	if cfg.Sharing.NatsURL != "" {
		natsIdx, err := sharetoken.NewNatsIndex(cfg.Sharing.NatsURL, cfg.Sharing.NatsBucket)
		if err != nil {
			return nil, err
		}
		index = natsIdx
	} else {
		index = sharetoken.NewMemIndex()
	}
	resolver := sharetoken.NewResolver(index)

	entries, err := os.ReadDir(usersRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return resolver, nil
		}
		return nil, err
	}

	ctx := context.Background()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		userID := e.Name()
		userDir := filepath.Join(usersRoot, userID)

		docs := docstore.Open(userDir)
		docIDs, err := docs.ListDocs()
		if err == nil {
			for _, docID := range docIDs {
				meta, err := docs.GetMetadata(docID)
				if err != nil || meta == nil || meta.Share == nil {
					continue
				}
				entry := sharetoken.Entry{
					Token:    meta.Share.Token,
					UserID:   userID,
					Scope:    sharetoken.ScopeDocument,
					TargetID: docID,
					Language: meta.Share.Language,
				}
				if err := index.Put(ctx, entry); err != nil {
					slog.Warn("failed to warm share index", "doc_id", docID, "error", err)
				}
			}
		}

		projects := projectstore.Open(userDir)
		projectIDs, err := projects.ListProjects()
		if err == nil {
			for _, projectID := range projectIDs {
				p, err := projects.GetProject(projectID)
				if err != nil || p == nil || p.Share == nil {
					continue
				}
				entry := sharetoken.Entry{
					Token:    p.Share.Token,
					UserID:   userID,
					Scope:    sharetoken.ScopeProject,
					TargetID: projectID,
					Language: p.Share.Language,
				}
				if err := index.Put(ctx, entry); err != nil {
					slog.Warn("failed to warm share index", "project_id", projectID, "error", err)
				}
			}
		}
	}
	return resolver, nil
}

// shareHandler serves a resolved share token's document content, or a
// project's compiled manual_{language}.md, read-only,
// the public surface for spec.md §4.9's resolve_share operation.
func shareHandler(resolver *sharetoken.Resolver, usersRoot string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.URL.Path, "/share/")
		if token == "" {
			http.Error(w, "missing share token", http.StatusBadRequest)
			return
		}

		entry, ok, err := resolver.Resolve(r.Context(), token)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		userDir := filepath.Join(usersRoot, entry.UserID)
		var content string
		switch entry.Scope {
		case sharetoken.ScopeProject:
			projects := projectstore.Open(userDir)
			currentDir, err := versioning.NewCompilationStore().GetCurrentDirectory(projects.ProjectDir(entry.TargetID))
			if err != nil {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			data, err := os.ReadFile(filepath.Join(currentDir, fmt.Sprintf("manual_%s.md", entry.Language)))
			if err != nil {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			content = string(data)
		default:
			docs := docstore.Open(userDir)
			c, found := docs.GetContent(entry.TargetID, entry.Language)
			if !found {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			content = c
		}

		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(content))
	}
}

// handleStreamConn serves one websocket client. No Runner is bound to the
// connection: the event stream it relays is already closed, so the client
// receives no frames and the session ends at once, and any client message
// (start, decision or otherwise) is read and ignored.
func handleStreamConn(ws *websocket.Conn, cfg *config.Config) {
	empty := make(chan events.Event)
	close(empty)
	sess := wsserver.Session{
		Events: empty,
		OnClientMessage: func(raw []byte) error {
			return nil
		},
		Cancel: func() {},
	}
	if err := wsserver.Relay(ws, sess); err != nil {
		slog.Warn("stream session ended", "error", err)
	}
}

// scheduleGC registers the periodic Doc/Compilation Version Store GC and
// Job Registry cleanup sweeps described in spec.md §4.8/§9.
func scheduleGC(sched *scheduler.Scheduler, cfg *config.Config, registry *jobs.Registry) error {
	if cfg.Scheduler.BlobGCSchedule != "" {
		if _, err := sched.AddCron("version_gc", cfg.Scheduler.BlobGCSchedule, func(ctx context.Context) error {
			return gcAllVersionStores(cfg)
		}); err != nil {
			return err
		}
	}
	if cfg.Scheduler.JobGCSchedule != "" {
		olderThan := cfg.JobGCOlderThanDuration()
		if _, err := sched.AddCron("job_gc", cfg.Scheduler.JobGCSchedule, func(ctx context.Context) error {
			cutoff := time.Now().Add(-olderThan)
			n, err := registry.GC(ctx, cutoff)
			if err != nil {
				return err
			}
			slog.Info("job registry gc complete", "removed", n)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// gcAllVersionStores prunes old document and compilation versions beyond
// cfg.Versioning.CompilationKeepCount for every user/project on disk.
func gcAllVersionStores(cfg *config.Config) error {
	usersRoot := filepath.Join(cfg.DataDir, "users")
	entries, err := os.ReadDir(usersRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	keepCount := cfg.Versioning.CompilationKeepCount
	if keepCount <= 0 {
		keepCount = 10
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		userDir := filepath.Join(usersRoot, e.Name())
		docs := docstore.Open(userDir)
		docVersions := versioning.NewDocStore(docs)
		docIDs, err := docs.ListDocs()
		if err != nil {
			return err
		}
		for _, docID := range docIDs {
			if err := docVersions.GC(docID, keepCount); err != nil {
				slog.Warn("doc version gc failed", "doc_id", docID, "error", err)
			}
		}

		projects := projectstore.Open(userDir)
		comp := versioning.NewCompilationStore()
		projectIDs, err := projects.ListProjects()
		if err != nil {
			return err
		}
		for _, projectID := range projectIDs {
			if err := comp.GC(projects.ProjectDir(projectID), keepCount); err != nil {
				slog.Warn("compilation version gc failed", "project_id", projectID, "error", err)
			}
		}
	}
	return nil
}
