package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once sync.Once

	stageDuration *prom.HistogramVec
	runDuration   *prom.HistogramVec
	stageResults  *prom.CounterVec
	runOutcomes   *prom.CounterVec
	queueDepth    *prom.GaugeVec
	blobStoreSize *prom.GaugeVec
	blobReclaimed prom.Counter
	hitlDecisions *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// Each call registers a fresh set of collectors, so calling it twice with
// the same registry panics on duplicate registration.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "vdocs",
			Name:      "runner_stage_duration_seconds",
			Help:      "Duration of individual runner stages",
			Buckets:   prom.DefBuckets,
		}, []string{"runner", "stage"})
		pr.runDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "vdocs",
			Name:      "runner_run_duration_seconds",
			Help:      "Total duration of a runner invocation",
			Buckets:   prom.DefBuckets,
		}, []string{"runner"})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "vdocs",
			Name:      "runner_stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"runner", "stage", "result"})
		pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "vdocs",
			Name:      "runner_run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"runner", "outcome"})
		pr.queueDepth = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "vdocs",
			Name:      "runner_queue_depth",
			Help:      "Current depth of the sync-to-async ProgressEvent queue",
		}, []string{"runner"})
		pr.blobStoreSize = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "vdocs",
			Name:      "blobstore_size_bytes",
			Help:      "Size in bytes of a document's blob store",
		}, []string{"doc_id"})
		pr.blobReclaimed = prom.NewCounter(prom.CounterOpts{
			Namespace: "vdocs",
			Name:      "blobstore_gc_reclaimed_total",
			Help:      "Total number of blobs reclaimed by garbage collection",
		})
		pr.hitlDecisions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "vdocs",
			Name:      "hitl_decisions_total",
			Help:      "HITL approval decisions by outcome",
		}, []string{"approved"})

		reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcomes,
			pr.queueDepth, pr.blobStoreSize, pr.blobReclaimed, pr.hitlDecisions)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(runnerKind, stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(runnerKind, stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(runnerKind string, d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(runnerKind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(runnerKind, stage string, result StageResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(runnerKind, stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(runnerKind string, outcome OutcomeLabel) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(runnerKind, string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(runnerKind string, depth int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.WithLabelValues(runnerKind).Set(float64(depth))
}

func (p *PrometheusRecorder) ObserveBlobStoreSize(docID string, bytes int64) {
	if p == nil || p.blobStoreSize == nil {
		return
	}
	p.blobStoreSize.WithLabelValues(docID).Set(float64(bytes))
}

func (p *PrometheusRecorder) IncBlobGCReclaimed(n int) {
	if p == nil || p.blobReclaimed == nil {
		return
	}
	p.blobReclaimed.Add(float64(n))
}

func (p *PrometheusRecorder) IncHITLDecision(approved bool) {
	if p == nil || p.hitlDecisions == nil {
		return
	}
	label := "false"
	if approved {
		label = "true"
	}
	p.hitlDecisions.WithLabelValues(label).Inc()
}
