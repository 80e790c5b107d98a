// Package metrics defines the observability hooks for runner stages, the
// queue bridge, and the blob store, with a Prometheus-backed implementation
// and a no-op fallback for when metrics are not configured.
package metrics

import "time"

// OutcomeLabel enumerates terminal run outcomes for counters.
type OutcomeLabel string

const (
	OutcomeComplete OutcomeLabel = "complete"
	OutcomeError    OutcomeLabel = "error"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// StageResultLabel enumerates per-stage result categories.
type StageResultLabel string

const (
	StageResultSuccess StageResultLabel = "success"
	StageResultError   StageResultLabel = "error"
)

// Recorder defines observability hooks for runners, the queue bridge, and
// the blob store. All methods must be safe to call on a nil-backed
// NoopRecorder so instrumentation is always optional.
type Recorder interface {
	ObserveStageDuration(runnerKind, stage string, d time.Duration)
	ObserveRunDuration(runnerKind string, d time.Duration)
	IncStageResult(runnerKind, stage string, result StageResultLabel)
	IncRunOutcome(runnerKind string, outcome OutcomeLabel)
	SetQueueDepth(runnerKind string, depth int)
	ObserveBlobStoreSize(docID string, bytes int64)
	IncBlobGCReclaimed(n int)
	IncHITLDecision(approved bool)
}

// NoopRecorder is a Recorder that does nothing; the default when metrics
// are not configured.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, string, time.Duration)  {}
func (NoopRecorder) ObserveRunDuration(string, time.Duration)            {}
func (NoopRecorder) IncStageResult(string, string, StageResultLabel)     {}
func (NoopRecorder) IncRunOutcome(string, OutcomeLabel)                  {}
func (NoopRecorder) SetQueueDepth(string, int)                          {}
func (NoopRecorder) ObserveBlobStoreSize(string, int64)                 {}
func (NoopRecorder) IncBlobGCReclaimed(int)                             {}
func (NoopRecorder) IncHITLDecision(bool)                               {}
