package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	calls []Status
}

func (f *fakeNotifier) PublishJobCompleted(jobID, userID string, status Status) error {
	f.calls = append(f.calls, status)
	return nil
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	jobID, err := r.Create(ctx, "user-1", "intro.mp4")
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	jobs, err := r.ListForUser(ctx, "user-1", nil, true)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusPending, jobs[0].Status)
	assert.False(t, jobs[0].Seen)
}

func TestRegistry_UpdateWhitelistedFields(t *testing.T) {
	r, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	jobID, err := r.Create(ctx, "user-1", "intro.mp4")
	require.NoError(t, err)

	stage := "analyze"
	idx := 1
	status := StatusProcessing
	require.NoError(t, r.Update(ctx, jobID, Patch{Status: &status, CurrentStage: &stage, StageIndex: &idx}))

	jobs, err := r.ListForUser(ctx, "user-1", nil, true)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusProcessing, jobs[0].Status)
	assert.Equal(t, "analyze", jobs[0].CurrentStage)
	assert.Equal(t, 1, jobs[0].StageIndex)
}

func TestRegistry_MarkCompleteNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	r, err := Open(":memory:", notifier)
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	jobID, err := r.Create(ctx, "user-1", "intro.mp4")
	require.NoError(t, err)
	require.NoError(t, r.MarkComplete(ctx, jobID, "doc-1"))

	jobs, err := r.ListForUser(ctx, "user-1", nil, true)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusComplete, jobs[0].Status)
	assert.Equal(t, "doc-1", jobs[0].DocID)
	require.NotNil(t, jobs[0].CompletedAt)
	assert.Equal(t, []Status{StatusComplete}, notifier.calls)
}

func TestRegistry_MarkError(t *testing.T) {
	r, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	jobID, err := r.Create(ctx, "user-1", "intro.mp4")
	require.NoError(t, err)
	require.NoError(t, r.MarkError(ctx, jobID, "boom"))

	jobs, err := r.ListForUser(ctx, "user-1", nil, true)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusError, jobs[0].Status)
	assert.Equal(t, "boom", jobs[0].Error)
}

func TestRegistry_ActiveForUser(t *testing.T) {
	r, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	j1, err := r.Create(ctx, "user-1", "a.mp4")
	require.NoError(t, err)
	j2, err := r.Create(ctx, "user-1", "b.mp4")
	require.NoError(t, err)
	require.NoError(t, r.MarkComplete(ctx, j2, "doc-2"))

	active, err := r.ActiveForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, j1, active[0].JobID)
}

func TestRegistry_GCDeletesOldTerminalJobs(t *testing.T) {
	r, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	jobID, err := r.Create(ctx, "user-1", "a.mp4")
	require.NoError(t, err)
	require.NoError(t, r.MarkComplete(ctx, jobID, "doc-1"))

	n, err := r.GC(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	jobs, err := r.ListForUser(ctx, "user-1", nil, true)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestRegistry_UpdateUnknownJobReturnsNotFound(t *testing.T) {
	r, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer r.Close()

	status := StatusProcessing
	err = r.Update(context.Background(), "missing", Patch{Status: &status})
	assert.Error(t, err)
}
