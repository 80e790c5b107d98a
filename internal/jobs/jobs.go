// Package jobs implements the Job Registry (spec.md §4.8): a small
// sqlite-backed table tracking background pipeline runs that outlive a
// single session, grounded on internal/eventstore/sqlite.go's schema and
// mutex-guarded *sql.DB idiom.
package jobs

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// Status is a Job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Job is one Job Registry row.
type Job struct {
	JobID       string
	UserID      string
	VideoName   string
	Status      Status
	CurrentStage string
	StageIndex  int
	TotalStages int
	DocID       string
	Error       string
	Seen        bool
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Notifier publishes cross-replica job-completion notices (spec.md's
// original-source-recovered NATS fan-out). A nil Notifier is a valid,
// fully-functional configuration: the seen flag alone remains the
// single-process source of truth.
type Notifier interface {
	PublishJobCompleted(jobID, userID string, status Status) error
}

// Registry is the Job Registry, backed by a single *sql.DB guarded by a
// mutex for writes (eventstore.SQLiteStore's idiom).
type Registry struct {
	db       *sql.DB
	mu       sync.Mutex
	notifier Notifier
}

// Open opens or creates the sqlite-backed registry at dbPath (":memory:"
// is valid for tests).
func Open(dbPath string, notifier Notifier) (*Registry, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, verrors.DependencyErrorTerminal("sqlite", err)
	}
	r := &Registry{db: db, notifier: notifier}
	if err := r.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		video_name TEXT NOT NULL,
		status TEXT NOT NULL,
		current_stage TEXT,
		stage_index INTEGER NOT NULL DEFAULT 0,
		total_stages INTEGER NOT NULL DEFAULT 0,
		doc_id TEXT,
		error TEXT,
		seen INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_user_status ON jobs(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_jobs_user_seen_started ON jobs(user_id, seen, started_at);
	`
	_, err := r.db.Exec(schema)
	if err != nil {
		return verrors.Internal("create jobs schema", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (r *Registry) Close() error { return r.db.Close() }

// Create inserts a new pending job and returns its generated job_id.
func (r *Registry) Create(ctx context.Context, userID, videoName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobID := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (job_id, user_id, video_name, status, stage_index, total_stages, seen, started_at)
		 VALUES (?, ?, ?, ?, 0, 0, 0, ?)`,
		jobID, userID, videoName, StatusPending, time.Now().Unix(),
	)
	if err != nil {
		return "", verrors.Internal("insert job", err)
	}
	return jobID, nil
}

// Patch whitelists the job fields update() may mutate (spec.md §4.8).
type Patch struct {
	Status       *Status
	CurrentStage *string
	StageIndex   *int
	TotalStages  *int
	DocID        *string
	Error        *string
	CompletedAt  *time.Time
	Seen         *bool
}

// Update applies a whitelisted patch to a job.
func (r *Registry) Update(ctx context.Context, jobID string, patch Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sets := []string{}
	args := []any{}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.CurrentStage != nil {
		sets = append(sets, "current_stage = ?")
		args = append(args, *patch.CurrentStage)
	}
	if patch.StageIndex != nil {
		sets = append(sets, "stage_index = ?")
		args = append(args, *patch.StageIndex)
	}
	if patch.TotalStages != nil {
		sets = append(sets, "total_stages = ?")
		args = append(args, *patch.TotalStages)
	}
	if patch.DocID != nil {
		sets = append(sets, "doc_id = ?")
		args = append(args, *patch.DocID)
	}
	if patch.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, *patch.Error)
	}
	if patch.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, patch.CompletedAt.Unix())
	}
	if patch.Seen != nil {
		sets = append(sets, "seen = ?")
		args = append(args, boolToInt(*patch.Seen))
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE jobs SET " + joinSets(sets) + " WHERE job_id = ?"
	args = append(args, jobID)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return verrors.Internal("update job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return verrors.Internal("update job rows affected", err)
	}
	if n == 0 {
		return verrors.NotFound("job", jobID)
	}
	return nil
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// MarkComplete sets status=complete, doc_id, and completed_at=now, and
// fires the (optional) cross-replica notification.
func (r *Registry) MarkComplete(ctx context.Context, jobID, docID string) error {
	now := time.Now()
	status := StatusComplete
	if err := r.Update(ctx, jobID, Patch{Status: &status, DocID: &docID, CompletedAt: &now}); err != nil {
		return err
	}
	r.notify(jobID, status)
	return nil
}

// MarkError sets status=error, error=msg, and completed_at=now.
func (r *Registry) MarkError(ctx context.Context, jobID, msg string) error {
	now := time.Now()
	status := StatusError
	if err := r.Update(ctx, jobID, Patch{Status: &status, Error: &msg, CompletedAt: &now}); err != nil {
		return err
	}
	r.notify(jobID, status)
	return nil
}

func (r *Registry) notify(jobID string, status Status) {
	if r.notifier == nil {
		return
	}
	job, err := r.get(context.Background(), jobID)
	if err != nil || job == nil {
		return
	}
	_ = r.notifier.PublishJobCompleted(jobID, job.UserID, status)
}

func (r *Registry) get(ctx context.Context, jobID string) (*Job, error) {
	rows, err := r.db.QueryContext(ctx, jobSelectCols+" WHERE job_id = ?", jobID)
	if err != nil {
		return nil, verrors.Internal("query job", err)
	}
	defer rows.Close()
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

const jobSelectCols = `SELECT job_id, user_id, video_name, status, current_stage, stage_index, total_stages, doc_id, error, seen, started_at, completed_at FROM jobs`

// ListForUser returns jobs for userID, optionally filtered by status, in
// started_at order (spec.md §4.8).
func (r *Registry) ListForUser(ctx context.Context, userID string, status *Status, includeSeen bool) ([]*Job, error) {
	query := jobSelectCols + " WHERE user_id = ?"
	args := []any{userID}
	if status != nil {
		query += " AND status = ?"
		args = append(args, string(*status))
	}
	if !includeSeen {
		query += " AND seen = 0"
	}
	query += " ORDER BY started_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, verrors.Internal("list jobs for user", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ActiveForUser returns jobs in pending or processing state for userID.
func (r *Registry) ActiveForUser(ctx context.Context, userID string) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx,
		jobSelectCols+" WHERE user_id = ? AND status IN (?, ?) ORDER BY started_at",
		userID, string(StatusPending), string(StatusProcessing),
	)
	if err != nil {
		return nil, verrors.Internal("list active jobs", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// GC deletes terminal (complete/error) jobs whose completed_at predates
// cutoff (spec.md §4.8).
func (r *Registry) GC(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		string(StatusComplete), string(StatusError), cutoff.Unix(),
	)
	if err != nil {
		return 0, verrors.Internal("gc jobs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, verrors.Internal("gc jobs rows affected", err)
	}
	return n, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var out []*Job
	for rows.Next() {
		var j Job
		var status string
		var currentStage, docID, errMsg sql.NullString
		var startedAtUnix int64
		var completedAtUnix sql.NullInt64
		var seenInt int

		if err := rows.Scan(&j.JobID, &j.UserID, &j.VideoName, &status, &currentStage,
			&j.StageIndex, &j.TotalStages, &docID, &errMsg, &seenInt, &startedAtUnix, &completedAtUnix); err != nil {
			return nil, verrors.Internal("scan job row", err)
		}
		j.Status = Status(status)
		j.CurrentStage = currentStage.String
		j.DocID = docID.String
		j.Error = errMsg.String
		j.Seen = seenInt != 0
		j.StartedAt = time.Unix(startedAtUnix, 0)
		if completedAtUnix.Valid {
			t := time.Unix(completedAtUnix.Int64, 0)
			j.CompletedAt = &t
		}
		out = append(out, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, verrors.Internal("iterate job rows", err)
	}
	return out, nil
}
