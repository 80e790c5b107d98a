package docstore

import (
	"sync"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// runLocks is the process-wide advisory lock table spec.md §5 requires:
// "within a document, only one mutating run is permitted to execute
// concurrently... enforced by a per-document advisory lock at the store
// boundary." Keyed by the document's absolute directory so it stays
// correct across every Store instance, not just one user's.
var runLocks = struct {
	mu   sync.Mutex
	held map[string]bool
}{held: make(map[string]bool)}

// TryLock acquires docID's advisory lock for the duration of a mutating
// run (Pipeline/Compiler/Editor Runner execution). Callers must invoke the
// returned release exactly once, on every path, once the run ends. A
// second caller attempting to lock the same document before release gets
// verrors.Busy instead of interleaving with the first (spec.md §7: CONFLICT
// "write contention").
func (s *Store) TryLock(docID string) (release func(), err error) {
	key := s.docDir(docID)

	runLocks.mu.Lock()
	defer runLocks.mu.Unlock()
	if runLocks.held[key] {
		return nil, verrors.Busy(docID)
	}
	runLocks.held[key] = true
	return func() {
		runLocks.mu.Lock()
		delete(runLocks.held, key)
		runLocks.mu.Unlock()
	}, nil
}
