package usecase

import (
	"sync"

	"SigCast/internal/domain/models"
)

// attemptRegistry enforces the at-most-one-attempt invariant per
// (signal, account) pair. Begin claims the pair; the first caller wins and
// every later caller blocks until the winner finalizes, then receives the
// winner's attempt. This guards against concurrent double fan-out without
// ever placing a second exchange order.
type attemptRegistry struct {
	mu      sync.Mutex
	entries map[attemptKey]*attemptEntry
}

type attemptKey struct {
	signalID  string
	accountID string
}

type attemptEntry struct {
	done    chan struct{}
	attempt models.ExecutionAttempt
}

func newAttemptRegistry() *attemptRegistry {
	return &attemptRegistry{entries: make(map[attemptKey]*attemptEntry)}
}

// begin claims the (signal, account) pair. The second return is true when
// the caller owns the dispatch; otherwise the entry can be waited on for
// the owner's result.
func (r *attemptRegistry) begin(signalID, accountID string) (*attemptEntry, bool) {
	key := attemptKey{signalID: signalID, accountID: accountID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e, false
	}
	e := &attemptEntry{done: make(chan struct{})}
	r.entries[key] = e
	return e, true
}

// finalize publishes the owner's attempt and releases all waiters.
func (e *attemptEntry) finalize(a models.ExecutionAttempt) {
	e.attempt = a
	close(e.done)
}

// wait blocks until the owner finalizes and returns the recorded attempt.
func (e *attemptEntry) wait() models.ExecutionAttempt {
	<-e.done
	return e.attempt
}
