// Package session tracks the lifecycle of live conversation sessions.
//
// The Registry is the only owner of session state. Connection handlers hold
// session identifiers, never the records themselves, so no handler can
// corrupt another session's bookkeeping. Records are kept across shards with
// independent locks so unrelated sessions never contend.
package session

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const shardCount = 16

// Session holds the lifecycle metadata for one conversation.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	Active       bool
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Registry tracks sessions. All methods are safe for concurrent use and
// never block on I/O.
type Registry struct {
	shards [shardCount]*shard
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return r.shards[h.Sum32()%shardCount]
}

// Create registers a new session and returns its identifier.
// Identifiers are random UUIDs and are never reused.
func (r *Registry) Create() string {
	id := uuid.NewString()
	now := time.Now()

	s := r.shardFor(id)
	s.mu.Lock()
	s.sessions[id] = &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Active:       true,
	}
	s.mu.Unlock()
	return id
}

// Touch updates the session's last-activity time. Unknown ids are a no-op.
func (r *Registry) Touch(id string) {
	s := r.shardFor(id)
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.LastActivity = time.Now()
	}
	s.mu.Unlock()
}

// End marks the session inactive. Idempotent; unknown ids are a no-op.
func (r *Registry) End(id string) {
	s := r.shardFor(id)
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.Active = false
	}
	s.mu.Unlock()
}

// Get returns a copy of the session record, if present.
func (r *Registry) Get(id string) (Session, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return *sess, true
	}
	return Session{}, false
}

// ActiveCount returns the number of sessions currently marked active.
func (r *Registry) ActiveCount() int {
	count := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, sess := range s.sessions {
			if sess.Active {
				count++
			}
		}
		s.mu.RUnlock()
	}
	return count
}

// Sweep removes inactive sessions whose inactivity exceeds maxAge.
// Returns the identifiers of the removed sessions so callers can release
// any per-session state they key on them.
func (r *Registry) Sweep(maxAge time.Duration) []string {
	cutoff := time.Now().Add(-maxAge)
	var removed []string
	for _, s := range r.shards {
		s.mu.Lock()
		for id, sess := range s.sessions {
			if !sess.Active && sess.LastActivity.Before(cutoff) {
				delete(s.sessions, id)
				removed = append(removed, id)
			}
		}
		s.mu.Unlock()
	}
	return removed
}
