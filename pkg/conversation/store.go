// Package conversation keeps the rolling dialogue history for each session.
//
// History is appended one exchange at a time (a user turn plus the assistant
// turn that answered it) and truncated from the front, so the stored sequence
// is always whole exchanges: even in length and capped at the most recent
// turns. The store stripes sessions across independent locks; exchanges for
// one session serialize while unrelated sessions proceed in parallel.
package conversation

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// Role attributes a turn to a speaker.
type Role string

// Speaker roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DefaultCap keeps the last five exchanges.
const DefaultCap = 10

const shardCount = 16

type shard struct {
	mu        sync.Mutex
	histories map[string][]Turn
}

// Store holds per-session conversation history, keyed by session identifier.
type Store struct {
	cap    int
	shards [shardCount]*shard
}

// NewStore creates a Store that retains at most cap turns per session.
// cap must be positive and even so history always holds whole exchanges.
func NewStore(cap int) (*Store, error) {
	if cap <= 0 || cap%2 != 0 {
		return nil, fmt.Errorf("conversation: cap must be a positive even number, got %d", cap)
	}
	s := &Store{cap: cap}
	for i := range s.shards {
		s.shards[i] = &shard{histories: make(map[string][]Turn)}
	}
	return s, nil
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

// History returns a copy of the session's turns, oldest first.
// A session with no history yields an empty slice.
func (s *Store) History(id string) []Turn {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	turns := sh.histories[id]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append records one completed exchange, then truncates to the cap from the
// front so the oldest exchange drops first.
func (s *Store) Append(id, userText, assistantText string) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	turns := append(sh.histories[id],
		Turn{Role: RoleUser, Content: userText},
		Turn{Role: RoleAssistant, Content: assistantText},
	)
	if len(turns) > s.cap {
		turns = turns[len(turns)-s.cap:]
	}
	sh.histories[id] = turns
}

// Clear drops all history for the session.
func (s *Store) Clear(id string) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	delete(sh.histories, id)
	sh.mu.Unlock()
}
