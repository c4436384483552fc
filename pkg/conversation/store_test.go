package conversation

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewStore_RejectsBadCap(t *testing.T) {
	for _, cap := range []int{0, -2, 3, 7} {
		if _, err := NewStore(cap); err == nil {
			t.Errorf("NewStore(%d): expected error", cap)
		}
	}
}

func TestHistory_EmptyForUnknownSession(t *testing.T) {
	s, _ := NewStore(DefaultCap)
	if got := s.History("nobody"); len(got) != 0 {
		t.Errorf("expected empty history, got %d turns", len(got))
	}
}

func TestAppend_OrdersTurns(t *testing.T) {
	s, _ := NewStore(DefaultCap)
	s.Append("s1", "hello", "hi there")

	turns := s.History("s1")
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "hello" {
		t.Errorf("unexpected user turn: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Content != "hi there" {
		t.Errorf("unexpected assistant turn: %+v", turns[1])
	}
}

func TestAppend_InvariantHolds(t *testing.T) {
	const cap = 6
	s, _ := NewStore(cap)

	for i := 0; i < 20; i++ {
		s.Append("s1", fmt.Sprintf("u%d", i), fmt.Sprintf("a%d", i))

		turns := s.History("s1")
		if len(turns) > cap {
			t.Fatalf("after append %d: history length %d exceeds cap %d", i, len(turns), cap)
		}
		if len(turns)%2 != 0 {
			t.Fatalf("after append %d: odd history length %d", i, len(turns))
		}
	}

	// The oldest exchanges were dropped; the newest survive in order.
	turns := s.History("s1")
	if turns[0].Content != "u17" || turns[len(turns)-1].Content != "a19" {
		t.Errorf("unexpected retained window: first=%q last=%q", turns[0].Content, turns[len(turns)-1].Content)
	}
}

func TestClear(t *testing.T) {
	s, _ := NewStore(DefaultCap)
	s.Append("s1", "hello", "hi")
	s.Clear("s1")

	if got := s.History("s1"); len(got) != 0 {
		t.Errorf("expected cleared history, got %d turns", len(got))
	}
}

func TestHistory_ReturnsCopy(t *testing.T) {
	s, _ := NewStore(DefaultCap)
	s.Append("s1", "hello", "hi")

	turns := s.History("s1")
	turns[0].Content = "mutated"

	if got := s.History("s1"); got[0].Content != "hello" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	s, _ := NewStore(DefaultCap)
	s.Append("a", "question a", "answer a")
	s.Append("b", "question b", "answer b")

	if got := s.History("a"); got[0].Content != "question a" {
		t.Errorf("session a sees wrong history: %+v", got)
	}
	if got := s.History("b"); got[0].Content != "question b" {
		t.Errorf("session b sees wrong history: %+v", got)
	}
}

func TestConcurrentAppends(t *testing.T) {
	s, _ := NewStore(DefaultCap)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		id := fmt.Sprintf("session-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Append(id, "u", "a")
				turns := s.History(id)
				if len(turns)%2 != 0 || len(turns) > DefaultCap {
					t.Errorf("%s: invariant violated, len=%d", id, len(turns))
					return
				}
			}
		}()
	}
	wg.Wait()
}
