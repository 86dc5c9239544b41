package memory

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/abstraction-ai/bastion/internal/agent"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore(time.Minute, zap.NewNop())

	s.Set("k", "v")
	got, ok := s.Get("k")
	if !ok || got != "v" {
		t.Errorf("Get = %v, %v", got, ok)
	}

	if _, ok := s.Get("absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestStore_Expiry(t *testing.T) {
	s := NewStore(time.Minute, zap.NewNop())

	s.SetTTL("short", "v", -time.Second) // already expired
	if _, ok := s.Get("short"); ok {
		t.Error("expired entry must be a miss")
	}

	// The lazy delete on lookup removes the entry entirely.
	if st := s.Stats(); st.Count != 0 {
		t.Errorf("count = %d after expired lookup", st.Count)
	}
}

func TestStore_Sweep(t *testing.T) {
	s := NewStore(time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		s.SetTTL(fmt.Sprintf("dead%d", i), i, -time.Second)
	}
	s.Set("alive", 1)

	if removed := s.Sweep(); removed != 3 {
		t.Errorf("swept %d entries, want 3", removed)
	}
	if _, ok := s.Get("alive"); !ok {
		t.Error("live entry removed by sweep")
	}
}

func TestStore_Stats(t *testing.T) {
	s := NewStore(time.Minute, zap.NewNop())

	s.Set("k", "v")
	s.Get("k")
	s.Get("k")
	s.Get("missing")

	st := s.Stats()
	if st.Hits != 2 || st.Misses != 1 || st.Count != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(time.Minute, zap.NewNop())

	s.Set("a", 1)
	s.Set("b", 2)
	s.Clear()

	if st := s.Stats(); st.Count != 0 {
		t.Errorf("count = %d after clear", st.Count)
	}
}

func TestStore_ConversationRoundTrip(t *testing.T) {
	s := NewStore(time.Minute, zap.NewNop())

	msgs := []agent.Message{
		{Role: "user", Content: "hello", Timestamp: time.Now()},
		{Role: "assistant", Content: "hi there", Timestamp: time.Now()},
	}
	s.SaveConversation("sess-1", msgs)

	conv, ok := s.LoadConversation("sess-1")
	if !ok {
		t.Fatal("conversation not found")
	}
	if conv.SessionID != "sess-1" {
		t.Errorf("session id = %q", conv.SessionID)
	}
	if len(conv.Messages) != 2 || conv.Messages[1].Content != "hi there" {
		t.Errorf("messages = %+v", conv.Messages)
	}

	if _, ok := s.LoadConversation("unknown"); ok {
		t.Error("expected miss for unknown session")
	}
}

func TestStore_ConversationKeepsCreatedAt(t *testing.T) {
	s := NewStore(time.Minute, zap.NewNop())

	s.SaveConversation("sess-2", []agent.Message{{Role: "user", Content: "one"}})
	first, _ := s.LoadConversation("sess-2")

	time.Sleep(5 * time.Millisecond)
	s.SaveConversation("sess-2", []agent.Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
	})

	second, _ := s.LoadConversation("sess-2")
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("CreatedAt must survive resave")
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Error("UpdatedAt must advance")
	}
}
