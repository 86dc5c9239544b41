// Package memory caches agent state and conversation history across runs.
package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/abstraction-ai/bastion/internal/agent"
)

// Conversations are kept this many times longer than ordinary cache entries.
const conversationTTLFactor = 7

// Conversation is the stored transcript of one session.
type Conversation struct {
	SessionID string
	Messages  []agent.Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a TTL-based in-memory cache. sync.Map keeps reads lock-free on
// the hot path; expired entries are dropped lazily on lookup and swept by
// Sweep, which the owner may call periodically.
type Store struct {
	entries sync.Map // map[string]*entry
	ttl     time.Duration
	logger  *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	value     any
	expiresAt time.Time
}

// NewStore creates a store whose entries expire after ttl.
func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	logger.Info("memory store initialized", zap.Duration("ttl", ttl))
	return &Store{ttl: ttl, logger: logger}
}

// Set stores value under key with the default TTL.
func (s *Store) Set(key string, value any) {
	s.SetTTL(key, value, s.ttl)
}

// SetTTL stores value under key with an explicit TTL.
func (s *Store) SetTTL(key string, value any, ttl time.Duration) {
	s.entries.Store(key, &entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	s.logger.Debug("cached key", zap.String("key", key))
}

// Get returns the value under key, or (nil, false) on a miss. An expired
// entry counts as a miss and is removed.
func (s *Store) Get(key string) (any, bool) {
	val, ok := s.entries.Load(key)
	if !ok {
		s.misses.Add(1)
		return nil, false
	}
	e := val.(*entry)
	if time.Now().After(e.expiresAt) {
		s.entries.Delete(key)
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return e.value, true
}

// Delete removes an entry.
func (s *Store) Delete(key string) {
	s.entries.Delete(key)
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.entries.Range(func(key, _ any) bool {
		s.entries.Delete(key)
		return true
	})
	s.logger.Info("memory store cleared")
}

// Sweep removes expired entries and returns how many were dropped.
func (s *Store) Sweep() int {
	now := time.Now()
	removed := 0
	s.entries.Range(func(key, val any) bool {
		if now.After(val.(*entry).expiresAt) {
			s.entries.Delete(key)
			removed++
		}
		return true
	})
	if removed > 0 {
		s.logger.Debug("swept expired entries", zap.Int("removed", removed))
	}
	return removed
}

// Stats reports cache counters.
type Stats struct {
	Count  int
	Hits   int64
	Misses int64
}

// Stats returns a point-in-time snapshot of the counters.
func (s *Store) Stats() Stats {
	count := 0
	s.entries.Range(func(_, _ any) bool {
		count++
		return true
	})
	return Stats{
		Count:  count,
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
}

func conversationKey(sessionID string) string {
	return "conversation:" + sessionID
}

// SaveConversation stores a session's transcript. Conversations outlive
// ordinary entries so a user can resume a session the next day.
func (s *Store) SaveConversation(sessionID string, messages []agent.Message) {
	now := time.Now()
	conv := Conversation{
		SessionID: sessionID,
		Messages:  append([]agent.Message(nil), messages...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev, ok := s.LoadConversation(sessionID); ok {
		conv.CreatedAt = prev.CreatedAt
	}
	s.SetTTL(conversationKey(sessionID), conv, s.ttl*conversationTTLFactor)
}

// LoadConversation returns a session's transcript if still cached.
func (s *Store) LoadConversation(sessionID string) (Conversation, bool) {
	val, ok := s.Get(conversationKey(sessionID))
	if !ok {
		return Conversation{}, false
	}
	conv, ok := val.(Conversation)
	return conv, ok
}
