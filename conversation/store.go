// Package conversation keeps a bounded window of recent turns per session.
package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultSessionID is used when a client does not send one.
const DefaultSessionID = "default"

// Turn is one answered question with the evidence it was answered from.
type Turn struct {
	Question  string
	Context   string
	Sources   []string
	Timestamp time.Time
}

// Session holds the rolling turn window of one client.
type Session struct {
	mu           sync.Mutex
	id           string
	turns        []Turn
	maxTurns     int
	contextChars int
	now          func() time.Time
}

func (s *Session) ID() string { return s.id }

// Add records a turn, truncating its context and de-duplicating sources.
// The oldest turn is evicted once the window is full.
func (s *Session) Add(question, context string, sources []string) {
	turn := Turn{
		Question:  question,
		Context:   truncateRunes(context, s.contextChars),
		Sources:   orderedSet(sources),
		Timestamp: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turn)
	if over := len(s.turns) - s.maxTurns; over > 0 {
		s.turns = append([]Turn(nil), s.turns[over:]...)
	}
}

// Recent returns up to n of the newest turns, oldest first.
func (s *Session) Recent(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || len(s.turns) == 0 {
		return nil
	}
	if n > len(s.turns) {
		n = len(s.turns)
	}
	out := make([]Turn, n)
	copy(out, s.turns[len(s.turns)-n:])
	return out
}

// HasRecent reports whether any turn is recorded.
func (s *Session) HasRecent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns) > 0
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

func (s *Session) Clear() {
	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()
}

// Summarize renders turns as the previous-context block of a follow-up prompt.
func Summarize(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, fmt.Sprintf("Previous Q: %s\nContext: %s...", t.Question, truncateRunes(t.Context, 200)))
	}
	return strings.Join(parts, "\n\n")
}

// Store maps session ids to sessions.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	maxTurns     int
	contextChars int
	now          func() time.Time
}

// NewStore creates a store whose sessions keep maxTurns turns and truncate
// each turn's context to contextChars runes.
func NewStore(maxTurns, contextChars int) *Store {
	if maxTurns <= 0 {
		maxTurns = 5
	}
	if contextChars <= 0 {
		contextChars = 1000
	}
	return &Store{
		sessions:     make(map[string]*Session),
		maxTurns:     maxTurns,
		contextChars: contextChars,
		now:          time.Now,
	}
}

// Get returns the session for id, creating it on first use.
func (st *Store) Get(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}

	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s
	}
	s = &Session{id: id, maxTurns: st.maxTurns, contextChars: st.contextChars, now: st.now}
	st.sessions[id] = s
	return s
}

// Reset clears one session's history.
func (st *Store) Reset(id string) {
	st.Get(id).Clear()
}

// ResetAll clears every session, used after deletions and full clears.
func (st *Store) ResetAll() {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, s := range st.sessions {
		s.Clear()
	}
}

// Count returns the number of known sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orderedSet(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
