// Package memory provides per-persona long-term memory storage.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Categories for stored memories.
const (
	CategoryActionable  = "actionable"  // tasks to surface later
	CategoryMemory      = "memory"      // facts and history
	CategoryReference   = "reference"   // data worth keeping verbatim
	CategoryPersonality = "personality" // operator preferences
)

// Entry is one remembered item, owned by a single persona. Trigger
// optionally records the context the memory should resurface in.
type Entry struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"persona_id"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	Trigger   string    `json:"trigger,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is an entry with a relevance score from search.
type Result struct {
	Entry
	Score float32 `json:"score"`
}

// Store is the interface for memory persistence.
type Store interface {
	// Append stores a new memory. Memories are never edited in place.
	Append(ctx context.Context, e Entry) (Entry, error)

	// List returns a persona's memories, oldest first.
	List(ctx context.Context, personaID string) ([]Entry, error)

	// Search ranks a persona's memories against a query.
	Search(ctx context.Context, personaID, query string, limit int) ([]Result, error)

	// Replace swaps a persona's memories wholesale, for snapshot restore.
	Replace(ctx context.Context, personaID string, entries []Entry) error

	Close() error
}

// InMemoryStore keeps memories in process memory. All data is lost when
// the process exits.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry // persona ID -> entries, append order
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]Entry)}
}

// Append stores a new memory.
func (s *InMemoryStore) Append(_ context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Category == "" {
		e.Category = CategoryMemory
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.entries[e.PersonaID] = append(s.entries[e.PersonaID], e)
	return e, nil
}

// List returns a persona's memories, oldest first.
func (s *InMemoryStore) List(_ context.Context, personaID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries[personaID]))
	copy(out, s.entries[personaID])
	return out, nil
}

// Search scores memories by query term overlap.
func (s *InMemoryStore) Search(_ context.Context, personaID, query string, limit int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}

	terms := tokenize(query)
	var results []Result
	for _, e := range s.entries[personaID] {
		score := overlapScore(terms, tokenize(e.Content))
		if score <= 0 {
			continue
		}
		results = append(results, Result{Entry: e, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Replace swaps a persona's memories wholesale.
func (s *InMemoryStore) Replace(_ context.Context, personaID string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[personaID] = append([]Entry(nil), entries...)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

func overlapScore(query, doc []string) float32 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	set := make(map[string]bool, len(doc))
	for _, t := range doc {
		set[t] = true
	}
	var hits int
	for _, t := range query {
		if set[t] {
			hits++
		}
	}
	return float32(hits) / float32(len(query))
}
