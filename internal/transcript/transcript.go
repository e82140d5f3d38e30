// Package transcript maintains ordered conversation records per scope and
// their JSONL persistence.
package transcript

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"
)

// Roles for transcript entries.
const (
	RoleUser    = "user"
	RolePersona = "persona"
	RoleSystem  = "system"
	RoleTool    = "tool"
)

// Scope kinds.
const (
	KindDirect = "direct" // one persona, one human
	KindGroup  = "group"  // broadcast channel, all personas
)

// Entry is a single transcript line. Error entries carry IsError and are
// excluded from the dialogue sent back to the model.
type Entry struct {
	SeqID     uint64                 `json:"seq"`
	Role      string                 `json:"role"`
	Speaker   string                 `json:"speaker,omitempty"` // persona ID for RolePersona entries
	Content   string                 `json:"content"`
	Image     []byte                 `json:"image,omitempty"` // attached payload, also on the asset bus
	IsError   bool                   `json:"is_error,omitempty"`
	Tool      string                 `json:"tool,omitempty"`
	Args      map[string]interface{} `json:"args,omitempty"`
	Thinking  string                 `json:"thinking,omitempty"`
	Model     string                 `json:"model,omitempty"`
	TokensIn  int                    `json:"tokens_in,omitempty"`
	TokensOut int                    `json:"tokens_out,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Scope is one ordered conversation. Appends are serialized and stamped
// with a monotonic sequence number; readers get copies.
type Scope struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Entries   []Entry   `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	seqCounter uint64
	mu         sync.Mutex
}

// Append adds an entry, assigning its sequence number and timestamp.
func (s *Scope) Append(e Entry) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.SeqID = atomic.AddUint64(&s.seqCounter, 1)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.Entries = append(s.Entries, e)
	s.UpdatedAt = time.Now()
	return e.SeqID
}

// History returns a copy of all entries in order.
func (s *Scope) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.Entries))
	copy(out, s.Entries)
	return out
}

// Dialogue returns entries suitable for a model context: error entries
// and tool traces are filtered out.
func (s *Scope) Dialogue() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.IsError || e.Role == RoleTool {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len returns the entry count.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Entries)
}

// replace swaps the scope's entries wholesale, resetting the sequence
// counter to the last restored entry.
func (s *Scope) replace(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = append([]Entry(nil), entries...)
	if len(entries) > 0 {
		atomic.StoreUint64(&s.seqCounter, entries[len(entries)-1].SeqID)
	} else {
		atomic.StoreUint64(&s.seqCounter, 0)
	}
	s.UpdatedAt = time.Now()
}

// Log holds every scope of a running session.
type Log struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex
	scopes map[string]*Scope
	order  []string
}

// NewLog creates an empty log with a fresh session ID.
func NewLog() *Log {
	return &Log{
		ID:        generateID(),
		CreatedAt: time.Now(),
		scopes:    make(map[string]*Scope),
	}
}

// Scope returns the named scope, creating it with the given kind on
// first use.
func (l *Log) Scope(id, kind string) *Scope {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.scopes[id]; ok {
		return s
	}
	s := &Scope{ID: id, Kind: kind, CreatedAt: time.Now()}
	l.scopes[id] = s
	l.order = append(l.order, id)
	return s
}

// Lookup returns the named scope or nil.
func (l *Log) Lookup(id string) *Scope {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scopes[id]
}

// Scopes returns all scopes in creation order.
func (l *Log) Scopes() []*Scope {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Scope, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.scopes[id])
	}
	return out
}

// Export captures every scope's entries for a snapshot.
func (l *Log) Export() map[string][]Entry {
	out := make(map[string][]Entry)
	for _, s := range l.Scopes() {
		out[s.ID] = s.History()
	}
	return out
}

// Restore replaces all scope contents wholesale. Scopes absent from the
// snapshot are cleared; scopes only in the snapshot are created as
// direct scopes unless named like a group channel.
func (l *Log) Restore(scopes map[string][]Entry, kinds map[string]string) {
	l.mu.Lock()
	existing := make([]*Scope, 0, len(l.order))
	for _, id := range l.order {
		existing = append(existing, l.scopes[id])
	}
	l.mu.Unlock()

	seen := make(map[string]bool)
	for _, s := range existing {
		s.replace(scopes[s.ID])
		seen[s.ID] = true
	}
	for id, entries := range scopes {
		if seen[id] {
			continue
		}
		kind := kinds[id]
		if kind == "" {
			kind = KindDirect
		}
		l.Scope(id, kind).replace(entries)
	}
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
