// Package memo implements the executive memo inbox: threaded memos
// from personas, soft status transitions, and deferred replies.
package memo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Thread statuses. Deleted is terminal and soft: the thread stays in
// the store but is hidden from listings.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// Message roles within a thread.
const (
	RoleSender = "sender" // the persona that opened the thread
	RoleUser   = "user"   // the human operator
)

// CannedAck is appended when the human replies to a broadcast-only
// persona, which never answers.
const CannedAck = "[SYSTEM]: Transmission received. The void remains silent."

// ErrUnknownThread is returned for operations on a missing thread ID.
var ErrUnknownThread = errors.New("unknown memo thread")

// ErrInvalidTransition is returned for disallowed status changes.
var ErrInvalidTransition = errors.New("invalid memo status transition")

// Message is one entry in a memo thread.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Thread is one memo conversation, keyed by subject and sender.
type Thread struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"` // opening message
	Status    string    `json:"status"`
	Unread    bool      `json:"unread"`
	Messages  []Message `json:"messages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds all memo threads for a session.
type Store struct {
	mu      sync.Mutex
	threads map[string]*Thread
	order   []string
}

// NewStore creates an empty memo store.
func NewStore() *Store {
	return &Store{threads: make(map[string]*Thread)}
}

// Deliver files a memo from a persona. Sending again with the same
// subject and sender appends to the existing thread instead of opening
// a duplicate; either way the thread comes back marked unread.
func (s *Store) Deliver(senderID, subject, body string) (Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, id := range s.order {
		t := s.threads[id]
		if t.Status == StatusDeleted {
			continue
		}
		if t.Subject == subject && t.SenderID == senderID {
			t.Messages = append(t.Messages, Message{
				ID:        uuid.New().String(),
				Role:      RoleSender,
				Body:      body,
				Timestamp: now,
			})
			t.Unread = true
			t.UpdatedAt = now
			return *t, false
		}
	}

	t := &Thread{
		ID:        uuid.New().String(),
		SenderID:  senderID,
		Subject:   subject,
		Body:      body,
		Status:    StatusActive,
		Unread:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.threads[t.ID] = t
	s.order = append(s.order, t.ID)
	return *t, true
}

// Append adds a message to an existing thread. Messages from the
// thread's persona flip it back to unread. Deleted threads accept
// nothing, so a deferred reply pending at deletion time has nowhere
// to land.
func (s *Store) Append(threadID, role, body string) (Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return Thread{}, fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	if t.Status == StatusDeleted {
		return Thread{}, fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	now := time.Now()
	t.Messages = append(t.Messages, Message{
		ID:        uuid.New().String(),
		Role:      role,
		Body:      body,
		Timestamp: now,
	})
	if role == RoleSender {
		t.Unread = true
	}
	t.UpdatedAt = now
	return *t, nil
}

// Get returns a thread by ID, deleted ones included.
func (s *Store) Get(threadID string) (Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return Thread{}, fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	return *t, nil
}

// List returns non-deleted threads, most recently updated first.
func (s *Store) List() []Thread {
	return s.listWhere(func(t *Thread) bool { return t.Status != StatusDeleted })
}

// ListByStatus returns threads with the given status, most recently
// updated first.
func (s *Store) ListByStatus(status string) []Thread {
	return s.listWhere(func(t *Thread) bool { return t.Status == status })
}

func (s *Store) listWhere(keep func(*Thread) bool) []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Thread
	for _, id := range s.order {
		if t := s.threads[id]; keep(t) {
			out = append(out, *t)
		}
	}
	// Most recent activity first.
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// MarkRead clears a thread's unread flag.
func (s *Store) MarkRead(threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	t.Unread = false
	return nil
}

// UnreadCount returns the number of unread, non-deleted threads.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.threads {
		if t.Status != StatusDeleted && t.Unread {
			n++
		}
	}
	return n
}

// SetStatus transitions a thread. Active and archived swap freely;
// deleted is reachable from both and terminal.
func (s *Store) SetStatus(threadID, status string) error {
	if status != StatusActive && status != StatusArchived && status != StatusDeleted {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	if t.Status == StatusDeleted {
		return fmt.Errorf("%w: thread %s is deleted", ErrInvalidTransition, threadID)
	}
	t.Status = status
	return nil
}

// Export captures all threads for a snapshot, deleted ones included.
func (s *Store) Export() []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Thread, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.threads[id])
	}
	return out
}

// Restore replaces all threads wholesale.
func (s *Store) Restore(threads []Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string]*Thread, len(threads))
	s.order = s.order[:0]
	for _, t := range threads {
		cp := t
		s.threads[t.ID] = &cp
		s.order = append(s.order, t.ID)
	}
}
