package transcript

import (
	"fmt"
	"sync"
	"time"
)

// Feed is a bounded, append-only record of recent session activity,
// used to give personas situational awareness of what everyone else
// has been doing. Oldest items fall off once the cap is reached.
type Feed struct {
	mu    sync.Mutex
	items []FeedItem
	max   int
}

// FeedItem is one activity line.
type FeedItem struct {
	At      time.Time `json:"at"`
	Actor   string    `json:"actor"`
	Action  string    `json:"action"`
	Subject string    `json:"subject,omitempty"`
}

// NewFeed creates a feed keeping at most max items.
func NewFeed(max int) *Feed {
	if max <= 0 {
		max = 50
	}
	return &Feed{max: max}
}

// Record appends an activity line.
func (f *Feed) Record(actor, action, subject string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, FeedItem{At: time.Now(), Actor: actor, Action: action, Subject: subject})
	if len(f.items) > f.max {
		f.items = f.items[len(f.items)-f.max:]
	}
}

// Recent returns up to n most recent items, oldest first.
func (f *Feed) Recent(n int) []FeedItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || n > len(f.items) {
		n = len(f.items)
	}
	out := make([]FeedItem, n)
	copy(out, f.items[len(f.items)-n:])
	return out
}

// Restore replaces the feed contents wholesale, trimming to the cap.
func (f *Feed) Restore(items []FeedItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(items) > f.max {
		items = items[len(items)-f.max:]
	}
	f.items = append([]FeedItem(nil), items...)
}

// Lines renders up to n recent items as display strings, oldest first.
func (f *Feed) Lines(n int) []string {
	items := f.Recent(n)
	out := make([]string, len(items))
	for i, it := range items {
		if it.Subject != "" {
			out[i] = fmt.Sprintf("[%s] %s %s (%s)", it.At.Format("15:04:05"), it.Actor, it.Action, it.Subject)
		} else {
			out[i] = fmt.Sprintf("[%s] %s %s", it.At.Format("15:04:05"), it.Actor, it.Action)
		}
	}
	return out
}
