package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deepfish/engine/internal/memo"
)

// memoRuntime wires a runtime for inbox work: no speech, no bridge.
func (f *memoFlags) memoRuntime() (*runtime, error) {
	rt, err := newRuntime(f.Config, f.Roster, f.Snapshot)
	if err != nil {
		return nil, err
	}
	rt.disableSpeech()
	rt.cfg.Bridge.Enabled = false
	if err := rt.setup(); err != nil {
		rt.cleanup()
		return nil, err
	}
	return rt, nil
}

// resolveThread matches a thread by ID prefix.
func resolveThread(rt *runtime, prefix string) (memo.Thread, error) {
	var matches []memo.Thread
	for _, t := range rt.eng.Memos().List() {
		if strings.HasPrefix(t.ID, prefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return memo.Thread{}, fmt.Errorf("no thread matching %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return memo.Thread{}, fmt.Errorf("thread prefix %q is ambiguous (%d matches)", prefix, len(matches))
	}
}

// Run lists memo threads.
func (c *MemoListCmd) Run() error {
	rt, err := c.memoRuntime()
	if err != nil {
		return err
	}
	defer rt.cleanup()

	status := memo.StatusActive
	if c.Archived {
		status = memo.StatusArchived
	}
	threads := rt.eng.Memos().ListByStatus(status)
	if len(threads) == 0 {
		fmt.Println("inbox empty")
		return nil
	}
	for _, t := range threads {
		marker := " "
		if t.Unread {
			marker = "*"
		}
		fmt.Printf("%s %s  %-10s %s  (%s)\n",
			marker, t.ID[:8], t.SenderID, t.Subject, t.UpdatedAt.Format("Jan 2 15:04"))
	}
	return nil
}

// Run prints one thread and marks it read.
func (c *MemoReadCmd) Run() error {
	rt, err := c.memoRuntime()
	if err != nil {
		return err
	}
	defer rt.cleanup()

	t, err := resolveThread(rt, c.Thread)
	if err != nil {
		return err
	}
	t, err = rt.eng.OpenMemo(t.ID)
	if err != nil {
		return err
	}

	fmt.Printf("From: %s\nSubject: %s\nDate: %s\n\n%s\n",
		t.SenderID, t.Subject, t.CreatedAt.Format(time.RFC1123), t.Body)
	for _, m := range t.Messages {
		who := t.SenderID
		if m.Role == memo.RoleUser {
			who = "you"
		}
		fmt.Printf("\n--- %s, %s ---\n%s\n", who, m.Timestamp.Format("Jan 2 15:04"), m.Body)
	}
	return rt.persist(context.Background())
}

// Run replies to a thread and waits for the sender's response.
func (c *MemoReplyCmd) Run() error {
	rt, err := c.memoRuntime()
	if err != nil {
		return err
	}
	defer rt.cleanup()

	t, err := resolveThread(rt, c.Thread)
	if err != nil {
		return err
	}

	replied := make(chan memo.Thread, 1)
	rt.eng.OnMemo = func(t memo.Thread) {
		select {
		case replied <- t:
		default:
		}
	}

	ctx := context.Background()
	if _, err := rt.eng.ReplyToMemo(ctx, t.ID, c.Message); err != nil {
		return err
	}
	fmt.Println("reply sent, waiting for response...")

	select {
	case got := <-replied:
		last := got.Messages[len(got.Messages)-1]
		fmt.Printf("\n[%s]: %s\n", got.SenderID, last.Body)
	case <-time.After(30 * time.Second):
		fmt.Println("no response yet; it will be in the thread next time")
	}
	return rt.persist(ctx)
}

// Run archives a thread.
func (c *MemoArchiveCmd) Run() error {
	return c.setStatus(c.Thread, memo.StatusArchived)
}

// Run deletes a thread.
func (c *MemoDeleteCmd) Run() error {
	return c.setStatus(c.Thread, memo.StatusDeleted)
}

func (f *memoFlags) setStatus(prefix, status string) error {
	rt, err := f.memoRuntime()
	if err != nil {
		return err
	}
	defer rt.cleanup()

	t, err := resolveThread(rt, prefix)
	if err != nil {
		return err
	}
	if err := rt.eng.SetMemoStatus(t.ID, status); err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", status, t.Subject)
	return rt.persist(context.Background())
}
