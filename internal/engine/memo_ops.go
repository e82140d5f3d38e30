package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepfish/engine/internal/compose"
	"github.com/deepfish/engine/internal/gateway"
	"github.com/deepfish/engine/internal/memo"
)

// OpenMemo marks a thread read and returns it.
func (e *Engine) OpenMemo(threadID string) (memo.Thread, error) {
	if err := e.memos.MarkRead(threadID); err != nil {
		return memo.Thread{}, err
	}
	return e.memos.Get(threadID)
}

// MarkMemoRead clears a thread's unread flag without returning it.
func (e *Engine) MarkMemoRead(threadID string) error {
	return e.memos.MarkRead(threadID)
}

// SetMemoStatus moves a thread between active, archived, and deleted.
// Deletion cancels any deferred reply still waiting on the thread.
func (e *Engine) SetMemoStatus(threadID, status string) error {
	if err := e.memos.SetStatus(threadID, status); err != nil {
		return err
	}
	if status == memo.StatusDeleted {
		e.sched.Cancel(threadID)
	}
	if t, err := e.memos.Get(threadID); err == nil {
		e.feed.Record("operator", "marked memo "+status, t.Subject)
	}
	return nil
}

// ReplyToMemo appends the operator's reply to a thread and schedules
// the sender's deferred response. Broadcast-only senders always answer
// with the canned acknowledgement; everyone else gets a real reply
// composed from the full thread history. Replying again before the
// timer fires replaces the pending response.
func (e *Engine) ReplyToMemo(ctx context.Context, threadID, body string) (memo.Thread, error) {
	t, err := e.memos.Append(threadID, memo.RoleUser, body)
	if err != nil {
		return memo.Thread{}, err
	}
	e.feed.Record("operator", "replied to memo", t.Subject)

	sender, senderErr := e.registry.Get(t.SenderID)
	if senderErr != nil || sender.BroadcastOnly {
		e.sched.Schedule(threadID, e.ackDelay, func() {
			e.appendMemoReply(threadID, memo.CannedAck)
		})
		return t, nil
	}

	e.sched.Schedule(threadID, e.replyDelay, func() {
		// Detached from the caller's context: the reply lands after
		// the operator's request has returned.
		reply, err := e.composeMemoReply(context.Background(), sender.ID, threadID)
		if err != nil {
			e.logger.Warn("memo reply failed", map[string]interface{}{
				"thread": threadID,
				"sender": sender.ID,
				"error":  err.Error(),
			})
			return
		}
		e.appendMemoReply(threadID, reply)
	})
	return t, nil
}

// appendMemoReply lands a deferred sender message on the thread and
// notifies the frontend. Threads deleted while the timer was pending
// drop the reply silently.
func (e *Engine) appendMemoReply(threadID, body string) {
	t, err := e.memos.Append(threadID, memo.RoleSender, body)
	if err != nil {
		return
	}
	e.feed.Record(t.SenderID, "replied to memo", t.Subject)
	if e.OnMemo != nil {
		e.OnMemo(t)
	}
	if p, err := e.registry.Get(t.SenderID); err == nil {
		e.speak(context.Background(), p, body)
	}
}

// composeMemoReply builds the sender's answer statelessly from the
// thread as it stands when the timer fires, so stacked operator
// replies are all visible to one response.
func (e *Engine) composeMemoReply(ctx context.Context, senderID, threadID string) (string, error) {
	p, err := e.registry.Get(senderID)
	if err != nil {
		return "", err
	}
	t, err := e.memos.Get(threadID)
	if err != nil {
		return "", err
	}

	var history []gateway.Turn
	history = append(history, gateway.Turn{
		Role: gateway.RoleUser,
		Content: fmt.Sprintf("You sent an executive memo titled %q:\n\n%s\n\nThe operator has replied. Continue the memo correspondence in character. Keep it brief and businesslike.",
			t.Subject, t.Body),
	})
	for _, m := range t.Messages {
		role := gateway.RoleUser
		if m.Role == memo.RoleSender {
			role = gateway.RoleAssistant
		}
		history = append(history, gateway.Turn{Role: role, Content: m.Body})
	}

	reply, err := e.gw.Converse(ctx, p.ModelRef, gateway.Request{
		System:  compose.Compose(compose.Input{Persona: p, Override: e.Override()}),
		History: history,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(reply.Text)
	if text == "" {
		return memo.CannedAck, nil
	}
	return text, nil
}
