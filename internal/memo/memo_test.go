package memo

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDeliverCreatesThread(t *testing.T) {
	s := NewStore()
	th, created := s.Deliver("it", "Server Report", "all systems nominal")
	if !created {
		t.Error("expected new thread")
	}
	if th.Status != StatusActive || !th.Unread {
		t.Errorf("unexpected thread state: %+v", th)
	}
	if th.Body != "all systems nominal" {
		t.Errorf("body lost: %q", th.Body)
	}
}

func TestDeliverSameSubjectAppends(t *testing.T) {
	s := NewStore()
	first, _ := s.Deliver("it", "Server Report", "v1")
	second, created := s.Deliver("it", "Server Report", "v2 update")

	if created {
		t.Error("expected append to existing thread, not a new one")
	}
	if second.ID != first.ID {
		t.Errorf("thread split: %s vs %s", second.ID, first.ID)
	}
	if len(second.Messages) != 1 || second.Messages[0].Body != "v2 update" {
		t.Errorf("message not appended: %+v", second.Messages)
	}
	if !second.Unread {
		t.Error("append should mark thread unread")
	}

	// Different sender with the same subject opens its own thread.
	_, created = s.Deliver("hr", "Server Report", "from hr")
	if !created {
		t.Error("same subject from different sender must be a new thread")
	}
}

func TestAppendAndMarkRead(t *testing.T) {
	s := NewStore()
	th, _ := s.Deliver("it", "Report", "body")

	if err := s.MarkRead(th.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(th.ID)
	if got.Unread {
		t.Error("expected read")
	}

	// Persona reply flips unread back on; user reply does not.
	s.Append(th.ID, RoleUser, "thanks")
	got, _ = s.Get(th.ID)
	if got.Unread {
		t.Error("user reply should not mark unread")
	}
	s.Append(th.ID, RoleSender, "you're welcome")
	got, _ = s.Get(th.ID)
	if !got.Unread {
		t.Error("persona reply should mark unread")
	}
}

func TestAppendUnknownThread(t *testing.T) {
	s := NewStore()
	_, err := s.Append("nope", RoleUser, "x")
	if !errors.Is(err, ErrUnknownThread) {
		t.Errorf("expected ErrUnknownThread, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	s := NewStore()
	th, _ := s.Deliver("it", "Report", "body")

	if err := s.SetStatus(th.ID, StatusArchived); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if err := s.SetStatus(th.ID, StatusActive); err != nil {
		t.Fatalf("unarchive failed: %v", err)
	}
	if err := s.SetStatus(th.ID, StatusDeleted); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	// Deleted is terminal.
	if err := s.SetStatus(th.ID, StatusActive); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition out of deleted, got %v", err)
	}
	if err := s.SetStatus(th.ID, "bogus"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for bogus status, got %v", err)
	}
}

func TestDeletedHiddenButKept(t *testing.T) {
	s := NewStore()
	th, _ := s.Deliver("it", "Report", "body")
	s.SetStatus(th.ID, StatusDeleted)

	if len(s.List()) != 0 {
		t.Error("deleted thread should be hidden from listings")
	}
	if s.UnreadCount() != 0 {
		t.Error("deleted thread should not count as unread")
	}
	// Soft delete: still fetchable and exported.
	if _, err := s.Get(th.ID); err != nil {
		t.Errorf("deleted thread should still resolve: %v", err)
	}
	if len(s.Export()) != 1 {
		t.Error("deleted thread should survive export")
	}

	// Same subject after delete opens a fresh thread.
	_, created := s.Deliver("it", "Report", "again")
	if !created {
		t.Error("delivery after delete should create a new thread")
	}
}

func TestUnreadCount(t *testing.T) {
	s := NewStore()
	a, _ := s.Deliver("it", "A", "x")
	s.Deliver("hr", "B", "y")
	if s.UnreadCount() != 2 {
		t.Errorf("expected 2 unread, got %d", s.UnreadCount())
	}
	s.MarkRead(a.ID)
	if s.UnreadCount() != 1 {
		t.Errorf("expected 1 unread, got %d", s.UnreadCount())
	}
}

func TestExportRestore(t *testing.T) {
	s := NewStore()
	th, _ := s.Deliver("it", "Report", "body")
	s.Append(th.ID, RoleUser, "reply")

	other := NewStore()
	other.Restore(s.Export())

	got, err := other.Get(th.ID)
	if err != nil {
		t.Fatalf("thread lost in restore: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Errorf("messages lost: %+v", got.Messages)
	}
	// Threading still idempotent after restore.
	_, created := other.Deliver("it", "Report", "more")
	if created {
		t.Error("expected append to restored thread")
	}
}

func TestSchedulerReplacesPendingTimer(t *testing.T) {
	sched := NewScheduler()
	defer sched.Close()

	var fired int32
	sched.Schedule("t1", 50*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	sched.Schedule("t1", 10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Errorf("expected exactly one firing, got %d", n)
	}
}

func TestSchedulerCancel(t *testing.T) {
	sched := NewScheduler()
	defer sched.Close()

	var fired int32
	sched.Schedule("t1", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	if !sched.Pending("t1") {
		t.Error("expected pending timer")
	}
	sched.Cancel("t1")
	if sched.Pending("t1") {
		t.Error("expected timer cancelled")
	}

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("cancelled timer fired")
	}
}

func TestSchedulerCloseStopsAll(t *testing.T) {
	sched := NewScheduler()
	var fired int32
	sched.Schedule("a", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	sched.Schedule("b", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	sched.Close()

	// Scheduling after close is a no-op.
	sched.Schedule("c", time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Errorf("timers fired after close: %d", fired)
	}
}

func TestPlantSeeds(t *testing.T) {
	store := NewStore()
	sched := NewScheduler()
	defer sched.Close()

	seeds := []Seed{
		{SenderID: "it", Subject: "Overnight Report", Body: "hello", Delay: 5 * time.Millisecond},
	}
	delivered := make(chan Thread, 1)
	PlantSeeds(store, sched, seeds, func(th Thread) { delivered <- th })

	select {
	case th := <-delivered:
		if th.Subject != "Overnight Report" {
			t.Errorf("unexpected seed: %+v", th)
		}
	case <-time.After(time.Second):
		t.Fatal("seed never delivered")
	}

	// Replanting skips subjects already present.
	PlantSeeds(store, sched, seeds, func(Thread) { t.Error("duplicate seed delivered") })
	time.Sleep(30 * time.Millisecond)
	if len(store.List()) != 1 {
		t.Errorf("expected 1 thread, got %d", len(store.List()))
	}
}
