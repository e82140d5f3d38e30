package transcript

import (
	"fmt"
	"sync"
	"testing"
)

func TestScopeAppendOrdering(t *testing.T) {
	sc := &Scope{ID: "scout", Kind: KindDirect}

	sc.Append(Entry{Role: RoleUser, Content: "hello"})
	sc.Append(Entry{Role: RolePersona, Speaker: "scout", Content: "hi"})

	entries := sc.History()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].SeqID != 1 || entries[1].SeqID != 2 {
		t.Errorf("expected seq 1,2 got %d,%d", entries[0].SeqID, entries[1].SeqID)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestScopeConcurrentAppend(t *testing.T) {
	sc := &Scope{ID: "group", Kind: KindGroup}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sc.Append(Entry{Role: RolePersona, Content: fmt.Sprintf("msg %d", n)})
		}(i)
	}
	wg.Wait()

	entries := sc.History()
	if len(entries) != 20 {
		t.Fatalf("expected 20 entries, got %d", len(entries))
	}
	seen := make(map[uint64]bool)
	for _, e := range entries {
		if seen[e.SeqID] {
			t.Errorf("duplicate seq %d", e.SeqID)
		}
		seen[e.SeqID] = true
	}
}

func TestScopeDialogueFiltersErrors(t *testing.T) {
	sc := &Scope{ID: "scout"}
	sc.Append(Entry{Role: RoleUser, Content: "do the thing"})
	sc.Append(Entry{Role: RoleSystem, Content: "gateway unreachable", IsError: true})
	sc.Append(Entry{Role: RoleTool, Tool: "send_memo", Content: "ok"})
	sc.Append(Entry{Role: RolePersona, Content: "done"})

	d := sc.Dialogue()
	if len(d) != 2 {
		t.Fatalf("expected 2 dialogue entries, got %d", len(d))
	}
	if d[0].Content != "do the thing" || d[1].Content != "done" {
		t.Errorf("unexpected dialogue: %+v", d)
	}
}

func TestLogScopeGetOrCreate(t *testing.T) {
	l := NewLog()
	a := l.Scope("scout", KindDirect)
	b := l.Scope("scout", KindDirect)
	if a != b {
		t.Error("expected same scope instance")
	}
	if l.Lookup("missing") != nil {
		t.Error("expected nil for unknown scope")
	}
}

func TestLogRestoreWholesale(t *testing.T) {
	l := NewLog()
	sc := l.Scope("scout", KindDirect)
	sc.Append(Entry{Role: RoleUser, Content: "old"})

	l.Restore(map[string][]Entry{
		"scout": {{SeqID: 7, Role: RoleUser, Content: "restored"}},
		"group": {{SeqID: 1, Role: RolePersona, Content: "from snapshot"}},
	}, map[string]string{"group": KindGroup})

	got := l.Lookup("scout").History()
	if len(got) != 1 || got[0].Content != "restored" {
		t.Errorf("scout not replaced: %+v", got)
	}
	// Sequence continues from the restored entries.
	seq := l.Lookup("scout").Append(Entry{Role: RoleUser, Content: "next"})
	if seq != 8 {
		t.Errorf("expected seq 8 after restore, got %d", seq)
	}

	g := l.Lookup("group")
	if g == nil || g.Kind != KindGroup {
		t.Fatalf("group scope not created from snapshot: %+v", g)
	}
}

func TestLogRestoreClearsAbsentScopes(t *testing.T) {
	l := NewLog()
	l.Scope("scout", KindDirect).Append(Entry{Role: RoleUser, Content: "x"})
	l.Restore(map[string][]Entry{}, nil)
	if n := l.Lookup("scout").Len(); n != 0 {
		t.Errorf("expected scout cleared, got %d entries", n)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	l := NewLog()
	l.Scope("scout", KindDirect).Append(Entry{Role: RoleUser, Content: "hello"})
	l.Scope("scout", KindDirect).Append(Entry{Role: RolePersona, Speaker: "scout", Content: "hi", TokensOut: 12})
	l.Scope("group", KindGroup).Append(Entry{Role: RolePersona, Speaker: "oracle", Content: "[oracle]: observing"})

	if err := store.Save(l); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(l.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ID != l.ID {
		t.Errorf("id mismatch: %s vs %s", loaded.ID, l.ID)
	}

	sc := loaded.Lookup("scout")
	if sc == nil || sc.Len() != 2 {
		t.Fatalf("scout scope not restored: %+v", sc)
	}
	if sc.History()[1].TokensOut != 12 {
		t.Error("token counts lost in round trip")
	}

	g := loaded.Lookup("group")
	if g == nil || g.Kind != KindGroup {
		t.Fatalf("group scope kind lost: %+v", g)
	}

	// Sequence counter resumes after load.
	if seq := sc.Append(Entry{Role: RoleUser, Content: "again"}); seq != 3 {
		t.Errorf("expected seq 3 after load, got %d", seq)
	}
}

func TestFileStoreList(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ids, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty list, got %v", ids)
	}

	l := NewLog()
	l.Scope("scout", KindDirect).Append(Entry{Role: RoleUser, Content: "x"})
	store.Save(l)

	ids, err = store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != l.ID {
		t.Errorf("expected [%s], got %v", l.ID, ids)
	}
}

func TestFeedBounded(t *testing.T) {
	f := NewFeed(3)
	for i := 0; i < 5; i++ {
		f.Record("scout", "sent memo", fmt.Sprintf("s%d", i))
	}
	items := f.Recent(0)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Subject != "s2" || items[2].Subject != "s4" {
		t.Errorf("unexpected window: %+v", items)
	}
}

func TestFeedLines(t *testing.T) {
	f := NewFeed(10)
	f.Record("scout", "replied", "")
	lines := f.Lines(5)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0] == "" {
		t.Error("empty line rendered")
	}
}
