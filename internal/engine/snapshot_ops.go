package engine

import (
	"context"
	"fmt"

	"github.com/deepfish/engine/internal/memory"
	"github.com/deepfish/engine/internal/snapshot"
	"github.com/deepfish/engine/internal/transcript"
)

// Capture assembles the full engine state into a snapshot document.
func (e *Engine) Capture(ctx context.Context) (snapshot.Document, error) {
	scopes := e.log.Export()
	kinds := make(map[string]string)
	for _, s := range e.log.Scopes() {
		kinds[s.ID] = s.Kind
	}

	memories := make(map[string][]memory.Entry)
	for _, p := range e.registry.List() {
		entries, err := e.memory.List(ctx, p.ID)
		if err != nil {
			return snapshot.Document{}, fmt.Errorf("failed to export memories for %s: %w", p.ID, err)
		}
		if len(entries) > 0 {
			memories[p.ID] = entries
		}
	}

	return snapshot.New(snapshot.State{
		Personas:   e.registry.List(),
		Scopes:     scopes,
		ScopeKinds: kinds,
		Activity:   e.feed.Recent(0),
		Memos:      e.memos.Export(),
		Memories:   memories,
		Artifacts:  e.artifacts.Export(),
		Raffle:     e.raffle.Export(),
		Override:   e.Override(),
	}), nil
}

// Restore replaces every subsystem's state wholesale from a snapshot;
// state absent from the document is cleared, not merged. A deferred
// memo reply still pending stays scheduled and resolves its thread by
// id when the timer fires, so it lands if the thread survived the
// restore and is dropped silently if it did not.
func (e *Engine) Restore(ctx context.Context, doc snapshot.Document) error {
	st := doc.State

	e.registry.Replace(st.Personas)
	e.log.Restore(st.Scopes, st.ScopeKinds)
	e.feed.Restore(st.Activity)
	e.memos.Restore(st.Memos)
	e.artifacts.Restore(st.Artifacts)
	e.raffle.Restore(st.Raffle)
	e.mu.Lock()
	e.override = st.Override
	e.mu.Unlock()

	for _, p := range st.Personas {
		if err := e.memory.Replace(ctx, p.ID, st.Memories[p.ID]); err != nil {
			return fmt.Errorf("failed to restore memories for %s: %w", p.ID, err)
		}
	}

	e.feed.Record("operator", "restored session snapshot", doc.Meta.Timestamp.Format("2006-01-02 15:04"))
	return nil
}

// GroupScope returns the broadcast scope, creating it if needed.
func (e *Engine) GroupScope() *transcript.Scope {
	return e.log.Scope(GroupScopeID, transcript.KindGroup)
}
