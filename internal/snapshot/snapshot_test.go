package snapshot

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deepfish/engine/internal/memo"
	"github.com/deepfish/engine/internal/persona"
	"github.com/deepfish/engine/internal/transcript"
)

func sampleState() State {
	return State{
		Personas: []persona.Persona{{ID: "mei", Name: "Mei", BasePrompt: "You are Mei.", Overlay: "be terse"}},
		Scopes: map[string][]transcript.Entry{
			"mei": {{SeqID: 1, Role: transcript.RoleUser, Content: "hello"}},
		},
		ScopeKinds: map[string]string{"mei": transcript.KindDirect},
		Memos:      []memo.Thread{{ID: "t1", SenderID: "it", Subject: "Report", Status: memo.StatusActive}},
		Override:   true,
	}
}

func TestRoundTrip(t *testing.T) {
	doc := New(sampleState())
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Meta.Engine != EngineTag || got.Meta.Version != Version {
		t.Errorf("meta mismatch: %+v", got.Meta)
	}
	if len(got.State.Personas) != 1 || got.State.Personas[0].Overlay != "be terse" {
		t.Errorf("persona state lost: %+v", got.State.Personas)
	}
	if !got.State.Override {
		t.Error("override flag lost")
	}
	if len(got.State.Scopes["mei"]) != 1 {
		t.Errorf("scope entries lost: %+v", got.State.Scopes)
	}
}

func TestDecodeRejectsWrongEngine(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"meta":{"engine":"other-thing","version":1},"state":{}}`))
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"meta":{"engine":"deepfish-core","version":99},"state":{}}`))
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(strings.NewReader("not json at all"))
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	if err := WriteFile(path, New(sampleState())); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	doc, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(doc.State.Memos) != 1 || doc.State.Memos[0].Subject != "Report" {
		t.Errorf("memos lost: %+v", doc.State.Memos)
	}
}
