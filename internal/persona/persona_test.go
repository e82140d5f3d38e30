package persona

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryGetUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("ghost")
	if !errors.Is(err, ErrUnknownPersona) {
		t.Errorf("expected ErrUnknownPersona, got %v", err)
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(Persona{ID: "scout", Name: "Scout", BasePrompt: "you scout"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p, err := reg.Get("scout")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Name != "Scout" {
		t.Errorf("expected name Scout, got %s", p.Name)
	}
}

func TestRegistryReRegisterKeepsOverlay(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Persona{ID: "scout", BasePrompt: "v1"})
	if err := reg.SetOverlay("scout", "be terse"); err != nil {
		t.Fatalf("SetOverlay failed: %v", err)
	}

	// Roster reload: same ID, new base prompt, no overlay in the file.
	reg.Register(Persona{ID: "scout", BasePrompt: "v2"})

	p, _ := reg.Get("scout")
	if p.BasePrompt != "v2" {
		t.Errorf("expected base prompt v2, got %q", p.BasePrompt)
	}
	if p.Overlay != "be terse" {
		t.Errorf("expected overlay to survive reload, got %q", p.Overlay)
	}
}

func TestRegistryCreateDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Create(Persona{ID: "scout", BasePrompt: "x"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := reg.Create(Persona{ID: "scout", BasePrompt: "y"})
	if !errors.Is(err, ErrDuplicatePersona) {
		t.Errorf("expected ErrDuplicatePersona, got %v", err)
	}
}

func TestRegistrySetOverlayImmutableBase(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Persona{ID: "scout", BasePrompt: "base"})
	reg.SetOverlay("scout", "extra")

	p, _ := reg.Get("scout")
	if p.BasePrompt != "base" {
		t.Errorf("base prompt changed: %q", p.BasePrompt)
	}
	if p.Overlay != "extra" {
		t.Errorf("overlay not set: %q", p.Overlay)
	}
}

func TestRegistryRestoreOverlaysWholesale(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Persona{ID: "a", BasePrompt: "x"})
	reg.Register(Persona{ID: "b", BasePrompt: "y"})
	reg.SetOverlay("a", "old-a")
	reg.SetOverlay("b", "old-b")

	reg.RestoreOverlays(map[string]string{"a": "new-a"})

	pa, _ := reg.Get("a")
	pb, _ := reg.Get("b")
	if pa.Overlay != "new-a" {
		t.Errorf("expected new-a, got %q", pa.Overlay)
	}
	if pb.Overlay != "" {
		t.Errorf("expected b overlay cleared, got %q", pb.Overlay)
	}
}

func TestRegistryListOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Persona{ID: "c", BasePrompt: "x"})
	reg.Register(Persona{ID: "a", BasePrompt: "x"})
	reg.Register(Persona{ID: "b", BasePrompt: "x"})

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 personas, got %d", len(list))
	}
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, list[i].ID)
		}
	}
}

func TestPersonaPermits(t *testing.T) {
	p := Persona{ID: "x", PermittedTools: []string{"send_memo", "store_memory"}}
	if !p.Permits("send_memo") {
		t.Error("expected send_memo permitted")
	}
	if p.Permits("delegate") {
		t.Error("expected delegate denied")
	}

	empty := Persona{ID: "y"}
	if empty.Permits("send_memo") {
		t.Error("empty grant list should permit nothing")
	}
}

func TestLoadRoster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	content := `personas:
  - id: lead
    name: Lead
    base_prompt: "you are the lead"
    lead: true
    tools: [delegate, send_memo]
  - id: oracle
    base_prompt: "you observe"
    broadcast_only: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	roster, err := LoadRoster(path)
	if err != nil {
		t.Fatalf("LoadRoster failed: %v", err)
	}
	if len(roster.Personas) != 2 {
		t.Fatalf("expected 2 personas, got %d", len(roster.Personas))
	}
	if !roster.Personas[0].Lead {
		t.Error("expected lead flag")
	}
	if roster.Personas[1].Name != "oracle" {
		t.Errorf("expected name defaulted to id, got %q", roster.Personas[1].Name)
	}
	if !roster.Personas[1].BroadcastOnly {
		t.Error("expected broadcast_only flag")
	}
}

func TestLoadRosterRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	content := `personas:
  - id: a
    base_prompt: x
  - id: a
    base_prompt: y
`
	os.WriteFile(path, []byte(content), 0644)

	if _, err := LoadRoster(path); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestLoadRosterRejectsMissingBasePrompt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	os.WriteFile(path, []byte("personas:\n  - id: a\n"), 0644)

	if _, err := LoadRoster(path); err == nil {
		t.Error("expected missing base_prompt error")
	}
}
