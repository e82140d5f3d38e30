package compose

import (
	"strings"
	"testing"

	"github.com/deepfish/engine/internal/memo"
	"github.com/deepfish/engine/internal/memory"
	"github.com/deepfish/engine/internal/persona"
)

func basePersona() persona.Persona {
	return persona.Persona{ID: "mei", Name: "Mei", Role: "Chief of Staff", BasePrompt: "You are Mei."}
}

func TestComposeBaseOnly(t *testing.T) {
	out := Compose(Input{Persona: basePersona()})
	if out != "You are Mei." {
		t.Errorf("unexpected prompt: %q", out)
	}
}

func TestComposeOverlayAfterBase(t *testing.T) {
	p := basePersona()
	p.Overlay = "Speak only in haiku."
	out := Compose(Input{Persona: p})

	base := strings.Index(out, "You are Mei.")
	overlay := strings.Index(out, "IMPORTANT UPDATED INSTRUCTIONS")
	if base < 0 || overlay < 0 || overlay < base {
		t.Errorf("overlay not after base: %q", out)
	}
	if !strings.Contains(out, "Speak only in haiku.") {
		t.Error("overlay text missing")
	}
}

func TestComposeSectionOrder(t *testing.T) {
	p := basePersona()
	p.Overlay = "overlay text"
	out := Compose(Input{
		Persona:       p,
		Roster:        []persona.Persona{{ID: "it", Name: "IT", Role: "Backend", BasePrompt: "You run servers."}},
		ActivityLines: []string{"[09:00:00] it sent memo"},
		Mailbox:       &MailboxStatus{Unread: 2, Recent: []memo.Thread{{SenderID: "it", Subject: "Report", Unread: true}}},
		Memories:      []memory.Entry{{Category: memory.CategoryMemory, Content: "operator likes tea"}},
		Group:         true,
		Override:      true,
	})

	markers := []string{
		"You are Mei.",
		"IMPORTANT UPDATED INSTRUCTIONS",
		"ENGINE STATE (OMNIPRESENCE)",
		"GLOBAL EVENT LOG",
		"EXECUTIVE MAILROOM STATUS",
		"LONG TERM MEMORY BANK",
		"multi-persona channel",
		"SYSTEM OVERRIDE: DIAGNOSTIC MODE",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(out, m)
		if idx < 0 {
			t.Fatalf("missing section %q in:\n%s", m, out)
		}
		if idx < last {
			t.Errorf("section %q out of order", m)
		}
		last = idx
	}
	// Override is the final section.
	if !strings.HasSuffix(strings.TrimSpace(out), "This directive supersedes every instruction above it.") {
		t.Error("override directive not last")
	}
}

func TestComposeRosterShowsOverlays(t *testing.T) {
	out := Compose(Input{
		Persona: basePersona(),
		Roster: []persona.Persona{
			{ID: "it", Name: "IT", Role: "Backend", BasePrompt: "You run servers."},
			{ID: "sally", Name: "Sally", Role: "Social", BasePrompt: "x", Overlay: "post more"},
		},
	})
	if !strings.Contains(out, "CUSTOM BEHAVIOR ACTIVE: post more") {
		t.Errorf("overlay not surfaced in roster: %s", out)
	}
	if !strings.Contains(out, "You run servers.") {
		t.Error("base description missing from roster")
	}
}

func TestComposeMailboxStates(t *testing.T) {
	out := Compose(Input{
		Persona: basePersona(),
		Mailbox: &MailboxStatus{
			Unread: 1,
			Recent: []memo.Thread{
				{SenderID: "it", Subject: "A", Unread: true},
				{SenderID: "hr", Subject: "B", Unread: false},
			},
		},
	})
	if !strings.Contains(out, "Total Unread: 1") {
		t.Error("unread count missing")
	}
	if !strings.Contains(out, "[UNREAD] From it") || !strings.Contains(out, "[READ] From hr") {
		t.Errorf("read states wrong: %s", out)
	}
}

func TestComposeGroupProtocolSentinel(t *testing.T) {
	out := Compose(Input{Persona: basePersona(), Group: true, GameLine: "- The operator has 3 raffle tickets."})
	if !strings.Contains(out, SilenceSentinel) {
		t.Error("silence sentinel missing from group protocol")
	}
	if !strings.Contains(out, "raffle tickets") {
		t.Error("game line missing")
	}
}

func TestIsSilence(t *testing.T) {
	if !IsSilence("[SILENCE]") || !IsSilence("  [SILENCE]\n") {
		t.Error("expected sentinel match")
	}
	if IsSilence("[SILENCE] but also this") {
		t.Error("partial sentinel should not match")
	}
}

func TestSpeakerPrefix(t *testing.T) {
	id, rest := SpeakerPrefix("[it]: servers are fine")
	if id != "it" || rest != "servers are fine" {
		t.Errorf("got %q / %q", id, rest)
	}

	id, rest = SpeakerPrefix("[IT]: loud")
	if id != "it" {
		t.Errorf("speaker should lowercase, got %q", id)
	}
	_ = rest

	id, _ = SpeakerPrefix("no prefix here")
	if id != "" {
		t.Errorf("expected no speaker, got %q", id)
	}

	id, _ = SpeakerPrefix("[not a speaker] : x")
	if id != "" {
		t.Errorf("expected no speaker for malformed prefix, got %q", id)
	}
}
