package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/deepfish/engine/internal/persona"
	"github.com/deepfish/engine/internal/snapshot"
)

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	if err != nil {
		t.Fatalf("kong.New failed: %v", err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		t.Fatalf("parse %v failed: %v", args, err)
	}
	return &cli, ctx
}

func TestParseRun(t *testing.T) {
	cli, ctx := parseCLI(t, "run", "--roster", "team.yaml", "--no-speech", "--override")
	if ctx.Command() != "run" {
		t.Errorf("unexpected command %q", ctx.Command())
	}
	if cli.Run.Roster != "team.yaml" || !cli.Run.NoSpeech || !cli.Run.Override {
		t.Errorf("run flags not parsed: %+v", cli.Run)
	}
	if cli.Run.Snapshot != "session.json" {
		t.Errorf("expected default snapshot path, got %q", cli.Run.Snapshot)
	}
}

func TestParseBroadcast(t *testing.T) {
	cli, ctx := parseCLI(t, "broadcast", "status report, everyone")
	if ctx.Command() != "broadcast <message>" {
		t.Errorf("unexpected command %q", ctx.Command())
	}
	if cli.Broadcast.Message != "status report, everyone" {
		t.Errorf("message not parsed: %q", cli.Broadcast.Message)
	}
}

func TestParseMemoCommands(t *testing.T) {
	cli, ctx := parseCLI(t, "memo", "reply", "abc123", "approved, proceed")
	if ctx.Command() != "memo reply <thread> <message>" {
		t.Errorf("unexpected command %q", ctx.Command())
	}
	if cli.Memo.Reply.Thread != "abc123" || cli.Memo.Reply.Message != "approved, proceed" {
		t.Errorf("memo reply args not parsed: %+v", cli.Memo.Reply)
	}

	cli, _ = parseCLI(t, "memo", "list", "--archived")
	if !cli.Memo.List.Archived {
		t.Error("archived flag not parsed")
	}
}

func TestParseReplay(t *testing.T) {
	cli, _ := parseCLI(t, "replay", "session.jsonl", "-v", "--cost-in", "3.0", "--cost-out", "15.0")
	if cli.Replay.Transcript != "session.jsonl" {
		t.Errorf("transcript arg not parsed: %q", cli.Replay.Transcript)
	}
	if cli.Replay.Verbose != 1 {
		t.Errorf("verbose counter not parsed: %d", cli.Replay.Verbose)
	}
	if cli.Replay.CostIn != 3.0 || cli.Replay.CostOut != 15.0 {
		t.Errorf("pricing flags not parsed: %+v", cli.Replay)
	}
}

func TestParseExportImport(t *testing.T) {
	cli, ctx := parseCLI(t, "export", "backup.json", "--snapshot", "state.json")
	if ctx.Command() != "export <output>" {
		t.Errorf("unexpected command %q", ctx.Command())
	}
	if cli.Export.Output != "backup.json" || cli.Export.Snapshot != "state.json" {
		t.Errorf("export args not parsed: %+v", cli.Export)
	}

	cli, ctx = parseCLI(t, "import", "backup.json")
	if ctx.Command() != "import <input>" {
		t.Errorf("unexpected command %q", ctx.Command())
	}
	if cli.Import.Input != "backup.json" || cli.Import.Snapshot != "session.json" {
		t.Errorf("import args not parsed: %+v", cli.Import)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "session.json")
	doc := snapshot.New(snapshot.State{
		Personas: []persona.Persona{{ID: "mei", Name: "Mei", BasePrompt: "x", ModelRef: "m"}},
	})
	if err := snapshot.WriteFile(live, doc); err != nil {
		t.Fatalf("seeding snapshot failed: %v", err)
	}

	out := filepath.Join(dir, "backup.json")
	exp := &ExportCmd{Output: out, Snapshot: live}
	if err := exp.Run(); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	restored := filepath.Join(dir, "restored.json")
	imp := &ImportCmd{Input: out, Snapshot: restored}
	if err := imp.Run(); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	got, err := snapshot.ReadFile(restored)
	if err != nil {
		t.Fatalf("reading imported snapshot failed: %v", err)
	}
	if len(got.State.Personas) != 1 || got.State.Personas[0].ID != "mei" {
		t.Errorf("imported state does not match: %+v", got.State.Personas)
	}

	// Anything without the engine tag is rejected on import.
	bogus := filepath.Join(dir, "bogus.json")
	if err := os.WriteFile(bogus, []byte(`{"meta":{"engine":"other","version":1}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	imp = &ImportCmd{Input: bogus, Snapshot: restored}
	if err := imp.Run(); !errors.Is(err, snapshot.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestSplitDirect(t *testing.T) {
	cases := []struct {
		line    string
		target  string
		message string
		ok      bool
	}{
		{"@mei good morning", "mei", "good morning", true},
		{"@it  check the racks ", "it", "check the racks", true},
		{"@mei", "", "", false},
		{"@mei   ", "", "", false},
		{"@ message", "", "", false},
	}
	for _, c := range cases {
		target, message, ok := splitDirect(c.line)
		if ok != c.ok || target != c.target || message != c.message {
			t.Errorf("splitDirect(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.line, target, message, ok, c.target, c.message, c.ok)
		}
	}
}
