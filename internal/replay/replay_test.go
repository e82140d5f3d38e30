package replay

import (
	"strings"
	"testing"

	"github.com/deepfish/engine/internal/transcript"
)

func testLog() *transcript.Log {
	log := transcript.NewLog()
	scope := log.Scope("mei", transcript.KindDirect)
	scope.Append(transcript.Entry{Role: transcript.RoleUser, Content: "good morning"})
	scope.Append(transcript.Entry{
		Role: transcript.RolePersona, Speaker: "mei",
		Content: "Morning. Three items on the agenda.",
		Model:   "test-model", TokensIn: 100, TokensOut: 40,
	})
	scope.Append(transcript.Entry{
		Role: transcript.RoleTool, Speaker: "mei",
		Tool: "store_memory", Content: "Memory stored",
		Args: map[string]interface{}{"content": "likes tea"},
	})
	scope.Append(transcript.Entry{
		Role: transcript.RoleSystem, Content: "Error processing request.", IsError: true,
	})
	return log
}

func TestReplayRendersAllEntries(t *testing.T) {
	var buf strings.Builder
	r := New(&buf, 0)
	if err := r.Replay(testLog()); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"SESSION",
		"SCOPE mei",
		"good morning",
		"Three items on the agenda",
		"store_memory",
		"Error processing request.",
		"SESSION STATISTICS",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	// Tool args only show up in verbose mode.
	if strings.Contains(out, "likes tea") {
		t.Error("tool args rendered at verbosity 0")
	}
}

func TestReplayVerboseShowsArgsAndTokens(t *testing.T) {
	var buf strings.Builder
	r := New(&buf, 1)
	if err := r.Replay(testLog()); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "likes tea") {
		t.Error("verbose output missing tool args")
	}
	if !strings.Contains(out, "in=100 out=40") {
		t.Error("verbose output missing token line")
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(testLog())
	if stats.Entries != 4 {
		t.Errorf("expected 4 entries, got %d", stats.Entries)
	}
	if stats.Errors != 1 {
		t.Errorf("expected 1 error, got %d", stats.Errors)
	}
	if stats.ToolCalls != 1 {
		t.Errorf("expected 1 tool call, got %d", stats.ToolCalls)
	}
	if stats.SpeakerReplies["mei"] != 1 {
		t.Errorf("expected 1 mei reply, got %d", stats.SpeakerReplies["mei"])
	}
	if stats.TokensIn != 100 || stats.TokensOut != 40 {
		t.Errorf("token totals wrong: in=%d out=%d", stats.TokensIn, stats.TokensOut)
	}
}

func TestTruncation(t *testing.T) {
	var buf strings.Builder
	r := New(&buf, 0, WithMaxContentSize(10))
	log := transcript.NewLog()
	scope := log.Scope("it", transcript.KindDirect)
	scope.Append(transcript.Entry{Role: transcript.RoleUser, Content: strings.Repeat("x", 100)})
	if err := r.Replay(log); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if !strings.Contains(buf.String(), "[truncated]") {
		t.Error("expected truncation marker")
	}
}

func TestPricing(t *testing.T) {
	var buf strings.Builder
	r := New(&buf, 0, WithPricing(3.0, 15.0))
	if err := r.Replay(testLog()); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if !strings.Contains(buf.String(), "$0.0009") {
		t.Errorf("expected cost line, got:\n%s", buf.String())
	}
}
