// Package main is the entry point for the deepfish engine CLI.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/vinayprograms/agentkit/credentials"

	"github.com/deepfish/engine/internal/memo"
	"github.com/deepfish/engine/internal/replay"
	"github.com/deepfish/engine/internal/snapshot"
	"github.com/deepfish/engine/internal/transcript"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// globalCreds holds loaded credentials (file > env fallback happens in GetAPIKey)
var globalCreds *credentials.Credentials

func init() {
	if creds, _, err := credentials.Load(); err == nil && creds != nil {
		globalCreds = creds
	}
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("deepfish"),
		kong.Description("Multi-persona orchestration engine."),
		kong.UsageOnError(),
		kongVars(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}

// Run starts the interactive session loop.
func (c *RunCmd) Run() error {
	rt, err := newRuntime(c.Config, c.Roster, c.Snapshot)
	if err != nil {
		return err
	}
	defer rt.cleanup()
	if c.NoSpeech {
		rt.disableSpeech()
	}
	if err := rt.setup(); err != nil {
		return err
	}
	if c.Override {
		rt.eng.SetOverride(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.eng.OnMemo = func(t memo.Thread) {
		fmt.Fprintf(os.Stderr, "\n📨 Memo from %s: %s\n> ", t.SenderID, t.Subject)
	}
	rt.eng.PlantSeeds(memo.DefaultSeeds())

	fmt.Fprintf(os.Stderr, "Session %s. Personas: %s\n", rt.eng.SessionID(), strings.Join(rt.registry.IDs(), ", "))
	fmt.Fprintln(os.Stderr, `Type a message to broadcast, "@persona message" for a direct line, /help for commands.`)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if done := rt.handleLine(ctx, line); done {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return rt.persist(context.Background())
}

// handleLine dispatches one line of operator input. Returns true when
// the session should end.
func (rt *runtime) handleLine(ctx context.Context, line string) bool {
	switch {
	case line == "/quit" || line == "/exit":
		return true

	case line == "/help":
		fmt.Fprintln(os.Stderr, `Commands:
  @persona message   Direct message to one persona
  message            Broadcast to every persona
  /memos             List memo threads
  /override on|off   Toggle diagnostic override mode
  /save              Save transcript and session state now
  /quit              Save and exit`)

	case line == "/memos":
		for _, t := range rt.eng.Memos().List() {
			marker := " "
			if t.Unread {
				marker = "*"
			}
			fmt.Printf("%s [%s] %s: %s\n", marker, t.ID[:8], t.SenderID, t.Subject)
		}

	case line == "/override on":
		rt.eng.SetOverride(true)
		fmt.Fprintln(os.Stderr, "override engaged")

	case line == "/override off":
		rt.eng.SetOverride(false)
		fmt.Fprintln(os.Stderr, "override released")

	case line == "/save":
		if err := rt.persist(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, "saved")
		}

	case strings.HasPrefix(line, "@"):
		target, message, ok := splitDirect(line)
		if !ok {
			fmt.Fprintln(os.Stderr, "usage: @persona message")
			break
		}
		res, err := rt.eng.SubmitTurn(ctx, target, message, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		printEntries(res.Entries)

	default:
		res, err := rt.eng.Broadcast(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		printEntries(res.Entries)
	}
	return false
}

// splitDirect parses "@persona message" input.
func splitDirect(line string) (string, string, bool) {
	rest := strings.TrimPrefix(line, "@")
	idx := strings.IndexAny(rest, " \t")
	if idx <= 0 {
		return "", "", false
	}
	message := strings.TrimSpace(rest[idx:])
	if message == "" {
		return "", "", false
	}
	return rest[:idx], message, true
}

// printEntries renders turn output, skipping the echoed operator line.
func printEntries(entries []transcript.Entry) {
	for _, e := range entries {
		switch {
		case e.Role == transcript.RoleUser:
			continue
		case e.IsError:
			fmt.Printf("✗ %s\n", e.Content)
		case e.Role == transcript.RoleTool:
			fmt.Printf("⚙ %s: %s\n", e.Tool, e.Content)
		case strings.HasPrefix(e.Content, "["):
			// Group replies carry their own attribution.
			fmt.Println(e.Content)
		default:
			fmt.Printf("[%s]: %s\n", e.Speaker, e.Content)
		}
	}
}

// Run sends a single broadcast.
func (c *BroadcastCmd) Run() error {
	rt, err := newRuntime(c.Config, c.Roster, c.Snapshot)
	if err != nil {
		return err
	}
	defer rt.cleanup()
	rt.disableSpeech()
	if err := rt.setup(); err != nil {
		return err
	}

	res, err := rt.eng.Broadcast(context.Background(), c.Message, c.To...)
	if err != nil {
		return err
	}
	printEntries(res.Entries)
	return rt.persist(context.Background())
}

// Run copies the live session snapshot to a portable file, validating
// it on the way out.
func (c *ExportCmd) Run() error {
	doc, err := snapshot.ReadFile(c.Snapshot)
	if err != nil {
		return err
	}
	if err := snapshot.WriteFile(c.Output, doc); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported snapshot from %s (%d personas, %d scopes)\n",
		doc.Meta.Timestamp.Format("2006-01-02 15:04"), len(doc.State.Personas), len(doc.State.Scopes))
	return nil
}

// Run validates a snapshot file and installs it as the session state
// the next run restores from.
func (c *ImportCmd) Run() error {
	doc, err := snapshot.ReadFile(c.Input)
	if err != nil {
		return err
	}
	if err := snapshot.WriteFile(c.Snapshot, doc); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "imported snapshot from %s (%d personas, %d scopes)\n",
		doc.Meta.Timestamp.Format("2006-01-02 15:04"), len(doc.State.Personas), len(doc.State.Scopes))
	return nil
}

// Run shows version information.
func (c *VersionCmd) Run() error {
	fmt.Printf("deepfish version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}

// Run replays a transcript file.
func (c *ReplayCmd) Run() error {
	opts := []replay.ReplayerOption{replay.WithWidth(c.Width)}
	if c.CostIn > 0 || c.CostOut > 0 {
		opts = append(opts, replay.WithPricing(c.CostIn, c.CostOut))
	}
	r := replay.New(os.Stdout, c.Verbose, opts...)
	return r.ReplayFile(c.Transcript)
}
