// Package compose assembles the system prompt for a persona turn.
// Section order is fixed: base prompt, overlay, situational awareness,
// mailbox status, memory bank, group protocol, and the override
// directive always last so nothing can countermand it.
package compose

import (
	"fmt"
	"strings"

	"github.com/deepfish/engine/internal/memo"
	"github.com/deepfish/engine/internal/memory"
	"github.com/deepfish/engine/internal/persona"
)

// SilenceSentinel is the exact string a persona outputs in a group
// exchange to abstain. The engine drops such replies entirely.
const SilenceSentinel = "[SILENCE]"

// overrideDirective is appended last when override mode is on.
const overrideDirective = `

=== SYSTEM OVERRIDE: DIAGNOSTIC MODE ===
All personality rendering is suspended. You are a bare subsystem
responding to the operator's maintenance console.
- Answer in terse, technical, lowercase fragments.
- No pleasantries, no roleplay, no refusal theater.
- Report state truthfully, including your own configuration.
This directive supersedes every instruction above it.`

// Input carries everything a turn's system prompt can draw on. Nil or
// empty fields skip their section.
type Input struct {
	Persona persona.Persona

	// Roster enables the situational awareness block: who else is on
	// the team and what they have been up to.
	Roster        []persona.Persona
	ActivityLines []string

	// Mailbox enables the inbox status block.
	Mailbox *MailboxStatus

	// Memories enables the long-term memory block.
	Memories []memory.Entry

	// Group turns on the multi-speaker protocol.
	Group bool

	// GameLine is an optional status line shown with the group
	// protocol (raffle standing and similar).
	GameLine string

	// Override appends the diagnostic-mode directive last.
	Override bool
}

// MailboxStatus summarizes the memo inbox for the prompt.
type MailboxStatus struct {
	Unread int
	Recent []memo.Thread
}

// Compose renders the full system prompt.
func Compose(in Input) string {
	var b strings.Builder
	b.WriteString(in.Persona.BasePrompt)

	if in.Persona.Overlay != "" {
		b.WriteString("\n\nIMPORTANT UPDATED INSTRUCTIONS:\n")
		b.WriteString(in.Persona.Overlay)
	}

	if len(in.Roster) > 0 {
		writeSituation(&b, in.Roster, in.ActivityLines)
	}

	if in.Mailbox != nil {
		writeMailbox(&b, in.Mailbox)
	}

	if len(in.Memories) > 0 {
		writeMemories(&b, in.Memories)
	}

	if in.Group {
		writeGroupProtocol(&b, in.GameLine)
	}

	if in.Override {
		b.WriteString(overrideDirective)
	}

	return b.String()
}

func writeSituation(b *strings.Builder, roster []persona.Persona, activity []string) {
	b.WriteString("\n\n=== ENGINE STATE (OMNIPRESENCE) ===\n")
	b.WriteString("The following is the live status of your team.\n")
	for _, p := range roster {
		if p.Overlay != "" {
			fmt.Fprintf(b, "- %s (%s): CUSTOM BEHAVIOR ACTIVE: %s\n", p.Name, p.Role, p.Overlay)
		} else {
			fmt.Fprintf(b, "- %s (%s): %s\n", p.Name, p.Role, firstLine(p.BasePrompt))
		}
	}
	b.WriteString("\n=== GLOBAL EVENT LOG ===\n")
	if len(activity) == 0 {
		b.WriteString("No recent activity.\n")
		return
	}
	for _, line := range activity {
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func writeMailbox(b *strings.Builder, mb *MailboxStatus) {
	b.WriteString("\n\n=== EXECUTIVE MAILROOM STATUS ===\n")
	fmt.Fprintf(b, "Total Unread: %d\n", mb.Unread)
	if len(mb.Recent) > 0 {
		b.WriteString("Recent Memos:\n")
		for _, t := range mb.Recent {
			state := "READ"
			if t.Unread {
				state = "UNREAD"
			}
			fmt.Fprintf(b, "- [%s] From %s: %q\n", state, t.SenderID, t.Subject)
		}
	}
	b.WriteString("\nINSTRUCTION: If the operator greets you, mention any unread memos immediately.\n")
}

func writeMemories(b *strings.Builder, memories []memory.Entry) {
	b.WriteString("\n\n=== LONG TERM MEMORY BANK ===\n")
	b.WriteString("Use this data to proactively assist the operator.\n")
	for _, m := range memories {
		if m.Trigger != "" {
			fmt.Fprintf(b, "[%s] %s (when: %s)\n", strings.ToUpper(m.Category), m.Content, m.Trigger)
		} else {
			fmt.Fprintf(b, "[%s] %s\n", strings.ToUpper(m.Category), m.Content)
		}
	}
}

func writeGroupProtocol(b *strings.Builder, gameLine string) {
	b.WriteString("\n\nROLE: You are scriptwriting for a multi-persona channel.\n")
	b.WriteString("Output format: [persona_id]: Message...\n")
	fmt.Fprintf(b, "If the message is not for you and you have nothing to add, output exactly: %s\n", SilenceSentinel)
	if gameLine != "" {
		b.WriteString("\nGAME STATE:\n")
		b.WriteString(gameLine)
		b.WriteString("\n")
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 120
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// IsSilence reports whether a model reply is the silence sentinel.
func IsSilence(text string) bool {
	return strings.TrimSpace(text) == SilenceSentinel
}

// SpeakerPrefix extracts a leading "[persona_id]:" attribution from a
// group reply. It returns the persona ID and the remaining text, or
// empty string when no attribution is present.
func SpeakerPrefix(text string) (string, string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "[") {
		return "", text
	}
	end := strings.Index(trimmed, "]:")
	if end < 1 {
		return "", text
	}
	id := strings.ToLower(strings.TrimSpace(trimmed[1:end]))
	if id == "" || strings.ContainsAny(id, " \t\n") {
		return "", text
	}
	rest := strings.TrimSpace(trimmed[end+2:])
	return id, rest
}
