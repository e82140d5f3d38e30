package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/deepfish/engine/internal/compose"
	"github.com/deepfish/engine/internal/dispatch"
	"github.com/deepfish/engine/internal/gateway"
	"github.com/deepfish/engine/internal/persona"
	"github.com/deepfish/engine/internal/transcript"
)

// broadcastResult carries one persona's contribution back from the
// fan-out goroutines.
type broadcastResult struct {
	persona persona.Persona
	text    string
	model   string
	in, out int
	tools   []dispatch.Result
	err     error
}

// Broadcast sends input to the selected personas concurrently and
// appends replies to the group scope in the order they resolve. No
// personaIDs means everyone. A persona answering with the silence
// sentinel contributes nothing; a persona whose gateway call fails
// contributes an error entry. Either way the broadcast itself never
// fails once it starts.
func (e *Engine) Broadcast(ctx context.Context, input string, personaIDs ...string) (*TurnResult, error) {
	roster := e.registry.List()
	if len(personaIDs) > 0 {
		selected := make([]persona.Persona, 0, len(personaIDs))
		for _, id := range personaIDs {
			p, err := e.registry.Get(id)
			if err != nil {
				return nil, err
			}
			selected = append(selected, p)
		}
		roster = selected
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("no personas registered")
	}

	ctx, span := startBroadcastSpan(ctx, len(roster))
	defer span.End()

	scope := e.log.Scope(GroupScopeID, transcript.KindGroup)
	res := &TurnResult{ScopeID: scope.ID}
	e.append(scope, res, transcript.Entry{Role: transcript.RoleUser, Content: input})
	audience := "all personas"
	if len(personaIDs) > 0 {
		audience = strings.Join(personaIDs, ", ")
	}
	e.feed.Record("operator", "broadcast to "+audience, truncateSubject(input))

	history := historyFor(scope)
	gameLine := e.gameStateLine()

	results := make(chan broadcastResult, len(roster))
	var wg sync.WaitGroup
	for _, p := range roster {
		wg.Add(1)
		go func(p persona.Persona) {
			defer wg.Done()
			results <- e.broadcastOne(ctx, p, history, gameLine)
		}(p)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Append in resolve order, not roster order. A persona's own tool
	// entries land before its reply, so its relative order holds.
	for r := range results {
		for _, tr := range r.tools {
			e.append(scope, res, transcript.Entry{
				Role:    transcript.RoleTool,
				Speaker: r.persona.ID,
				Tool:    tr.Call.Name,
				Args:    tr.Call.Args,
				Content: tr.Text,
				IsError: tr.IsError,
			})
			if e.OnToolResult != nil {
				e.OnToolResult(r.persona.ID, tr)
			}
		}
		if r.err != nil {
			e.append(scope, res, transcript.Entry{
				Role:    transcript.RoleSystem,
				Speaker: r.persona.ID,
				Content: fmt.Sprintf("%s (%v)", turnErrorText, r.err),
				IsError: true,
			})
			continue
		}
		if r.text == "" {
			continue
		}
		e.append(scope, res, transcript.Entry{
			Role:      transcript.RolePersona,
			Speaker:   r.persona.ID,
			Content:   r.text,
			Model:     r.model,
			TokensIn:  r.in,
			TokensOut: r.out,
		})
		e.speak(ctx, r.persona, r.text)
	}
	return res, nil
}

// broadcastOne runs a single persona's group turn: model call, ordered
// tool dispatch, and at most one follow-up call when a delegation
// succeeded. Replies get the "[id]:" attribution prefix; the sentinel
// and empty replies map to no contribution.
func (e *Engine) broadcastOne(ctx context.Context, p persona.Persona, history []gateway.Turn, gameLine string) broadcastResult {
	in := compose.Input{
		Persona:       p,
		Group:         true,
		GameLine:      gameLine,
		Override:      e.Override(),
		Roster:        e.registry.List(),
		ActivityLines: e.feed.Lines(10),
	}
	if p.Mailroom {
		in.Mailbox = e.mailboxStatus()
	}
	if p.Permits(dispatch.ToolStoreMemory) {
		if memories, err := e.memory.List(ctx, p.ID); err == nil && len(memories) > 0 {
			in.Memories = memories
		}
	}
	reply, err := e.gw.Converse(ctx, p.ModelRef, gateway.Request{
		System:  compose.Compose(in),
		History: history,
		Tools:   dispatch.DefsFor(p, false),
	})
	if err != nil {
		return broadcastResult{persona: p, err: err}
	}

	out := broadcastResult{
		persona: p,
		model:   reply.Model,
		in:      reply.TokensIn,
		out:     reply.TokensOut,
	}
	text := reply.Text
	if len(reply.ToolCalls) > 0 {
		out.tools = e.disp.Execute(ctx, p, reply.ToolCalls)
		if summary := e.delegationSummary(out.tools); summary != "" {
			followup, err := e.gw.Converse(ctx, p.ModelRef, gateway.Request{
				System: compose.Compose(in),
				History: append(append([]gateway.Turn(nil), history...), gateway.Turn{
					Role:    gateway.RoleUser,
					Content: "Delegation results:\n" + summary,
				}),
			})
			if err != nil {
				out.err = err
				return out
			}
			text = followup.Text
			out.model = followup.Model
			out.in += followup.TokensIn
			out.out += followup.TokensOut
		}
	}

	if compose.IsSilence(text) || text == "" {
		return out
	}
	if id, rest := compose.SpeakerPrefix(text); id == p.ID {
		text = rest
	}
	out.text = "[" + p.ID + "]: " + text
	return out
}

// gameStateLine summarizes the raffle for the group prompt.
func (e *Engine) gameStateLine() string {
	states := e.raffle.Export()
	if len(states) == 0 {
		return ""
	}
	total, spins, wins := 0, 0, 0
	for _, s := range states {
		total += s.Tickets
		spins += s.TotalSpins
		wins += s.JackpotWins
	}
	return fmt.Sprintf("Raffle jar: %d tickets held, %d spins so far, %d jackpot wins.", total, spins, wins)
}

func truncateSubject(s string) string {
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
