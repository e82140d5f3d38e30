// Package engine orchestrates persona turns: prompt composition, model
// calls, ordered tool dispatch, delegation, and broadcast fan-out.
package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/deepfish/engine/internal/artifact"
	"github.com/deepfish/engine/internal/compose"
	"github.com/deepfish/engine/internal/dispatch"
	"github.com/deepfish/engine/internal/game"
	"github.com/deepfish/engine/internal/gateway"
	"github.com/deepfish/engine/internal/memo"
	"github.com/deepfish/engine/internal/memory"
	"github.com/deepfish/engine/internal/persona"
	"github.com/deepfish/engine/internal/speech"
	"github.com/deepfish/engine/internal/transcript"
)

// GroupScopeID is the shared broadcast channel.
const GroupScopeID = "boardroom"

// turnErrorText is what the operator sees when a gateway call fails.
const turnErrorText = "Error processing request."

// Default delays for deferred memo work. Replies land a beat after the
// operator's, so the exchange reads like correspondence rather than
// chat.
const (
	defaultAckDelay   = 1 * time.Second
	defaultReplyDelay = 2 * time.Second
)

// Engine is the orchestrator. All fields are wired at construction and
// safe for concurrent use.
type Engine struct {
	registry  *persona.Registry
	log       *transcript.Log
	feed      *transcript.Feed
	gw        gateway.Gateway
	disp      *dispatch.Dispatcher
	memos     *memo.Store
	sched     *memo.Scheduler
	memory    memory.Store
	raffle    *game.Raffle
	artifacts *artifact.Registry
	synth     speech.Synthesizer
	logger    *logging.Logger

	ackDelay   time.Duration
	replyDelay time.Duration

	mu       sync.Mutex
	override bool

	speechMu sync.Mutex // one utterance at a time

	// Callbacks decouple the engine from its frontends. All may be nil.
	OnEntry      func(scopeID string, e transcript.Entry)
	OnMemo       func(t memo.Thread)
	OnToolResult func(personaID string, r dispatch.Result)
}

// Config wires an engine.
type Config struct {
	Registry *persona.Registry
	Gateway  gateway.Gateway
	Memory   memory.Store
	Synth    speech.Synthesizer // nil disables speech
	FeedSize int

	// AckDelay and ReplyDelay override how long deferred memo
	// responses wait. Zero means the defaults.
	AckDelay   time.Duration
	ReplyDelay time.Duration
}

// New creates an engine with fresh session state.
func New(cfg Config) *Engine {
	e := &Engine{
		registry:  cfg.Registry,
		log:       transcript.NewLog(),
		feed:      transcript.NewFeed(cfg.FeedSize),
		gw:        cfg.Gateway,
		memos:     memo.NewStore(),
		sched:     memo.NewScheduler(),
		memory:    cfg.Memory,
		raffle:    game.New(),
		artifacts: artifact.NewRegistry(),
		synth:     cfg.Synth,
		logger:    logging.New().WithComponent("engine"),

		ackDelay:   cfg.AckDelay,
		replyDelay: cfg.ReplyDelay,
	}
	if e.ackDelay <= 0 {
		e.ackDelay = defaultAckDelay
	}
	if e.replyDelay <= 0 {
		e.replyDelay = defaultReplyDelay
	}
	if e.synth == nil {
		e.synth = speech.Noop{}
	}
	e.disp = dispatch.New(dispatch.Config{
		Registry:  cfg.Registry,
		Memory:    cfg.Memory,
		Memos:     e.memos,
		Raffle:    e.raffle,
		Artifacts: e.artifacts,
		Feed:      e.feed,
		Delegate:  e.runDelegated,
	})
	return e
}

// Close stops background work.
func (e *Engine) Close() {
	e.sched.Close()
}

// SessionID identifies this engine run's transcript log.
func (e *Engine) SessionID() string { return e.log.ID }

// Transcripts exposes the session log for persistence and replay.
func (e *Engine) Transcripts() *transcript.Log { return e.log }

// Memos exposes the memo store for inbox operations.
func (e *Engine) Memos() *memo.Store { return e.memos }

// SetOverride toggles diagnostic override mode.
func (e *Engine) SetOverride(on bool) {
	e.mu.Lock()
	e.override = on
	e.mu.Unlock()
	if on {
		e.feed.Record("operator", "engaged override mode", "")
	} else {
		e.feed.Record("operator", "released override mode", "")
	}
}

// Override reports whether diagnostic override mode is on.
func (e *Engine) Override() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.override
}

// CreatePersona registers a new persona at runtime.
func (e *Engine) CreatePersona(p persona.Persona) error {
	if err := e.registry.Create(p); err != nil {
		return err
	}
	e.feed.Record("operator", "created persona "+p.ID, p.Role)
	return nil
}

// PlantSeeds schedules the stock overnight memos.
func (e *Engine) PlantSeeds(seeds []memo.Seed) {
	memo.PlantSeeds(e.memos, e.sched, seeds, func(t memo.Thread) {
		e.feed.Record(t.SenderID, "sent memo", t.Subject)
		if e.OnMemo != nil {
			e.OnMemo(t)
		}
	})
}

// TurnResult is everything one turn appended to its scope.
type TurnResult struct {
	ScopeID string
	Entries []transcript.Entry
}

// SubmitTurn runs one exchange between the operator and a single
// persona. An optional image attachment is registered on the asset bus
// and referenced by token so personas can hand it to each other.
// Gateway and tool failures surface as error entries in the returned
// transcript, never as a process failure; only an unknown persona is a
// hard error.
func (e *Engine) SubmitTurn(ctx context.Context, personaID, input string, image []byte) (*TurnResult, error) {
	p, err := e.registry.Get(personaID)
	if err != nil {
		return nil, err
	}

	ctx, span := startTurnSpan(ctx, "turn.direct", p.ID)
	defer span.End()

	scope := e.log.Scope(p.ID, transcript.KindDirect)
	res := &TurnResult{ScopeID: scope.ID}

	userEntry := transcript.Entry{Role: transcript.RoleUser, Content: input}
	if len(image) > 0 {
		a := e.artifacts.Mint("image", base64.StdEncoding.EncodeToString(image), "operator")
		userEntry.Image = image
		userEntry.Content = strings.TrimSpace(input + "\n\n[attached image: " + a.Token + "]")
	}
	e.append(scope, res, userEntry)

	reply, ok := e.converse(ctx, p, scope, res, compose.Input{}, dispatch.DefsFor(p, false))
	if !ok {
		return res, nil
	}

	final := e.handleToolCalls(ctx, p, scope, res, reply)
	if final == nil {
		return res, nil
	}

	if final.Text != "" && !compose.IsSilence(final.Text) {
		e.append(scope, res, transcript.Entry{
			Role:      transcript.RolePersona,
			Speaker:   p.ID,
			Content:   final.Text,
			Thinking:  final.Thinking,
			Model:     final.Model,
			TokensIn:  final.TokensIn,
			TokensOut: final.TokensOut,
		})
		e.speak(ctx, p, final.Text)
	}
	return res, nil
}

// converse composes the system prompt, runs the gateway call, and on
// failure appends the error entry. The extra compose fields come from
// base; persona, mailbox, memories, and override are filled here.
func (e *Engine) converse(ctx context.Context, p persona.Persona, scope *transcript.Scope, res *TurnResult, base compose.Input, tools []gateway.ToolDef) (*gateway.Reply, bool) {
	in := base
	in.Persona = p
	in.Override = e.Override()
	if p.Omniscient || in.Group {
		in.Roster = e.registry.List()
		in.ActivityLines = e.feed.Lines(10)
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
		History: historyFor(scope),
		Tools:   tools,
	})
	if err != nil {
		e.logger.Warn("turn failed", map[string]interface{}{
			"persona": p.ID,
			"error":   err.Error(),
		})
		e.append(scope, res, transcript.Entry{
			Role:    transcript.RoleSystem,
			Content: fmt.Sprintf("%s (%v)", turnErrorText, err),
			IsError: true,
		})
		return nil, false
	}
	return reply, true
}

// handleToolCalls executes tool calls in order and appends their
// results, then returns the completion whose text closes the turn. A
// successful delegation triggers exactly one follow-up call and the
// follow-up's text replaces the first-pass text, so the persona
// answers with the delegated result rather than its pre-delegation
// filler. The follow-up carries no tools and therefore cannot recurse.
// A nil return means the follow-up failed and the error entry is
// already appended.
func (e *Engine) handleToolCalls(ctx context.Context, p persona.Persona, scope *transcript.Scope, res *TurnResult, reply *gateway.Reply) *gateway.Reply {
	if len(reply.ToolCalls) == 0 {
		return reply
	}

	results := e.disp.Execute(ctx, p, reply.ToolCalls)
	var delegated bool
	for _, r := range results {
		e.append(scope, res, transcript.Entry{
			Role:    transcript.RoleTool,
			Speaker: p.ID,
			Tool:    r.Call.Name,
			Args:    r.Call.Args,
			Content: r.Text,
			IsError: r.IsError,
		})
		if e.OnToolResult != nil {
			e.OnToolResult(p.ID, r)
		}
		if r.Call.Name == dispatch.ToolDelegate && !r.IsError {
			delegated = true
		}
	}
	if !delegated {
		return reply
	}

	followup, err := e.gw.Converse(ctx, p.ModelRef, gateway.Request{
		System:  compose.Compose(compose.Input{Persona: p, Override: e.Override()}),
		History: append(historyFor(scope), gateway.Turn{
			Role:    gateway.RoleUser,
			Content: "Delegation results:\n" + e.delegationSummary(results),
		}),
	})
	if err != nil {
		e.append(scope, res, transcript.Entry{
			Role:    transcript.RoleSystem,
			Content: fmt.Sprintf("%s (%v)", turnErrorText, err),
			IsError: true,
		})
		return nil
	}
	followup.TokensIn += reply.TokensIn
	followup.TokensOut += reply.TokensOut
	return followup
}

// delegationSummary expands artifact tokens so the lead persona sees
// the delegated output inline.
func (e *Engine) delegationSummary(results []dispatch.Result) string {
	var parts []string
	for _, r := range results {
		if r.Call.Name == dispatch.ToolDelegate && !r.IsError {
			parts = append(parts, e.artifacts.Expand(r.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

// runDelegated executes a one-level delegated task against the target
// persona. The target never receives the delegate tool, so the chain
// stops here.
func (e *Engine) runDelegated(ctx context.Context, targetID, task, contextSummary string) (string, error) {
	p, err := e.registry.Get(targetID)
	if err != nil {
		return "", err
	}

	ctx, span := startTurnSpan(ctx, "turn.delegated", p.ID)
	defer span.End()

	// Tokens in the task hand binary payloads across without routing
	// them through the lead's conversation.
	task = e.artifacts.Expand(task)

	prompt := "You have been delegated a task. Complete it thoroughly and return your findings.\n\n"
	if contextSummary != "" {
		prompt += "CONTEXT SUMMARY: " + contextSummary + "\n\n"
	}
	prompt += "TASK: " + task

	in := compose.Input{Persona: p, Override: e.Override()}
	reply, err := e.gw.Converse(ctx, p.ModelRef, gateway.Request{
		System:  compose.Compose(in),
		History: []gateway.Turn{{Role: gateway.RoleUser, Content: prompt}},
		Tools:   dispatch.DefsFor(p, true),
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	// Delegated tool calls still run, in order.
	if len(reply.ToolCalls) > 0 {
		for _, r := range e.disp.Execute(ctx, p, reply.ToolCalls) {
			if e.OnToolResult != nil {
				e.OnToolResult(p.ID, r)
			}
		}
	}

	if strings.TrimSpace(reply.Text) == "" {
		return "(no output)", nil
	}
	return reply.Text, nil
}

// append records an entry in the scope, the turn result, and notifies
// the frontend.
func (e *Engine) append(scope *transcript.Scope, res *TurnResult, entry transcript.Entry) {
	scope.Append(entry)
	history := scope.History()
	stamped := history[len(history)-1]
	if res != nil {
		res.Entries = append(res.Entries, stamped)
	}
	if e.OnEntry != nil {
		e.OnEntry(scope.ID, stamped)
	}
}

// speak synthesizes a reply in the persona's voice. Serialized so two
// personas never talk over each other; failures are logged only.
// Override mode is silent by design of the diagnostic console.
func (e *Engine) speak(ctx context.Context, p persona.Persona, text string) {
	if p.VoiceID == "" || e.Override() {
		return
	}
	e.speechMu.Lock()
	defer e.speechMu.Unlock()
	if _, err := e.synth.Synthesize(ctx, p.VoiceID, text); err != nil {
		e.logger.Debug("speech failed", map[string]interface{}{
			"persona": p.ID,
			"error":   err.Error(),
		})
	}
}

func (e *Engine) mailboxStatus() *compose.MailboxStatus {
	threads := e.memos.List()
	if len(threads) > 3 {
		threads = threads[:3]
	}
	return &compose.MailboxStatus{
		Unread: e.memos.UnreadCount(),
		Recent: threads,
	}
}

// historyFor maps a scope's dialogue to gateway turns.
func historyFor(scope *transcript.Scope) []gateway.Turn {
	dialogue := scope.Dialogue()
	turns := make([]gateway.Turn, 0, len(dialogue))
	for _, entry := range dialogue {
		role := gateway.RoleUser
		if entry.Role == transcript.RolePersona {
			role = gateway.RoleAssistant
		}
		content := entry.Content
		if entry.Role == transcript.RolePersona && entry.Speaker != "" && scope.Kind == transcript.KindGroup {
			// Keep speaker attribution visible in group history.
			if !strings.HasPrefix(content, "[") {
				content = "[" + entry.Speaker + "]: " + content
			}
		}
		turns = append(turns, gateway.Turn{Role: role, Content: content, Image: entry.Image})
	}
	return turns
}
