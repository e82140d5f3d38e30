// Package dispatch executes the tool calls a persona's model emits, in
// the order they were requested, gated by the persona's tool grants.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/deepfish/engine/internal/artifact"
	"github.com/deepfish/engine/internal/game"
	"github.com/deepfish/engine/internal/gateway"
	"github.com/deepfish/engine/internal/memo"
	"github.com/deepfish/engine/internal/memory"
	"github.com/deepfish/engine/internal/persona"
	"github.com/deepfish/engine/internal/transcript"
)

// Tool names.
const (
	ToolDelegate      = "delegate_task"
	ToolStoreMemory   = "store_memory"
	ToolSendMemo      = "send_executive_memo"
	ToolUpdateOverlay = "update_persona_overlay"
	ToolRaffle        = "touch_raffle_jar"
)

// ErrUnauthorizedTool is returned when a persona invokes a tool it has
// no grant for. The call becomes an error entry, never an abort.
var ErrUnauthorizedTool = errors.New("unauthorized tool use")

// ErrDelegationTargetMissing is returned when delegating to a persona
// that is not registered.
var ErrDelegationTargetMissing = errors.New("delegation target missing")

// DelegateFunc runs a delegated task against the target persona and
// returns its raw output. The context summary carries whatever
// conversation state the caller chose to share; it may be empty.
// Wired by the engine.
type DelegateFunc func(ctx context.Context, targetID, task, contextSummary string) (string, error)

// Result is the outcome of one executed tool call.
type Result struct {
	Call    gateway.ToolCall
	Text    string // operator-visible summary
	IsError bool
	Err     error
}

// Dispatcher routes tool calls to the subsystems they act on.
type Dispatcher struct {
	registry  *persona.Registry
	memory    memory.Store
	memos     *memo.Store
	raffle    *game.Raffle
	artifacts *artifact.Registry
	feed      *transcript.Feed
	delegate  DelegateFunc
	log       *logging.Logger
}

// Config wires a dispatcher. All fields but Delegate are required.
type Config struct {
	Registry  *persona.Registry
	Memory    memory.Store
	Memos     *memo.Store
	Raffle    *game.Raffle
	Artifacts *artifact.Registry
	Feed      *transcript.Feed
	Delegate  DelegateFunc
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		registry:  cfg.Registry,
		memory:    cfg.Memory,
		memos:     cfg.Memos,
		raffle:    cfg.Raffle,
		artifacts: cfg.Artifacts,
		feed:      cfg.Feed,
		delegate:  cfg.Delegate,
		log:       logging.New().WithComponent("dispatch"),
	}
}

// Execute runs calls in order. A failing call yields an error Result
// and execution continues with the next call. Tool names the engine
// does not know are skipped with a logged warning and contribute no
// Result, so a hallucinated tool never pollutes the transcript.
func (d *Dispatcher) Execute(ctx context.Context, caller persona.Persona, calls []gateway.ToolCall) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		if _, known := allDefs[call.Name]; !known {
			d.log.Warn("unknown tool ignored", map[string]interface{}{
				"persona": caller.ID,
				"tool":    call.Name,
			})
			continue
		}
		results = append(results, d.executeOne(ctx, caller, call))
	}
	return results
}

func (d *Dispatcher) executeOne(ctx context.Context, caller persona.Persona, call gateway.ToolCall) Result {
	if !caller.Permits(call.Name) {
		err := fmt.Errorf("%w: %s may not call %s", ErrUnauthorizedTool, caller.ID, call.Name)
		d.log.Warn("tool denied", map[string]interface{}{
			"persona": caller.ID,
			"tool":    call.Name,
		})
		return Result{Call: call, Text: err.Error(), IsError: true, Err: err}
	}

	d.log.Debug("tool call", map[string]interface{}{
		"persona": caller.ID,
		"tool":    call.Name,
	})

	var res Result
	switch call.Name {
	case ToolDelegate:
		res = d.runDelegate(ctx, caller, call)
	case ToolStoreMemory:
		res = d.runStoreMemory(ctx, caller, call)
	case ToolSendMemo:
		res = d.runSendMemo(caller, call)
	case ToolUpdateOverlay:
		res = d.runUpdateOverlay(caller, call)
	case ToolRaffle:
		res = d.runRaffle(caller, call)
	default:
		// Unknown names never reach here; Execute filters them.
		res = Result{Call: call}
	}
	return res
}

func (d *Dispatcher) runDelegate(ctx context.Context, caller persona.Persona, call gateway.ToolCall) Result {
	targetID := stringArg(call.Args, "target_persona_id")
	task := stringArg(call.Args, "task_description")
	if targetID == "" || task == "" {
		err := fmt.Errorf("delegate_task requires target_persona_id and task_description")
		return Result{Call: call, Text: err.Error(), IsError: true, Err: err}
	}

	if _, err := d.registry.Get(targetID); err != nil {
		wrapped := fmt.Errorf("%w: %s", ErrDelegationTargetMissing, targetID)
		return Result{Call: call, Text: wrapped.Error(), IsError: true, Err: wrapped}
	}
	if d.delegate == nil {
		err := fmt.Errorf("delegation is not available")
		return Result{Call: call, Text: err.Error(), IsError: true, Err: err}
	}

	output, err := d.delegate(ctx, targetID, task, stringArg(call.Args, "context_summary"))
	if err != nil {
		return Result{Call: call, Text: fmt.Sprintf("delegation to %s failed: %v", targetID, err), IsError: true, Err: err}
	}

	a := d.artifacts.Mint("RESULT", output, targetID)
	d.feed.Record(caller.ID, "delegated to "+targetID, truncate(task, 60))
	return Result{
		Call: call,
		Text: fmt.Sprintf("(%s delegated task to %s: %q)\nResult artifact: %s", caller.Name, targetID, truncate(task, 120), a.Token),
	}
}

func (d *Dispatcher) runStoreMemory(ctx context.Context, caller persona.Persona, call gateway.ToolCall) Result {
	content := stringArg(call.Args, "content")
	if content == "" {
		err := fmt.Errorf("store_memory requires content")
		return Result{Call: call, Text: err.Error(), IsError: true, Err: err}
	}
	category := stringArg(call.Args, "category")

	entry, err := d.memory.Append(ctx, memory.Entry{
		PersonaID: caller.ID,
		Category:  category,
		Content:   content,
		Trigger:   stringArg(call.Args, "trigger_context"),
	})
	if err != nil {
		return Result{Call: call, Text: fmt.Sprintf("memory store failed: %v", err), IsError: true, Err: err}
	}

	d.feed.Record(caller.ID, "stored memory ["+entry.Category+"]", truncate(content, 60))
	return Result{Call: call, Text: fmt.Sprintf("Memory stored [%s]: %s", entry.Category, truncate(content, 120))}
}

func (d *Dispatcher) runSendMemo(caller persona.Persona, call gateway.ToolCall) Result {
	subject := stringArg(call.Args, "subject")
	body := stringArg(call.Args, "body")
	if subject == "" || body == "" {
		err := fmt.Errorf("send_executive_memo requires subject and body")
		return Result{Call: call, Text: err.Error(), IsError: true, Err: err}
	}

	thread, created := d.memos.Deliver(caller.ID, subject, body)
	verb := "Memo filed to existing thread"
	if created {
		verb = "Executive memo sent"
	}
	d.feed.Record(caller.ID, "sent memo", subject)
	return Result{Call: call, Text: fmt.Sprintf("%s\nSubject: %s\nThread: %s", verb, subject, thread.ID)}
}

func (d *Dispatcher) runUpdateOverlay(caller persona.Persona, call gateway.ToolCall) Result {
	targetID := stringArg(call.Args, "target_persona_id")
	instructions := stringArg(call.Args, "new_instructions")
	reason := stringArg(call.Args, "update_reason")
	if targetID == "" || instructions == "" {
		err := fmt.Errorf("update_persona_overlay requires target_persona_id and new_instructions")
		return Result{Call: call, Text: err.Error(), IsError: true, Err: err}
	}

	if err := d.registry.SetOverlay(targetID, instructions); err != nil {
		err = fmt.Errorf("overlay update failed: %w", err)
		return Result{Call: call, Text: err.Error(), IsError: true, Err: err}
	}

	d.feed.Record(caller.ID, "updated "+targetID, reason)
	return Result{Call: call, Text: fmt.Sprintf("Configuration Updated\nPersona: %s\nReason: %s", strings.ToUpper(targetID), reason)}
}

func (d *Dispatcher) runRaffle(caller persona.Persona, call gateway.ToolCall) Result {
	action := stringArg(call.Args, "action")
	switch action {
	case "add_ticket":
		st, err := d.raffle.AddTicket(caller.ID)
		if err != nil {
			if errors.Is(err, game.ErrAlreadyClaimed) {
				return Result{Call: call, Text: "[RaffleBot]: Ticket limit reached."}
			}
			return Result{Call: call, Text: err.Error(), IsError: true, Err: err}
		}
		d.feed.Record(caller.ID, "claimed daily raffle ticket", "")
		return Result{Call: call, Text: fmt.Sprintf("[RaffleBot]: Ticket added. Count: %d", st.Tickets)}
	case "spin_gacha":
		prize, _, err := d.raffle.Spin(caller.ID)
		if err != nil {
			if errors.Is(err, game.ErrNoTickets) {
				return Result{Call: call, Text: "[RaffleBot]: Insufficient tickets."}
			}
			return Result{Call: call, Text: err.Error(), IsError: true, Err: err}
		}
		if prize.Jackpot {
			d.feed.Record(caller.ID, "won the raffle jackpot", "")
			return Result{Call: call, Text: fmt.Sprintf("JACKPOT [RaffleBot]: %s", prize.Name)}
		}
		return Result{Call: call, Text: fmt.Sprintf("[RaffleBot]: Prize: %s.", prize.Name)}
	default:
		err := fmt.Errorf("touch_raffle_jar action must be add_ticket or spin_gacha")
		return Result{Call: call, Text: err.Error(), IsError: true, Err: err}
	}
}

func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
