package replay

import (
	"fmt"
	"io"
	"time"

	"github.com/muesli/reflow/wordwrap"

	"github.com/deepfish/engine/internal/transcript"
)

// Replayer reads and formats saved transcripts for review.
type Replayer struct {
	output         io.Writer
	verbosity      int // 0=normal, 1=verbose (-v: thinking, tool args)
	maxContentSize int // Maximum size for content fields (0 = unlimited)
	width          int // Wrap width for content
	pricing        *Pricing
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithMaxContentSize limits content size to avoid flooding the
// terminal on long sessions.
func WithMaxContentSize(size int) ReplayerOption {
	return func(r *Replayer) {
		r.maxContentSize = size
	}
}

// WithWidth sets the wrap width for entry content.
func WithWidth(width int) ReplayerOption {
	return func(r *Replayer) {
		r.width = width
	}
}

// WithPricing enables cost calculation with the given pricing.
func WithPricing(inputPer1M, outputPer1M float64) ReplayerOption {
	return func(r *Replayer) {
		r.pricing = &Pricing{
			InputPer1M:  inputPer1M,
			OutputPer1M: outputPer1M,
		}
	}
}

// New creates a new Replayer.
func New(output io.Writer, verbosity int, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		output:         output,
		verbosity:      verbosity,
		maxContentSize: 50 * 1024,
		width:          100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplayFile loads and replays a transcript file.
func (r *Replayer) ReplayFile(path string) error {
	log, err := transcript.LoadFile(path)
	if err != nil {
		return err
	}
	return r.Replay(log)
}

// Replay outputs a formatted timeline of every scope in the log.
func (r *Replayer) Replay(log *transcript.Log) error {
	r.printHeader(log)
	for _, scope := range log.Scopes() {
		r.printScope(scope)
	}
	r.printSummary(log)
	return nil
}

func (r *Replayer) printHeader(log *transcript.Log) {
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("SESSION"), valueStyle.Render(log.ID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Created:"), valueStyle.Render(log.CreatedAt.Format(time.RFC3339)))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Scopes: "), valueStyle.Render(fmt.Sprintf("%d", len(log.Scopes()))))
	fmt.Fprintln(r.output)
}

func (r *Replayer) printScope(scope *transcript.Scope) {
	history := scope.History()
	if len(history) == 0 {
		return
	}

	kind := ""
	if scope.Kind == transcript.KindGroup {
		kind = " (group)"
	}
	fmt.Fprintf(r.output, "%s %s\n",
		titleStyle.Render("SCOPE "+scope.ID+kind),
		dimStyle.Render(fmt.Sprintf("(%d entries)", len(history))))
	fmt.Fprintln(r.output, divider)

	for _, entry := range history {
		r.printEntry(entry)
	}
	fmt.Fprintln(r.output)
}

func (r *Replayer) printEntry(entry transcript.Entry) {
	prefix := fmt.Sprintf("%s %s",
		seqStyle.Render(fmt.Sprintf("%d", entry.SeqID)),
		dimStyle.Render(entry.Timestamp.Format("15:04:05")))

	switch {
	case entry.IsError:
		fmt.Fprintf(r.output, "%s %s %s\n", prefix,
			errorStyle.Render("ERROR"),
			r.wrap(entry.Content))

	case entry.Role == transcript.RoleUser:
		fmt.Fprintf(r.output, "%s %s %s\n", prefix,
			userStyle.Render("operator"),
			r.wrap(entry.Content))

	case entry.Role == transcript.RoleTool:
		fmt.Fprintf(r.output, "%s %s %s\n", prefix,
			toolStyle.Render(fmt.Sprintf("%s → %s", entry.Speaker, entry.Tool)),
			r.wrap(entry.Content))
		if r.verbosity > 0 {
			for k, v := range entry.Args {
				fmt.Fprintf(r.output, "        %s %v\n", labelStyle.Render(k+":"), v)
			}
		}

	default:
		style := speakerStyle(entry.Speaker)
		fmt.Fprintf(r.output, "%s %s %s\n", prefix,
			style.Render(entry.Speaker),
			r.wrap(entry.Content))
		if r.verbosity > 0 && entry.Thinking != "" {
			fmt.Fprintf(r.output, "        %s\n", thinkingStyle.Render(r.truncate(entry.Thinking)))
		}
		if r.verbosity > 0 && entry.Model != "" {
			fmt.Fprintf(r.output, "        %s\n",
				dimStyle.Render(fmt.Sprintf("%s in=%d out=%d", entry.Model, entry.TokensIn, entry.TokensOut)))
		}
	}
}

func (r *Replayer) wrap(content string) string {
	return wordwrap.String(r.truncate(content), r.width)
}

func (r *Replayer) truncate(content string) string {
	if r.maxContentSize > 0 && len(content) > r.maxContentSize {
		return content[:r.maxContentSize] + dimStyle.Render(" [truncated]")
	}
	return content
}

func (r *Replayer) printSummary(log *transcript.Log) {
	fmt.Fprintln(r.output, divider)
	stats := ComputeStats(log)
	PrintStats(r.output, stats)
	PrintTokenUsage(r.output, stats, r.pricing)
}
