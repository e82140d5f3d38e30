package replay

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/deepfish/engine/internal/transcript"
)

// Stats holds aggregate statistics for a session log.
type Stats struct {
	// Total session duration between first and last entry
	TotalDurationMs int64

	Entries   int
	Errors    int
	ToolCalls int

	// Per-speaker reply counts
	SpeakerReplies map[string]int

	// Token accounting across all model replies
	TokensIn  int
	TokensOut int
}

// Pricing converts token counts to cost.
type Pricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// ComputeStats calculates aggregate statistics from every scope.
func ComputeStats(log *transcript.Log) *Stats {
	stats := &Stats{
		SpeakerReplies: make(map[string]int),
	}

	var first, last *transcript.Entry
	for _, scope := range log.Scopes() {
		for _, entry := range scope.History() {
			entry := entry
			stats.Entries++
			if first == nil || entry.Timestamp.Before(first.Timestamp) {
				first = &entry
			}
			if last == nil || entry.Timestamp.After(last.Timestamp) {
				last = &entry
			}
			if entry.IsError {
				stats.Errors++
				continue
			}
			switch entry.Role {
			case transcript.RoleTool:
				stats.ToolCalls++
			case transcript.RolePersona:
				stats.SpeakerReplies[entry.Speaker]++
				stats.TokensIn += entry.TokensIn
				stats.TokensOut += entry.TokensOut
			}
		}
	}

	if first != nil && last != nil {
		stats.TotalDurationMs = last.Timestamp.Sub(first.Timestamp).Milliseconds()
	}
	return stats
}

// PrintStats outputs the statistics to the writer.
func PrintStats(w io.Writer, stats *Stats) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("SESSION STATISTICS"))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %s\n",
		labelStyle.Render("Duration:  "),
		valueStyle.Render(formatDuration(stats.TotalDurationMs)))
	fmt.Fprintf(w, "%s %s\n",
		labelStyle.Render("Entries:   "),
		valueStyle.Render(fmt.Sprintf("%d", stats.Entries)))
	fmt.Fprintf(w, "%s %s\n",
		labelStyle.Render("Tool calls:"),
		valueStyle.Render(fmt.Sprintf("%d", stats.ToolCalls)))
	if stats.Errors > 0 {
		fmt.Fprintf(w, "%s %s\n",
			labelStyle.Render("Errors:    "),
			valueStyle.Render(fmt.Sprintf("%d", stats.Errors)))
	}

	if len(stats.SpeakerReplies) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Replies by persona:"))
		var speakers []string
		for s := range stats.SpeakerReplies {
			speakers = append(speakers, s)
		}
		sort.Strings(speakers)
		for _, s := range speakers {
			fmt.Fprintf(w, "  %s %s\n",
				labelStyle.Render(s+":"),
				valueStyle.Render(fmt.Sprintf("%d", stats.SpeakerReplies[s])))
		}
	}
}

// PrintTokenUsage outputs token totals and, with pricing, cost.
func PrintTokenUsage(w io.Writer, stats *Stats, pricing *Pricing) {
	if stats.TokensIn == 0 && stats.TokensOut == 0 {
		return
	}
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Token Usage:"))
	fmt.Fprintf(w, "  %s %s\n",
		labelStyle.Render("Input: "),
		valueStyle.Render(fmt.Sprintf("%d", stats.TokensIn)))
	fmt.Fprintf(w, "  %s %s\n",
		labelStyle.Render("Output:"),
		valueStyle.Render(fmt.Sprintf("%d", stats.TokensOut)))

	if pricing != nil {
		cost := float64(stats.TokensIn)/1_000_000*pricing.InputPer1M +
			float64(stats.TokensOut)/1_000_000*pricing.OutputPer1M
		fmt.Fprintf(w, "  %s %s\n",
			labelStyle.Render("Cost:  "),
			valueStyle.Render(fmt.Sprintf("$%.4f", cost)))
	}
}

// formatDuration formats milliseconds as human-readable duration.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm%ds", mins, secs)
}
