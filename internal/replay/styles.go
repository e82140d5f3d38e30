// Package replay renders saved session transcripts for review.
package replay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color scheme - each role has a distinct, consistent color.
var (
	// Structural / metadata
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, metadata

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - labels

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")) // White - values

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")) // White bold - headers

	// Operator input - Green
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	// Tool activity - Blue
	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	// Model thinking - Gray italic
	thinkingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Italic(true)

	// Outcomes
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // Red

	// Timeline
	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(5).
			Align(lipgloss.Right)

	divider = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(strings.Repeat("━", 60))
)

// speakerPalette gives each persona a stable color within a rendering.
var speakerPalette = []lipgloss.Style{
	lipgloss.NewStyle().Foreground(lipgloss.Color("13")), // Magenta
	lipgloss.NewStyle().Foreground(lipgloss.Color("14")), // Cyan
	lipgloss.NewStyle().Foreground(lipgloss.Color("11")), // Yellow
	lipgloss.NewStyle().Foreground(lipgloss.Color("208")), // Orange
	lipgloss.NewStyle().Foreground(lipgloss.Color("5")),  // Magenta dim
	lipgloss.NewStyle().Foreground(lipgloss.Color("6")),  // Cyan dim
}

func speakerStyle(id string) lipgloss.Style {
	var sum int
	for _, r := range id {
		sum += int(r)
	}
	return speakerPalette[sum%len(speakerPalette)]
}
