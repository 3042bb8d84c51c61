package ui

import "github.com/charmbracelet/lipgloss"

// Palette shared by every printer.
var (
	salmonPink  = lipgloss.Color("#FFB3BA")
	coralPink   = lipgloss.Color("#FFCCCB")
	mintGreen   = lipgloss.Color("#A8E6CF")
	skyBlue     = lipgloss.Color("#A0C4FF")
	mutedGray   = lipgloss.Color("#6B7280")
	brightWhite = lipgloss.Color("#F9FAFB")
)

// styles are bound to one renderer so color output follows the writer's
// terminal capabilities.
type styles struct {
	header   lipgloss.Style
	muted    lipgloss.Style
	title    lipgloss.Style
	success  lipgloss.Style
	warn     lipgloss.Style
	err      lipgloss.Style
	id       lipgloss.Style
	label    lipgloss.Style
	box      lipgloss.Style
	priority map[string]lipgloss.Style
	state    map[string]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header:  r.NewStyle().Foreground(salmonPink).Bold(true),
		muted:   r.NewStyle().Foreground(mutedGray),
		title:   r.NewStyle().Foreground(brightWhite),
		success: r.NewStyle().Foreground(mintGreen),
		warn:    r.NewStyle().Foreground(coralPink),
		err:     r.NewStyle().Foreground(salmonPink).Bold(true),
		id:      r.NewStyle().Foreground(mutedGray).Italic(true),
		label:   r.NewStyle().Foreground(skyBlue).Width(12),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1),
		priority: map[string]lipgloss.Style{
			"P1": r.NewStyle().Foreground(salmonPink).Bold(true),
			"P2": r.NewStyle().Foreground(coralPink),
			"P3": r.NewStyle().Foreground(skyBlue),
			"P4": r.NewStyle().Foreground(mutedGray),
		},
		state: map[string]lipgloss.Style{
			"idle":    r.NewStyle().Foreground(mutedGray),
			"pending": r.NewStyle().Foreground(coralPink),
			"syncing": r.NewStyle().Foreground(skyBlue),
			"synced":  r.NewStyle().Foreground(mintGreen),
			"error":   r.NewStyle().Foreground(salmonPink).Bold(true),
		},
	}
}
