package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles for human-facing annotations. lipgloss drops the colors when the
// writer is not a terminal, so piped output stays plain.
type styles struct {
	comment lipgloss.Style
	value   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		comment: r.NewStyle().Foreground(lipgloss.Color("8")),
		value:   r.NewStyle().Foreground(lipgloss.Color("6")),
	}
}
