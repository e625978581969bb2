// Package render draws query progress and answers on the terminal.
package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors used for answers and suggestions.
type Theme struct {
	CommandFg  string
	CategoryFg string
	ExampleFg  string
	CodeFg     string
	MutedFg    string
	ErrorFg    string
	renderer   *lipgloss.Renderer
}

// DefaultTheme returns the standard palette.
func DefaultTheme() Theme {
	return Theme{
		CommandFg:  "42",
		CategoryFg: "39",
		ExampleFg:  "220",
		CodeFg:     "51",
		MutedFg:    "241",
		ErrorFg:    "196",
	}
}

// NewTheme returns the default theme rendering for w.
// Colors are dropped automatically when w is not a terminal.
func NewTheme(w io.Writer) Theme {
	return DefaultTheme().WithRenderer(lipgloss.NewRenderer(w))
}

// PlainTheme renders without any escape sequences (HTTP, MCP, tests).
func PlainTheme() Theme {
	return NewTheme(io.Discard)
}

// WithRenderer returns a copy of the theme with the given renderer set.
func (t Theme) WithRenderer(r *lipgloss.Renderer) Theme {
	t.renderer = r
	return t
}

func (t Theme) newStyle() lipgloss.Style {
	if t.renderer != nil {
		return t.renderer.NewStyle()
	}
	return lipgloss.NewStyle()
}

// CommandStyle is used for suggested tool names.
func (t Theme) CommandStyle() lipgloss.Style {
	return t.newStyle().Foreground(lipgloss.Color(t.CommandFg)).Bold(true)
}

// CategoryStyle is used for tool categories.
func (t Theme) CategoryStyle() lipgloss.Style {
	return t.newStyle().Foreground(lipgloss.Color(t.CategoryFg))
}

// ExampleStyle is used for example invocations and list bullets.
func (t Theme) ExampleStyle() lipgloss.Style {
	return t.newStyle().Foreground(lipgloss.Color(t.ExampleFg))
}

// CodeStyle is used for fenced code. Tabs are kept as-is.
func (t Theme) CodeStyle() lipgloss.Style {
	return t.newStyle().Foreground(lipgloss.Color(t.CodeFg)).TabWidth(lipgloss.NoTabConversion)
}

// BoldStyle is used for **bold** lines.
func (t Theme) BoldStyle() lipgloss.Style {
	return t.newStyle().Bold(true)
}

// MutedStyle is used for status lines and the spinner.
func (t Theme) MutedStyle() lipgloss.Style {
	return t.newStyle().Foreground(lipgloss.Color(t.MutedFg))
}

// ErrorStyle is used for error messages.
func (t Theme) ErrorStyle() lipgloss.Style {
	return t.newStyle().Foreground(lipgloss.Color(t.ErrorFg))
}
