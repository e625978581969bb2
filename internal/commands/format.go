package commands

import (
	"fmt"
	"strings"

	"github.com/rfushimi/q/internal/render"
)

// FormatSuggestions renders commands for the terminal.
func FormatSuggestions(cmds []Command, theme render.Theme) string {
	if len(cmds) == 0 {
		return theme.ErrorStyle().Render("No matching commands found.") + "\n"
	}

	var sb strings.Builder
	if len(cmds) == 1 {
		sb.WriteString("Found the perfect tool for you:\n\n")
	} else {
		fmt.Fprintf(&sb, "Found %d relevant tools:\n\n", len(cmds))
	}

	for i, c := range cmds {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		formatCommand(&sb, c, theme)
	}

	return sb.String()
}

func formatCommand(sb *strings.Builder, c Command, theme render.Theme) {
	sb.WriteString(theme.CommandStyle().Render(c.Name))
	sb.WriteByte('\n')
	fmt.Fprintf(sb, "Category: %s\n", theme.CategoryStyle().Render(c.Category.String()))
	sb.WriteString(c.Description)
	sb.WriteByte('\n')

	if len(c.Examples) > 0 {
		sb.WriteString("\nExamples:\n")
		example := theme.ExampleStyle()
		for _, ex := range c.Examples {
			fmt.Fprintf(sb, "  %s\n", example.Render(ex))
		}
	}
}
