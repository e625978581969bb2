package render

import (
	"strings"
)

// FormatMarkdown applies light terminal styling to an answer: fenced code
// blocks, lines wrapped entirely in **bold**, and "* " or "- " list items.
// Everything else passes through unchanged.
func FormatMarkdown(text string, theme Theme) string {
	var sb strings.Builder
	inCode := false

	code := theme.CodeStyle()
	bold := theme.BoldStyle()
	bullet := theme.ExampleStyle()

	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "```"):
			inCode = !inCode
			continue
		case inCode:
			// Styled per line so lipgloss does not pad the block to a rectangle
			if line != "" {
				line = code.Render(line)
			}
		case len(trimmed) > 4 && strings.HasPrefix(trimmed, "**") && strings.HasSuffix(trimmed, "**"):
			line = bold.Render(trimmed[2 : len(trimmed)-2])
		case strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "- "):
			line = bullet.Render("• " + line[2:])
		}

		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	return sb.String()
}
