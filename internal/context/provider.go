// Package context gathers local context to prepend to a prompt.
//
// Providers read shell history, a directory listing or a single file and render
// it as plain text. Assemble combines the rendered sections with the user's
// prompt into the final text sent to the backend.
package context

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrFileNotFound is returned when a requested file does not exist
	ErrFileNotFound = errors.New("file not found")

	// ErrPermissionDenied is returned when a file cannot be read
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTooLarge is returned when context exceeds Config.MaxSize
	ErrTooLarge = errors.New("context too large")

	// ErrHistoryNotFound is returned when no shell history file exists
	ErrHistoryNotFound = errors.New("shell history not found")

	// ErrNotText is returned for files that are not valid UTF-8 text
	ErrNotText = errors.New("not a text file")
)

// Provider renders one kind of local context
type Provider interface {
	// Name identifies the provider in errors and logs
	Name() string

	// Gather renders the context as plain text
	Gather(ctx context.Context) (string, error)
}

// Config limits what providers read
type Config struct {
	// MaxSize bounds the bytes a provider reads or emits
	MaxSize int64

	// IncludeHidden lists dotfiles in directory listings
	IncludeHidden bool

	// MaxDepth bounds directory traversal; 1 lists only direct children
	MaxDepth int

	// Exclude holds glob patterns (with ** support) for paths to leave out of listings
	Exclude []string
}

// DefaultConfig returns 1 MiB, no hidden files, depth 3
func DefaultConfig() Config {
	return Config{
		MaxSize:  1024 * 1024,
		MaxDepth: 3,
	}
}

func validateSize(size, maxSize int64, what string) error {
	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("%w: %s context size %d exceeds maximum %d", ErrTooLarge, what, size, maxSize)
	}
	return nil
}

// Gather runs providers in order and returns their rendered sections
func Gather(ctx context.Context, logger zerolog.Logger, providers ...Provider) ([]string, error) {
	sections := make([]string, 0, len(providers))
	for _, p := range providers {
		section, err := p.Gather(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s context: %w", p.Name(), err)
		}

		logger.Debug().
			Str("provider", p.Name()).
			Int("bytes", len(section)).
			Msg("Context gathered")

		sections = append(sections, section)
	}
	return sections, nil
}

// Assemble builds the final prompt. Without context the prompt is returned unchanged.
func Assemble(sections []string, prompt string) string {
	var sb strings.Builder
	for _, section := range sections {
		if strings.TrimSpace(section) == "" {
			continue
		}
		sb.WriteString(section)
		sb.WriteString("\n\n")
	}

	body := strings.TrimSpace(sb.String())
	if body == "" {
		return prompt
	}
	return "Context:\n" + body + "\nPrompt: " + prompt
}
