package context

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// HistoryEntries is how many recent commands are included
const HistoryEntries = 100

// HistoryProvider renders recent shell history
type HistoryProvider struct {
	config Config

	// Path overrides history file discovery when set
	Path string
}

// NewHistoryProvider creates a history provider
func NewHistoryProvider(config Config) *HistoryProvider {
	return &HistoryProvider{config: config}
}

// Name implements Provider
func (p *HistoryProvider) Name() string {
	return "history"
}

// historyPath returns $HISTFILE, ~/.zsh_history or ~/.bash_history, whichever exists first
func (p *HistoryProvider) historyPath() (string, error) {
	var candidates []string
	if p.Path != "" {
		candidates = append(candidates, p.Path)
	} else {
		if histfile := os.Getenv("HISTFILE"); histfile != "" {
			candidates = append(candidates, histfile)
		}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates,
				filepath.Join(home, ".zsh_history"),
				filepath.Join(home, ".bash_history"),
			)
		}
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", ErrHistoryNotFound
}

// Gather implements Provider
func (p *HistoryProvider) Gather(ctx context.Context) (string, error) {
	path, err := p.historyPath()
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", statError(path, err)
	}
	if err := validateSize(info.Size(), p.config.MaxSize, "shell history"); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", statError(path, err)
	}

	commands := parseHistory(data, HistoryEntries)

	var sb strings.Builder
	sb.WriteString("Recent shell history:\n\n")
	for _, cmd := range commands {
		sb.WriteString(cmd)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// parseHistory returns the last limit commands, oldest first.
// zsh extended history lines (": 1707000000:0;git status") are reduced to the command.
func parseHistory(data []byte, limit int) []string {
	var commands []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ": ") {
			if i := strings.IndexByte(line, ';'); i >= 0 {
				line = strings.TrimSpace(line[i+1:])
			}
		}
		if line == "" {
			continue
		}

		commands = append(commands, line)
	}

	if len(commands) > limit {
		commands = commands[len(commands)-limit:]
	}
	return commands
}

// statError maps filesystem errors onto the package's sentinel errors
func statError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return fmt.Errorf("read %s: %w", path, err)
	}
}
