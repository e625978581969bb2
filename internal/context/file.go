package context

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rfushimi/q/internal/filetypes"
)

// FileProvider renders the contents of one file
type FileProvider struct {
	path   string
	config Config
}

// NewFileProvider creates a provider for path
func NewFileProvider(path string, config Config) *FileProvider {
	return &FileProvider{path: path, config: config}
}

// Name implements Provider
func (p *FileProvider) Name() string {
	return "file"
}

// Gather implements Provider
func (p *FileProvider) Gather(ctx context.Context) (string, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return "", statError(p.path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory; use --here for directory listings", p.path)
	}

	// Check file size before reading
	if err := validateSize(info.Size(), p.config.MaxSize, "file content"); err != nil {
		return "", err
	}

	content, err := os.ReadFile(p.path)
	if err != nil {
		return "", statError(p.path, err)
	}
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: %s", ErrNotText, p.path)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s\n", p.path)
	fmt.Fprintf(&sb, "Size: %d bytes\n", info.Size())
	if lang := filetypes.GetLanguage(p.path); lang != "" {
		fmt.Fprintf(&sb, "Language: %s\n", lang)
	}
	sb.WriteString("\nContent:\n")
	sb.Write(content)
	sb.WriteByte('\n')

	return sb.String(), nil
}
