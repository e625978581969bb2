package context

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// writeFile creates a file (and its parent directories) under dir
func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name     string
		sections []string
		prompt   string
		want     string
	}{
		{
			name:   "no context",
			prompt: "list files",
			want:   "list files",
		},
		{
			name:     "blank sections only",
			sections: []string{"", "  \n"},
			prompt:   "list files",
			want:     "list files",
		},
		{
			name:     "single section is trimmed",
			sections: []string{"Recent shell history:\n\nls -la\n"},
			prompt:   "what did I run?",
			want:     "Context:\nRecent shell history:\n\nls -la\nPrompt: what did I run?",
		},
		{
			name:     "sections separated by blank line",
			sections: []string{"A\n", "B\n"},
			prompt:   "p",
			want:     "Context:\nA\n\n\nB\nPrompt: p",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Assemble(tt.sections, tt.prompt); got != tt.want {
				t.Errorf("Assemble() = %q, want %q", got, tt.want)
			}
		})
	}
}

type stubProvider struct {
	name    string
	content string
	err     error
}

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) Gather(context.Context) (string, error) {
	return s.content, s.err
}

func TestGather(t *testing.T) {
	sections, err := Gather(context.Background(), testLogger(),
		stubProvider{name: "one", content: "first"},
		stubProvider{name: "two", content: "second"},
	)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if strings.Join(sections, ",") != "first,second" {
		t.Errorf("sections = %q", sections)
	}

	_, err = Gather(context.Background(), testLogger(),
		stubProvider{name: "one", content: "first"},
		stubProvider{name: "file", err: ErrFileNotFound},
	)
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "failed to get file context") {
		t.Errorf("error should name the provider: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxSize != 1024*1024 || cfg.MaxDepth != 3 || cfg.IncludeHidden {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
