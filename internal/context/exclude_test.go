package context

import (
	"testing"
)

func TestMatchGlobPattern(t *testing.T) {
	tests := []struct {
		name     string
		filePath string
		pattern  string
		want     bool
	}{
		// Base-name patterns
		{"extension match", "README.md", "*.md", true},
		{"extension no match", "main.go", "*.md", false},
		{"extension in subdirectory", "docs/guide.md", "*.md", true},
		{"exact name in subdirectory", "config/.env", ".env", true},

		// ** patterns
		{"**/*.md matches root file", "README.md", "**/*.md", true},
		{"**/*.md matches nested file", "a/b/c/d/file.md", "**/*.md", true},
		{"**/*.md skips go files", "internal/api/handler.go", "**/*.md", false},
		{"**/.env* matches .env.local", "config/.env.local", "**/.env*", true},
		{"** matches everything", "any/path/to/file.txt", "**", true},

		// Directory patterns, as seen while listing
		{"vendor dir itself", "vendor", "**/vendor/**", true},
		{"file under vendor", "vendor/github.com/pkg/errors.go", "**/vendor/**", true},
		{"nested vendor", "lib/vendor/pkg/file.go", "**/vendor/**", true},
		{"docs/** matches below docs", "docs/api/reference.md", "docs/**", true},
		{"docs/** matches docs dir", "docs", "docs/**", true},
		{"docs/** skips siblings", "internal/api/handler.go", "docs/**", false},
		{"segment wildcard", "cmd/q/main.go", "cmd/*/main.go", true},
		{"segment wildcard depth", "cmd/q/sub/main.go", "cmd/*/main.go", false},

		// Edge cases
		{"leading slash is root-anchored", "src/main.go", "/src/*.go", false},
		{"backslashes are normalized", "internal\\api\\handler.go", "**/*.go", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchGlobPattern(tt.filePath, tt.pattern)
			if got != tt.want {
				t.Errorf("matchGlobPattern(%q, %q) = %v, want %v",
					tt.filePath, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestShouldExclude(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		filePath string
		want     bool
	}{
		{"no patterns means no exclusions", nil, "any/file.txt", false},
		{"exclude markdown", []string{"**/*.md"}, "docs/README.md", true},
		{"exclude env files", []string{"**/.env*"}, ".env.local", true},
		{"multiple patterns match second", []string{"**/*.md", "**/*.json"}, "config.json", true},
		{"multiple patterns no match", []string{"**/*.md", "**/*.json"}, "main.go", false},
		{"exclude test files", []string{"**/*_test.go"}, "internal/api/handler_test.go", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewDirectoryProvider("", Config{Exclude: tt.patterns})
			if got := p.shouldExclude(tt.filePath); got != tt.want {
				t.Errorf("shouldExclude(%q) with patterns %v = %v, want %v",
					tt.filePath, tt.patterns, got, tt.want)
			}
		})
	}
}
