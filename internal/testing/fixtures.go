package testing

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rfushimi/q/pkg/telemetry"
	"github.com/rs/zerolog"
)

// Sample context inputs and backend answers
const (
	// SampleGoFile is a minimal Go source file (74 bytes)
	SampleGoFile = `package main

import "fmt"

func main() {
	fmt.Println("Hello, World!")
}
`

	// SampleZshHistory uses the zsh extended history format
	SampleZshHistory = `: 1707000000:0;ls -la
: 1707000001:0;git status
: 1707000002:0;for f in *.go; do gofmt -l $f; done

: 1707000003:0;go build ./...
`

	// SampleBashHistory is a plain bash history file
	SampleBashHistory = `cd ~/src
make test
docker ps -a
`

	// SampleMarkdownAnswer exercises every construct the terminal formatter styles
	SampleMarkdownAnswer = "**Undo the last commit**\n" +
		"Keep the changes staged:\n" +
		"```bash\n" +
		"git reset --soft HEAD~1\n" +
		"```\n" +
		"* use --hard to discard changes\n" +
		"- check with git log first\n"
)

// NewTestLogger creates a zerolog.Logger that discards output (for quiet tests)
func NewTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// NewTestTracker creates an unlimited usage tracker for testing
func NewTestTracker() *telemetry.UsageTracker {
	return telemetry.NewUsageTracker(0, NewTestLogger())
}

// FileTree represents a test file structure
type FileTree struct {
	Files map[string]string // path -> content
}

// NewTestFileTree creates a small project tree with entries a directory
// listing must skip (hidden files, dependency and build directories)
func NewTestFileTree() *FileTree {
	return &FileTree{
		Files: map[string]string{
			"main.go":                        SampleGoFile,
			"README.md":                      "# Test\n",
			"pkg/calc/calc.go":               "package calc\n",
			"pkg/calc/calc_test.go":          "package calc\n",
			".env":                           "SECRET=1\n",
			"node_modules/left-pad/index.js": "module.exports = {}\n",
			"target/debug/app":               "binary\n",
		},
	}
}

// Write creates the tree under dir
func (ft *FileTree) Write(dir string) error {
	for path, content := range ft.Files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
