package context

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rfushimi/q/internal/filetypes"
)

// DirectoryProvider renders a recursive listing of a directory
type DirectoryProvider struct {
	root   string
	config Config
}

// NewDirectoryProvider lists root, or the working directory when root is empty
func NewDirectoryProvider(root string, config Config) *DirectoryProvider {
	return &DirectoryProvider{root: root, config: config}
}

// Name implements Provider
func (p *DirectoryProvider) Name() string {
	return "directory"
}

// Gather implements Provider
func (p *DirectoryProvider) Gather(ctx context.Context) (string, error) {
	root := p.root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		root = wd
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", statError(root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", root)
	}

	maxDepth := p.config.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Directory listing for %s:\n\n", root)

	var total int64
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable entries are left out of the listing
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if p.skip(d, rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		entry := rel
		if d.IsDir() {
			entry += "/"
		}

		total += int64(len(entry) + 1)
		if err := validateSize(total, p.config.MaxSize, "directory listing"); err != nil {
			return err
		}
		sb.WriteString(entry)
		sb.WriteByte('\n')

		if d.IsDir() && strings.Count(rel, "/")+1 >= maxDepth {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTooLarge) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", statError(root, err)
	}

	return sb.String(), nil
}

// skip reports whether an entry is left out of the listing
func (p *DirectoryProvider) skip(d fs.DirEntry, rel string) bool {
	if !p.config.IncludeHidden && filetypes.IsHidden(d.Name()) {
		return true
	}
	if d.IsDir() && filetypes.ShouldSkipDirectory(d.Name()) {
		return true
	}
	return p.shouldExclude(rel)
}

// shouldExclude checks if a path matches one of the configured exclude patterns
func (p *DirectoryProvider) shouldExclude(relPath string) bool {
	for _, pattern := range p.config.Exclude {
		if matchGlobPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

// matchGlobPattern matches a slash-separated relative path against a glob.
// Patterns without a slash match the base name; "**" matches any number of
// path segments, including none.
func matchGlobPattern(filePath, pattern string) bool {
	filePath = strings.ReplaceAll(filePath, "\\", "/")

	if !strings.Contains(pattern, "/") && pattern != "**" {
		matched, _ := path.Match(pattern, path.Base(filePath))
		return matched
	}

	return matchSegments(strings.Split(pattern, "/"), strings.Split(filePath, "/"))
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) == 0 {
		return len(segments) == 0
	}

	if pattern[0] == "**" {
		for i := 0; i <= len(segments); i++ {
			if matchSegments(pattern[1:], segments[i:]) {
				return true
			}
		}
		return false
	}

	if len(segments) == 0 {
		return false
	}
	if matched, _ := path.Match(pattern[0], segments[0]); !matched {
		return false
	}
	return matchSegments(pattern[1:], segments[1:])
}
