package context

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	testutil "github.com/rfushimi/q/internal/testing"
)

func newTestTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "file1.txt", "content")
	writeFile(t, dir, "subdir/file2.txt", "content")
	writeFile(t, dir, "subdir/deeper/deepest/file3.txt", "content")
	writeFile(t, dir, ".hidden", "content")
	writeFile(t, dir, "node_modules/react/index.js", "content")
	writeFile(t, dir, "docs/guide.md", "content")
	return dir
}

func listing(t *testing.T, p *DirectoryProvider) []string {
	t.Helper()
	out, err := p.Gather(context.Background())
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	header, body, ok := strings.Cut(out, ":\n\n")
	if !ok || !strings.HasPrefix(header, "Directory listing for ") {
		t.Fatalf("unexpected header in %q", out)
	}
	return strings.Split(strings.TrimSpace(body), "\n")
}

func contains(entries []string, want string) bool {
	for _, e := range entries {
		if e == want {
			return true
		}
	}
	return false
}

func TestDirectoryProvider_Listing(t *testing.T) {
	dir := newTestTree(t)

	entries := listing(t, NewDirectoryProvider(dir, Config{MaxSize: 1024, MaxDepth: 2}))

	for _, want := range []string{"file1.txt", "subdir/", "subdir/file2.txt", "subdir/deeper/", "docs/guide.md"} {
		if !contains(entries, want) {
			t.Errorf("listing missing %q: %q", want, entries)
		}
	}
	for _, unwanted := range []string{".hidden", "node_modules/", "subdir/deeper/deepest/"} {
		if contains(entries, unwanted) {
			t.Errorf("listing should not contain %q", unwanted)
		}
	}
}

func TestDirectoryProvider_IncludeHidden(t *testing.T) {
	dir := newTestTree(t)

	entries := listing(t, NewDirectoryProvider(dir, Config{MaxSize: 1024, MaxDepth: 1, IncludeHidden: true}))
	if !contains(entries, ".hidden") {
		t.Errorf("listing should include .hidden: %q", entries)
	}
	if contains(entries, "subdir/file2.txt") {
		t.Error("depth 1 should list only direct children")
	}
}

func TestDirectoryProvider_Exclude(t *testing.T) {
	dir := newTestTree(t)

	entries := listing(t, NewDirectoryProvider(dir, Config{MaxSize: 1024, MaxDepth: 3, Exclude: []string{"docs/**", "*.txt"}}))
	for _, e := range entries {
		if strings.HasPrefix(e, "docs") || strings.HasSuffix(e, ".txt") {
			t.Errorf("excluded entry %q listed", e)
		}
	}
	if !contains(entries, "subdir/") {
		t.Errorf("subdir/ should still be listed: %q", entries)
	}
}

func TestDirectoryProvider_TooLarge(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 100; i++ {
		writeFile(t, dir, fmt.Sprintf("file%d.txt", i), "content")
	}

	_, err := NewDirectoryProvider(dir, Config{MaxSize: 50, MaxDepth: 1}).Gather(context.Background())
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestDirectoryProvider_WorkingDirectory(t *testing.T) {
	dir := newTestTree(t)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	entries := listing(t, NewDirectoryProvider("", DefaultConfig()))
	if !contains(entries, "file1.txt") {
		t.Errorf("listing of working directory = %q", entries)
	}
}

func TestDirectoryProvider_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewDirectoryProvider(filepath.Join(dir, "missing"), DefaultConfig()).Gather(context.Background())
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}

	file := writeFile(t, dir, "plain.txt", "x")
	if _, err := NewDirectoryProvider(file, DefaultConfig()).Gather(context.Background()); err == nil {
		t.Error("expected error listing a regular file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	writeFile(t, dir, "a/b.txt", "x")
	if _, err := NewDirectoryProvider(dir, DefaultConfig()).Gather(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDirectoryProvider_ProjectTree(t *testing.T) {
	dir := t.TempDir()
	if err := testutil.NewTestFileTree().Write(dir); err != nil {
		t.Fatal(err)
	}

	entries := listing(t, NewDirectoryProvider(dir, DefaultConfig()))

	for _, want := range []string{"main.go", "README.md", "pkg/", "pkg/calc/", "pkg/calc/calc_test.go"} {
		if !contains(entries, want) {
			t.Errorf("listing missing %q: %q", want, entries)
		}
	}
	for _, e := range entries {
		if strings.HasPrefix(e, ".env") || strings.HasPrefix(e, "node_modules") || strings.HasPrefix(e, "target") {
			t.Errorf("listing should skip %q", e)
		}
	}
}
