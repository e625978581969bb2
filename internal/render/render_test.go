package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	testutil "github.com/rfushimi/q/internal/testing"
)

func TestFormatMarkdown(t *testing.T) {
	input := "Use this:\n```bash\nls -la\n\techo hi\n```\n**Note**\n* first\n- second\nplain *text*\n"

	got := FormatMarkdown(input, PlainTheme())

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	expected := []string{"Use this:", "ls -la", "\techo hi", "Note", "• first", "• second", "plain *text*"}
	if len(lines) != len(expected) {
		t.Fatalf("got %d lines %q, want %q", len(lines), lines, expected)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], expected[i])
		}
	}
}

func TestFormatMarkdown_SampleAnswer(t *testing.T) {
	got := FormatMarkdown(testutil.SampleMarkdownAnswer, PlainTheme())
	want := "Undo the last commit\n" +
		"Keep the changes staged:\n" +
		"git reset --soft HEAD~1\n" +
		"• use --hard to discard changes\n" +
		"• check with git log first\n"
	if got != want {
		t.Errorf("FormatMarkdown() = %q, want %q", got, want)
	}
}

func TestFormatMarkdown_UnterminatedFence(t *testing.T) {
	got := FormatMarkdown("```\n* not a bullet", PlainTheme())
	if got != "* not a bullet\n" {
		t.Errorf("got %q", got)
	}
}

func TestFormatMarkdown_Empty(t *testing.T) {
	if got := FormatMarkdown("", PlainTheme()); got != "\n" {
		t.Errorf("got %q", got)
	}
}

func TestPlainThemeHasNoEscapes(t *testing.T) {
	theme := PlainTheme()
	for _, s := range []string{
		theme.CommandStyle().Render("fd"),
		theme.CategoryStyle().Render("Search"),
		theme.ErrorStyle().Render("boom"),
	} {
		if strings.Contains(s, "\x1b[") {
			t.Errorf("unexpected escape sequence in %q", s)
		}
	}
}

func TestTerminal_StreamedOutput(t *testing.T) {
	var out, status bytes.Buffer
	term := NewTerminal(&out, &status)

	term.Start("gpt-4o")
	term.Chunk("Hello")
	term.Chunk("")
	term.Chunk(", world")
	term.Done(nil)

	if out.String() != "Hello, world\n" {
		t.Errorf("out = %q", out.String())
	}
	if !term.Streamed() {
		t.Error("Streamed() = false after chunks")
	}
	if status.Len() != 0 {
		t.Errorf("non-terminal status should stay quiet, got %q", status.String())
	}
}

func TestTerminal_NoExtraNewline(t *testing.T) {
	var out, status bytes.Buffer
	term := NewTerminal(&out, &status)

	term.Chunk("line\n")
	term.Done(nil)

	if out.String() != "line\n" {
		t.Errorf("out = %q", out.String())
	}
}

func TestTerminal_NothingStreamed(t *testing.T) {
	var out, status bytes.Buffer
	term := NewTerminal(&out, &status)

	term.Start("m")
	term.Done(errors.New("failed"))

	if out.Len() != 0 {
		t.Errorf("out = %q", out.String())
	}
	if term.Streamed() {
		t.Error("Streamed() = true without chunks")
	}
}

func TestTerminal_Retry(t *testing.T) {
	var out, status bytes.Buffer
	term := NewTerminal(&out, &status)

	term.Retry(1, errors.New("rate limited"), 1500*time.Millisecond)

	if !strings.Contains(status.String(), "attempt 1 failed: rate limited (retrying in 1.5s)") {
		t.Errorf("status = %q", status.String())
	}
}

func TestTerminal_SpinnerStops(t *testing.T) {
	var out, status bytes.Buffer
	term := NewTerminal(&out, &status)
	term.interactive = true
	term.fps = time.Millisecond

	term.Start("m")
	time.Sleep(5 * time.Millisecond)
	term.Chunk("answer")
	term.Done(nil)

	if !strings.Contains(status.String(), "Querying m...") {
		t.Errorf("spinner label missing from %q", status.String())
	}
	if !strings.HasSuffix(status.String(), "\r\033[K") {
		t.Errorf("spinner line not cleared: %q", status.String())
	}
	if out.String() != "answer\n" {
		t.Errorf("out = %q", out.String())
	}
}

func TestPrintModelLine(t *testing.T) {
	var buf bytes.Buffer
	PrintModelLine(&buf, "gemini", "gemini-2.0-flash")
	if buf.String() != "provider: gemini, model: gemini-2.0-flash\n" {
		t.Errorf("got %q", buf.String())
	}
}
