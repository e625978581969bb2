package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/mattn/go-isatty"
)

// Terminal renders query progress on status and streamed answer text on out.
// It satisfies engine.Renderer.
type Terminal struct {
	out    io.Writer
	status io.Writer
	theme  Theme

	// spinner is drawn only when status is a terminal
	interactive bool
	frames      []string
	fps         time.Duration

	mu       sync.Mutex
	label    string
	stop     chan struct{}
	stopped  chan struct{}
	streamed bool
	lastByte byte
}

// NewTerminal creates a renderer writing answers to out and progress to status.
func NewTerminal(out, status io.Writer) *Terminal {
	return &Terminal{
		out:         out,
		status:      status,
		theme:       NewTheme(status),
		interactive: IsTerminal(status),
		frames:      spinner.Dot.Frames,
		fps:         spinner.Dot.FPS,
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start begins the spinner while waiting for the first byte.
func (t *Terminal) Start(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.label = "Querying " + model + "..."
	t.startSpinnerLocked()
}

// Chunk writes streamed text straight to out.
func (t *Terminal) Chunk(text string) {
	if text == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopSpinnerLocked()
	_, _ = io.WriteString(t.out, text)
	t.streamed = true
	t.lastByte = text[len(text)-1]
}

// Retry notes the failed attempt on status and keeps the spinner going.
func (t *Terminal) Retry(attempt int, err error, delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopSpinnerLocked()
	msg := fmt.Sprintf("attempt %d failed: %v (retrying in %s)", attempt, err, delay.Round(time.Millisecond))
	fmt.Fprintln(t.status, t.theme.MutedStyle().Render(msg))
	if t.label != "" {
		t.startSpinnerLocked()
	}
}

// Done stops the spinner and terminates a streamed answer with a newline.
func (t *Terminal) Done(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopSpinnerLocked()
	t.label = ""
	if t.streamed && t.lastByte != '\n' {
		_, _ = io.WriteString(t.out, "\n")
		t.lastByte = '\n'
	}
}

// Streamed reports whether any answer text has already been written to out.
func (t *Terminal) Streamed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streamed
}

func (t *Terminal) startSpinnerLocked() {
	if !t.interactive || t.stop != nil || len(t.frames) == 0 {
		return
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	t.stop, t.stopped = stop, stopped

	style := t.theme.MutedStyle()
	label := t.label
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(t.fps)
		defer ticker.Stop()

		for i := 0; ; i++ {
			frame := strings.TrimSpace(t.frames[i%len(t.frames)])
			fmt.Fprintf(t.status, "\r%s %s", style.Render(frame), style.Render(label))
			select {
			case <-stop:
				// Clear the spinner line
				fmt.Fprint(t.status, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
}

func (t *Terminal) stopSpinnerLocked() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.stopped
	t.stop, t.stopped = nil, nil
}

// PrintModelLine writes the dimmed "provider: p, model: m" header.
func PrintModelLine(w io.Writer, provider, model string) {
	line := fmt.Sprintf("provider: %s, model: %s", provider, model)
	fmt.Fprintln(w, NewTheme(w).MutedStyle().Render(line))
}

// PrintError writes err in the error color.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, NewTheme(w).ErrorStyle().Render("Error: "+err.Error()))
}
