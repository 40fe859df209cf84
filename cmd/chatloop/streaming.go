package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

type StreamMode string

const (
	StreamInstant    StreamMode = "instant"
	StreamTypewriter StreamMode = "typewriter"
	StreamQuiet      StreamMode = "quiet"
)

// StreamWriter writes reply pieces to the terminal as they are generated.
// It implements session.Sink.
type StreamWriter struct {
	mode   StreamMode
	buffer *bufio.Writer

	mu sync.Mutex
	// Colour escapes wrapped around every write; empty when the style has
	// no colour or the output is not a terminal.
	open, close string
	started     bool

	accumulator strings.Builder
	rawOutput   bool
}

// NewStreamWriter creates a streaming output handler on out.
func NewStreamWriter(out io.Writer, mode StreamMode, rawOutput bool, style lipgloss.Style) *StreamWriter {
	w := &StreamWriter{
		mode:      mode,
		buffer:    bufio.NewWriterSize(out, 4096),
		rawOutput: rawOutput,
	}
	w.open, w.close = styleEscapes(style)
	return w
}

// styleEscapes extracts the sequences a style puts around text, so pieces
// can be coloured without rendering each one through lipgloss.
func styleEscapes(style lipgloss.Style) (string, string) {
	const marker = "\x00"
	rendered := style.Render(marker)
	i := strings.Index(rendered, marker)
	if i < 0 {
		return "", ""
	}
	return rendered[:i], rendered[i+len(marker):]
}

// Write handles a single piece from the model.
func (w *StreamWriter) Write(piece string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.accumulator.WriteString(piece)
	switch w.mode {
	case StreamTypewriter:
		w.writeTypewriter(piece)
	case StreamQuiet:
	default:
		w.writeInstant(piece)
	}
}

// Flush ends the reply and returns its text. Quiet mode prints the whole
// reply here.
func (w *StreamWriter) Flush() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := w.accumulator.String()
	w.accumulator.Reset()
	if w.mode == StreamQuiet && result != "" {
		w.emit(result)
	}
	if w.started {
		_, _ = w.buffer.WriteString(w.close)
		w.started = false
	}
	_ = w.buffer.Flush()
	return result
}

func (w *StreamWriter) writeInstant(piece string) {
	w.emit(piece)
	_ = w.buffer.Flush()
}

// writeTypewriter flushes after every rune.
func (w *StreamWriter) writeTypewriter(piece string) {
	for _, r := range piece {
		w.begin()
		if w.rawOutput {
			_, _ = w.buffer.WriteString(escapeRawOutputRune(r))
		} else {
			_, _ = w.buffer.WriteRune(r)
		}
		_ = w.buffer.Flush()
	}
}

// emit writes text inside the colour escapes (must hold lock).
func (w *StreamWriter) emit(text string) {
	w.begin()
	if w.rawOutput {
		text = escapeRawOutput(text)
	}
	_, _ = w.buffer.WriteString(text)
}

func (w *StreamWriter) begin() {
	if !w.started {
		_, _ = w.buffer.WriteString(w.open)
		w.started = true
	}
}

func escapeRawOutput(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteString(escapeRawOutputRune(r))
	}
	return b.String()
}

// escapeRawOutputRune escapes a single rune for raw output
func escapeRawOutputRune(r rune) string {
	switch r {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	case '\\':
		return `\\`
	default:
		if strconv.IsPrint(r) {
			return string(r)
		}
		return fmt.Sprintf(`\u%04x`, r)
	}
}
