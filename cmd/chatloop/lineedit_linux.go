//go:build linux

package main

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/sys/unix"
)

// ReadLine reads one line, using the raw-mode editor when stdin is a
// terminal. Ctrl+C and Ctrl+D on an empty line end input with io.EOF.
func (l *lineReader) ReadLine(prompt string) (string, error) {
	if !stdinIsTTY() {
		return l.readBuffered(prompt)
	}

	fd := int(l.in.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return l.readBuffered(prompt)
	}
	newState := *oldState
	newState.Lflag &^= unix.ICANON | unix.ECHO | unix.ISIG
	newState.Cc[unix.VMIN] = 1
	newState.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &newState); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState)
	}()

	e := &editor{out: l.out, prompt: prompt, history: l.history, histPos: len(l.history)}
	_, _ = fmt.Fprint(l.out, prompt)

	if line, done, err := l.consume(e, l.pending); done || err != nil {
		return line, err
	}

	var buf [16]byte
	for {
		n, err := l.in.Read(buf[:])
		if err != nil {
			return "", err
		}
		if line, done, err := l.consume(e, buf[:n]); done || err != nil {
			return line, err
		}
	}
}

// consume feeds data to e. Bytes after a completed line are kept for the
// next ReadLine, so pasted multi-line input is not lost.
func (l *lineReader) consume(e *editor, data []byte) (string, bool, error) {
	for i, b := range data {
		line, done, err := e.feed(b)
		if err != nil || done {
			l.pending = append(l.pending[:0:0], data[i+1:]...)
		}
		if err != nil {
			return "", false, err
		}
		if done {
			l.remember(strings.TrimSpace(line))
			return line, true, nil
		}
	}
	l.pending = l.pending[:0]
	return "", false, nil
}

// editor holds the state of one raw-mode line edit.
type editor struct {
	out     io.Writer
	prompt  string
	line    []byte
	cursor  int
	history []string

	escState int
	escBuf   strings.Builder

	histPos      int
	histBrowsing bool
	histDraft    string
}

// feed consumes one input byte. done is set when the line is complete.
func (e *editor) feed(b byte) (string, bool, error) {
	if e.escState != 0 {
		e.feedEscape(b)
		return "", false, nil
	}

	switch b {
	case 27: // ESC
		e.escState = 1
	case '\r', '\n':
		_, _ = fmt.Fprint(e.out, "\r\n")
		return string(e.line), true, nil
	case 3: // Ctrl+C
		_, _ = fmt.Fprint(e.out, "^C\r\n")
		return "", false, io.EOF
	case 4: // Ctrl+D
		if len(e.line) == 0 {
			_, _ = fmt.Fprint(e.out, "\r\n")
			return "", false, io.EOF
		}
	case 127, 8: // backspace
		if e.cursor > 0 {
			e.line = append(e.line[:e.cursor-1], e.line[e.cursor:]...)
			e.cursor--
			e.redraw()
		}
	case 1: // Ctrl+A
		e.cursor = 0
		e.redraw()
	case 5: // Ctrl+E
		e.cursor = len(e.line)
		e.redraw()
	case 21: // Ctrl+U
		e.line = append(e.line[:0], e.line[e.cursor:]...)
		e.cursor = 0
		e.redraw()
	case 23: // Ctrl+W
		e.deleteWordBack()
	default:
		if b >= 32 {
			e.line = append(e.line, 0)
			copy(e.line[e.cursor+1:], e.line[e.cursor:])
			e.line[e.cursor] = b
			e.cursor++
			e.redraw()
		}
	}
	return "", false, nil
}

func (e *editor) feedEscape(b byte) {
	switch e.escState {
	case 1:
		e.escState = 0
		switch b {
		case '[':
			e.escState = 2
			e.escBuf.Reset()
		case 'b', 'B': // Alt+b
			e.moveWordLeft()
		case 'f', 'F': // Alt+f
			e.moveWordRight()
		case 127: // Alt+Backspace
			e.deleteWordBack()
		}
	case 2:
		e.escBuf.WriteByte(b)
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
			e.handleCSI(e.escBuf.String())
			e.escState = 0
		}
	}
}

func (e *editor) handleCSI(seq string) {
	switch seq {
	case "A": // up
		if len(e.history) == 0 {
			return
		}
		if !e.histBrowsing {
			e.histDraft = string(e.line)
			e.histBrowsing = true
			e.histPos = len(e.history)
		}
		if e.histPos > 0 {
			e.histPos--
			e.setLine(e.history[e.histPos])
		}
	case "B": // down
		if !e.histBrowsing {
			return
		}
		if e.histPos < len(e.history)-1 {
			e.histPos++
			e.setLine(e.history[e.histPos])
		} else {
			e.histPos = len(e.history)
			e.histBrowsing = false
			e.setLine(e.histDraft)
		}
	case "D":
		if e.cursor > 0 {
			e.cursor--
			e.redraw()
		}
	case "C":
		if e.cursor < len(e.line) {
			e.cursor++
			e.redraw()
		}
	case "H":
		e.cursor = 0
		e.redraw()
	case "F":
		e.cursor = len(e.line)
		e.redraw()
	case "3~":
		if e.cursor < len(e.line) {
			e.line = append(e.line[:e.cursor], e.line[e.cursor+1:]...)
			e.redraw()
		}
	case "1;5D", "5D":
		e.moveWordLeft()
	case "1;5C", "5C":
		e.moveWordRight()
	case "3;5~":
		e.deleteWordForward()
	}
}

func (e *editor) setLine(s string) {
	e.line = append(e.line[:0], s...)
	e.cursor = len(e.line)
	e.redraw()
}

func (e *editor) redraw() {
	_, _ = fmt.Fprintf(e.out, "\r%s%s\x1b[K", e.prompt, e.line)
	if e.cursor < len(e.line) {
		_, _ = fmt.Fprintf(e.out, "\r%s%s", e.prompt, e.line[:e.cursor])
	}
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }

func (e *editor) moveWordLeft() {
	for e.cursor > 0 && isSpace(e.line[e.cursor-1]) {
		e.cursor--
	}
	for e.cursor > 0 && !isSpace(e.line[e.cursor-1]) {
		e.cursor--
	}
	e.redraw()
}

func (e *editor) moveWordRight() {
	for e.cursor < len(e.line) && isSpace(e.line[e.cursor]) {
		e.cursor++
	}
	for e.cursor < len(e.line) && !isSpace(e.line[e.cursor]) {
		e.cursor++
	}
	e.redraw()
}

func (e *editor) deleteWordBack() {
	start := e.cursor
	for start > 0 && isSpace(e.line[start-1]) {
		start--
	}
	for start > 0 && !isSpace(e.line[start-1]) {
		start--
	}
	e.line = append(e.line[:start], e.line[e.cursor:]...)
	e.cursor = start
	e.redraw()
}

func (e *editor) deleteWordForward() {
	end := e.cursor
	for end < len(e.line) && isSpace(e.line[end]) {
		end++
	}
	for end < len(e.line) && !isSpace(e.line[end]) {
		end++
	}
	e.line = append(e.line[:e.cursor], e.line[end:]...)
	e.redraw()
}
