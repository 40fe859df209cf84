package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// lineReader reads user input for the chat loop. On a Linux terminal it
// edits lines in raw mode with history; everywhere else it reads buffered
// lines.
type lineReader struct {
	in      *os.File
	out     io.Writer
	reader  *bufio.Reader
	history []string
	// pending holds raw-mode input read past the end of the last line.
	pending []byte
}

func newLineReader(in *os.File, out io.Writer) *lineReader {
	return &lineReader{in: in, out: out, reader: bufio.NewReader(in)}
}

// readBuffered prints the prompt and reads one line. A final line without
// a newline is returned before io.EOF.
func (l *lineReader) readBuffered(prompt string) (string, error) {
	_, _ = fmt.Fprint(l.out, prompt)
	s, err := l.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if s == "" {
			return "", io.EOF
		}
	}
	return trimTrailingNewline(s), nil
}

func (l *lineReader) remember(line string) {
	if line == "" {
		return
	}
	if n := len(l.history); n > 0 && l.history[n-1] == line {
		return
	}
	l.history = append(l.history, line)
}

func trimTrailingNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}
