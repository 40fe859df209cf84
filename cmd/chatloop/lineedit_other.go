//go:build !linux

package main

func (l *lineReader) ReadLine(prompt string) (string, error) {
	line, err := l.readBuffered(prompt)
	if err == nil {
		l.remember(line)
	}
	return line, err
}
