// Package transcript appends a JSON Lines record of a chat session: one
// line when the session starts, one per turn and one when it ends. The log
// is write-only; nothing reads it back into a session.
package transcript

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/samcharles93/chatloop/internal/engine"
)

// Record types.
const (
	TypeStart      = "session_start"
	TypeTurn       = "turn"
	TypeTurnFailed = "turn_failed"
	TypeEnd        = "session_end"
)

type Record struct {
	Type    string    `json:"type"`
	Session string    `json:"session"`
	Seq     int       `json:"seq"`
	Time    time.Time `json:"time"`

	Model       string `json:"model,omitempty"`
	Backend     string `json:"backend,omitempty"`
	ContextSize int    `json:"context_size,omitempty"`

	User         string  `json:"user,omitempty"`
	Assistant    string  `json:"assistant,omitempty"`
	Stop         string  `json:"stop,omitempty"`
	PromptTokens int     `json:"prompt_tokens,omitempty"`
	Tokens       int     `json:"tokens,omitempty"`
	ContextUsed  int     `json:"context_used,omitempty"`
	TPS          float64 `json:"tokens_per_second,omitempty"`

	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Turn is the data recorded for one completed turn.
type Turn struct {
	User         string
	Assistant    string
	Stop         string
	PromptTokens int
	Tokens       int
	ContextUsed  int
	TPS          float64
}

// Writer appends records. A nil *Writer discards everything, so callers
// need not check whether a transcript was requested.
type Writer struct {
	enc     *json.Encoder
	closer  io.Closer
	session string
	seq     int
	now     func() time.Time
}

// Create opens path for appending.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	w := New(f)
	w.closer = f
	return w, nil
}

// New writes records to w under a fresh session id.
func New(w io.Writer) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{
		enc:     enc,
		session: uuid.NewString(),
		now:     time.Now,
	}
}

// SessionID identifies every record written by w.
func (w *Writer) SessionID() string {
	if w == nil {
		return ""
	}
	return w.session
}

func (w *Writer) Start(info engine.Info) error {
	return w.write(Record{
		Type:        TypeStart,
		Model:       info.Path,
		Backend:     info.Backend,
		ContextSize: info.ContextSize,
	})
}

func (w *Writer) Turn(t Turn) error {
	return w.write(Record{
		Type:         TypeTurn,
		User:         t.User,
		Assistant:    t.Assistant,
		Stop:         t.Stop,
		PromptTokens: t.PromptTokens,
		Tokens:       t.Tokens,
		ContextUsed:  t.ContextUsed,
		TPS:          t.TPS,
	})
}

// Failed records a turn that could not complete. partial is whatever was
// generated before the failure.
func (w *Writer) Failed(user, partial string, cause error) error {
	r := Record{Type: TypeTurnFailed, User: user, Assistant: partial}
	if cause != nil {
		r.Error = cause.Error()
	}
	return w.write(r)
}

func (w *Writer) End(reason string) error {
	return w.write(Record{Type: TypeEnd, Reason: reason})
}

func (w *Writer) Close() error {
	if w == nil || w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

func (w *Writer) write(r Record) error {
	if w == nil {
		return nil
	}
	w.seq++
	r.Session = w.session
	r.Seq = w.seq
	r.Time = w.now().UTC()
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
