// Package session drives an interactive chat: read a line, format the
// incremental prompt, generate, commit the reply and repeat until the user
// enters an empty line or input ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/samcharles93/chatloop/internal/chat"
	"github.com/samcharles93/chatloop/internal/engine"
	"github.com/samcharles93/chatloop/internal/guard"
	"github.com/samcharles93/chatloop/internal/inference"
	"github.com/samcharles93/chatloop/internal/logger"
	"github.com/samcharles93/chatloop/internal/logits"
	"github.com/samcharles93/chatloop/internal/transcript"
	"github.com/samcharles93/chatloop/internal/window"
)

// LineReader returns one line of user input without its line terminator,
// or io.EOF when input is exhausted.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Sink receives generated text as it is produced.
type Sink interface {
	Write(piece string)
	// Flush ends the current reply and returns its text.
	Flush() string
}

// Styles colour the text the session writes itself.
type Styles struct {
	Prompt lipgloss.Style
	Title  lipgloss.Style
	Notice lipgloss.Style
}

// DefaultStyles are a green prompt and yellow notices.
func DefaultStyles() Styles {
	return Styles{
		Prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Title:  lipgloss.NewStyle().Bold(true),
		Notice: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

type Config struct {
	Engine   engine.Engine
	Sampling logits.ChainConfig
	// MaxPredict caps generated tokens per turn; negative is unlimited.
	MaxPredict int
	System     string
	Classifier guard.Classifier

	Input LineReader
	Sink  Sink
	// Stdout receives the banner; Stderr receives notices and diagnostics.
	Stdout io.Writer
	Stderr io.Writer

	Transcript *transcript.Writer
	Logger     logger.Logger
	// Styles defaults to DefaultStyles.
	Styles *Styles
	// Banner prints the welcome text before the first prompt.
	Banner bool
}

// Session owns the conversation and the generation state for one engine
// sequence. It is not safe for concurrent use.
type Session struct {
	cfg     Config
	log     logger.Logger
	sampler engine.Sampler
	format  *chat.Formatter
	gen     *inference.Generator
	turns   int
}

// New prepares a session over a loaded engine. The caller keeps ownership
// of the engine; Close releases only what the session created.
func New(cfg Config) (*Session, error) {
	if cfg.Engine == nil || cfg.Input == nil || cfg.Sink == nil {
		return nil, errors.New("session: engine, input and sink are required")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	if cfg.Stderr == nil {
		cfg.Stderr = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Styles == nil {
		st := DefaultStyles()
		cfg.Styles = &st
	}

	sampler, err := cfg.Engine.NewSampler(cfg.Sampling)
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}

	ctxSize := cfg.Engine.ContextSize()
	s := &Session{
		cfg:     cfg,
		log:     cfg.Logger,
		sampler: sampler,
		format: chat.NewFormatter(cfg.Engine, chat.Options{
			Template:   cfg.Engine.ChatTemplate(),
			System:     cfg.System,
			BufferSize: ctxSize,
			Logger:     cfg.Logger,
		}),
	}
	s.gen = &inference.Generator{
		Model:       cfg.Engine,
		Sampler:     sampler,
		Window:      window.New(cfg.Engine, ctxSize),
		MaxPredict:  cfg.MaxPredict,
		Classifier:  cfg.Classifier,
		Stream:      cfg.Sink.Write,
		Diagnostics: cfg.Stderr,
	}
	return s, nil
}

// Run reads and answers lines until an empty line or end of input, which
// both return nil. Errors that end the session are returned; a turn that
// overflows the context only resets the conversation.
func (s *Session) Run(ctx context.Context) error {
	if err := s.cfg.Transcript.Start(s.cfg.Engine.Info()); err != nil {
		s.log.Warn("transcript write failed", "error", err)
	}
	if s.cfg.Banner {
		s.printBanner()
	}

	reason := "empty line"
	err := s.loop(ctx, &reason)
	if err != nil {
		reason = "error"
	}
	if terr := s.cfg.Transcript.End(reason); terr != nil {
		s.log.Warn("transcript write failed", "error", terr)
	}
	return err
}

func (s *Session) loop(ctx context.Context, reason *string) error {
	for {
		line, err := s.cfg.Input.ReadLine(s.cfg.Styles.Prompt.Render("> "))
		if errors.Is(err, io.EOF) {
			*reason = "eof"
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if line == "" {
			return nil
		}
		if _, err := s.Turn(ctx, line); err != nil {
			return err
		}
	}
}

// Turn answers a single user message. It returns an error only when the
// session cannot continue.
func (s *Session) Turn(ctx context.Context, text string) (inference.Result, error) {
	ctx = logger.WithContext(ctx, s.log.With("turn", s.turns+1))
	prompt, err := s.format.RenderPrompt(text)
	if err != nil {
		return inference.Result{}, err
	}

	res, err := s.gen.Generate(ctx, prompt)
	s.cfg.Sink.Flush()
	_, _ = io.WriteString(s.cfg.Stdout, "\n")

	switch inference.Classify(err) {
	case inference.OutcomeContinue:
		if err := s.format.CommitAssistant(res.Text); err != nil {
			return res, err
		}
		s.turns++
		s.log.Debug("turn complete",
			"turn", s.turns,
			"stop", res.Stop.String(),
			"tokens", res.Stats.TokensGenerated,
			"tps", res.Stats.TPS,
			"context", s.gen.Window.String(),
			"remaining", s.gen.Window.Remaining(),
		)
		s.record(transcript.Turn{
			User:         text,
			Assistant:    res.Text,
			Stop:         res.Stop.String(),
			PromptTokens: res.PromptTokens,
			Tokens:       res.Stats.TokensGenerated,
			ContextUsed:  s.gen.Window.Used(),
			TPS:          res.Stats.TPS,
		})
		return res, nil

	case inference.OutcomeTurnFailed:
		s.log.Warn("turn failed", "error", err, "context", s.gen.Window.String())
		_, _ = fmt.Fprintln(s.cfg.Stderr, s.cfg.Styles.Notice.Render(
			"context size exceeded; starting a new conversation"))
		if terr := s.cfg.Transcript.Failed(text, res.Text, err); terr != nil {
			s.log.Warn("transcript write failed", "error", terr)
		}
		s.Reset()
		return res, nil

	default:
		return res, err
	}
}

// Reset forgets the conversation, clears the engine sequence and the
// sampler history. The system prompt, if any, is kept.
func (s *Session) Reset() {
	s.cfg.Engine.ResetSequence()
	s.sampler.Reset()
	s.format.Reset()
}

// Turns returns the conversation so far.
func (s *Session) Turns() []chat.Turn { return s.format.Turns() }

// Close releases the sampler. The engine is left open.
func (s *Session) Close() error {
	return s.sampler.Close()
}

func (s *Session) record(t transcript.Turn) {
	if err := s.cfg.Transcript.Turn(t); err != nil {
		s.log.Warn("transcript write failed", "error", err)
	}
}

func (s *Session) printBanner() {
	info := s.cfg.Engine.Info()
	gpu := "disabled"
	if info.GPULayers > 0 {
		gpu = "enabled"
	}
	w := s.cfg.Stdout
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, s.cfg.Styles.Title.Render("=== chatloop ==="))
	_, _ = fmt.Fprintf(w, "GPU offload: %s\n", gpu)
	_, _ = fmt.Fprintf(w, "Model: %s (%s, context %d)\n", info.Path, info.Backend, info.ContextSize)
	_, _ = fmt.Fprintln(w, "Type a message and press Enter. An empty line quits.")
	_, _ = fmt.Fprintln(w, "Abnormal model output is detected and stopped automatically.")
	_, _ = fmt.Fprintln(w)
}
