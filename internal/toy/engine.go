// Package toy is a small pure-Go engine: a byte tokenizer and a seeded
// bigram model. It runs anywhere, needs no model download and is what the
// chat loop tests drive.
package toy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/chatloop/internal/engine"
	"github.com/samcharles93/chatloop/internal/logger"
	"github.com/samcharles93/chatloop/internal/logits"
	"github.com/samcharles93/chatloop/internal/tplparser"
)

// Spec is the YAML description of a toy model.
type Spec struct {
	Seed          int64  `yaml:"seed"`
	Hidden        int    `yaml:"hidden"`
	ContextLength int    `yaml:"context_length"`
	Template      string `yaml:"template"`
	// EOSBias is added to the end-of-turn logits once per generated token,
	// so replies end after a length that grows as the bias shrinks.
	EOSBias float32 `yaml:"eos_bias"`
}

func (s Spec) withDefaults() Spec {
	if s.Hidden <= 0 {
		s.Hidden = 32
	}
	if s.Template == "" {
		s.Template = tplparser.ChatML
	}
	if s.EOSBias == 0 {
		s.EOSBias = 0.1
	}
	return s
}

// LoadSpec reads a toy model file.
func LoadSpec(path string) (Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read toy model: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return Spec{}, fmt.Errorf("parse toy model %s: %w", path, err)
	}
	if spec.Template != "" && !tplparser.Supported(spec.Template) {
		return Spec{}, fmt.Errorf("toy model %s: unsupported chat template %q", path, spec.Template)
	}
	return spec, nil
}

var errClosed = errors.New("toy engine is closed")

// Engine implements engine.Engine over a ToyLM with a single sequence.
type Engine struct {
	Tokenizer

	path string
	spec Spec
	lm   *ToyLM
	nCtx int
	log  logger.Logger

	pos        int
	sinceBatch int
	last       []float32
	closed     bool
}

var _ engine.Engine = (*Engine)(nil)

// Open loads a toy model from a YAML file.
func Open(path string, opts engine.Options) (*Engine, error) {
	spec, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	e := New(spec, opts)
	e.path = path
	return e, nil
}

// New builds a toy engine from spec.
func New(spec Spec, opts engine.Options) *Engine {
	opts = opts.WithDefaults()
	spec = spec.withDefaults()

	nCtx := opts.ContextSize
	if spec.ContextLength > 0 && nCtx > spec.ContextLength {
		opts.Logger.Warn("context size clamped to model limit", "requested", nCtx, "limit", spec.ContextLength)
		nCtx = spec.ContextLength
	}

	lm := NewToyLM(VocabSize, spec.Hidden, spec.Seed)
	// Keep replies printable: only ASCII text and the end-of-turn tokens
	// are reachable.
	for id := range lm.Bias {
		if (id < 0x20 && id != '\n') || id > 0x7e {
			lm.Bias[id] = -30
		}
	}
	lm.Bias[TokenEOS] = 0
	lm.Bias[TokenIMEnd] = 0

	return &Engine{
		spec: spec,
		lm:   lm,
		nCtx: nCtx,
		log:  opts.Logger.With("backend", "toy"),
	}
}

func (e *Engine) Decode(batch []engine.Token) error {
	if e.closed {
		return errClosed
	}
	if len(batch) == 0 {
		return errors.New("empty batch")
	}
	if e.pos+len(batch) > e.nCtx {
		return fmt.Errorf("sequence full: %d + %d > %d", e.pos, len(batch), e.nCtx)
	}
	for _, id := range batch {
		if id < 0 || int(id) >= e.lm.Vocab {
			return fmt.Errorf("token %d out of vocabulary", id)
		}
	}

	e.last = e.lm.Forward(int(batch[len(batch)-1]))
	e.pos += len(batch)
	if len(batch) > 1 {
		e.sinceBatch = 0
	} else {
		e.sinceBatch++
	}
	bias := e.spec.EOSBias * float32(e.sinceBatch)
	e.last[TokenEOS] += bias
	e.last[TokenIMEnd] += bias
	return nil
}

func (e *Engine) SeqPosMax() int   { return e.pos - 1 }
func (e *Engine) ContextSize() int { return e.nCtx }

func (e *Engine) ResetSequence() {
	e.log.Debug("sequence reset", "positions", e.pos)
	e.pos = 0
	e.sinceBatch = 0
	e.last = nil
}

func (e *Engine) ChatTemplate() string { return e.spec.Template }

func (e *Engine) ApplyTemplate(tmpl string, msgs []engine.Message, addAssistant bool, buf []byte) int {
	if tmpl == "" {
		tmpl = e.spec.Template
	}
	out := make([]tplparser.Message, len(msgs))
	for i, m := range msgs {
		out[i] = tplparser.Message{Role: m.Role, Content: m.Content}
	}
	return tplparser.Apply(tplparser.RenderOptions{
		Template:            tmpl,
		Arch:                "toy",
		AddGenerationPrompt: addAssistant,
		Messages:            out,
	}, buf)
}

func (e *Engine) NewSampler(cfg logits.ChainConfig) (engine.Sampler, error) {
	if e.closed {
		return nil, errClosed
	}
	return &sampler{e: e, chain: logits.NewChain(cfg)}, nil
}

func (e *Engine) Info() engine.Info {
	return engine.Info{
		Path:        e.path,
		Backend:     "toy",
		ContextSize: e.nCtx,
		VocabSize:   e.lm.Vocab,
	}
}

func (e *Engine) Close() error {
	e.closed = true
	e.last = nil
	return nil
}

type sampler struct {
	e     *Engine
	chain *logits.Chain
}

func (s *sampler) Sample() (engine.Token, error) {
	if s.e.last == nil {
		return 0, errors.New("sample called before decode")
	}
	return engine.Token(s.chain.Sample(s.e.last)), nil
}

func (s *sampler) Reset() { s.chain.Reset() }

func (s *sampler) Close() error { return nil }
