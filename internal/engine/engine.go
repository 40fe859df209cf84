// Package engine describes the inference engine capabilities the chat loop
// consumes: tokenization, single-sequence decoding, chat template rendering
// and token sampling. Implementations live in internal/toy and
// internal/llamacpp; internal/backend selects one for a model path.
package engine

import (
	"github.com/samcharles93/chatloop/internal/logger"
	"github.com/samcharles93/chatloop/internal/logits"
)

// Token is a vocabulary id.
type Token int32

// Message is one rendered chat message handed to a template renderer.
type Message struct {
	Role    string
	Content string
}

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	// Tokenize splits text into token ids. addSpecial requests the leading
	// beginning-of-sequence marker; parseSpecial lets control tokens written
	// in the text (e.g. "<|im_start|>") map to their ids.
	Tokenize(text string, addSpecial, parseSpecial bool) ([]Token, error)
	// TokenToPiece returns the display text for a single token.
	TokenToPiece(id Token, special bool) (string, error)
	// IsEOG reports whether id ends generation.
	IsEOG(id Token) bool
}

// Decoder runs forward passes over the single active sequence.
type Decoder interface {
	// Decode advances the sequence over batch.
	Decode(batch []Token) error
	// SeqPosMax is the highest occupied position, or -1 when empty.
	SeqPosMax() int
	// ContextSize is the number of positions the sequence may occupy.
	ContextSize() int
	// ResetSequence drops every position of the active sequence.
	ResetSequence()
}

// TemplateRenderer renders a conversation with a chat template.
type TemplateRenderer interface {
	// ChatTemplate returns the model's template, or "" when it has none.
	ChatTemplate() string
	// ApplyTemplate renders msgs into buf and returns the full rendered
	// length. When the result is larger than len(buf) nothing useful is
	// written and the caller grows buf and calls again. A negative result
	// means the template could not be applied.
	ApplyTemplate(tmpl string, msgs []Message, addAssistant bool, buf []byte) int
}

// Sampler selects the next token from the distribution produced by the
// most recent Decode call and records it in its own history.
type Sampler interface {
	Sample() (Token, error)
	// Reset forgets the token history. It is called whenever the engine
	// sequence is cleared.
	Reset()
	Close() error
}

// Info summarises a loaded engine for banners and logs.
type Info struct {
	Path        string
	Backend     string
	ContextSize int
	GPULayers   int
	VocabSize   int
}

// Engine is a loaded model with one active sequence.
type Engine interface {
	Tokenizer
	Decoder
	TemplateRenderer
	// NewSampler builds a sampler chain bound to this engine's output.
	NewSampler(cfg logits.ChainConfig) (Sampler, error)
	Info() Info
	Close() error
}

// Options configures model loading.
type Options struct {
	ContextSize int
	BatchSize   int
	GPULayers   int
	// LibPath locates native engine libraries where a backend needs them.
	LibPath string
	Logger  logger.Logger
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.ContextSize <= 0 {
		o.ContextSize = 2048
	}
	if o.BatchSize <= 0 {
		o.BatchSize = o.ContextSize
	}
	if o.Logger == nil {
		o.Logger = logger.Default()
	}
	return o
}

