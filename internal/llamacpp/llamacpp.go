//go:build llamacpp

package llamacpp

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"

	"github.com/samcharles93/chatloop/internal/engine"
	"github.com/samcharles93/chatloop/internal/logger"
	"github.com/samcharles93/chatloop/internal/logits"
)

const fallbackTemplate = "chatml"

var (
	loadOnce sync.Once
	loadErr  error
)

func loadLibrary(libPath string, log logger.Logger) error {
	loadOnce.Do(func() {
		if libPath == "" {
			libPath = os.Getenv("YZMA_LIB")
		}
		if libPath == "" {
			loadErr = errors.New("llama.cpp library path not set (use --lib-path or YZMA_LIB)")
			return
		}
		log.Debug("loading llama.cpp", "path", libPath)
		if err := llama.Load(libPath); err != nil {
			loadErr = fmt.Errorf("load llama.cpp from %s: %w", libPath, err)
			return
		}
		llama.Init()
	})
	return loadErr
}

// Engine is a loaded GGUF model with one context and one sequence.
type Engine struct {
	path      string
	model     llama.Model
	ctx       llama.Context
	vocab     llama.Vocab
	nCtx      int
	gpuLayers int
	template  string
	log       logger.Logger

	pieceBuf []byte
	closed   bool
}

var _ engine.Engine = (*Engine)(nil)

// Open loads the model at path.
func Open(path string, opts engine.Options) (*Engine, error) {
	opts = opts.WithDefaults()
	log := opts.Logger.With("backend", "llamacpp")
	if err := loadLibrary(opts.LibPath, log); err != nil {
		return nil, err
	}

	mparams := llama.ModelDefaultParams()
	mparams.NGpuLayers = int32(opts.GPULayers)
	model, err := llama.ModelLoadFromFile(path, mparams)
	if err != nil {
		return nil, fmt.Errorf("unable to load model %s: %w", path, err)
	}

	cparams := llama.ContextDefaultParams()
	cparams.NCtx = uint32(opts.ContextSize)
	cparams.NBatch = uint32(opts.BatchSize)
	lctx, err := llama.InitFromModel(model, cparams)
	if err != nil {
		llama.ModelFree(model)
		return nil, fmt.Errorf("failed to create the llama context: %w", err)
	}

	tmpl := llama.ModelChatTemplate(model, "")
	if tmpl == "" {
		tmpl, _ = llama.ModelMetaValStr(model, "tokenizer.chat_template")
	}
	if tmpl == "" {
		log.Warn("model has no chat template, using chatml")
		tmpl = fallbackTemplate
	}

	e := &Engine{
		path:      path,
		model:     model,
		ctx:       lctx,
		vocab:     llama.ModelGetVocab(model),
		nCtx:      int(llama.NCtx(lctx)),
		gpuLayers: opts.GPULayers,
		template:  tmpl,
		log:       log,
		pieceBuf:  make([]byte, 256),
	}
	log.Info("model loaded", "path", path, "n_ctx", e.nCtx, "gpu_layers", opts.GPULayers)
	return e, nil
}

func (e *Engine) Tokenize(text string, addSpecial, parseSpecial bool) ([]engine.Token, error) {
	toks := llama.Tokenize(e.vocab, text, addSpecial, parseSpecial)
	if len(toks) == 0 && text != "" {
		return nil, errors.New("failed to tokenize the prompt")
	}
	out := make([]engine.Token, len(toks))
	for i, t := range toks {
		out[i] = engine.Token(t)
	}
	return out, nil
}

func (e *Engine) TokenToPiece(id engine.Token, special bool) (string, error) {
	n := int(llama.TokenToPiece(e.vocab, llama.Token(id), e.pieceBuf, 0, special))
	if n < 0 {
		// A negative result is the buffer size the piece needs.
		e.pieceBuf = make([]byte, growPieceBuf(len(e.pieceBuf), n))
		n = int(llama.TokenToPiece(e.vocab, llama.Token(id), e.pieceBuf, 0, special))
	}
	if n < 0 || n > len(e.pieceBuf) {
		return "", fmt.Errorf("failed to convert token %d to piece", id)
	}
	return string(e.pieceBuf[:n]), nil
}

func (e *Engine) IsEOG(id engine.Token) bool {
	return llama.VocabIsEOG(e.vocab, llama.Token(id))
}

func (e *Engine) Decode(batch []engine.Token) error {
	if e.closed {
		return errors.New("llama.cpp engine is closed")
	}
	toks := make([]llama.Token, len(batch))
	for i, t := range batch {
		toks[i] = llama.Token(t)
	}
	if _, err := llama.Decode(e.ctx, llama.BatchGetOne(toks)); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	return nil
}

func (e *Engine) SeqPosMax() int {
	return int(llama.MemorySeqPosMax(llama.GetMemory(e.ctx), 0))
}

func (e *Engine) ContextSize() int { return e.nCtx }

func (e *Engine) ResetSequence() {
	e.log.Debug("clearing sequence", "positions", e.SeqPosMax()+1)
	llama.MemoryClear(llama.GetMemory(e.ctx), true)
}

func (e *Engine) ChatTemplate() string { return e.template }

func (e *Engine) ApplyTemplate(tmpl string, msgs []engine.Message, addAssistant bool, buf []byte) int {
	if tmpl == "" {
		tmpl = e.template
	}
	chat := make([]llama.ChatMessage, len(msgs))
	for i, m := range msgs {
		chat[i] = llama.NewChatMessage(m.Role, m.Content)
	}
	return int(llama.ChatApplyTemplate(tmpl, chat, addAssistant, buf))
}

// NewSampler builds the native chain in the same stage order as
// logits.NewChain.
func (e *Engine) NewSampler(cfg logits.ChainConfig) (engine.Sampler, error) {
	chain := llama.SamplerChainInit(llama.SamplerChainDefaultParams())
	llama.SamplerChainAdd(chain, llama.SamplerInitTopK(int32(cfg.TopK)))
	llama.SamplerChainAdd(chain, llama.SamplerInitTopP(cfg.TopP, uint32(cfg.MinKeep)))
	llama.SamplerChainAdd(chain, llama.SamplerInitPenalties(
		int32(cfg.PenaltyLastN), cfg.RepeatPenalty, cfg.FrequencyPenalty, cfg.PresencePenalty))
	llama.SamplerChainAdd(chain, llama.SamplerInitTemp(cfg.Temperature))
	seed := cfg.Seed
	if seed == logits.DefaultSeed {
		seed = llama.DefaultSeed
	}
	llama.SamplerChainAdd(chain, llama.SamplerInitDist(seed))
	return &sampler{ctx: e.ctx, chain: chain}, nil
}

func (e *Engine) Info() engine.Info {
	return engine.Info{
		Path:        e.path,
		Backend:     "llamacpp",
		ContextSize: e.nCtx,
		GPULayers:   e.gpuLayers,
		VocabSize:   int(llama.VocabNTokens(e.vocab)),
	}
}

func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	llama.Free(e.ctx)
	llama.ModelFree(e.model)
	return nil
}

type sampler struct {
	ctx   llama.Context
	chain llama.Sampler
}

// Sample draws from the logits of the last decoded position and accepts
// the token into the chain's history.
func (s *sampler) Sample() (engine.Token, error) {
	return engine.Token(llama.SamplerSample(s.chain, s.ctx, -1)), nil
}

func (s *sampler) Reset() { llama.SamplerReset(s.chain) }

func (s *sampler) Close() error {
	llama.SamplerFree(s.chain)
	return nil
}
