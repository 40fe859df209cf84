package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samcharles93/chatloop/internal/engine"
	"github.com/samcharles93/chatloop/internal/guard"
	"github.com/samcharles93/chatloop/internal/logger"
	"github.com/samcharles93/chatloop/internal/window"
)

// Generator runs one user turn at a time against a single engine sequence.
// The engine, sampler and window are shared across turns; all per-turn
// counters live in State and start fresh on every Generate call.
type Generator struct {
	Model   Model
	Sampler engine.Sampler
	Window  *window.Tracker

	// MaxPredict caps emitted tokens per turn. Negative means unlimited.
	MaxPredict int

	// Classifier overrides the anomaly policy; nil uses guard.DefaultClassifier.
	Classifier       guard.Classifier
	StallThreshold   int
	AnomalyThreshold int

	Stream StreamFunc
	// Diagnostics receives the quality warning when the anomaly guard trips.
	Diagnostics io.Writer
	Logger      logger.Logger

	stall   *guard.Stall
	anomaly *guard.Anomaly
}

// guards returns the stall and anomaly guards, cleared for a new turn.
func (g *Generator) guards() (*guard.Stall, *guard.Anomaly) {
	if g.stall == nil {
		g.stall = guard.NewStall(g.StallThreshold)
		g.anomaly = guard.NewAnomaly(g.Classifier, g.AnomalyThreshold)
	}
	g.stall.Reset()
	g.anomaly.Reset()
	return g.stall, g.anomaly
}

// Generate decodes prompt and samples a response until a stop condition.
//
// The loop is decode, sample, stop checks, detokenize, anomaly check,
// emit. A token that triggers a stop is never emitted. The context window
// is checked before every decode, never after.
func (g *Generator) Generate(ctx context.Context, prompt string) (res Result, err error) {
	log := g.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}

	// Only the first prompt of a conversation carries the BOS marker.
	first := g.Window.IsEmpty()
	tokens, err := safeTokenize(g.Model, prompt, first, true)
	if err != nil {
		return res, &EngineError{Op: "tokenize", Err: err}
	}
	if len(tokens) == 0 {
		return res, &EngineError{Op: "tokenize", Err: errors.New("prompt produced no tokens")}
	}
	res.PromptTokens = len(tokens)
	log.Debug("prompt tokenized", "tokens", len(tokens), "first", first, "context", g.Window.String())

	stall, anomaly := g.guards()

	var sb strings.Builder
	batch := tokens
	start := time.Now()
	finish := func() {
		res.Text = sb.String()
		res.Stats.TokensGenerated = res.State.TokensDecoded
		res.Stats.Duration = time.Since(start)
		if res.Stats.Duration.Seconds() > 0 {
			res.Stats.TPS = float64(res.Stats.TokensGenerated) / res.Stats.Duration.Seconds()
		}
	}
	defer finish()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if g.Window.WouldOverflow(len(batch)) {
			return res, fmt.Errorf("%w: %d used + %d pending > %d",
				ErrContextExceeded, g.Window.Used(), len(batch), g.Window.Capacity())
		}

		if err := safeDecode(g.Model, batch); err != nil {
			return res, &EngineError{Op: "decode", Err: err}
		}

		id, err := safeSample(g.Sampler)
		if err != nil {
			return res, &EngineError{Op: "sample", Err: err}
		}

		run, stalled := stall.Observe(int32(id))
		last, hasLast := stall.Last()
		res.State.LastToken = engine.Token(last)
		res.State.HasLast = hasLast
		res.State.SameTokenRun = stall.Run()

		switch {
		case g.Model.IsEOG(id):
			res.Stop = StopEOG
		case g.MaxPredict >= 0 && res.State.TokensDecoded >= g.MaxPredict:
			res.Stop = StopMaxLength
		case stalled:
			res.Stop = StopStall
			log.Warn("generation stalled", "token", id, "repeats", run)
		}
		if res.Stop != StopNone {
			break
		}

		piece, err := safePiece(g.Model, id)
		if err != nil {
			return res, &EngineError{Op: "token to piece", Err: err}
		}

		_, tripped := anomaly.Observe(piece)
		res.State.AnomalyRun = anomaly.Run()
		if tripped {
			res.Stop = StopAnomaly
			log.Warn("anomalous output detected", "run", anomaly.Run())
			if g.Diagnostics != nil {
				_, _ = io.WriteString(g.Diagnostics, "\n"+guard.QualityWarning+"\n")
			}
			break
		}

		sb.WriteString(piece)
		if g.Stream != nil {
			g.Stream(piece)
		}
		res.State.TokensDecoded++

		batch = []engine.Token{id}
	}

	log.Debug("turn finished",
		"stop", res.Stop.String(),
		"tokens", res.State.TokensDecoded,
		"context", g.Window.String(),
	)
	return res, nil
}

func safeTokenize(m Model, text string, addSpecial, parseSpecial bool) (ids []engine.Token, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Tokenize: %v", rec)
		}
	}()
	return m.Tokenize(text, addSpecial, parseSpecial)
}

func safeDecode(m Model, batch []engine.Token) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Decode: %v", rec)
		}
	}()
	return m.Decode(batch)
}

func safeSample(s engine.Sampler) (id engine.Token, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Sample: %v", rec)
		}
	}()
	return s.Sample()
}

func safePiece(m Model, id engine.Token) (piece string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in TokenToPiece: %v", rec)
		}
	}()
	return m.TokenToPiece(id, true)
}
