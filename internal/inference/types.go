package inference

import (
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/chatloop/internal/engine"
)

// StreamFunc receives each display piece as soon as it is accepted.
type StreamFunc func(piece string)

// Model is the part of an engine the generation loop drives.
type Model interface {
	engine.Tokenizer
	Decode(batch []engine.Token) error
}

// StopReason records why a turn ended.
type StopReason int

const (
	StopNone StopReason = iota
	// StopEOG: the model produced an end-of-generation token.
	StopEOG
	// StopMaxLength: the per-turn token budget was spent.
	StopMaxLength
	// StopStall: the same token id repeated too many times in a row.
	StopStall
	// StopAnomaly: too many suspicious pieces in a row.
	StopAnomaly
)

func (r StopReason) String() string {
	switch r {
	case StopEOG:
		return "eog"
	case StopMaxLength:
		return "max_length"
	case StopStall:
		return "stall"
	case StopAnomaly:
		return "anomaly"
	default:
		return "none"
	}
}

// State is the per-turn bookkeeping of the loop. It starts zeroed for
// every turn.
type State struct {
	LastToken     engine.Token
	HasLast       bool
	SameTokenRun  int
	AnomalyRun    int
	TokensDecoded int
}

type Stats struct {
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// Result is the outcome of one turn. Text holds everything emitted, also
// when the turn ended with an error.
type Result struct {
	Text         string
	Stop         StopReason
	PromptTokens int
	State        State
	Stats        Stats
}

// ErrContextExceeded is returned when the next batch would not fit in the
// context window. The turn cannot continue but the session can, after the
// sequence is reset.
var ErrContextExceeded = errors.New("context size exceeded")

// EngineError wraps a failure reported by the inference engine. These are
// treated as fatal for the session.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Outcome tells the session driver how to proceed after a turn.
type Outcome int

const (
	// OutcomeContinue: the turn finished normally, including safety stops.
	OutcomeContinue Outcome = iota
	// OutcomeTurnFailed: the turn could not complete; the session may go on.
	OutcomeTurnFailed
	// OutcomeSessionFatal: the session must end.
	OutcomeSessionFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeTurnFailed:
		return "turn_failed"
	default:
		return "session_fatal"
	}
}

// Classify maps an error returned by Generate to an Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeContinue
	case errors.Is(err, ErrContextExceeded):
		return OutcomeTurnFailed
	default:
		return OutcomeSessionFatal
	}
}
