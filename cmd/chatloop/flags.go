package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chatloop/internal/logits"
)

// chatOptions holds every flag of the chat command.
type chatOptions struct {
	model      string
	modelsPath string
	backend    string
	libPath    string
	ctxSize    int64
	gpuLayers  int64
	nPredict   int64

	system     string
	transcript string
	streamMode string
	raw        bool
	noBanner   bool

	topK             int64
	topP             float64
	repeatLastN      int64
	repeatPenalty    float64
	frequencyPenalty float64
	presencePenalty  float64
	temp             float64
	seed             int64

	logLevel  string
	logFormat string
	logFile   string
	debug     bool
}

func defaultChatOptions() chatOptions {
	d := logits.DefaultChainConfig()
	return chatOptions{
		backend:          "auto",
		ctxSize:          2048,
		gpuLayers:        99,
		nPredict:         256,
		streamMode:       string(StreamInstant),
		topK:             int64(d.TopK),
		topP:             float64(d.TopP),
		repeatLastN:      int64(d.PenaltyLastN),
		repeatPenalty:    float64(d.RepeatPenalty),
		frequencyPenalty: float64(d.FrequencyPenalty),
		presencePenalty:  float64(d.PresencePenalty),
		temp:             float64(d.Temperature),
		seed:             -1,
		logLevel:         "warn",
		logFormat:        "auto",
	}
}

func chatFlags(o *chatOptions) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to a .gguf model (or a .yaml toy model)",
			Destination: &o.model,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "directory to pick a model from when --model is not set",
			Sources:     cli.EnvVars(envModelsDir),
			Destination: &o.modelsPath,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "inference backend (auto, toy, llamacpp)",
			Value:       o.backend,
			Destination: &o.backend,
		},
		&cli.StringFlag{
			Name:        "lib-path",
			Usage:       "directory containing the llama.cpp shared libraries",
			Sources:     cli.EnvVars("YZMA_LIB"),
			Destination: &o.libPath,
		},
		&cli.Int64Flag{
			Name:        "ctx-size",
			Aliases:     []string{"c"},
			Usage:       "context size in tokens",
			Value:       o.ctxSize,
			Destination: &o.ctxSize,
		},
		&cli.Int64Flag{
			Name:        "gpu-layers",
			Aliases:     []string{"ngl"},
			Usage:       "number of layers to offload to the GPU",
			Value:       o.gpuLayers,
			Destination: &o.gpuLayers,
		},
		&cli.Int64Flag{
			Name:        "n-predict",
			Aliases:     []string{"n"},
			Usage:       "maximum tokens to generate per reply (-1 = unlimited)",
			Value:       o.nPredict,
			Destination: &o.nPredict,
		},
		&cli.StringFlag{
			Name:        "system",
			Aliases:     []string{"sys"},
			Usage:       "optional system prompt",
			Destination: &o.system,
		},
		&cli.StringFlag{
			Name:        "transcript",
			Usage:       "append a JSON Lines record of the session to this file",
			Destination: &o.transcript,
		},
		&cli.StringFlag{
			Name:        "stream-mode",
			Usage:       "reply output mode (instant, typewriter, quiet)",
			Value:       o.streamMode,
			Destination: &o.streamMode,
		},
		&cli.BoolFlag{
			Name:        "raw",
			Usage:       "escape control and non-printable characters in replies",
			Destination: &o.raw,
		},
		&cli.BoolFlag{
			Name:        "no-banner",
			Usage:       "do not print the welcome banner",
			Destination: &o.noBanner,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Usage:       "top-k sampling parameter",
			Value:       o.topK,
			Destination: &o.topK,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Usage:       "top-p sampling parameter",
			Value:       o.topP,
			Destination: &o.topP,
		},
		&cli.Int64Flag{
			Name:        "repeat-last-n",
			Usage:       "last n tokens considered by the repetition penalties (0 = disabled)",
			Value:       o.repeatLastN,
			Destination: &o.repeatLastN,
		},
		&cli.Float64Flag{
			Name:        "repeat-penalty",
			Usage:       "repetition penalty (1.0 = disabled)",
			Value:       o.repeatPenalty,
			Destination: &o.repeatPenalty,
		},
		&cli.Float64Flag{
			Name:        "frequency-penalty",
			Usage:       "frequency penalty (0.0 = disabled)",
			Value:       o.frequencyPenalty,
			Destination: &o.frequencyPenalty,
		},
		&cli.Float64Flag{
			Name:        "presence-penalty",
			Usage:       "presence penalty (0.0 = disabled)",
			Value:       o.presencePenalty,
			Destination: &o.presencePenalty,
		},
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature"},
			Usage:       "sampling temperature",
			Value:       o.temp,
			Destination: &o.temp,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling RNG seed (-1 = random)",
			Value:       o.seed,
			Destination: &o.seed,
		},
	}
}

func loggingFlags(o *chatOptions) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       o.logLevel,
			Destination: &o.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       o.logFormat,
			Destination: &o.logFormat,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "also write JSON logs at debug level to this file",
			Destination: &o.logFile,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &o.debug,
		},
	}
}

func (o chatOptions) validate() error {
	var errs []error
	if o.ctxSize <= 0 {
		errs = append(errs, fmt.Errorf("--ctx-size must be positive, got %d", o.ctxSize))
	}
	if o.topK < 0 {
		errs = append(errs, fmt.Errorf("--top-k must not be negative, got %d", o.topK))
	}
	if o.topP <= 0 || o.topP > 1 {
		errs = append(errs, fmt.Errorf("--top-p must be in (0, 1], got %g", o.topP))
	}
	if o.temp < 0 {
		errs = append(errs, fmt.Errorf("--temp must not be negative, got %g", o.temp))
	}
	if o.repeatLastN < 0 {
		errs = append(errs, fmt.Errorf("--repeat-last-n must not be negative, got %d", o.repeatLastN))
	}
	switch StreamMode(o.streamMode) {
	case StreamInstant, StreamTypewriter, StreamQuiet:
	default:
		errs = append(errs, fmt.Errorf("unknown --stream-mode %q", o.streamMode))
	}
	return errors.Join(errs...)
}

// chainConfig converts the sampling flags.
func (o chatOptions) chainConfig() logits.ChainConfig {
	seed := logits.DefaultSeed
	if o.seed >= 0 {
		seed = uint32(o.seed)
	}
	return logits.ChainConfig{
		TopK:             int(o.topK),
		TopP:             float32(o.topP),
		MinKeep:          1,
		PenaltyLastN:     int(o.repeatLastN),
		RepeatPenalty:    float32(o.repeatPenalty),
		FrequencyPenalty: float32(o.frequencyPenalty),
		PresencePenalty:  float32(o.presencePenalty),
		Temperature:      float32(o.temp),
		Seed:             seed,
	}
}
