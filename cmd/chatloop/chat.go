package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/chatloop/internal/backend"
	"github.com/samcharles93/chatloop/internal/engine"
	"github.com/samcharles93/chatloop/internal/logger"
	"github.com/samcharles93/chatloop/internal/session"
	"github.com/samcharles93/chatloop/internal/transcript"
)

func chatAction(opts *chatOptions) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg, err := LoadConfig()
		if err != nil {
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}
		applyChatConfig(c, cfg, opts)

		level, err := logger.ParseLevel(opts.logLevel)
		if err != nil {
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}
		if opts.debug {
			level = slog.LevelDebug
		}
		log, logCloser, err := logger.Setup(logger.Options{
			Level:  level,
			Format: opts.logFormat,
			Writer: os.Stderr,
			File:   opts.logFile,
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}
		defer func() { _ = logCloser.Close() }()

		if err := opts.validate(); err != nil {
			return usageExit(c, err)
		}

		modelPath, err := resolveModelPath(opts.model, opts.modelsPath, os.Stdin, os.Stderr)
		if err != nil {
			return usageExit(c, err)
		}

		log.Info("loading model", "path", modelPath, "backend", opts.backend, "ctx", opts.ctxSize, "ngl", opts.gpuLayers)
		eng, err := backend.Open(opts.backend, modelPath, engine.Options{
			ContextSize: int(opts.ctxSize),
			GPULayers:   int(opts.gpuLayers),
			LibPath:     opts.libPath,
			Logger:      log,
		})
		if err != nil {
			log.Error("model load failed", "path", modelPath, "error", err)
			return cli.Exit(fmt.Sprintf("error: unable to load model: %v", err), 1)
		}
		defer func() { _ = eng.Close() }()

		var tw *transcript.Writer
		if opts.transcript != "" {
			tw, err = transcript.Create(opts.transcript)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = tw.Close() }()
			log = log.With("session", tw.SessionID())
		}

		styles := session.DefaultStyles()
		s, err := session.New(session.Config{
			Engine:     eng,
			Sampling:   opts.chainConfig(),
			MaxPredict: int(opts.nPredict),
			System:     opts.system,
			Input:      newLineReader(os.Stdin, os.Stdout),
			Sink:       NewStreamWriter(os.Stdout, StreamMode(opts.streamMode), opts.raw, styles.Notice),
			Stdout:     os.Stdout,
			Stderr:     os.Stderr,
			Transcript: tw,
			Logger:     log,
			Styles:     &styles,
			Banner:     !opts.noBanner,
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}
		defer func() { _ = s.Close() }()

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := s.Run(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}
		return nil
	}
}

// usageExit prints the command help, then fails with err.
func usageExit(c *cli.Command, err error) error {
	_ = cli.ShowAppHelp(c)
	return cli.Exit(fmt.Sprintf("error: %v", err), 1)
}
