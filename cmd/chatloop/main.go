package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	opts := defaultChatOptions()
	if err := newApp(&opts).Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(opts *chatOptions) *cli.Command {
	return &cli.Command{
		Name:      "chatloop",
		Usage:     "Interactive chat with a local language model",
		UsageText: "chatloop -m model.gguf [-c context_size] [-ngl n_gpu_layers] [-n n_predict]",
		Flags:     append(chatFlags(opts), loggingFlags(opts)...),
		Action:    chatAction(opts),
		Commands: []*cli.Command{
			versionCmd(),
		},
	}
}
