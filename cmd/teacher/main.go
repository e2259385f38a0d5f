package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arise/internal/client"
	"arise/internal/config"
	"arise/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.OrNop(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := commandLine{
		cfg: cfg,
		log: logger,
		in:  os.Stdin,
		out: os.Stdout,
		newAPI: func(token string) consoleAPI {
			return client.New(cfg.APIBaseURL, token, cfg.RequestTimeout)
		},
		now: time.Now,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "error: %s\n", errMessage(err))
		}
		stop()
		os.Exit(1)
	}
}
