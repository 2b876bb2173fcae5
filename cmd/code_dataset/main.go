package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	cli := newApp(os.Stdout, os.Stderr)
	err := cli.command().ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.logger.Error().Err(err).Msg("code_dataset failed")
		os.Exit(1)
	}
}
