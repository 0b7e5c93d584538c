package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finitefield.org/page-spark/internal/pagespark/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, cli.Options{Version: version}, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
