package main

import (
	"context"
	"os"
	"os/signal"

	"pkgpress.run/cmd/pkgpress/command"
)

func main() {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt)
	os.Exit(command.Run(ctx, os.LookupEnv, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]))
}
