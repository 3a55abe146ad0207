// Package main is the skillshub binary: the REST server and its database
// tooling.
//
//	skillshub serve [--storage postgres|memory] [--addr :8080]
//	skillshub migrate up [--seed]
//	skillshub migrate down
//	skillshub migrate status
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
