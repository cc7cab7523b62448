package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"racefeed/internal/daemon"
	"racefeed/internal/queue"
	"racefeed/internal/workflow"
)

const (
	exitFailure = 1
	// exitBusy means another process holds the work: the daemon lock, a
	// platform lock or an unfinished attempt. Cron wrappers treat it as a skip.
	exitBusy = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, daemon.ErrAlreadyRunning),
		errors.Is(err, workflow.ErrPlatformLocked),
		errors.Is(err, queue.ErrPlatformBusy):
		return exitBusy
	default:
		return exitFailure
	}
}
