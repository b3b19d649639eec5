package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// forceExit is os.Exit outside tests.
var forceExit = os.Exit

// shutdownContext derives the command context. The first SIGINT or SIGTERM
// cancels it: the session's 504 retry and gateway replay waits return,
// task polling stops sleeping and a WaitForTasks group cancels its
// remaining waits. A second signal exits with code 1 without waiting for
// any of that to unwind.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("interrupted, canceling hub requests",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("interrupted again, exiting",
				slog.String("signal", sig.String()),
			)
			forceExit(exitUnknown)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}
