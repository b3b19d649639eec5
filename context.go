package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tonimelisma/galaxykit-go/internal/config"
	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

// CLIFlags are the output-affecting persistent flags, captured once per run.
type CLIFlags struct {
	JSON   bool
	Quiet  bool
	Ignore bool
}

// CLIContext carries per-invocation state from PersistentPreRunE to RunE.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.ResolvedProfile
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
	Err    io.Writer

	client *galaxy.Client
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// cliContextFrom returns the CLIContext attached by prepare, or nil.
func cliContextFrom(ctx context.Context) *CLIContext {
	if ctx == nil {
		return nil
	}

	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)

	return cc
}

// mustCLIContext is cliContextFrom for commands that cannot run without it.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("galaxykit: command run without CLIContext")
	}

	return cc
}

// Client returns the authenticated session, creating it on first use.
func (cc *CLIContext) Client(ctx context.Context) (*galaxy.Client, error) {
	if cc.client != nil {
		return cc.client, nil
	}

	if cc.Cfg == nil {
		return nil, errors.New("no configuration loaded")
	}

	c, err := galaxy.NewClient(ctx, cc.Cfg.Server, credentialFor(cc.Cfg), clientOptions(cc.Cfg, cc.Logger))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cc.Cfg.Server, err)
	}

	cc.client = c

	return c, nil
}

// AnonymousClient returns a session that sends no credentials.
func (cc *CLIContext) AnonymousClient(ctx context.Context) (*galaxy.Client, error) {
	if cc.Cfg == nil {
		return nil, errors.New("no configuration loaded")
	}

	return galaxy.NewClient(ctx, cc.Cfg.Server, nil, clientOptions(cc.Cfg, cc.Logger))
}
