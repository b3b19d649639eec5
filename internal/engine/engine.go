// Package engine drives a local container engine (podman or docker) to log
// in to a registry and pull, tag and push images. The engine binary is run
// through a Runner so tests never shell out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Supported engines.
const (
	Podman = "podman"
	Docker = "docker"
)

// ErrEngineNotFound means the engine binary is not on PATH.
var ErrEngineNotFound = errors.New("engine: container engine not found")

// CommandError is a failed engine invocation.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("engine: %s: %v", strings.Join(e.Args, " "), e.Err)
	}

	return fmt.Sprintf("engine: %s: %v: %s", strings.Join(e.Args, " "), e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes an external command and returns its combined output.
// stdin may be nil.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	out, err := cmd.CombinedOutput()
	if errors.Is(err, exec.ErrNotFound) {
		return out, fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}

	return out, err
}

// LoginCache remembers which (engine, registry, username) triples have
// logged in, so clients sharing a cache skip repeated logins. The zero
// value is ready to use.
type LoginCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func loginKey(engine, registry, username string) string {
	return engine + "\x00" + registry + "\x00" + username
}

// Seen reports whether the triple has logged in.
func (lc *LoginCache) Seen(engine, registry, username string) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	_, ok := lc.seen[loginKey(engine, registry, username)]

	return ok
}

// Record marks the triple as logged in.
func (lc *LoginCache) Record(engine, registry, username string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.seen == nil {
		lc.seen = make(map[string]struct{})
	}

	lc.seen[loginKey(engine, registry, username)] = struct{}{}
}

// Forget drops every recorded login.
func (lc *LoginCache) Forget() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.seen = nil
}

// Options configures New.
type Options struct {
	Engine    string // Podman or Docker; empty means Podman
	Registry  string // host[:port][/prefix]
	TLSVerify bool
	Runner    Runner      // nil means ExecRunner
	Logins    *LoginCache // nil means a private cache
	Logger    *slog.Logger
}

// Client runs engine commands against one registry.
type Client struct {
	Engine    string
	Registry  string
	TLSVerify bool

	runner Runner
	logins *LoginCache
	logger *slog.Logger
}

// New returns a Client for opts.
func New(opts Options) (*Client, error) {
	engine := opts.Engine
	if engine == "" {
		engine = Podman
	}

	if engine != Podman && engine != Docker {
		return nil, fmt.Errorf("engine: unsupported container engine %q", engine)
	}

	if opts.Registry == "" {
		return nil, errors.New("engine: registry is required")
	}

	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	logins := opts.Logins
	if logins == nil {
		logins = &LoginCache{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		Engine:    engine,
		Registry:  opts.Registry,
		TLSVerify: opts.TLSVerify,
		runner:    runner,
		logins:    logins,
		logger:    logger,
	}, nil
}

// tlsFlag returns the podman TLS flag; docker has none.
func (c *Client) tlsFlag() []string {
	if c.Engine != Podman {
		return nil
	}

	return []string{"--tls-verify=" + strconv.FormatBool(c.TLSVerify)}
}

// Ref qualifies an image name with the registry.
func (c *Client) Ref(image string) string {
	sep := "/"
	if strings.HasSuffix(c.Registry, "/") {
		sep = ""
	}

	return c.Registry + sep + image
}

func (c *Client) run(ctx context.Context, stdin io.Reader, args ...string) error {
	c.logger.Debug("running container engine",
		slog.String("engine", c.Engine),
		slog.String("args", strings.Join(args, " ")),
	)

	out, err := c.runner.Run(ctx, stdin, c.Engine, args...)
	if err != nil {
		return &CommandError{Args: append([]string{c.Engine}, args...), Output: string(out), Err: err}
	}

	return nil
}

// Login logs in to the registry unless this engine, registry and username
// already did through the shared cache. The password goes over stdin.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if c.logins.Seen(c.Engine, c.Registry, username) {
		c.logger.Debug("container registry login cached",
			slog.String("registry", c.Registry),
			slog.String("username", username),
		)

		return nil
	}

	args := append([]string{"login", c.Registry, "--username", username, "--password-stdin"}, c.tlsFlag()...)
	if err := c.run(ctx, strings.NewReader(password), args...); err != nil {
		return err
	}

	c.logins.Record(c.Engine, c.Registry, username)
	c.logger.Info("logged in to container registry",
		slog.String("registry", c.Registry),
		slog.String("username", username),
	)

	return nil
}

// LoginIfAvailable is Login, except that a missing engine binary only
// logs a warning.
func (c *Client) LoginIfAvailable(ctx context.Context, username, password string) error {
	err := c.Login(ctx, username, password)
	if errors.Is(err, ErrEngineNotFound) {
		c.logger.Warn("container engine not found, skipping registry login", slog.String("engine", c.Engine))
		return nil
	}

	return err
}

// Pull pulls image from the registry.
func (c *Client) Pull(ctx context.Context, image string) error {
	return c.run(ctx, nil, append([]string{"pull", c.Ref(image)}, c.tlsFlag()...)...)
}

// Tag tags a local image as tag in the registry.
func (c *Client) Tag(ctx context.Context, image, tag string) error {
	return c.run(ctx, nil, "image", "tag", image, c.Ref(tag))
}

// Push pushes tag to the registry.
func (c *Client) Push(ctx context.Context, tag string) error {
	return c.run(ctx, nil, append([]string{"push", c.Ref(tag)}, c.tlsFlag()...)...)
}
