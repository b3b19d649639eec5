package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tonimelisma/galaxykit-go/internal/config"
	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagUsername    string
	flagPassword    string
	flagToken       string
	flagAuthURL     string
	flagServer      string
	flagIgnoreCerts bool
	flagIgnore      bool
	flagGateway     bool
	flagGatewayURL  string
	flagConfigPath  string
	flagProfile     string
	flagEnvFile     string
	flagJSON        bool
	flagVerbose     bool
	flagDebug       bool
	flagQuiet       bool
)

// resolvedCfg holds the effective profile loaded by PersistentPreRunE.
var resolvedCfg *config.ResolvedProfile

// logFile is the open log_file, if any. run closes it.
var logFile *os.File

// passwordPrompt is the --password value that asks on the terminal.
const passwordPrompt = "-"

const keepAlive = 30 * time.Second

// skipConfigCommands lists commands that only need the config file path,
// not a resolved profile. They must work while the file is missing or broken.
var skipConfigCommands = map[string]bool{
	"galaxykit config init":        true,
	"galaxykit config add-profile": true,
	"galaxykit config set":         true,
	"galaxykit config remove":      true,
}

// readPassword prompts on the controlling terminal. Tests replace it.
var readPassword = func(prompt string, w io.Writer) (string, error) {
	fmt.Fprint(w, prompt)

	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// newRootCmd builds the root command with every kind registered.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "galaxykit",
		Short: "Galaxy NG test automation client",
		Long: `A command line client for the Galaxy NG (Automation Hub) API, built for
test automation: users, groups, roles, namespaces, collections, execution
environments, repositories, remotes, distributions and tasks.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return prepare(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flagUsername, "username", "u", config.DefaultUsername, "API username")
	pf.StringVarP(&flagPassword, "password", "p", config.DefaultPassword, `API password ("-" prompts)`)
	pf.StringVarP(&flagToken, "token", "t", "", "API token, or refresh token with --auth-url")
	pf.StringVarP(&flagAuthURL, "auth-url", "a", "", "SSO token endpoint")
	pf.StringVarP(&flagServer, "server", "s", config.DefaultServer, "API root URL")
	pf.BoolVarP(&flagIgnoreCerts, "ignore-certs", "c", false, "ignore invalid SSL certificates")
	pf.BoolVarP(&flagIgnore, "ignore", "i", false, "ignore not-found, duplicate and API errors")
	pf.BoolVar(&flagGateway, "gateway", false, "log in through the platform gateway")
	pf.StringVar(&flagGatewayURL, "gateway-url", "", "gateway origin (defaults to the server origin)")
	pf.StringVar(&flagConfigPath, "config", "", "config file path")
	pf.StringVar(&flagProfile, "profile", "", "config profile")
	pf.StringVar(&flagEnvFile, "env-file", "", "load environment variables from a .env file")
	pf.BoolVar(&flagJSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable info logging")
	pf.BoolVar(&flagDebug, "debug", false, "enable debug logging")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newGroupCmd())
	cmd.AddCommand(newRoleCmd())
	cmd.AddCommand(newNamespaceCmd())
	cmd.AddCommand(newCollectionCmd())
	cmd.AddCommand(newContainerCmd())
	cmd.AddCommand(newContainerImageCmd())
	cmd.AddCommand(newRemoteCmd())
	cmd.AddCommand(newRepositoryCmd())
	cmd.AddCommand(newDistributionCmd())
	cmd.AddCommand(newRegistryCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newURLCmd())
	cmd.AddCommand(newGreetCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// run executes the command line and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// Canceling the root context releases the signal watcher.
	ctx, cancel := context.WithCancel(context.Background())
	err := cmd.ExecuteContext(ctx)
	cancel()
	closeLogOutput()

	return reportError(stderr, err)
}

// prepare loads the env file and configuration, builds the logger and
// attaches a CLIContext to the command.
func prepare(cmd *cobra.Command) error {
	if flagEnvFile != "" {
		if err := godotenv.Load(flagEnvFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", flagEnvFile, err)
		}
	}

	resolvedCfg = nil

	if !skipConfigCommands[cmd.CommandPath()] {
		if err := loadConfig(cmd); err != nil {
			return err
		}
	}

	logger, err := buildLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cc := &CLIContext{
		Flags: CLIFlags{
			JSON:   flagJSON,
			Quiet:  flagQuiet,
			Ignore: flagIgnore,
		},
		Cfg:    resolvedCfg,
		Logger: logger,
		In:     cmd.InOrStdin(),
		Out:    cmd.OutOrStdout(),
		Err:    cmd.ErrOrStderr(),
	}

	ctx := withCLIContext(cmd.Context(), cc)
	cmd.SetContext(shutdownContext(ctx, logger))

	return nil
}

// loadConfig resolves the effective profile from the four-layer override
// chain. Only flags the user set explicitly override lower layers.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		Profile:    flagProfile,
	}

	flags := cmd.Flags()

	stringFlags := []struct {
		name   string
		value  *string
		target **string
	}{
		{"server", &flagServer, &cli.Server},
		{"username", &flagUsername, &cli.Username},
		{"password", &flagPassword, &cli.Password},
		{"token", &flagToken, &cli.Token},
		{"auth-url", &flagAuthURL, &cli.AuthURL},
		{"gateway-url", &flagGatewayURL, &cli.GatewayURL},
	}

	for _, f := range stringFlags {
		if flags.Changed(f.name) {
			*f.target = f.value
		}
	}

	if flags.Changed("gateway") {
		cli.Gateway = &flagGateway
	}

	if flags.Changed("ignore-certs") {
		cli.IgnoreCerts = &flagIgnoreCerts
	}

	if cli.Password != nil && *cli.Password == passwordPrompt {
		pw, err := readPassword("Password: ", cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		cli.Password = &pw
	}

	if lvl := flagLogLevel(); lvl != "" {
		cli.LogLevel = &lvl
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// flagLogLevel maps the verbosity flags to a log level; "" when none is set.
// --quiet wins over --debug, which wins over --verbose.
func flagLogLevel() string {
	switch {
	case flagQuiet:
		return "error"
	case flagDebug:
		return "debug"
	case flagVerbose:
		return "info"
	default:
		return ""
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// buildLogger creates the logger from the resolved config and CLI flags.
// The config file provides the baseline; verbosity flags override it.
// Output goes to log_file when configured, otherwise to w.
func buildLogger(w io.Writer) (*slog.Logger, error) {
	level := slog.LevelWarn
	format := "auto"

	if resolvedCfg != nil {
		level = parseLevel(resolvedCfg.Logging.LogLevel)
		format = resolvedCfg.Logging.LogFormat

		if path := resolvedCfg.Logging.LogFile; path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return nil, fmt.Errorf("opening log file: %w", err)
			}

			closeLogOutput()
			logFile = f
			w = f
		}
	}

	if lvl := flagLogLevel(); lvl != "" {
		level = parseLevel(lvl)
	}

	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		if isTerminal(w) {
			return slog.New(slog.NewTextHandler(w, opts)), nil
		}

		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func closeLogOutput() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// newHTTPClient returns the transport for API calls, honoring the network
// timeouts and --ignore-certs.
func newHTTPClient(rp *config.ResolvedProfile) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   rp.ConnectTimeout(),
		KeepAlive: keepAlive,
	}).DialContext

	if rp.IgnoreCerts {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --ignore-certs
	}

	return &http.Client{Transport: transport, Timeout: rp.RequestTimeout()}
}

// credentialFor picks the credential kind from the profile:
// auth-url without token is the JWT password grant, a token with auth-url
// is the JWT refresh grant, a bare token is used as-is, --gateway logs in
// through the gateway, and anything else exchanges username and password.
func credentialFor(rp *config.ResolvedProfile) galaxy.Credential {
	switch {
	case rp.AuthURL != "" && rp.Token == "":
		return galaxy.JWTAuth{AuthURL: rp.AuthURL, Username: rp.Username, Password: rp.Password}
	case rp.Token != "" && rp.AuthURL != "":
		return galaxy.JWTAuth{AuthURL: rp.AuthURL, RefreshToken: rp.Token}
	case rp.Token != "":
		return galaxy.TokenAuth{Token: rp.Token}
	case rp.Gateway:
		return galaxy.GatewayAuth{Username: rp.Username, Password: rp.Password, RootURL: rp.GatewayURL}
	default:
		return galaxy.PasswordAuth{Username: rp.Username, Password: rp.Password}
	}
}

// clientOptions builds session options from the profile.
func clientOptions(rp *config.ResolvedProfile, logger *slog.Logger) galaxy.Options {
	ua := rp.Network.UserAgent
	if ua == "" {
		ua = "galaxykit/" + version
	}

	return galaxy.Options{
		HTTPClient: newHTTPClient(rp),
		Logger:     logger,
		UserAgent:  ua,
		Polling: galaxy.Polling{
			Interval:    rp.PollInterval(),
			Onetime:     rp.OnetimeDelay(),
			MaxAttempts: rp.Polling.MaxAttempts,
		},
	}
}
