package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/petal-labs/dify/cli/config"
	"github.com/petal-labs/dify/core"
	"github.com/petal-labs/dify/dify"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// ClientFactory creates a Dify client for an API key.
type ClientFactory func(apiKey string, opts ...dify.Option) *dify.Client

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig ConfigLoader
	newClient  ClientFactory
	getenv     func(string) string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	logger     *logrus.Logger

	cfgFile    string
	envFile    string
	baseURL    string
	user       string
	logFile    string
	timeout    time.Duration
	jsonOutput bool
	selectPath string
	verbose    bool
	cfg        *config.Config

	pollInterval time.Duration
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithClientFactory injects a client factory dependency.
func WithClientFactory(factory ClientFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.newClient = factory
		}
	}
}

// WithEnv injects the environment lookup used for API keys and defaults.
func WithEnv(getenv func(string) string) AppOption {
	return func(a *App) {
		if getenv != nil {
			a.getenv = getenv
		}
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:   config.LoadConfig,
		newClient:    dify.New,
		getenv:       os.Getenv,
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		logger:       logrus.New(),
		pollInterval: 2 * time.Second,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dify",
		Short: "dify - command-line client for the Dify service API",
		Long: `dify talks to a Dify app through its service API.

Use dify to chat with an app, browse conversations and messages, upload
files, manage annotations and inspect the app configuration.

The API key is read from DIFY_API_KEY (or the variable named by api_key_env
in the config file). A .env file in the working directory is loaded first.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.dify/config.yaml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "service API base URL (default https://api.dify.ai/v1)")
	root.PersistentFlags().StringVar(&a.user, "user", "", "end-user identifier sent with each call")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "per-call timeout (default 100s)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().StringVar(&a.selectPath, "select", "", "with --json, print only this path of the output (e.g. data.#.id)")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "write logs to this file, rotated")

	root.AddCommand(a.newChatCommand())
	root.AddCommand(a.newConversationsCommand())
	root.AddCommand(a.newMessagesCommand())
	root.AddCommand(a.newUploadCommand())
	root.AddCommand(a.newAppCommand())
	root.AddCommand(a.newAnnotationsCommand())
	root.AddCommand(a.newFeedbackCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Execute runs the root command. Errors are reported on stderr before they
// are returned.
func (a *App) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := a.root.ExecuteContext(ctx)
	if err != nil {
		a.reportError(err)
	}
	return err
}

func (a *App) initConfig() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return exitWithCode(ExitValidation, fmt.Errorf("load %s: %w", a.envFile, err))
		}
	}

	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := a.loadConfig(path)
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("load config %s: %w", path, err))
	}
	a.cfg = cfg

	// Apply config defaults if flags not set.
	if a.baseURL == "" {
		a.baseURL = cfg.BaseURL
	}
	if a.baseURL == "" {
		a.baseURL = a.getenv(dify.BaseURLEnvVar)
	}
	if a.timeout == 0 {
		a.timeout = cfg.Timeout
	}
	if a.logFile == "" {
		a.logFile = cfg.LogFile
	}
	if a.user == "" {
		a.user = cfg.User
	}

	a.configureLogger()

	if a.user == "" {
		a.user = "dify-cli-" + uuid.NewString()
		a.logger.WithField("user", a.user).Debug("no user configured, using a generated id")
	}
	return nil
}

func (a *App) configureLogger() {
	a.logger.SetOutput(a.stderr)
	a.logger.SetLevel(logrus.WarnLevel)
	if a.verbose {
		a.logger.SetLevel(logrus.DebugLevel)
	}
	if a.logFile != "" {
		a.logger.SetOutput(&lumberjack.Logger{
			Filename:   a.logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		})
		a.logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

// client builds a Dify client from flags and config. Callers close it.
func (a *App) client() (*dify.Client, error) {
	apiKey, err := a.resolveAPIKey()
	if err != nil {
		return nil, err
	}

	opts := []dify.Option{dify.WithLogger(a.logger)}
	if a.baseURL != "" {
		opts = append(opts, dify.WithBaseURL(a.baseURL))
	}
	if a.timeout > 0 {
		opts = append(opts, dify.WithTimeout(a.timeout))
	}
	if r := a.cfg.Retry; r != nil {
		opts = append(opts, dify.WithRetry(core.RetryConfig{
			MaxRetries: r.MaxRetries,
			BaseDelay:  r.BaseDelay,
			MaxDelay:   r.MaxDelay,
		}))
		if r.RetryPOST {
			opts = append(opts, dify.WithRetryablePOST())
		}
	}
	if cb := a.cfg.CircuitBreaker; cb != nil {
		opts = append(opts, dify.WithCircuitBreaker(core.CircuitBreakerConfig{
			FailureThreshold: cb.FailureThreshold,
			OpenDuration:     cb.OpenDuration,
		}))
	}

	return a.newClient(apiKey, opts...), nil
}

// withClient runs fn with a fresh client bound to the command context.
func (a *App) withClient(cmd *cobra.Command, fn func(context.Context, *dify.Client) error) error {
	c, err := a.client()
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(cmd.Context(), c)
}

// resolveAPIKey reads the key from the environment, falling back to a hidden
// prompt when stdin is a terminal.
func (a *App) resolveAPIKey() (string, error) {
	name := a.cfg.APIKeyVar()
	if key := a.getenv(name); key != "" {
		return key, nil
	}

	f, ok := a.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", exitWithCode(ExitValidation, fmt.Errorf("no API key: set %s", name))
	}

	fmt.Fprint(a.stderr, "Dify API key: ")
	key, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.stderr)
	if err != nil {
		return "", exitWithCode(ExitValidation, fmt.Errorf("read API key: %w", err))
	}
	if len(key) == 0 {
		return "", exitWithCode(ExitValidation, errors.New("API key cannot be empty"))
	}
	return string(key), nil
}

var defaultApp = NewApp()

// Execute runs the default app root command.
func Execute() error {
	return defaultApp.Execute()
}
