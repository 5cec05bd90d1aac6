package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sammcj/deskchores/internal/config"
	"github.com/sammcj/deskchores/internal/prompt"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// parseLogLevel parses the LOG_LEVEL environment variable, falling back to the
// configured level and then to debug, since logs only go to the debug file.
func parseLogLevel(configured string) logrus.Level {
	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		logLevelStr = configured
	}

	// Normalise to lowercase for comparison
	logLevelStr = strings.ToLower(strings.TrimSpace(logLevelStr))

	switch logLevelStr {
	case "trace":
		return logrus.TraceLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}

// app carries what every command needs. cfg is filled in by the root command's
// Before hook once flags are parsed.
type app struct {
	logger *logrus.Logger
	cfg    *config.Config
	stdin  io.Reader
	stdout io.Writer
}

func newApp(logger *logrus.Logger, stdin io.Reader, stdout io.Writer) *app {
	return &app{logger: logger, stdin: stdin, stdout: stdout}
}

func main() {
	// A missing .env file is fine
	_ = godotenv.Load()

	// Create context with signal handling so a batch stops between files
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Nothing is logged unless a command opens its debug file
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	a := newApp(logger, os.Stdin, os.Stdout)
	if err := a.command().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:    "deskchores",
		Usage:   "Small automations for files on this machine",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Writer:  a.stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the YAML config file",
				Value:   config.Path(),
				Sources: cli.EnvVars("DESKCHORES_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Append debug logs to the command's _DEBUG.txt file in the working directory",
				Sources: cli.EnvVars("DESKCHORES_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "text",
				Usage:   "Output format (text or json)",
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			a.paranoiaCommand(),
			a.xlsxCommand(),
			a.comicsCommand(),
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(a.stdout, "deskchores version %s\n", Version)
					fmt.Fprintf(a.stdout, "Commit: %s\n", Commit)
					fmt.Fprintf(a.stdout, "Built: %s\n", BuildDate)
					return nil
				},
			},
		},
	}
}

// terminal prompts on the app's stdio, reading passwords without echo when
// stdin is the process's own.
func (a *app) terminal() *prompt.Terminal {
	if a.stdin == os.Stdin {
		return prompt.NewStdio()
	}
	return prompt.NewTerminal(a.stdin, a.stdout)
}

// before loads the config file so commands can layer their flags over it.
func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	if cmd.IsSet("debug") {
		cfg.Logging.Debug = cmd.Bool("debug")
	}
	a.cfg = cfg
	return ctx, nil
}

// startDebugLog points the logger at name in the working directory when debug
// logging is on. The returned func closes the file.
func (a *app) startDebugLog(name string) (func(), error) {
	if !a.cfg.Logging.Debug {
		return func() {}, nil
	}

	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	a.logger.SetOutput(file)
	a.logger.SetLevel(parseLogLevel(a.cfg.Logging.Level))

	return func() {
		a.logger.SetOutput(io.Discard)
		if err := file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close debug log: %v\n", err)
		}
	}, nil
}
