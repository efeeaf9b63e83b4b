package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	sandwich "github.com/WelcomerTeam/Sandwich-QQ"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:    "sandwich-qq",
		Usage:   "Sharded gateway daemon for QQ bots",
		Version: sandwich.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path of the YAML configuration file",
				Value:   "sandwich.yaml",
				EnvVars: []string{"SANDWICH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Optional .env file loaded before the configuration",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: trace, debug, info, warn, error",
				Value:   "info",
				EnvVars: []string{"SANDWICH_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write JSON logs to this file, rotated",
			},
			&cli.StringFlag{
				Name:  "http-host",
				Usage: "Override the configured HTTP host",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if envFile := c.String("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	logger, closeLogger, err := newLogger(c.String("log-level"), c.String("log-file"))
	if err != nil {
		return err
	}
	defer closeLogger()

	configuration, err := sandwich.LoadConfiguration(c.String("config"))
	if err != nil {
		return err
	}

	sg, err := sandwich.NewSandwich(logger, configuration, sandwich.SandwichOptions{
		HTTPHost: c.String("http-host"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sg.Open(ctx); err != nil {
		logger.Warn().Err(err).Msg("Some bots failed to start")
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return sg.Close(shutdownCtx)
}

func newLogger(level, logFile string) (zerolog.Logger, func(), error) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Stamp}}
	closeLogger := func() {}

	if logFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}

		writers = append(writers, rotated)
		closeLogger = func() {
			if err := rotated.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
			}
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(logLevel).
		With().Timestamp().
		Logger()

	return logger, closeLogger, nil
}
