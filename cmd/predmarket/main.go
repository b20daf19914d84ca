// Command predmarket is the backend entry point for the prediction-market
// engine. It loads configuration, validates it, wires dependencies, sets up
// signal handling, and starts the application in the configured mode.
//
// A second form, predmarket encrypt-key, encrypts an operator private key for
// use with the operator.encrypted_key_path setting.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/predmarket/internal/app"
	"github.com/alanyoungcy/predmarket/internal/config"
	"github.com/alanyoungcy/predmarket/internal/crypto"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "encrypt-key" {
		encryptKey(os.Args[2:])
		return
	}

	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("prediction market engine starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	// Create the application.
	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the application.
	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if err == context.Canceled {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("prediction market engine stopped")
}

// encryptKey implements the encrypt-key subcommand. The private key and
// password are read from environment variables so they never appear in shell
// history or process listings.
func encryptKey(args []string) {
	fs := flag.NewFlagSet("encrypt-key", flag.ExitOnError)
	out := fs.String("out", "operator.key.json", "output path for the encrypted key file")
	fs.Parse(args)

	keyHex := os.Getenv("PREDMARKET_RAW_KEY")
	password := os.Getenv("PREDMARKET_KEY_PASSWORD")
	if keyHex == "" || password == "" {
		fmt.Fprintln(os.Stderr, "encrypt-key: set PREDMARKET_RAW_KEY and PREDMARKET_KEY_PASSWORD")
		os.Exit(1)
	}

	blob, err := crypto.EncryptKey(keyHex, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encrypt-key: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, blob, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "encrypt-key: writing %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("encrypted key written to %s\n", *out)
}
