package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fleetwatch/fleetwatch/internal/analysis"
	"github.com/fleetwatch/fleetwatch/internal/archive"
	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/monitor"
	"github.com/fleetwatch/fleetwatch/internal/replay"
	"github.com/fleetwatch/fleetwatch/pkg/mtls"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional, defaults apply)")
	initConfig := flag.Bool("init", false, "Write a default configuration file and exit")
	flag.Parse()

	if *initConfig {
		path := *configPath
		if path == "" {
			path = "fleetwatch.yaml"
		}
		if err := config.WriteDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting fleetwatch",
		zap.String("source", cfg.Replay.SourceFile),
		zap.String("target", cfg.Replay.TargetFile),
		zap.Duration("interval", cfg.Replay.Interval))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	// Create replay engine
	engine := replay.NewEngine(
		cfg.Replay.SourceFile,
		cfg.Replay.TargetFile,
		cfg.Replay.StateFile,
		cfg.Replay.Interval,
		cfg.Replay.StartFromLine,
		logger,
	)

	// Create tailer
	tailer := monitor.NewTailer(cfg.Replay.TargetFile, cfg.Monitor.Retention, logger)

	// Create trigger gate over the analysis boundary, if one is configured
	var gate *monitor.Gate
	if cfg.AnalyzerConfigured() {
		analyzer, err := buildAnalyzer(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to build analyzer", zap.Error(err))
		}
		gate = monitor.NewGate(analyzer, cfg.Replay.TargetFile, cfg.Analysis.Cooldown, cfg.Analysis.Auto, logger)
	} else {
		logger.Warn("No analysis boundary configured, analysis disabled")
	}

	// Create archive sink if enabled
	var sink monitor.EntrySink
	if cfg.Archive.Enabled {
		store, err := archive.Connect(ctx, cfg.Archive.URI, cfg.Archive.Database, cfg.Archive.Collection, cfg.Archive.TTLDays, logger)
		if err != nil {
			logger.Fatal("Failed to connect to archive", zap.Error(err))
		}
		defer func() {
			if err := store.Close(context.Background()); err != nil {
				logger.Error("Failed to close archive connection", zap.Error(err))
			}
		}()
		sink = store
	}

	poller := monitor.NewPoller(tailer, gate, sink, cfg.Monitor.RefreshInterval, logger)

	// A fresh start truncates the target log; stale reports go with it.
	if engine.Status().Cursor == 0 {
		if err := analysis.RemoveReports(cfg.Analysis.ReportDir); err != nil {
			logger.Warn("Failed to remove stale reports", zap.Error(err))
		}
	}

	engine.Start()

	// Poll until cancelled (blocks)
	if err := poller.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("Poller failed", zap.Error(err))
	}

	engine.Stop()
	logger.Info("Pipeline stopped gracefully")
}

// buildAnalyzer constructs the configured analysis boundary adapter.
func buildAnalyzer(cfg *config.Config, logger *zap.Logger) (monitor.Analyzer, error) {
	switch cfg.Analysis.Mode {
	case "command":
		return analysis.NewCommandAnalyzer(
			cfg.Analysis.Command.Program,
			cfg.Analysis.Command.Args,
			cfg.Analysis.Command.Timeout,
			logger,
		), nil

	case "remote":
		var tlsConfig *tls.Config
		if cfg.Analysis.Remote.CACert != "" {
			var err error
			tlsConfig, err = mtls.LoadClientTLSConfig(
				cfg.Analysis.Remote.CACert,
				cfg.Analysis.Remote.ClientCert,
				cfg.Analysis.Remote.ClientKey,
				cfg.Analysis.Remote.ServerName,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to load mTLS config: %w", err)
			}
		}
		return analysis.NewRemoteAnalyzer(
			cfg.Analysis.Remote.URL,
			cfg.Analysis.ReportDir,
			tlsConfig,
			cfg.Analysis.Remote.Timeout,
			cfg.Analysis.Remote.MaxRetries,
			logger,
		), nil
	}

	return nil, fmt.Errorf("unknown analysis mode: %s", cfg.Analysis.Mode)
}

// initLogger creates a configured zap logger
func initLogger(level string, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var loggerConfig zap.Config
	if format == "json" {
		loggerConfig = zap.NewProductionConfig()
	} else {
		loggerConfig = zap.NewDevelopmentConfig()
	}

	loggerConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	return loggerConfig.Build()
}
