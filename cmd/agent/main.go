package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"watcher/internal/agent"
	"watcher/internal/agent/client"
	"watcher/internal/agent/config"
	"watcher/internal/agent/probe"
	"watcher/internal/version"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		info := version.GetInfo()
		fmt.Println(info.String())
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize components
	cl := client.NewClient(cfg.Agent, cfg.Monitor.HTTPTimeout, logger)
	prober := probe.NewSystemProber()
	a := agent.NewAgent(cfg, cl, prober, logger)

	logger.Info("Starting agent",
		zap.String("agent_id", cfg.Agent.ID),
		zap.String("name", cfg.Agent.Name),
		zap.String("server", cfg.Agent.ServerURL),
		zap.Int("targets", len(cfg.Monitor.Targets)))

	if err := a.Start(ctx); err != nil {
		logger.Fatal("Failed to start agent", zap.Error(err))
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	logger.Info("Starting graceful shutdown")
	cancel()
	a.Stop()

	logger.Info("Shutdown complete")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.File == "" {
		cfg.File = "logs/watcher-agent.log"
	}

	// Check if the log file path exists
	_, err := os.Stat(cfg.File)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check log file path: %w", err)
	}

	// Configure log rotation
	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	// Set log level
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// Create encoder config
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	logger := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	return logger.Named("agent"), nil
}
