package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr      = ":8080"
	defaultDBPath          = "forge.db"
	defaultDispatchTimeout = 30 * time.Second
	defaultRunTimeout      = 5 * time.Minute
	defaultWorkerListen    = "tcp://:7070"

	envListenAddr      = "FORGE_LISTEN_ADDR"
	envDBPath          = "FORGE_DB_PATH"
	envLogLevel        = "FORGE_LOG_LEVEL"
	envLocalWorkers    = "FORGE_LOCAL_WORKERS"
	envWorkers         = "FORGE_WORKERS"
	envDispatchTimeout = "FORGE_DISPATCH_TIMEOUT"
	envRunTimeout      = "FORGE_RUN_TIMEOUT"

	envWorkerListen      = "FORGE_WORKER_LISTEN"
	envWorkerObjective   = "FORGE_WORKER_OBJECTIVE"
	envWorkerEvalTimeout = "FORGE_WORKER_EVAL_TIMEOUT"
)

// Config holds the master configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level
	// LocalWorkers is the number of in-process worker agents started on
	// loopback when Workers is empty.
	LocalWorkers int
	// Workers lists remote worker addresses, e.g. tcp://10.0.0.2:7070 or
	// vsock-uds:///run/vm.sock:1024.
	Workers         []string
	DispatchTimeout time.Duration
	RunTimeout      time.Duration
}

// WorkerConfig holds the configuration of a forge-worker process.
type WorkerConfig struct {
	Listen            string
	DefaultObjective  string
	EvaluationTimeout time.Duration
	LogLevel          slog.Level
}

// Load reads the master configuration from environment variables with
// sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      defaultListenAddr,
		DBPath:          defaultDBPath,
		LogLevel:        slog.LevelInfo,
		DispatchTimeout: defaultDispatchTimeout,
		RunTimeout:      defaultRunTimeout,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envLocalWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("%s: invalid worker count %q", envLocalWorkers, v)
		}
		cfg.LocalWorkers = n
	}
	cfg.Workers = splitList(os.Getenv(envWorkers))

	var err error
	if cfg.DispatchTimeout, err = durationEnv(envDispatchTimeout, cfg.DispatchTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RunTimeout, err = durationEnv(envRunTimeout, cfg.RunTimeout); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadWorker reads the worker configuration from environment variables.
func LoadWorker() (WorkerConfig, error) {
	cfg := WorkerConfig{
		Listen:   defaultWorkerListen,
		LogLevel: slog.LevelInfo,
	}
	if v := os.Getenv(envWorkerListen); v != "" {
		cfg.Listen = v
	}
	cfg.DefaultObjective = os.Getenv(envWorkerObjective)
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	var err error
	if cfg.EvaluationTimeout, err = durationEnv(envWorkerEvalTimeout, 0); err != nil {
		return WorkerConfig{}, err
	}
	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", key, d)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
