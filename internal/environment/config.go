// Package environment loads runtime configuration from the process
// environment, with an optional .env file for local overrides.
package environment

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	DefaultMaxWorkers        = 4
	DefaultCompileTimeoutSec = 60.0
	DefaultDataDir           = "var/autoprogen"

	maxWorkersCap = 32
)

type EnvConfig struct {
	// MaxWorkers bounds the grading pool, clamped to 1..32.
	MaxWorkers int
	// CompileTimeoutSec limits one compiler invocation.
	CompileTimeoutSec float64
	// DataDir is the root for the result store, test-case configs and
	// per-student dynamic files.
	DataDir string
	// CompileCommand overrides the gcc command template; empty means
	// the built-in default.
	CompileCommand string
	// LogLevel is the slog level parsed from LOG_LEVEL.
	LogLevel slog.Level
}

// ReadEnvConfig loads .env when present and falls back to defaults
// for anything unset. Malformed numeric values fall back too rather
// than aborting a grading session.
func ReadEnvConfig() *EnvConfig {
	_ = godotenv.Load()

	cfg := &EnvConfig{
		MaxWorkers:        DefaultMaxWorkers,
		CompileTimeoutSec: DefaultCompileTimeoutSec,
		DataDir:           DefaultDataDir,
		CompileCommand:    os.Getenv("AUTOPROGEN_GCC_CMD"),
		LogLevel:          slog.LevelInfo,
	}

	if v := os.Getenv("AUTOPROGEN_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxWorkers = n
		} else {
			slog.Warn("invalid AUTOPROGEN_MAX_WORKERS, using default", "value", v)
		}
	}
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.MaxWorkers > maxWorkersCap {
		cfg.MaxWorkers = maxWorkersCap
	}

	if v := os.Getenv("AUTOPROGEN_COMPILE_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.ParseFloat(v, 64); err == nil && sec > 0 {
			cfg.CompileTimeoutSec = sec
		} else {
			slog.Warn("invalid AUTOPROGEN_COMPILE_TIMEOUT_SEC, using default", "value", v)
		}
	}

	if v := os.Getenv("AUTOPROGEN_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err == nil {
			cfg.LogLevel = level
		} else {
			slog.Warn("invalid LOG_LEVEL, using info", "value", v)
		}
	}

	return cfg
}

// Layout under DataDir. Everything the tool persists lives here.

func (c *EnvConfig) ResultDBPath() string { return filepath.Join(c.DataDir, "results.db") }

func (c *EnvConfig) TestcaseDir() string { return filepath.Join(c.DataDir, "testcases") }

func (c *EnvConfig) DynamicDir() string { return filepath.Join(c.DataDir, "dynamic") }

func (c *EnvConfig) ScratchDir() string { return filepath.Join(c.DataDir, "scratch") }
