// Package config resolves environment-driven settings for taskloop.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"taskloop/internal/executor"
)

const (
	// AgentEnv selects the named agent backend (claude, opencode).
	AgentEnv = "TASKLOOP_AGENT"
	// AgentCmdEnv supplies a full override command line. When set it
	// bypasses backend name validation entirely.
	AgentCmdEnv = "TASKLOOP_AGENT_CMD"
	// LogsDirName is the per-repo directory holding per-task agent logs.
	LogsDirName = ".taskloop/logs"
)

// Config carries resolved settings for one invocation.
type Config struct {
	// Backend is the resolved executor shape (kind + base command).
	Backend executor.Spec
	// WorkDir is the repository working directory.
	WorkDir string
}

// Load resolves configuration from the environment. A .env file in workDir
// is applied first, best-effort, without clobbering real env vars (godotenv
// only fills unset keys). An invalid TASKLOOP_AGENT without an override is a
// hard error.
func Load(workDir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(workDir, ".env"))

	spec, err := executor.Resolve(os.Getenv(AgentEnv), os.Getenv(AgentCmdEnv))
	if err != nil {
		return nil, err
	}

	return &Config{Backend: spec, WorkDir: workDir}, nil
}

// LogsDir returns the per-task log directory for the working directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.WorkDir, LogsDirName)
}
