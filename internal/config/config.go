package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/sekimori/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Adapters AdaptersConfig `koanf:"adapters"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Session  SessionConfig  `koanf:"session"`
	Backup   BackupConfig   `koanf:"backup"`
	Agent    AgentConfig    `koanf:"agent"`
	Daemon   DaemonConfig   `koanf:"daemon"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type AdaptersConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type SlackConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Port          int    `koanf:"port"`
	SigningSecret string `koanf:"signing_secret"`
	BotToken      string `koanf:"bot_token"`
}

type TelegramConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	UpdateTimeout int    `koanf:"update_timeout"`
}

type GatewayConfig struct {
	ApprovalTimeout string `koanf:"approval_timeout"`
	PollInterval    string `koanf:"poll_interval"`
}

type SessionConfig struct {
	TTL           string `koanf:"ttl"`
	SweepSchedule string `koanf:"sweep_schedule"`
}

type BackupConfig struct {
	Enabled          bool   `koanf:"enabled"`
	Interval         string `koanf:"interval"`
	HistoryRetention int    `koanf:"history_retention"`
}

type AgentConfig struct {
	Command          string `koanf:"command"`
	WorkingDir       string `koanf:"working_dir"`
	EnforceBoundary  bool   `koanf:"enforce_boundary"`
	ShutdownTimeout  string `koanf:"shutdown_timeout"`
	PermissionSocket string `koanf:"permission_socket"`
}

type DaemonConfig struct {
	StateDir            string `koanf:"state_dir"`
	ShutdownTimeout     string `koanf:"shutdown_timeout"`
	HealthCheckInterval string `koanf:"health_check_interval"`
	StaleLockTTL        string `koanf:"stale_lock_ttl"`
}

const (
	DefaultServerPort            = 8080
	DefaultServerLogLevel        = "info"
	DefaultServerLogFormat       = "text"
	DefaultServerShutdownTimeout = "5s"

	DefaultSlackPort             = 3000
	DefaultTelegramUpdateTimeout = 60

	DefaultGatewayApprovalTimeout = "5m"
	DefaultGatewayPollInterval    = "500ms"

	// Sessions never expire unless a TTL is configured.
	DefaultSessionTTL           = "0"
	DefaultSessionSweepSchedule = "@every 1h"

	DefaultBackupEnabled          = true
	DefaultBackupInterval         = "30m"
	DefaultBackupHistoryRetention = 48

	DefaultAgentCommand         = "claude"
	DefaultAgentEnforceBoundary = true
	DefaultAgentShutdownTimeout = "30s"

	DefaultDaemonShutdownTimeout     = "30s"
	DefaultDaemonHealthCheckInterval = "30s"
	DefaultDaemonStaleLockTTL        = "15m"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.port":                  DefaultServerPort,
		"server.log_level":             DefaultServerLogLevel,
		"server.log_format":            DefaultServerLogFormat,
		"server.shutdown_timeout":      DefaultServerShutdownTimeout,
		"adapters.slack.port":          DefaultSlackPort,
		"adapters.telegram.update_timeout": DefaultTelegramUpdateTimeout,
		"gateway.approval_timeout":     DefaultGatewayApprovalTimeout,
		"gateway.poll_interval":        DefaultGatewayPollInterval,
		"session.ttl":                  DefaultSessionTTL,
		"session.sweep_schedule":       DefaultSessionSweepSchedule,
		"backup.enabled":               DefaultBackupEnabled,
		"backup.interval":              DefaultBackupInterval,
		"backup.history_retention":     DefaultBackupHistoryRetention,
		"agent.command":                DefaultAgentCommand,
		"agent.enforce_boundary":       DefaultAgentEnforceBoundary,
		"agent.shutdown_timeout":       DefaultAgentShutdownTimeout,
		"daemon.shutdown_timeout":      DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval": DefaultDaemonHealthCheckInterval,
		"daemon.stale_lock_ttl":        DefaultDaemonStaleLockTTL,
		"daemon.state_dir":             filepath.Join(os.Getenv("HOME"), ".sekimori"),
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".sekimori", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider("SEKIMORI_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SEKIMORI_")), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Post-Process: Inject standard Env Vars if missing
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" && cfg.Adapters.Slack.BotToken == "" {
		cfg.Adapters.Slack.BotToken = token
	}
	if secret := os.Getenv("SLACK_SIGNING_SECRET"); secret != "" && cfg.Adapters.Slack.SigningSecret == "" {
		cfg.Adapters.Slack.SigningSecret = secret
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" && cfg.Adapters.Telegram.BotToken == "" {
		cfg.Adapters.Telegram.BotToken = token
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func normalizePathFields(cfg *Config) error {
	stateDir, err := pathutil.Expand(cfg.Daemon.StateDir)
	if err != nil {
		return err
	}
	cfg.Daemon.StateDir = stateDir

	workingDir, err := pathutil.Expand(cfg.Agent.WorkingDir)
	if err != nil {
		return err
	}
	cfg.Agent.WorkingDir = workingDir
	return nil
}
