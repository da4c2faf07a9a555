package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("port = %d, want %d", cfg.Server.Port, DefaultServerPort)
	}
	if cfg.Server.LogFormat != DefaultServerLogFormat {
		t.Errorf("log format = %q, want %q", cfg.Server.LogFormat, DefaultServerLogFormat)
	}
	if cfg.Gateway.ApprovalTimeout != DefaultGatewayApprovalTimeout {
		t.Errorf("approval timeout = %q", cfg.Gateway.ApprovalTimeout)
	}
	if cfg.Backup.HistoryRetention != DefaultBackupHistoryRetention {
		t.Errorf("history retention = %d", cfg.Backup.HistoryRetention)
	}
	if cfg.Daemon.StateDir != filepath.Join(tmpDir, ".sekimori") {
		t.Errorf("state dir = %q", cfg.Daemon.StateDir)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("SEKIMORI_SERVER_LOG_LEVEL", "debug")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Adapters.Slack.BotToken != "xoxb-test" {
		t.Errorf("bot token not injected from env")
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	dir := filepath.Join(tmpDir, ".sekimori")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	yaml := "gateway:\n  approval_timeout: 2m\nsession:\n  ttl: 12h\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gateway.ApprovalTimeout != "2m" {
		t.Errorf("approval timeout = %q, want 2m", cfg.Gateway.ApprovalTimeout)
	}
	if cfg.Session.TTL != "12h" {
		t.Errorf("session ttl = %q, want 12h", cfg.Session.TTL)
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", "5m")
	if err != nil || d != 5*time.Minute {
		t.Errorf("fallback = %v, %v", d, err)
	}

	d, err = DurationOrDefault("0", "5m")
	if err != nil || d != 0 {
		t.Errorf("bare zero = %v, %v", d, err)
	}

	if _, err := DurationOrDefault("nonsense", "5m"); err == nil {
		t.Error("expected parse error")
	}
}
