package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/sekimori/internal/pathutil"
)

// ResolveStateDir resolves the configured state directory.
// If empty, it falls back to ~/.sekimori.
func ResolveStateDir(stateDir string) (string, error) {
	if trimmed := strings.TrimSpace(stateDir); trimmed != "" {
		return pathutil.Expand(trimmed)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sekimori"), nil
}

// MailboxDir returns the durable resolution mailbox directory.
func MailboxDir(stateDir string) (string, error) {
	base, err := ResolveStateDir(stateDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "mailbox"), nil
}

// BackupDir returns the snapshot directory.
func BackupDir(stateDir string) (string, error) {
	base, err := ResolveStateDir(stateDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "backups"), nil
}

// GovernanceDir returns the directory holding permission modes and the audit log.
func GovernanceDir(stateDir string) (string, error) {
	base, err := ResolveStateDir(stateDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "governance"), nil
}

// LockPath returns the daemon lock file path.
func LockPath(stateDir string) (string, error) {
	base, err := ResolveStateDir(stateDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "daemon.lock"), nil
}

// EnsureLayout creates the state directory tree.
func EnsureLayout(stateDir string) (string, error) {
	base, err := ResolveStateDir(stateDir)
	if err != nil {
		return "", err
	}
	for _, dir := range []string{
		base,
		filepath.Join(base, "mailbox"),
		filepath.Join(base, "backups"),
		filepath.Join(base, "backups", "history"),
		filepath.Join(base, "governance"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}
	return base, nil
}
