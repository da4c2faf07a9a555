package permission

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harunnryd/sekimori/internal/store"
)

// AuditEntry is one line of the governance audit log.
type AuditEntry struct {
	Timestamp time.Time `json:"ts"`
	Scope     string    `json:"scope"`
	Mode      Mode      `json:"mode"`
	Actor     string    `json:"actor,omitempty"`
}

// AuditLogger appends mode changes to governance/audit.log. A write failure
// is logged and swallowed: audit must never block a mode change.
type AuditLogger struct {
	logPath string
	mu      sync.Mutex
}

func NewAuditLogger(stateDir string) (*AuditLogger, error) {
	base, err := store.GovernanceDir(stateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, err
	}

	return &AuditLogger{
		logPath: filepath.Join(base, "audit.log"),
	}, nil
}

func (al *AuditLogger) Record(scopeKey string, mode Mode, actor string) {
	entry := AuditEntry{
		Timestamp: time.Now(),
		Scope:     scopeKey,
		Mode:      mode,
		Actor:     actor,
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("Failed to marshal audit entry", "error", err)
		return
	}

	f, err := os.OpenFile(al.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("Failed to open audit log", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		slog.Error("Failed to write audit entry", "error", err)
	}
}

// Entries reads the audit log back, newest last.
func (al *AuditLogger) Entries() ([]AuditEntry, error) {
	al.mu.Lock()
	defer al.mu.Unlock()

	data, err := os.ReadFile(al.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []AuditEntry
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			slog.Warn("Skipping malformed audit entry", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
