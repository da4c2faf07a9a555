package permission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/harunnryd/sekimori/internal/scope"
	"github.com/harunnryd/sekimori/internal/store"

	"github.com/natefinch/atomic"
)

// Store owns the per-scope permission mode map. Entries are created only by
// explicit operator command; absence of an entry means ModeApproval.
type Store struct {
	modePath string
	modes    map[string]Mode
	audit    *AuditLogger
	mu       sync.RWMutex
}

func NewStore(stateDir string) (*Store, error) {
	base, err := store.GovernanceDir(stateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create governance dir: %w", err)
	}

	audit, err := NewAuditLogger(stateDir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		modePath: filepath.Join(base, "modes.json"),
		modes:    make(map[string]Mode),
		audit:    audit,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.modePath)
	if err != nil || len(data) == 0 {
		return nil
	}
	// Mode.UnmarshalJSON absorbs legacy boolean entries here.
	if err := json.Unmarshal(data, &s.modes); err != nil {
		return fmt.Errorf("parse %s: %w", s.modePath, err)
	}
	return nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.modes, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.modePath, bytes.NewReader(data))
}

// SetMode unconditionally overwrites the scope's mode and records an audit entry.
func (s *Store) SetMode(scopeKey string, mode Mode, actor string) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid permission mode %q", mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.modes[scopeKey] = mode
	if err := s.save(); err != nil {
		return fmt.Errorf("failed to persist permission modes: %w", err)
	}

	s.audit.Record(scopeKey, mode, actor)
	slog.Info("Permission mode set", "scope", scopeKey, "mode", mode, "actor", actor)
	return nil
}

// GetMode returns the mode for an already-resolved scope key, defaulting to
// ModeApproval. It never fails.
func (s *Store) GetMode(scopeKey string) Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if mode, ok := s.modes[scopeKey]; ok {
		return mode
	}
	return ModeApproval
}

// GetModeFor resolves both candidate keys for a conversation: a thread-scoped
// entry, if present, overrides the channel/DM-scoped entry.
func (s *Store) GetModeFor(channelID, threadID, userID string) Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if threadID != "" {
		if mode, ok := s.modes[scope.Resolve(channelID, threadID, userID)]; ok {
			return mode
		}
	}
	if mode, ok := s.modes[scope.Resolve(channelID, "", userID)]; ok {
		return mode
	}
	return ModeApproval
}

// Delete removes a scope's entry, exposing the fallback key again.
func (s *Store) Delete(scopeKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.modes, scopeKey)
	return s.save()
}

// Snapshot returns a copy of the mode map.
func (s *Store) Snapshot() map[string]Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Mode, len(s.modes))
	for k, v := range s.modes {
		out[k] = v
	}
	return out
}

// Restore merges raw snapshot data into the live map. Legacy boolean entries
// are normalized by Mode.UnmarshalJSON. Live entries win on conflict.
func (s *Store) Restore(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var loaded map[string]Mode
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse permission snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range loaded {
		if _, ok := s.modes[k]; !ok {
			s.modes[k] = v
		}
	}
	return s.save()
}
