package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/sekimori/internal/scope"
)

// Session is one resumable agent conversation.
type Session struct {
	UserID     string `json:"userId"`
	ChannelID  string `json:"channelId"`
	ThreadID   string `json:"threadId,omitempty"`
	ExternalID string `json:"externalSessionId,omitempty"`
	Active     bool   `json:"isActive"`

	LastActivity time.Time `json:"lastActivity"`
}

// Record is a session with its key attached, as persisted in snapshots.
type Record struct {
	Key string `json:"key"`
	Session
}

// Store owns the session map and the scope→working-directory map. Both are
// mutated only through these operations.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	workingDirs map[string]string
}

func NewStore() *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		workingDirs: make(map[string]string),
	}
}

// GetOrCreate returns the session for the triple, creating it on first
// interaction in a scope.
func (s *Store) GetOrCreate(userID, channelID, threadID string) *Session {
	key := scope.Key(userID, channelID, threadID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess
	}

	sess := &Session{
		UserID:       userID,
		ChannelID:    channelID,
		ThreadID:     threadID,
		Active:       true,
		LastActivity: time.Now(),
	}
	s.sessions[key] = sess
	slog.Debug("Session created", "key", key)
	return sess
}

// Get looks a session up by its triple.
func (s *Store) Get(userID, channelID, threadID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[scope.Key(userID, channelID, threadID)]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// AttachExternalID binds (or rebinds) the resumable identifier reported by
// the agent runtime.
func (s *Store) AttachExternalID(userID, channelID, threadID, externalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scope.Key(userID, channelID, threadID)
	sess, ok := s.sessions[key]
	if !ok {
		return
	}
	sess.ExternalID = externalID
	sess.LastActivity = time.Now()
	slog.Debug("Session bound to agent session", "key", key, "external_id", externalID)
}

// Touch refreshes last-activity for the triple.
func (s *Store) Touch(userID, channelID, threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[scope.Key(userID, channelID, threadID)]; ok {
		sess.LastActivity = time.Now()
	}
}

// Reap removes every session whose last activity predates now-maxAge. A
// maxAge of zero or less means sessions never expire.
func (s *Store) Reap(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Expired sessions reaped", "count", removed, "max_age", maxAge)
	}
	return removed
}

// SetWorkingDir maps a scope to its filesystem working directory.
func (s *Store) SetWorkingDir(scopeKey, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workingDirs[scopeKey] = path
}

// WorkingDir returns the working directory for a scope.
func (s *Store) WorkingDir(scopeKey string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.workingDirs[scopeKey]
	return path, ok
}

// Snapshot copies the full session table and working-directory map.
func (s *Store) Snapshot() ([]Record, map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.sessions))
	for key, sess := range s.sessions {
		records = append(records, Record{Key: key, Session: *sess})
	}

	dirs := make(map[string]string, len(s.workingDirs))
	for k, v := range s.workingDirs {
		dirs[k] = v
	}
	return records, dirs
}

// Restore merges snapshot contents into the live store. Live entries that
// postdate the snapshot are never overwritten.
func (s *Store) Restore(records []Record, workingDirs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		live, ok := s.sessions[rec.Key]
		if ok && live.LastActivity.After(rec.LastActivity) {
			continue
		}
		restored := rec.Session
		s.sessions[rec.Key] = &restored
	}

	for key, path := range workingDirs {
		if _, ok := s.workingDirs[key]; !ok {
			s.workingDirs[key] = path
		}
	}
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
