package approval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sekimoriErrors "github.com/harunnryd/sekimori/internal/errors"
	"github.com/harunnryd/sekimori/internal/store"

	"github.com/natefinch/atomic"
)

// Record is one deposited resolution. The mailbox is append-then-delete:
// a record is written whole by the resolver and consumed whole by the
// coordinator, never updated in place.
type Record struct {
	Approved    bool            `json:"approved"`
	EditedInput json.RawMessage `json:"editedInput,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Decider     string          `json:"decider,omitempty"`
	DecidedAt   time.Time       `json:"decided_at"`
}

// Mailbox is the durable resolution channel shared between the coordinator
// and an out-of-process notification-click handler. It is a directory of
// files addressed by ticket id.
type Mailbox struct {
	dir string
}

func NewMailbox(stateDir string) (*Mailbox, error) {
	dir, err := store.MailboxDir(stateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mailbox dir: %w", err)
	}
	return &Mailbox{dir: dir}, nil
}

func (m *Mailbox) path(ticketID string) (string, error) {
	if ticketID == "" || strings.ContainsAny(ticketID, "/\\") || ticketID == "." || ticketID == ".." {
		return "", sekimoriErrors.InvalidInput("ticket id is not a valid mailbox slot: " + ticketID)
	}
	return filepath.Join(m.dir, ticketID+".json"), nil
}

// Deposit writes exactly one resolution record for a ticket.
func (m *Mailbox) Deposit(ticketID string, rec Record) error {
	path, err := m.path(ticketID)
	if err != nil {
		return err
	}
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Take consumes and deletes the record for a ticket. It returns (nil, nil)
// when no record has been deposited yet. A malformed record is reported as
// ErrMailboxCorrupt and left in place; the caller logs it and keeps waiting.
func (m *Mailbox) Take(ticketID string) (*Record, error) {
	path, err := m.path(ticketID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, sekimoriErrors.MailboxCorrupt("malformed resolution record for " + ticketID)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return &rec, nil
}

// Clear removes any record for a ticket without reading it. Used on
// timeout and cancellation so a late duplicate cannot be misattributed.
func (m *Mailbox) Clear(ticketID string) error {
	path, err := m.path(ticketID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
