package permission

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode is the trust mode attached to a conversation scope.
type Mode string

const (
	// ModeApproval asks the human before every tool call.
	ModeApproval Mode = "approval"
	// ModeBypass never asks.
	ModeBypass Mode = "bypass"
	// ModeAuto asks only when the danger classifier flags the call.
	ModeAuto Mode = "auto"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeApproval, ModeBypass, ModeAuto:
		return true
	}
	return false
}

// UnmarshalJSON accepts either the current string representation or the
// legacy boolean one (true meant bypass, false meant approval). The legacy
// shape never propagates past the load boundary.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		mode := Mode(strings.ToLower(strings.TrimSpace(s)))
		if !mode.Valid() {
			return fmt.Errorf("unknown permission mode %q", s)
		}
		*m = mode
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*m = ModeBypass
		} else {
			*m = ModeApproval
		}
		return nil
	}

	return fmt.Errorf("permission mode must be a string or a legacy boolean: %s", data)
}
