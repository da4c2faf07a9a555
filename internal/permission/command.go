package permission

import (
	"strings"
)

// ParseCommand recognizes operator mode-change phrases of the shape
// "{bypass|approval|auto} {on|off|enable|disable|true|false|0|1}".
//
// Turning a restrictive mode "off" falls back to the least previous
// restriction: "approval off" means bypass, while "bypass off" and
// "auto off" both mean approval, never auto.
//
// Unrecognized text returns ok=false so callers can tell a command apart
// from ordinary conversation.
func ParseCommand(text string) (Mode, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) != 2 {
		return "", false
	}

	var enabled bool
	switch fields[1] {
	case "on", "enable", "true", "1":
		enabled = true
	case "off", "disable", "false", "0":
		enabled = false
	default:
		return "", false
	}

	switch fields[0] {
	case "bypass":
		if enabled {
			return ModeBypass, true
		}
		return ModeApproval, true
	case "approval":
		if enabled {
			return ModeApproval, true
		}
		return ModeBypass, true
	case "auto":
		if enabled {
			return ModeAuto, true
		}
		return ModeApproval, true
	}
	return "", false
}

// IsStatusQuery recognizes "{mode|bypass|approval|auto}" optionally followed
// by "status" and/or a trailing "?".
func IsStatusQuery(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimSuffix(normalized, "?")
	normalized = strings.TrimSpace(normalized)

	fields := strings.Fields(normalized)
	switch len(fields) {
	case 1:
	case 2:
		if fields[1] != "status" {
			return false
		}
	default:
		return false
	}
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "mode", "bypass", "approval", "auto":
		return true
	}
	return false
}
