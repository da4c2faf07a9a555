package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Expand resolves environment variables and "~/" home shortcuts.
func Expand(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(trimmed)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if expanded == "~" {
			expanded = home
		} else {
			expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~/"))
		}
	}

	return filepath.Clean(expanded), nil
}

// Contains reports whether target sits inside boundary after lexical
// resolution of "." and ".." segments. Neither path is required to exist.
func Contains(boundary, target string) bool {
	boundary = filepath.Clean(strings.TrimSpace(boundary))
	if boundary == "" || boundary == "." {
		return true
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(boundary, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(boundary, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
