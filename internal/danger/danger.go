package danger

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/harunnryd/sekimori/internal/pathutil"

	"github.com/google/shlex"
)

// Verdict is the classification result. Reason is human-readable and only
// set when Safe is false.
type Verdict struct {
	Safe   bool
	Reason string
}

func safe() Verdict {
	return Verdict{Safe: true}
}

func unsafe(format string, args ...interface{}) Verdict {
	return Verdict{Safe: false, Reason: fmt.Sprintf(format, args...)}
}

var shellTools = map[string]bool{
	"Bash":  true,
	"Shell": true,
}

var fileWriteTools = map[string]bool{
	"Write":     true,
	"Edit":      true,
	"MultiEdit": true,
}

type pattern struct {
	re     *regexp.Regexp
	reason string
}

// The catalogue is an explicit allow-list-complement: anything not matched
// is presumed safe in auto mode.
var catalogue = []pattern{
	{regexp.MustCompile(`\brm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+(/|/\*|~|~/|\*|\.\.|"?\$HOME"?)(\s|$)`), "recursive forced deletion of a root-like or wildcard target"},
	{regexp.MustCompile(`\bgit\s+push\s+(\S+\s+)*(--force\b|-f\b)`), "forced git push rewrites remote history"},
	{regexp.MustCompile(`\bgit\s+reset\s+--hard\b`), "hard git reset discards local history"},
	{regexp.MustCompile(`\bgit\s+clean\s+-[a-zA-Z]*f`), "forced git clean deletes untracked files"},
	{regexp.MustCompile(`\bgit\s+filter-branch\b`), "git filter-branch rewrites history"},
	{regexp.MustCompile(`\bchmod\s+(-[a-zA-Z]+\s+)*(777|a\+w|o\+w)\b`), "world-writable permission grant"},
	{regexp.MustCompile(`\b(curl|wget)\b[^|;&]*\|\s*(sudo\s+)?\w*sh\b`), "pipes a remote download into a shell"},
	{regexp.MustCompile(`\b(printenv|env)\s*$`), "dumps the process environment"},
	{regexp.MustCompile(`\bcat\s+[^|;&]*(\.env\b|id_rsa|credentials|\.aws/|\.ssh/)`), "reads credential or secret files"},
	{regexp.MustCompile(`\b(kill|pkill)\s+-9\b`), "forceful process termination"},
	{regexp.MustCompile(`\bkillall\b`), "forceful process termination"},
	{regexp.MustCompile(`\blaunchctl\s+(unload|remove)\b`), "unloads a service from the service manager"},
	{regexp.MustCompile(`\bsystemctl\s+(stop|disable|mask)\b`), "stops or removes a system service"},
	{regexp.MustCompile(`\b(npm|yarn|pnpm|cargo)\s+publish\b`), "publishes to a package registry"},
	{regexp.MustCompile(`\b(gem\s+push|twine\s+upload)\b`), "publishes to a package registry"},
	{regexp.MustCompile(`\bmkfs\b`), "formats a filesystem"},
	{regexp.MustCompile(`\bdd\s+[^|;&]*of=/dev/`), "raw write to a block device"},
	{regexp.MustCompile(`\bdiskutil\s+erase`), "erases a disk"},
}

// escalators are argv-level checks: matching the first token avoids false
// positives on words like "sudoku" inside arguments.
var escalators = map[string]bool{
	"sudo": true,
	"su":   true,
	"doas": true,
}

// Classify decides whether a tool call is inherently risky. It is pure: no
// state is read or written.
//
// Two independent checks can flag the call: the shell-command catalogue, and
// the working-directory boundary for file-writing tools. boundary may be
// empty, which disables the path check.
func Classify(toolName string, input json.RawMessage, boundary string) Verdict {
	if shellTools[toolName] {
		return classifyCommand(extractCommand(input))
	}
	if fileWriteTools[toolName] && strings.TrimSpace(boundary) != "" {
		return classifyPath(extractFilePath(input), boundary)
	}
	return safe()
}

func classifyCommand(command string) Verdict {
	command = strings.TrimSpace(command)
	if command == "" {
		return safe()
	}

	if tokens, err := shlex.Split(command); err == nil && len(tokens) > 0 {
		if escalators[tokens[0]] {
			return unsafe("%s escalates privileges", tokens[0])
		}
	}

	for _, p := range catalogue {
		if p.re.MatchString(command) {
			return unsafe("command %s", p.reason)
		}
	}
	return safe()
}

func classifyPath(target, boundary string) Verdict {
	if strings.TrimSpace(target) == "" {
		return safe()
	}
	if !pathutil.Contains(boundary, target) {
		return unsafe("path %q escapes the working directory %q", target, boundary)
	}
	return safe()
}

func extractCommand(input json.RawMessage) string {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return ""
	}
	return args.Command
}

func extractFilePath(input json.RawMessage) string {
	var args struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return ""
	}
	return args.FilePath
}
