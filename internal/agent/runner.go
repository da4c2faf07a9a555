package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harunnryd/sekimori/internal/config"
	"github.com/harunnryd/sekimori/internal/pathutil"
)

// Event is one message from the agent's output stream.
type Event struct {
	Type      string // "init", "text", "result"
	SessionID string
	Text      string
}

// RunRequest is one prompt turn against the agent CLI.
type RunRequest struct {
	Prompt     string
	WorkingDir string
	// ResumeSessionID continues a previous conversation when non-empty.
	ResumeSessionID string
	// Permission gates every tool call the agent attempts.
	Permission PermissionFunc
	// OnEvent receives each stream message as it arrives. Optional.
	OnEvent func(Event)
}

// Result is the final state of a completed turn.
type Result struct {
	SessionID string
	Output    string
}

// Runner drives the coding-agent CLI as a subprocess speaking stream-JSON
// on stdout, with tool permissions referred back over a unix socket.
type Runner struct {
	command         string
	defaultDir      string
	enforceBoundary bool
	socketDir       string
	shutdownTimeout time.Duration
}

func NewRunner(cfg config.AgentConfig) (*Runner, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		command = config.DefaultAgentCommand
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("agent command not found: %w", err)
	}

	shutdownTimeout, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultAgentShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse agent shutdown timeout: %w", err)
	}

	defaultDir, err := pathutil.Expand(cfg.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("expand agent working dir: %w", err)
	}

	socketDir, err := pathutil.Expand(cfg.PermissionSocket)
	if err != nil {
		return nil, fmt.Errorf("expand permission socket dir: %w", err)
	}
	if socketDir == "" {
		socketDir = os.TempDir()
	}

	return &Runner{
		command:         command,
		defaultDir:      defaultDir,
		enforceBoundary: cfg.EnforceBoundary,
		socketDir:       socketDir,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// Boundary reports the directory tool calls are confined to for a turn
// rooted at workingDir, or "" when confinement is off.
func (r *Runner) Boundary(workingDir string) string {
	if !r.enforceBoundary {
		return ""
	}
	if workingDir != "" {
		return workingDir
	}
	return r.defaultDir
}

// Run executes one prompt turn and blocks until the agent exits or the
// context is cancelled.
func (r *Runner) Run(ctx context.Context, req RunRequest) (Result, error) {
	var srv *permissionServer
	socketPath := ""
	if req.Permission != nil {
		socketPath = filepath.Join(r.socketDir, fmt.Sprintf("perm-%s.sock", ulid.Make().String()))
		var err error
		srv, err = newPermissionServer(socketPath, req.Permission)
		if err != nil {
			return Result{}, err
		}
		go srv.serve(ctx)
		defer srv.close()
	}

	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
	}
	if req.ResumeSessionID != "" {
		args = append(args, "--resume", req.ResumeSessionID)
	}
	if socketPath != "" {
		args = append(args, "--permission-socket", socketPath)
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Dir = req.WorkingDir
	if cmd.Dir == "" {
		cmd.Dir = r.defaultDir
	}
	cmd.Stdin = strings.NewReader(req.Prompt)
	cmd.WaitDelay = r.shutdownTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("open agent stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start agent: %w", err)
	}

	slog.Debug("Agent turn started", "command", r.command, "dir", cmd.Dir, "resume", req.ResumeSessionID != "")

	result := r.consume(stdout, req.OnEvent)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("agent exited: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return result, nil
}

// streamLine mirrors the agent CLI's stream-json output envelope.
type streamLine struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Result    string `json:"result,omitempty"`
	Message   struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
	} `json:"message"`
}

func (r *Runner) consume(stdout io.Reader, onEvent func(Event)) Result {
	emit := func(evt Event) {
		if onEvent != nil {
			onEvent(evt)
		}
	}

	var result Result

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		var line streamLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			slog.Debug("Unparseable agent output line skipped", "error", err)
			continue
		}

		switch {
		case line.Type == "system" && line.Subtype == "init":
			// The init message carries the resumable conversation id.
			result.SessionID = line.SessionID
			emit(Event{Type: "init", SessionID: line.SessionID})

		case line.Type == "assistant":
			for _, block := range line.Message.Content {
				if block.Type == "text" && block.Text != "" {
					emit(Event{Type: "text", SessionID: result.SessionID, Text: block.Text})
				}
			}

		case line.Type == "result":
			result.Output = line.Result
			if line.SessionID != "" {
				result.SessionID = line.SessionID
			}
			emit(Event{Type: "result", SessionID: result.SessionID, Text: line.Result})
		}
	}
	return result
}
