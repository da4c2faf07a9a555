package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
)

// PermissionFunc decides one tool call. It returns whether the call may
// proceed, the input to run with (possibly edited), and a denial reason.
type PermissionFunc func(ctx context.Context, toolName string, input json.RawMessage) (bool, json.RawMessage, string)

type permissionQuery struct {
	ToolName string          `json:"tool_name"`
	Input    json.RawMessage `json:"input"`
}

type permissionReply struct {
	Behavior     string          `json:"behavior"` // "allow" or "deny"
	UpdatedInput json.RawMessage `json:"updatedInput,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// permissionServer answers the agent subprocess's tool-permission queries
// over a unix socket, one JSON line per query and reply.
type permissionServer struct {
	path     string
	decide   PermissionFunc
	listener net.Listener

	mu     sync.Mutex
	closed bool
}

func newPermissionServer(path string, decide PermissionFunc) (*permissionServer, error) {
	// A previous run may have left the socket file behind.
	_ = os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on permission socket: %w", err)
	}

	return &permissionServer{path: path, decide: decide, listener: listener}, nil
}

func (s *permissionServer) serve(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				slog.Warn("Permission socket accept failed", "error", err)
			}
			return
		}
		go s.handle(ctx, conn)
	}
}

func (s *permissionServer) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		var query permissionQuery
		if err := json.Unmarshal(scanner.Bytes(), &query); err != nil {
			slog.Warn("Malformed permission query", "error", err)
			continue
		}

		allowed, input, reason := s.decide(ctx, query.ToolName, query.Input)

		reply := permissionReply{Behavior: "deny", Message: reason}
		if allowed {
			reply = permissionReply{Behavior: "allow", UpdatedInput: input}
		}

		data, err := json.Marshal(reply)
		if err != nil {
			slog.Error("Failed to encode permission reply", "error", err)
			return
		}
		if _, err := conn.Write(append(data, '\n')); err != nil {
			slog.Warn("Failed to write permission reply", "error", err)
			return
		}
	}
}

func (s *permissionServer) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	_ = s.listener.Close()
	_ = os.Remove(s.path)
}
