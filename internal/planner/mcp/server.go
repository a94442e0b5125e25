// Package mcp serves the planner as Model Context Protocol tools over
// newline-delimited JSON-RPC on stdio.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rsned/tower-planner/internal/planner/engine"
	"github.com/rsned/tower-planner/pkg/planner"
)

// ServerName and ServerVersion are reported by initialize.
const (
	ServerName      = "tower-planner"
	ServerVersion   = "0.1.0"
	protocolVersion = "2024-11-05"
)

// maxLine bounds a single request line.
const maxLine = 4 << 20

// TargetLister provides the stored tier list.
type TargetLister interface {
	ListTargets(ctx context.Context, tier string) ([]planner.Target, error)
}

type toolFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Server answers MCP requests with the planning engine.
type Server struct {
	engine  *engine.Engine
	targets TargetLister
	logger  *slog.Logger
	tools   map[string]toolFunc
}

// NewServer creates a server. targets may be nil, in which case list_targets
// reports an empty tier list.
func NewServer(eng *engine.Engine, targets TargetLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	s := &Server{engine: eng, targets: targets, logger: logger}
	s.tools = map[string]toolFunc{
		"plan_target":    s.toolPlanTarget,
		"recipe_lookup":  s.toolRecipeLookup,
		"list_targets":   s.toolListTargets,
		"analyze_target": s.toolAnalyzeTarget,
	}
	return s
}

// Run serves stdin to stdout until EOF or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve answers one request per line of r on w. Blank lines are ignored and
// a last line without a trailing newline is still served.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	s.logger.Info("MCP server starting")
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		resp := s.handle(ctx, line)
		if resp == nil {
			continue
		}
		if err := writeLine(w, resp); err != nil {
			s.logger.Error("failed to write response", "error", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return ctx.Err()
}

// handle answers one request line; notifications yield nil.
func (s *Server) handle(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(nil, ErrCodeParse, "Parse error", err.Error())
	}
	s.logger.Debug("received request", "method", req.Method, "id", req.ID)

	if req.isNotification() {
		return nil
	}

	var (
		result any
		err    error
	)
	switch req.Method {
	case "":
		return errorResponse(req.ID, ErrCodeInvalidReq, "Invalid request: missing method", nil)
	case "initialize":
		result = InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: ServerName, Version: ServerVersion},
			Capabilities:    Capabilities{Tools: &ToolsCapability{}},
		}
	case "ping":
		result = struct{}{}
	case "tools/list":
		result = ToolsListResult{Tools: GetToolDefinitions()}
	case "tools/call":
		result, err = s.callTool(ctx, req.Params)
	default:
		return errorResponse(req.ID, ErrCodeMethodNotFound, "Method not found: "+req.Method, nil)
	}

	if err != nil {
		code := ErrCodeInternal
		if errors.Is(err, errInvalidParams) {
			code = ErrCodeInvalidParams
		}
		return errorResponse(req.ID, code, err.Error(), nil)
	}
	return resultResponse(req.ID, result)
}

// callTool runs a tools/call. Unknown targets and bad arguments come back as
// tool results with IsError set.
func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, error) {
	var p ToolCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	tool, ok := s.tools[p.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool: %s", errInvalidParams, p.Name)
	}
	s.logger.Debug("calling tool", "name", p.Name)

	out, err := tool(ctx, p.Arguments)
	switch {
	case errors.Is(err, planner.ErrUnknownTarget), errors.Is(err, planner.ErrInvalidRequest):
		return textResult(err.Error(), true), nil
	case err != nil:
		return nil, fmt.Errorf("tool %s: %w", p.Name, err)
	}

	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s result: %w", p.Name, err)
	}
	return textResult(string(text), false), nil
}

func writeLine(w io.Writer, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
