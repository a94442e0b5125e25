package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rsned/tower-planner/internal/planner/emit"
	"github.com/rsned/tower-planner/pkg/planner"
)

var errInvalidParams = errors.New("invalid params")

// ToolDefinition describes an MCP tool.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema JSONSchema `json:"inputSchema"`
}

// JSONSchema is a simplified JSON Schema representation.
type JSONSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a schema property.
type Property struct {
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Default     any      `json:"default,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
}

// GetToolDefinitions returns all tool definitions.
func GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		planTargetTool(),
		recipeLookupTool(),
		listTargetsTool(),
		analyzeTargetTool(),
	}
}

func rateProperty() Property {
	minRate := 0.0
	return Property{
		Type:        "number",
		Description: "Target output per minute",
		Default:     1,
		Minimum:     &minRate,
	}
}

func planTargetTool() ToolDefinition {
	return ToolDefinition{
		Name:        "plan_target",
		Description: "Plan the production tower for one item. Returns the ordered steps, raw inputs, per-level lane layout and diagnostics (width exceeded, cycles, overflow).",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"target": {
					Type:        "string",
					Description: "Item display name or ID",
				},
				"rate": rateProperty(),
			},
			Required: []string{"target"},
		},
	}
}

func recipeLookupTool() ToolDefinition {
	return ToolDefinition{
		Name:        "recipe_lookup",
		Description: "Look up how an item is produced: the preferred recipe, alternatives, whether it is raw or a forced stop, and which recipes consume it.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"name": {
					Type:        "string",
					Description: "Item display name or ID",
				},
			},
			Required: []string{"name"},
		},
	}
}

func listTargetsTool() ToolDefinition {
	return ToolDefinition{
		Name:        "list_targets",
		Description: "List the imported tier targets in index order.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"tier": {
					Type:        "string",
					Description: "Only list targets of this tier",
				},
			},
		},
	}
}

func analyzeTargetTool() ToolDefinition {
	return ToolDefinition{
		Name:        "analyze_target",
		Description: "Plan an item and verify the result: input count, fluid inputs, max concurrent lanes, overflow levels and suggested extra stops.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"target": {
					Type:        "string",
					Description: "Item display name or ID",
				},
				"rate": rateProperty(),
			},
			Required: []string{"target"},
		},
	}
}

// Tool handlers

type targetArgs struct {
	Target string  `json:"target"`
	Rate   float64 `json:"rate,omitempty"`
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

func (s *Server) plan(ctx context.Context, args json.RawMessage) (*planner.Plan, error) {
	var a targetArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Target) == "" {
		return nil, fmt.Errorf("%w: target is required", planner.ErrInvalidRequest)
	}
	return s.engine.Plan(ctx, planner.PlanRequest{Target: a.Target, Rate: a.Rate})
}

func (s *Server) toolPlanTarget(ctx context.Context, args json.RawMessage) (any, error) {
	plan, err := s.plan(ctx, args)
	if err != nil {
		return nil, err
	}
	return emit.Build(plan, s.engine.Config().Precision), nil
}

func (s *Server) toolRecipeLookup(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Name string `json:"name"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", planner.ErrInvalidRequest)
	}
	return s.engine.RecipeLookup(ctx, a.Name)
}

// ListTargetsResponse is the result of list_targets.
type ListTargetsResponse struct {
	Targets []planner.Target `json:"targets"`
}

func (s *Server) toolListTargets(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Tier string `json:"tier"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	resp := ListTargetsResponse{Targets: []planner.Target{}}
	if s.targets == nil {
		return resp, nil
	}
	targets, err := s.targets.ListTargets(ctx, a.Tier)
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}
	if targets != nil {
		resp.Targets = targets
	}
	return resp, nil
}

func (s *Server) toolAnalyzeTarget(ctx context.Context, args json.RawMessage) (any, error) {
	plan, err := s.plan(ctx, args)
	if err != nil {
		return nil, err
	}
	return s.engine.Analyze(plan), nil
}
