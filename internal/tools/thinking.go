// ABOUTME: Sequential thinking adapter for the step-by-step reasoning server
// ABOUTME: One Think call advances the protocol by a single thought step

package tools

import (
	"context"
	"log/slog"

	"github.com/2389/familiar/internal/capability"
	"github.com/2389/familiar/internal/transport"
)

var opThink = transport.Op{
	Name: OpThink,
	Path: "/mcp_sequential_thinking_sequentialthinking",
	Tool: "sequentialthinking",
}

// ThoughtStep is one unit of the reasoning protocol. NextNeeded is the
// continuation flag: the reasoning loop runs until the server clears it.
type ThoughtStep struct {
	Thought           string
	Number            int
	TotalEstimate     int
	NextNeeded        bool
	IsRevision        bool
	RevisesThought    int
	BranchFromThought int
	BranchID          string
	NeedsMoreThoughts bool
}

// Thinking is the adapter for the sequential thinking capability server.
type Thinking struct {
	server string
	tr     transport.Transport
	logger *slog.Logger
}

func NewThinking(server string, tr transport.Transport, logger *slog.Logger) *Thinking {
	if logger == nil {
		logger = slog.Default()
	}
	return &Thinking{
		server: server,
		tr:     tr,
		logger: logger.With("component", "tools", "capability", capability.KindThinking),
	}
}

func (t *Thinking) Server() string { return t.server }

func (t *Thinking) Kind() capability.Kind { return capability.KindThinking }

func (t *Thinking) CheckHealth(ctx context.Context) error { return t.tr.CheckHealth(ctx) }

func (t *Thinking) Close() error { return t.tr.Close() }

// Think submits one step and returns the server's updated step. Fields
// the reply does not mention keep their submitted values, so a partial
// reply still yields a complete step.
func (t *Thinking) Think(ctx context.Context, step ThoughtStep) (ThoughtStep, error) {
	args := map[string]any{
		"thought":           step.Thought,
		"thoughtNumber":     step.Number,
		"totalThoughts":     step.TotalEstimate,
		"nextThoughtNeeded": step.NextNeeded,
	}
	if step.IsRevision {
		args["isRevision"] = true
	}
	if step.RevisesThought > 0 {
		args["revisesThought"] = step.RevisesThought
	}
	if step.BranchFromThought > 0 {
		args["branchFromThought"] = step.BranchFromThought
	}
	if step.BranchID != "" {
		args["branchId"] = step.BranchID
	}
	if step.NeedsMoreThoughts {
		args["needsMoreThoughts"] = true
	}

	reply, err := t.tr.Call(ctx, opThink, args)
	if err != nil {
		return ThoughtStep{}, err
	}
	return overlayStep(step, reply), nil
}

// overlayStep applies the fields present in a reply onto the submitted
// step.
func overlayStep(step ThoughtStep, reply map[string]any) ThoughtStep {
	next := step
	if v, ok := reply["thought"].(string); ok {
		next.Thought = v
	}
	if n, ok := intFromReply(reply, "thoughtNumber"); ok {
		next.Number = n
	}
	if n, ok := intFromReply(reply, "totalThoughts"); ok {
		next.TotalEstimate = n
	}
	if v, ok := reply["nextThoughtNeeded"].(bool); ok {
		next.NextNeeded = v
	}
	if v, ok := reply["isRevision"].(bool); ok {
		next.IsRevision = v
	}
	if n, ok := intFromReply(reply, "revisesThought"); ok {
		next.RevisesThought = n
	}
	if n, ok := intFromReply(reply, "branchFromThought"); ok {
		next.BranchFromThought = n
	}
	if v, ok := reply["branchId"].(string); ok {
		next.BranchID = v
	}
	if v, ok := reply["needsMoreThoughts"].(bool); ok {
		next.NeedsMoreThoughts = v
	}
	return next
}

func (t *Thinking) Call(ctx context.Context, operation string, args map[string]any) (map[string]any, error) {
	switch operation {
	case OpThink:
		thought, err := stringArg(args, "thought")
		if err != nil {
			return nil, err
		}
		number, err := optIntArg(args, "thoughtNumber", 1)
		if err != nil {
			return nil, err
		}
		total, err := optIntArg(args, "totalThoughts", number)
		if err != nil {
			return nil, err
		}
		nextNeeded, err := optBoolArg(args, "nextThoughtNeeded")
		if err != nil {
			return nil, err
		}
		step, err := t.Think(ctx, ThoughtStep{
			Thought:       thought,
			Number:        number,
			TotalEstimate: total,
			NextNeeded:    nextNeeded,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"thought":           step.Thought,
			"thoughtNumber":     step.Number,
			"totalThoughts":     step.TotalEstimate,
			"nextThoughtNeeded": step.NextNeeded,
		}, nil
	default:
		return nil, unknownOp(capability.KindThinking, operation)
	}
}
