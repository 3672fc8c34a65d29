// ABOUTME: Memory adapter for the knowledge-graph capability server
// ABOUTME: Entities carry a name, a type tag, and a list of observations

package tools

import (
	"context"
	"log/slog"

	"github.com/2389/familiar/internal/capability"
	"github.com/2389/familiar/internal/transport"
)

var (
	opMemoryCreate = transport.Op{
		Name: OpCreateEntity,
		Path: "/mcp_memory_create_entities",
		Tool: "create_memory_entity",
	}
	opMemoryRelate = transport.Op{
		Name: OpCreateRelation,
		Path: "/mcp_memory_create_relations",
		Tool: "create_relations",
	}
	opMemoryRetrieve = transport.Op{
		Name: OpRetrieveEntity,
		Path: "/mcp_memory_retrieve_entity",
		Tool: "retrieve_entity",
	}
	opMemoryObserve = transport.Op{
		Name: OpAddObservation,
		Path: "/mcp_memory_add_observation",
		Tool: "add_observation",
	}
)

// Memory is the adapter for the memory capability server.
type Memory struct {
	server string
	tr     transport.Transport
	logger *slog.Logger
}

func NewMemory(server string, tr transport.Transport, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		server: server,
		tr:     tr,
		logger: logger.With("component", "tools", "capability", capability.KindMemory),
	}
}

func (m *Memory) Server() string { return m.server }

func (m *Memory) Kind() capability.Kind { return capability.KindMemory }

func (m *Memory) CheckHealth(ctx context.Context) error { return m.tr.CheckHealth(ctx) }

func (m *Memory) Close() error { return m.tr.Close() }

// CreateEntity records a new entity with its initial observations.
func (m *Memory) CreateEntity(ctx context.Context, name, entityType string, observations []string) error {
	_, err := m.createEntity(ctx, name, entityType, observations)
	return err
}

func (m *Memory) createEntity(ctx context.Context, name, entityType string, observations []string) (map[string]any, error) {
	// The HTTP dialect takes a batched entity list; the tool dialect
	// takes one flat entity.
	var args map[string]any
	if m.tr.Flavor() == transport.FlavorHTTP {
		args = map[string]any{
			"entities": []any{map[string]any{
				"name":         name,
				"entityType":   entityType,
				"observations": observations,
			}},
		}
	} else {
		args = map[string]any{
			"name":         name,
			"entity_type":  entityType,
			"observations": observations,
		}
	}
	return m.tr.Call(ctx, opMemoryCreate, args)
}

// CreateRelation links two entities with a typed edge. Both dialects
// take the batched relation list.
func (m *Memory) CreateRelation(ctx context.Context, from, to, relationType string) error {
	_, err := m.tr.Call(ctx, opMemoryRelate, map[string]any{
		"relations": []any{map[string]any{
			"from":         from,
			"to":           to,
			"relationType": relationType,
		}},
	})
	return err
}

// RetrieveEntity returns the stored entity by name.
func (m *Memory) RetrieveEntity(ctx context.Context, name string) (map[string]any, error) {
	return m.tr.Call(ctx, opMemoryRetrieve, map[string]any{"name": name})
}

// AddObservation appends one observation to an existing entity.
func (m *Memory) AddObservation(ctx context.Context, name, observation string) error {
	_, err := m.tr.Call(ctx, opMemoryObserve, map[string]any{
		"name":        name,
		"observation": observation,
	})
	return err
}

func (m *Memory) Call(ctx context.Context, operation string, args map[string]any) (map[string]any, error) {
	switch operation {
	case OpCreateEntity:
		name, err := stringArg(args, "name")
		if err != nil {
			return nil, err
		}
		entityType, err := stringArg(args, "entityType")
		if err != nil {
			return nil, err
		}
		observations, err := stringsArg(args, "observations")
		if err != nil {
			return nil, err
		}
		return m.createEntity(ctx, name, entityType, observations)
	case OpCreateRelation:
		from, err := stringArg(args, "from")
		if err != nil {
			return nil, err
		}
		to, err := stringArg(args, "to")
		if err != nil {
			return nil, err
		}
		relationType, err := stringArg(args, "relationType")
		if err != nil {
			return nil, err
		}
		if err := m.CreateRelation(ctx, from, to, relationType); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	case OpRetrieveEntity:
		name, err := stringArg(args, "name")
		if err != nil {
			return nil, err
		}
		return m.RetrieveEntity(ctx, name)
	case OpAddObservation:
		name, err := stringArg(args, "name")
		if err != nil {
			return nil, err
		}
		observation, err := stringArg(args, "observation")
		if err != nil {
			return nil, err
		}
		if err := m.AddObservation(ctx, name, observation); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	default:
		return nil, unknownOp(capability.KindMemory, operation)
	}
}
