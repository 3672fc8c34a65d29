// ABOUTME: Shared adapter contract and dispatch argument helpers
// ABOUTME: The capability set is closed; every adapter maps a fixed verb set

package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/familiar/internal/capability"
)

// ErrNotAvailable reports a dispatch against a capability that is not
// configured, or an operation the capability does not expose.
var ErrNotAvailable = errors.New("capability not available")

// Operation names accepted by Dispatch. Each belongs to exactly one
// capability kind.
const (
	OpCreateEntity   = "create-entity"
	OpCreateRelation = "create-relation"
	OpRetrieveEntity = "retrieve-entity"
	OpAddObservation = "add-observation"

	OpFetchURL = "fetch-url"
	OpExtract  = "fetch-and-extract"

	OpNavigate   = "navigate"
	OpClick      = "click"
	OpType       = "type"
	OpScreenshot = "screenshot"

	OpThink = "think"
)

// Adapter is the common surface of the four capability adapters. Call
// dispatches a named operation with loosely typed arguments; the typed
// methods on each concrete adapter are preferred where the caller knows
// the capability at compile time.
type Adapter interface {
	Server() string
	Kind() capability.Kind
	Call(ctx context.Context, operation string, args map[string]any) (map[string]any, error)
	CheckHealth(ctx context.Context) error
	Close() error
}

func unknownOp(kind capability.Kind, operation string) error {
	return fmt.Errorf("%w: %s has no operation %q", ErrNotAvailable, kind, operation)
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

// optStringArg extracts an optional string argument, defaulting to "".
func optStringArg(args map[string]any, key string) (string, error) {
	if _, ok := args[key]; !ok {
		return "", nil
	}
	return stringArg(args, key)
}

// optIntArg extracts an optional integer argument. JSON decoding yields
// float64, so both forms are accepted.
func optIntArg(args map[string]any, key string, fallback int) (int, error) {
	v, ok := args[key]
	if !ok {
		return fallback, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}

// optBoolArg extracts an optional boolean argument.
func optBoolArg(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument %q must be a boolean", key)
	}
	return b, nil
}

// stringsArg extracts a required list-of-strings argument, accepting both
// []string and the []any shape JSON decoding produces.
func stringsArg(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing argument %q", key)
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q must be a list of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argument %q must be a list of strings", key)
	}
}

// intFromReply reads a numeric field out of a decoded reply.
func intFromReply(reply map[string]any, key string) (int, bool) {
	switch n := reply[key].(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
