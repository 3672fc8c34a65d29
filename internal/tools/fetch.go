// ABOUTME: Fetch adapter for the web retrieval capability server
// ABOUTME: Returns simplified page text, or raw HTML when asked

package tools

import (
	"context"
	"log/slog"

	"github.com/2389/familiar/internal/capability"
	"github.com/2389/familiar/internal/transport"
)

// DefaultMaxLength bounds fetched content when the caller does not say
// otherwise.
const DefaultMaxLength = 5000

var (
	opFetchURL = transport.Op{
		Name: OpFetchURL,
		Path: "/mcp_fetch_fetch",
		Tool: "fetch",
	}
	opFetchExtract = transport.Op{
		Name: OpExtract,
		Path: "/mcp_fetch_extract",
		Tool: "extract",
	}
)

// Fetch is the adapter for the web fetch capability server.
type Fetch struct {
	server string
	tr     transport.Transport
	logger *slog.Logger
}

func NewFetch(server string, tr transport.Transport, logger *slog.Logger) *Fetch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetch{
		server: server,
		tr:     tr,
		logger: logger.With("component", "tools", "capability", capability.KindFetch),
	}
}

func (f *Fetch) Server() string { return f.server }

func (f *Fetch) Kind() capability.Kind { return capability.KindFetch }

func (f *Fetch) CheckHealth(ctx context.Context) error { return f.tr.CheckHealth(ctx) }

func (f *Fetch) Close() error { return f.tr.Close() }

// FetchURL retrieves a page and returns its content. maxLength <= 0
// selects the default bound; startIndex skips into the content for
// paging through long pages.
func (f *Fetch) FetchURL(ctx context.Context, url string, maxLength int, raw bool, startIndex int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	reply, err := f.tr.Call(ctx, opFetchURL, map[string]any{
		"url":         url,
		"max_length":  maxLength,
		"raw":         raw,
		"start_index": startIndex,
	})
	if err != nil {
		return "", err
	}
	return contentOf(reply), nil
}

// Extract retrieves a page and returns the part relevant to query.
func (f *Fetch) Extract(ctx context.Context, url, query string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	reply, err := f.tr.Call(ctx, opFetchExtract, map[string]any{
		"url":        url,
		"query":      query,
		"max_length": maxLength,
	})
	if err != nil {
		return "", err
	}
	return contentOf(reply), nil
}

func (f *Fetch) Call(ctx context.Context, operation string, args map[string]any) (map[string]any, error) {
	switch operation {
	case OpFetchURL:
		url, err := stringArg(args, "url")
		if err != nil {
			return nil, err
		}
		maxLength, err := optIntArg(args, "max_length", DefaultMaxLength)
		if err != nil {
			return nil, err
		}
		raw, err := optBoolArg(args, "raw")
		if err != nil {
			return nil, err
		}
		startIndex, err := optIntArg(args, "start_index", 0)
		if err != nil {
			return nil, err
		}
		content, err := f.FetchURL(ctx, url, maxLength, raw, startIndex)
		if err != nil {
			return nil, err
		}
		return map[string]any{"content": content}, nil
	case OpExtract:
		url, err := stringArg(args, "url")
		if err != nil {
			return nil, err
		}
		query, err := stringArg(args, "query")
		if err != nil {
			return nil, err
		}
		maxLength, err := optIntArg(args, "max_length", DefaultMaxLength)
		if err != nil {
			return nil, err
		}
		content, err := f.Extract(ctx, url, query, maxLength)
		if err != nil {
			return nil, err
		}
		return map[string]any{"content": content}, nil
	default:
		return nil, unknownOp(capability.KindFetch, operation)
	}
}

// contentOf pulls the text payload out of a reply.
func contentOf(reply map[string]any) string {
	if s, ok := reply["content"].(string); ok {
		return s
	}
	return ""
}
