// Package transport carries capability operations to their servers.
//
// # Dialects
//
// Capability servers come in two wire dialects. HTTP servers take a JSON
// POST per operation at a well-known path and answer with a JSON object:
//
//	POST {endpoint}/mcp_fetch_fetch
//	{"url": "https://example.com", "max_length": 5000}
//
// Stdio servers are child processes spoken to over the subprocess tool
// protocol; each operation maps to a named tool call. The Op type names
// an operation in both dialects so callers stay dialect-agnostic:
//
//	op := transport.Op{Name: "fetch", Path: "/mcp_fetch_fetch", Tool: "fetch"}
//	reply, err := tr.Call(ctx, op, args)
//
// # Sessions
//
// Both implementations acquire their session lazily on the first call
// and reuse it afterward. A transport never holds two live sessions:
// acquisition is serialized, and Close tears the session down so a later
// call would start fresh.
//
// # Reply Shape
//
// Call always yields a map. HTTP replies are decoded JSON objects. Tool
// replies that are JSON objects decode the same way; plain-text tool
// replies surface under the "content" key, which matches where the HTTP
// dialect puts fetched text.
//
// # Errors
//
// Every failure is an *Error carrying the server name, the operation,
// the HTTP status when one exists, and the underlying cause. Tool-level
// failures (the protocol's isError flag) surface the tool's message.
package transport
