// ABOUTME: Tests for stdio transport reply normalization
// ABOUTME: Covers JSON-object decoding, plain-text wrapping, and env flattening

package transport

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestDecodeToolText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]any
	}{
		{
			name: "json object",
			text: `{"thoughtNumber": 2, "nextThoughtNeeded": true}`,
			want: map[string]any{"thoughtNumber": float64(2), "nextThoughtNeeded": true},
		},
		{
			name: "plain text",
			text: "Example Domain\n\nThis domain is for use in examples.",
			want: map[string]any{"content": "Example Domain\n\nThis domain is for use in examples."},
		},
		{
			name: "json array is not an object",
			text: `[1, 2, 3]`,
			want: map[string]any{"content": `[1, 2, 3]`},
		},
		{
			name: "broken json falls back to text",
			text: `{"content": truncat`,
			want: map[string]any{"content": `{"content": truncat`},
		},
		{
			name: "empty reply",
			text: "",
			want: map[string]any{"content": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeToolText(tt.text))
		})
	}
}

func TestFlattenContent(t *testing.T) {
	content := []mcp.Content{
		mcp.TextContent{Type: "text", Text: "first"},
		mcp.TextContent{Type: "text", Text: "second"},
	}
	assert.Equal(t, "first\nsecond", flattenContent(content))
	assert.Equal(t, "", flattenContent(nil))

	image := []mcp.Content{
		mcp.ImageContent{Type: "image", Data: "aGVsbG8=", MIMEType: "image/png"},
	}
	assert.Equal(t, "aGVsbG8=", flattenContent(image))
}

func TestEnvList(t *testing.T) {
	assert.Nil(t, envList(nil))
	assert.Equal(t, []string{"A=1", "B=2"}, envList(map[string]string{"B": "2", "A": "1"}))
}

func TestStdioFlavor(t *testing.T) {
	tr := NewStdio("memory", "mcp-server-memory", nil, nil, nil)
	assert.Equal(t, FlavorStdio, tr.Flavor())
	assert.NoError(t, tr.Close())
}
