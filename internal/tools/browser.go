// ABOUTME: Browser adapter driving the puppeteer capability server
// ABOUTME: Navigate, click, type, and screenshot against a headless browser

package tools

import (
	"context"
	"log/slog"

	"github.com/2389/familiar/internal/capability"
	"github.com/2389/familiar/internal/transport"
)

var (
	opBrowserNavigate = transport.Op{
		Name: OpNavigate,
		Path: "/mcp_puppeteer_navigate",
		Tool: "puppeteer_navigate",
	}
	opBrowserClick = transport.Op{
		Name: OpClick,
		Path: "/mcp_puppeteer_click",
		Tool: "puppeteer_click",
	}
	opBrowserType = transport.Op{
		Name: OpType,
		Path: "/mcp_puppeteer_type",
		Tool: "puppeteer_fill",
	}
	opBrowserScreenshot = transport.Op{
		Name: OpScreenshot,
		Path: "/mcp_puppeteer_screenshot",
		Tool: "puppeteer_screenshot",
	}
)

// Browser is the adapter for the browser automation capability server.
type Browser struct {
	server string
	tr     transport.Transport
	logger *slog.Logger
}

func NewBrowser(server string, tr transport.Transport, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{
		server: server,
		tr:     tr,
		logger: logger.With("component", "tools", "capability", capability.KindBrowser),
	}
}

func (b *Browser) Server() string { return b.server }

func (b *Browser) Kind() capability.Kind { return capability.KindBrowser }

func (b *Browser) CheckHealth(ctx context.Context) error { return b.tr.CheckHealth(ctx) }

func (b *Browser) Close() error { return b.tr.Close() }

// Navigate points the browser at a URL.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	_, err := b.tr.Call(ctx, opBrowserNavigate, map[string]any{"url": url})
	return err
}

// Click clicks the element matching the CSS selector.
func (b *Browser) Click(ctx context.Context, selector string) error {
	_, err := b.tr.Call(ctx, opBrowserClick, map[string]any{"selector": selector})
	return err
}

// Type fills the element matching the CSS selector with text.
func (b *Browser) Type(ctx context.Context, selector, text string) error {
	// The tool dialect's fill verb calls the text "value".
	var args map[string]any
	if b.tr.Flavor() == transport.FlavorStdio {
		args = map[string]any{"selector": selector, "value": text}
	} else {
		args = map[string]any{"selector": selector, "text": text}
	}
	_, err := b.tr.Call(ctx, opBrowserType, args)
	return err
}

// Screenshot captures the page, or one element when selector is set, and
// returns the base64-encoded image. fullPage is only meaningful on the
// HTTP dialect.
func (b *Browser) Screenshot(ctx context.Context, selector string, fullPage bool) (string, error) {
	reply, err := b.screenshot(ctx, selector, fullPage)
	if err != nil {
		return "", err
	}
	if s, ok := reply["screenshot"].(string); ok {
		return s, nil
	}
	return contentOf(reply), nil
}

func (b *Browser) screenshot(ctx context.Context, selector string, fullPage bool) (map[string]any, error) {
	var args map[string]any
	if b.tr.Flavor() == transport.FlavorStdio {
		// The tool dialect names each capture and omits absent selectors.
		args = map[string]any{"name": "screenshot"}
		if selector != "" {
			args["selector"] = selector
		}
	} else {
		var sel any
		if selector != "" {
			sel = selector
		}
		args = map[string]any{"selector": sel, "fullPage": fullPage}
	}
	return b.tr.Call(ctx, opBrowserScreenshot, args)
}

func (b *Browser) Call(ctx context.Context, operation string, args map[string]any) (map[string]any, error) {
	switch operation {
	case OpNavigate:
		url, err := stringArg(args, "url")
		if err != nil {
			return nil, err
		}
		if err := b.Navigate(ctx, url); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	case OpClick:
		selector, err := stringArg(args, "selector")
		if err != nil {
			return nil, err
		}
		if err := b.Click(ctx, selector); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	case OpType:
		selector, err := stringArg(args, "selector")
		if err != nil {
			return nil, err
		}
		text, err := stringArg(args, "text")
		if err != nil {
			return nil, err
		}
		if err := b.Type(ctx, selector, text); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	case OpScreenshot:
		selector, err := optStringArg(args, "selector")
		if err != nil {
			return nil, err
		}
		fullPage, err := optBoolArg(args, "fullPage")
		if err != nil {
			return nil, err
		}
		image, err := b.Screenshot(ctx, selector, fullPage)
		if err != nil {
			return nil, err
		}
		return map[string]any{"screenshot": image}, nil
	default:
		return nil, unknownOp(capability.KindBrowser, operation)
	}
}
