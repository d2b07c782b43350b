package toolserver

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// browserSession lazily launches (or attaches to) one go-rod/rod browser
// for the process lifetime of this tool server, with a persistent
// profile directory per §4.6.
type browserSession struct {
	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
}

func (b *browserSession) ensure() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	if endpoint := os.Getenv("CLADE_BROWSER_CDP_ENDPOINT"); endpoint != "" {
		b.browser = rod.New().ControlURL(endpoint)
		if err := b.browser.Connect(); err != nil {
			return nil, fmt.Errorf("connect to browser endpoint: %w", err)
		}
		return b.browser, nil
	}

	l := launcher.New().Headless(os.Getenv("CLADE_BROWSER_HEADLESS") == "1")
	if dir := os.Getenv("CLADE_BROWSER_USER_DATA_DIR"); dir != "" {
		l = l.UserDataDir(dir)
	}
	if bin := os.Getenv("CLADE_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	b.browser = rod.New().ControlURL(url)
	if err := b.browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to launched browser: %w", err)
	}
	return b.browser, nil
}

func (b *browserSession) currentPage() (*rod.Page, error) {
	br, err := b.ensure()
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.page == nil {
		b.page = br.MustPage()
	}
	return b.page, nil
}

func registerBrowserTools(s *server.MCPServer, env Env) {
	sess := &browserSession{}

	navTool := mcp.NewTool("browser_navigate",
		mcp.WithDescription("Navigate the shared browser tab to a URL."),
		mcp.WithString("url", mcp.Required()),
	)
	s.AddTool(navTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url := req.GetString("url", "")
		page, err := sess.currentPage()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := page.Navigate(url); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := page.WaitLoad(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("navigated to " + url), nil
	})

	evalTool := mcp.NewTool("browser_eval",
		mcp.WithDescription("Evaluate a JavaScript expression in the current tab and return its result."),
		mcp.WithString("script", mcp.Required()),
	)
	s.AddTool(evalTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		script := req.GetString("script", "")
		page, err := sess.currentPage()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := page.Eval(script)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result.Value.String()), nil
	})

	textTool := mcp.NewTool("browser_text",
		mcp.WithDescription("Return the visible text content of the current page."),
	)
	s.AddTool(textTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		page, err := sess.currentPage()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		body, err := page.Element("body")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := body.Text()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	})
}
