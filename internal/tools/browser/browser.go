// Package browser implements the browser_use tool on a headless Chrome
// session driven over the DevTools protocol.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/ChamsBouzaiene/omni/internal/engine"
)

const (
	actionTimeout  = 30 * time.Second
	maxContentsLen = 20_000
)

// Session owns one headless Chrome instance, started on first use and torn
// down by Cleanup.
type Session struct {
	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	taskCtx     context.Context
	taskCancel  context.CancelFunc
}

// NewSession creates an unstarted session.
func NewSession() *Session {
	return &Session{}
}

// ctx returns the live browser context, launching Chrome if needed.
func (s *Session) ctx() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.taskCtx != nil && s.taskCtx.Err() == nil {
		return s.taskCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoFirstRun,
	)
	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	s.taskCtx, s.taskCancel = chromedp.NewContext(s.allocCtx)

	// Launch the process now so a missing Chrome binary surfaces here.
	if err := chromedp.Run(s.taskCtx); err != nil {
		s.closeLocked()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return s.taskCtx, nil
}

// Close shuts the browser down.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Session) closeLocked() {
	if s.taskCancel != nil {
		s.taskCancel()
		s.taskCancel = nil
		s.taskCtx = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
		s.allocCtx = nil
	}
}

const browserSchema = `{
	"type": "object",
	"properties": {
		"action": {
			"type": "string",
			"enum": ["go_to_url", "click_element", "input_text", "extract_content", "scroll", "screenshot"],
			"description": "The browser action to perform."
		},
		"url": {
			"type": "string",
			"description": "Target URL for go_to_url."
		},
		"selector": {
			"type": "string",
			"description": "CSS selector for click_element and input_text."
		},
		"text": {
			"type": "string",
			"description": "Text to type for input_text."
		},
		"amount": {
			"type": "integer",
			"description": "Scroll distance in pixels, negative scrolls up. Default 600."
		}
	},
	"required": ["action"]
}`

// Tool builds the browser_use tool over the session.
func Tool(session *Session) engine.Tool {
	return engine.Tool{
		Name:        "browser_use",
		Description: "Control a headless browser: navigate, click, type, scroll, extract page content, or take a screenshot.",
		SchemaJSON:  browserSchema,
		SideEffect:  true,
		Instructions: "After opening a page with go_to_url, work with it: extract_content to read it, " +
			"click_element or input_text to interact. Do not conclude from a page you never read.",
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			return session.perform(ctx, args)
		},
		Cleanup: session.Close,
	}
}

func (s *Session) perform(ctx context.Context, args map[string]any) (any, error) {
	action, _ := args["action"].(string)

	browserCtx, err := s.ctx()
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithTimeout(browserCtx, actionTimeout)
	defer cancel()

	// The tool context carries the dispatcher timeout; honor a cancellation
	// from it as well.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	switch action {
	case "go_to_url":
		url, _ := args["url"].(string)
		if url == "" {
			return nil, fmt.Errorf("url is required for go_to_url")
		}
		var title string
		if err := chromedp.Run(runCtx,
			chromedp.Navigate(url),
			chromedp.Title(&title),
		); err != nil {
			return nil, fmt.Errorf("navigate to %s: %w", url, err)
		}
		return fmt.Sprintf("Opened %s (title: %s)", url, title), nil

	case "click_element":
		selector, _ := args["selector"].(string)
		if selector == "" {
			return nil, fmt.Errorf("selector is required for click_element")
		}
		if err := chromedp.Run(runCtx,
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.Click(selector, chromedp.ByQuery),
		); err != nil {
			return nil, fmt.Errorf("click %s: %w", selector, err)
		}
		return "Clicked " + selector, nil

	case "input_text":
		selector, _ := args["selector"].(string)
		text, _ := args["text"].(string)
		if selector == "" || text == "" {
			return nil, fmt.Errorf("selector and text are required for input_text")
		}
		if err := chromedp.Run(runCtx,
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.SendKeys(selector, text, chromedp.ByQuery),
		); err != nil {
			return nil, fmt.Errorf("type into %s: %w", selector, err)
		}
		return fmt.Sprintf("Typed %q into %s", text, selector), nil

	case "extract_content":
		var text, html string
		err := chromedp.Run(runCtx,
			chromedp.Text("body", &text, chromedp.ByQuery),
			chromedp.ActionFunc(func(ctx context.Context) error {
				node, err := dom.GetDocument().Do(ctx)
				if err != nil {
					return err
				}
				html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
				return err
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("extract content: %w", err)
		}
		content := strings.TrimSpace(text)
		if content == "" {
			content = html
		}
		if len(content) > maxContentsLen {
			content = content[:maxContentsLen] + "\n... [page content truncated]"
		}
		return content, nil

	case "scroll":
		amount := 600
		if v, ok := args["amount"].(float64); ok && v != 0 {
			amount = int(v)
		}
		script := fmt.Sprintf("window.scrollBy(0, %d)", amount)
		if err := chromedp.Run(runCtx, chromedp.Evaluate(script, nil)); err != nil {
			return nil, fmt.Errorf("scroll: %w", err)
		}
		return fmt.Sprintf("Scrolled by %d pixels", amount), nil

	case "screenshot":
		var buf []byte
		if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 80)); err != nil {
			return nil, fmt.Errorf("screenshot: %w", err)
		}
		return &engine.ToolResult{
			Output: fmt.Sprintf("Screenshot captured (%d bytes)", len(buf)),
			Image:  buf,
		}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}
