package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/akshat/snaptrail/internal/agent"
)

// Session owns one chromedp browser that stays open across actions until
// Close is called. It implements agent.Executor for the demo driver and
// supplies BrowserState captures for the recorder.
type Session struct {
	mu            sync.Mutex
	headless      bool
	timeout       time.Duration
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewSession(headless bool, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Session{headless: headless, timeout: timeout}
}

func (s *Session) init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx != nil {
		select {
		case <-s.browserCtx.Done():
			s.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", s.headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	s.browserCtx, s.browserCancel = chromedp.NewContext(s.allocCtx)

	return chromedp.Run(s.browserCtx)
}

func (s *Session) cleanup() {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.browserCtx = nil
	s.allocCtx = nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup()
}

func (s *Session) actionCtx(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := s.init(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize browser: %v", err)
	}
	actionCtx, cancel := context.WithTimeout(s.browserCtx, s.timeout)
	return actionCtx, cancel, nil
}

// State captures the current page: URL, title, a PNG screenshot
// (base64-encoded) and the outer HTML.
func (s *Session) State(ctx context.Context) (*agent.BrowserState, error) {
	actionCtx, cancel, err := s.actionCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var (
		loc   string
		title string
		shot  []byte
		html  string
	)

	err = chromedp.Run(actionCtx,
		chromedp.Location(&loc),
		chromedp.Title(&title),
		chromedp.CaptureScreenshot(&shot),
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
		return nil, fmt.Errorf("failed to capture state: %v", err)
	}

	return &agent.BrowserState{
		URL:        loc,
		Title:      title,
		Screenshot: base64.StdEncoding.EncodeToString(shot),
		HTML:       html,
	}, nil
}

type actionParams struct {
	URL         string `json:"url,omitempty"`
	Selector    string `json:"selector,omitempty"`
	Text        string `json:"text,omitempty"`
	WaitSeconds int    `json:"wait_seconds,omitempty"`
}

func paramsOf(a agent.Action) actionParams {
	var p actionParams
	switch v := a.Params.(type) {
	case actionParams:
		p = v
	case *actionParams:
		if v != nil {
			p = *v
		}
	case map[string]any:
		if s, ok := v["url"].(string); ok {
			p.URL = s
		}
		if s, ok := v["selector"].(string); ok {
			p.Selector = s
		}
		if s, ok := v["text"].(string); ok {
			p.Text = s
		}
		if n, ok := v["wait_seconds"].(float64); ok {
			p.WaitSeconds = int(n)
		}
	}
	return p
}

// Execute runs one browser action. Action errors come back inside the
// result so the driver can keep going; only infrastructure failures
// (browser won't start) return a Go error.
func (s *Session) Execute(ctx context.Context, action agent.Action) (agent.ActionResult, error) {
	actionCtx, cancel, err := s.actionCtx(ctx)
	if err != nil {
		return agent.ActionResult{}, err
	}
	defer cancel()

	p := paramsOf(action)
	var content string

	switch action.Name {
	case "navigate":
		if p.URL == "" {
			return agent.ActionResult{Error: "url is required for 'navigate'"}, nil
		}
		err = chromedp.Run(actionCtx, chromedp.Navigate(p.URL))
		content = fmt.Sprintf("navigated to %s", p.URL)

	case "click":
		if p.Selector == "" {
			return agent.ActionResult{Error: "selector required"}, nil
		}
		err = chromedp.Run(actionCtx, chromedp.Click(p.Selector, chromedp.ByQuery))
		content = fmt.Sprintf("clicked %s", p.Selector)

	case "type":
		if p.Selector == "" || p.Text == "" {
			return agent.ActionResult{Error: "selector and text required"}, nil
		}
		err = chromedp.Run(actionCtx, chromedp.SendKeys(p.Selector, p.Text, chromedp.ByQuery))
		content = fmt.Sprintf("typed text in %s", p.Selector)

	case "press":
		if p.Text == "" {
			return agent.ActionResult{Error: "text (key) required"}, nil
		}
		err = chromedp.Run(actionCtx, chromedp.KeyEvent(p.Text))
		content = fmt.Sprintf("pressed key: %s", p.Text)

	case "scroll":
		if p.Selector != "" {
			err = chromedp.Run(actionCtx, chromedp.ScrollIntoView(p.Selector, chromedp.ByQuery))
			content = fmt.Sprintf("scrolled to %s", p.Selector)
		} else {
			err = chromedp.Run(actionCtx, chromedp.Evaluate("window.scrollTo(0, document.body.scrollHeight)", nil))
			content = "scrolled to bottom"
		}

	case "wait":
		if p.Selector != "" {
			err = chromedp.Run(actionCtx, chromedp.WaitVisible(p.Selector, chromedp.ByQuery))
			content = fmt.Sprintf("finished waiting for %s", p.Selector)
		} else if p.WaitSeconds > 0 {
			time.Sleep(time.Duration(p.WaitSeconds) * time.Second)
			content = fmt.Sprintf("waited for %d seconds", p.WaitSeconds)
		} else {
			content = "nothing to wait for"
		}

	case "back":
		err = chromedp.Run(actionCtx, chromedp.NavigateBack())
		content = "navigated back"

	case "forward":
		err = chromedp.Run(actionCtx, chromedp.NavigateForward())
		content = "navigated forward"

	case "reload":
		err = chromedp.Run(actionCtx, chromedp.Reload())
		content = "page reloaded"

	default:
		return agent.ActionResult{Error: fmt.Sprintf("unknown action %q", action.Name)}, nil
	}

	if err != nil {
		return agent.ActionResult{Error: fmt.Sprintf("browser action failed: %v", err)}, nil
	}

	return agent.ActionResult{
		ExtractedContent: content,
		Success:          true,
		IncludeInMemory:  true,
	}, nil
}
