// Package browser implements the Browser port on top of headless Chrome via
// the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/ports/adapter"
)

const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

var (
	_ adapter.BrowserFactory = (*Factory)(nil)
	_ adapter.Browser        = (*Chrome)(nil)
	_ adapter.Element        = (*node)(nil)
)

// Factory launches one Chrome process per Open call.
type Factory struct {
	cfg config.BrowserConfig
	log *zerolog.Logger
}

func NewFactory(cfg config.BrowserConfig, logger *zerolog.Logger) *Factory {
	l := logger.With().Str("component", "browser").Logger()
	return &Factory{cfg: cfg, log: &l}
}

func (f *Factory) Open(ctx context.Context) (adapter.Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("enable-automation", false),
		chromedp.NoSandbox,
		chromedp.UserAgent(f.cfg.UserAgent),
		chromedp.WindowSize(f.cfg.WindowWidth, f.cfg.WindowHeight),
	)
	if f.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ChromePath))
	}

	// The browser outlives the Open call; it is torn down by Close.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			f.log.Debug().Msgf(format, args...)
		}),
	)

	c := &Chrome{
		tab:           tabCtx,
		cancel:        func() { cancelTab(); cancelAlloc() },
		actionTimeout: f.cfg.ActionTimeout,
		pageTimeout:   f.cfg.PageTimeout,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(f.cfg.ActionsPerMinute)), 3),
		pollEvery:     250 * time.Millisecond,
	}

	// The first Run must use the tab context itself; a derived context would
	// tie the browser's lifetime to its own cancellation.
	stop := context.AfterFunc(ctx, c.cancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err != nil {
		c.cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	err = c.run(ctx, f.cfg.PageTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	}))
	if err != nil {
		c.cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return c, nil
}

// Chrome is one browser tab. It is not safe for concurrent use; a run
// drives one tab sequentially.
type Chrome struct {
	tab           context.Context
	cancel        context.CancelFunc
	actionTimeout time.Duration
	pageTimeout   time.Duration
	limiter       *rate.Limiter
	pollEvery     time.Duration
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	callCtx, cancel := context.WithTimeout(c.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(callCtx, actions...)
	return mapErr(ctx, err)
}

func mapErr(caller context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cerr := caller.Err(); cerr != nil {
		return cerr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, c.pageTimeout, chromedp.Navigate(url))
}

func (c *Chrome) FindElement(ctx context.Context, selector string) (adapter.Element, error) {
	els, err := c.FindElements(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, selector)
	}
	return els[0], nil
}

func (c *Chrome) FindElements(ctx context.Context, selector string) ([]adapter.Element, error) {
	return c.query(ctx, selector, nil)
}

func (c *Chrome) query(ctx context.Context, selector string, parent *cdp.Node) ([]adapter.Element, error) {
	var nodes []*cdp.Node
	opts := []chromedp.QueryOption{selectorKind(selector), chromedp.AtLeast(0)}
	if parent != nil {
		opts = append(opts, chromedp.FromNode(parent))
	}
	if err := c.run(ctx, c.actionTimeout, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, err
	}
	out := make([]adapter.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &node{c: c, n: n})
	}
	return out, nil
}

// selectorKind routes XPath expressions to DOM search and everything else
// to querySelectorAll.
func selectorKind(selector string) chromedp.QueryOption {
	if isXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

func isXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(/") || strings.HasPrefix(s, "./")
}

func (c *Chrome) Click(ctx context.Context, el adapter.Element) error {
	n, err := c.own(el)
	if err != nil {
		return err
	}
	return c.run(ctx, c.actionTimeout, chromedp.MouseClickNode(n.n))
}

func (c *Chrome) TypeText(ctx context.Context, el adapter.Element, text string) error {
	n, err := c.own(el)
	if err != nil {
		return err
	}
	ids := []cdp.NodeID{n.n.NodeID}
	return c.run(ctx, c.actionTimeout,
		chromedp.Focus(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, text, chromedp.ByNodeID),
	)
}

func (c *Chrome) own(el adapter.Element) (*node, error) {
	n, ok := el.(*node)
	if !ok || n.c != c {
		return nil, fmt.Errorf("%w: element does not belong to this browser", domain.ErrInvalidArgument)
	}
	return n, nil
}

// WaitUntil polls pred until it holds, errors, or timeout elapses.
func (c *Chrome) WaitUntil(ctx context.Context, pred func(ctx context.Context) (bool, error), timeout time.Duration) error {
	return poll(ctx, pred, timeout, c.pollEvery)
}

func poll(ctx context.Context, pred func(ctx context.Context) (bool, error), timeout, every time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		ok, err := pred(ctx)
		if err != nil && !errors.Is(err, domain.ErrTimeout) {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: condition not met within %s", domain.ErrTimeout, timeout)
		case <-tick.C:
		}
	}
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := c.run(ctx, c.actionTimeout, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (c *Chrome) Close() error {
	c.cancel()
	return nil
}

type node struct {
	c *Chrome
	n *cdp.Node
}

func (e *node) Text(ctx context.Context) (string, error) {
	var s string
	if err := e.c.run(ctx, e.c.actionTimeout, chromedp.Text([]cdp.NodeID{e.n.NodeID}, &s, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (e *node) Attr(name string) string {
	return e.n.AttributeValue(name)
}

func (e *node) Find(ctx context.Context, selector string) ([]adapter.Element, error) {
	if isXPath(selector) {
		return nil, fmt.Errorf("%w: relative lookups take css selectors", domain.ErrInvalidArgument)
	}
	return e.c.query(ctx, selector, e.n)
}
