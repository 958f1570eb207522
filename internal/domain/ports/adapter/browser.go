package adapter

import (
	"context"
	"time"
)

// Element is a handle to a node on the page the browser currently shows.
type Element interface {
	Text(ctx context.Context) (string, error)
	Attr(name string) string
	// Find returns descendants matching selector.
	Find(ctx context.Context, selector string) ([]Element, error)
}

// Browser is the automation capability platform drivers run against.
// FindElement returns domain.ErrNotFound when nothing matches; WaitUntil
// returns domain.ErrTimeout when pred never holds within timeout.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	FindElement(ctx context.Context, selector string) (Element, error)
	FindElements(ctx context.Context, selector string) ([]Element, error)
	Click(ctx context.Context, el Element) error
	TypeText(ctx context.Context, el Element, text string) error
	WaitUntil(ctx context.Context, pred func(ctx context.Context) (bool, error), timeout time.Duration) error
	CurrentURL(ctx context.Context) (string, error)
	Close() error
}

type BrowserFactory interface {
	Open(ctx context.Context) (Browser, error)
}
