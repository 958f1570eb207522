//go:build !integration

package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/adapter"
)

type fakeEl struct {
	name     string
	text     string
	attrs    map[string]string
	children map[string][]*fakeEl
	onClick  func(b *fakeBrowser)
}

func (e *fakeEl) Text(context.Context) (string, error) { return e.text, nil }
func (e *fakeEl) Attr(name string) string              { return e.attrs[name] }
func (e *fakeEl) Find(_ context.Context, sel string) ([]adapter.Element, error) {
	var out []adapter.Element
	for _, c := range e.children[sel] {
		out = append(out, c)
	}
	return out, nil
}

// fakeBrowser is an in-memory page: dom maps selectors to elements and
// element click handlers mutate it.
type fakeBrowser struct {
	mu         sync.Mutex
	url        string
	dom        map[string][]*fakeEl
	clicked    []string
	typed      map[string]string
	navigated  []string
	closed     bool
	onNavigate func(b *fakeBrowser, url string)
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{dom: map[string][]*fakeEl{}, typed: map[string]string{}}
}

func (f *fakeBrowser) Navigate(_ context.Context, u string) error {
	f.url = u
	f.navigated = append(f.navigated, u)
	if f.onNavigate != nil {
		f.onNavigate(f, u)
	}
	return nil
}

func (f *fakeBrowser) FindElement(ctx context.Context, sel string) (adapter.Element, error) {
	els, _ := f.FindElements(ctx, sel)
	if len(els) == 0 {
		return nil, domain.ErrNotFound
	}
	return els[0], nil
}

func (f *fakeBrowser) FindElements(_ context.Context, sel string) ([]adapter.Element, error) {
	var out []adapter.Element
	for _, e := range f.dom[sel] {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeBrowser) Click(_ context.Context, el adapter.Element) error {
	e := el.(*fakeEl)
	f.clicked = append(f.clicked, e.name)
	if e.onClick != nil {
		e.onClick(f)
	}
	return nil
}

func (f *fakeBrowser) TypeText(_ context.Context, el adapter.Element, text string) error {
	f.typed[el.(*fakeEl).name] = text
	return nil
}

// WaitUntil evaluates pred once; the fake page never changes on its own.
func (f *fakeBrowser) WaitUntil(ctx context.Context, pred func(ctx context.Context) (bool, error), timeout time.Duration) error {
	ok, err := pred(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: fake", domain.ErrTimeout)
	}
	return nil
}

func (f *fakeBrowser) CurrentURL(context.Context) (string, error) { return f.url, nil }

func (f *fakeBrowser) Close() error {
	f.closed = true
	return nil
}

type fakeFactory struct {
	b      *fakeBrowser
	opened int
}

func (f *fakeFactory) Open(context.Context) (adapter.Browser, error) {
	f.opened++
	return f.b, nil
}

type recordingPacer struct {
	waits []adapter.DelayKind
}

func (p *recordingPacer) Wait(_ context.Context, k adapter.DelayKind) error {
	p.waits = append(p.waits, k)
	return nil
}
func (p *recordingPacer) ShouldStop(applied, ceiling int) bool { return applied >= ceiling }

// scriptAffordances renders one affordance at a time; clicking it shows the
// next one in seq.
func scriptAffordances(b *fakeBrowser, aff Affordances, seq []model.Affordance) {
	step := 0
	var render func()
	render = func() {
		for _, sels := range [][]string{aff.Submit, aff.Review, aff.Next} {
			for _, s := range sels {
				delete(b.dom, s)
			}
		}
		if step >= len(seq) {
			return
		}
		kind := seq[step]
		var sel string
		switch kind {
		case model.AffordanceSubmit:
			sel = aff.Submit[0]
		case model.AffordanceReview:
			sel = aff.Review[0]
		default:
			sel = aff.Next[0]
		}
		b.dom[sel] = []*fakeEl{{name: string(kind), onClick: func(*fakeBrowser) { step++; render() }}}
	}
	render()
}
