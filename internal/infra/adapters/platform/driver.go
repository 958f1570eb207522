// Package platform holds the browser-driven job platform drivers. A driver
// is a Selectors table plus the shared login, search and apply mechanics.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/adapter"
)

// Selectors describe one platform's pages.
type Selectors struct {
	LoginURL      string
	LoginUser     string
	LoginContinue string // optional: two-page login
	LoginPassword string
	LoginSubmit   string
	// LoginPending lists URL fragments that mean we are still on a login or
	// challenge page.
	LoginPending []string

	SearchURL     func(title, location string) string
	SearchPath    string // path prefix of result pages
	Listing       string // one element per result
	ListingLink   string // anchor inside Listing carrying the job url; "" means Listing itself
	DetailTitle   string
	DetailCompany string

	OpenApply   []string // button that opens the application form
	Affordances Affordances
}

var _ adapter.PlatformDriver = (*Driver)(nil)

type Driver struct {
	name    string
	method  string
	sel     Selectors
	factory adapter.BrowserFactory
	pacer   adapter.Pacer
	flow    ApplyFlow
	timeout timeouts
	log     *zerolog.Logger
	now     func() time.Time
}

type timeouts struct {
	login  time.Duration
	page   time.Duration
	action time.Duration
}

func newDriver(name, method string, sel Selectors, pc config.PlatformConfig, bc config.BrowserConfig,
	factory adapter.BrowserFactory, pacer adapter.Pacer, logger *zerolog.Logger) *Driver {
	l := logger.With().Str("component", "driver").Str("platform", name).Logger()
	return &Driver{
		name:    name,
		method:  method,
		sel:     sel,
		factory: factory,
		pacer:   pacer,
		flow: ApplyFlow{
			Affordances: sel.Affordances,
			StepLimit:   pc.StepLimit,
			WaitTimeout: bc.ActionTimeout,
			Pacer:       pacer,
		},
		timeout: timeouts{login: bc.LoginTimeout, page: bc.PageTimeout, action: bc.ActionTimeout},
		log:     &l,
		now:     time.Now,
	}
}

func (d *Driver) Name() string { return d.name }

type session struct {
	platform string
	b        adapter.Browser
}

func (s *session) Platform() string { return s.platform }
func (s *session) Close() error     { return s.b.Close() }

func (d *Driver) browserOf(s adapter.Session) (adapter.Browser, error) {
	ss, ok := s.(*session)
	if !ok || ss.platform != d.name {
		return nil, fmt.Errorf("%w: session not issued by %s", domain.ErrInvalidArgument, d.name)
	}
	return ss.b, nil
}

// Authenticate opens a browser and logs in. Any failure, including a
// timeout, is reported as domain.ErrAuth and the browser is closed.
func (d *Driver) Authenticate(ctx context.Context, creds adapter.Credentials) (adapter.Session, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingCredentials, d.name)
	}
	b, err := d.factory.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open browser: %v", domain.ErrAuth, err)
	}
	if err := d.login(ctx, b, creds); err != nil {
		_ = b.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrAuth, d.name, err)
	}
	return &session{platform: d.name, b: b}, nil
}

func (d *Driver) login(ctx context.Context, b adapter.Browser, creds adapter.Credentials) error {
	if err := b.Navigate(ctx, d.sel.LoginURL); err != nil {
		return err
	}
	if err := d.typeInto(ctx, b, d.sel.LoginUser, creds.Username); err != nil {
		return err
	}
	if d.sel.LoginContinue != "" {
		if err := d.clickFirst(ctx, b, d.sel.LoginContinue); err != nil {
			return err
		}
	}
	if err := d.typeInto(ctx, b, d.sel.LoginPassword, creds.Password); err != nil {
		return err
	}
	if err := d.clickFirst(ctx, b, d.sel.LoginSubmit); err != nil {
		return err
	}
	return b.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
		u, err := b.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		return !d.loginPending(u), nil
	}, d.timeout.login)
}

func (d *Driver) loginPending(u string) bool {
	if u == "" {
		return true
	}
	for _, frag := range d.sel.LoginPending {
		if strings.Contains(u, frag) {
			return true
		}
	}
	return false
}

func (d *Driver) waitFor(ctx context.Context, b adapter.Browser, selector string, timeout time.Duration) (adapter.Element, error) {
	var found adapter.Element
	err := b.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
		els, err := b.FindElements(ctx, selector)
		if err != nil || len(els) == 0 {
			return false, err
		}
		found = els[0]
		return true, nil
	}, timeout)
	return found, err
}

func (d *Driver) typeInto(ctx context.Context, b adapter.Browser, selector, text string) error {
	el, err := d.waitFor(ctx, b, selector, d.timeout.page)
	if err != nil {
		return fmt.Errorf("field %s: %w", selector, err)
	}
	return b.TypeText(ctx, el, text)
}

func (d *Driver) clickFirst(ctx context.Context, b adapter.Browser, selector string) error {
	el, err := d.waitFor(ctx, b, selector, d.timeout.action)
	if err != nil {
		return fmt.Errorf("button %s: %w", selector, err)
	}
	return b.Click(ctx, el)
}

// SearchCandidates loads the result page and returns a cursor over at most
// q.MaxResults listings. Listings are resolved one at a time as the cursor
// advances.
func (d *Driver) SearchCandidates(ctx context.Context, s adapter.Session, q adapter.SearchQuery) (adapter.CandidateCursor, error) {
	b, err := d.browserOf(s)
	if err != nil {
		return nil, err
	}
	searchURL := d.sel.SearchURL(q.Title, q.Location)
	if err := b.Navigate(ctx, searchURL); err != nil {
		return nil, err
	}
	// An empty result page is not an error.
	if _, err := d.waitFor(ctx, b, d.sel.Listing, d.timeout.page); err != nil && !errors.Is(err, domain.ErrTimeout) {
		return nil, err
	}
	return &cursor{d: d, b: b, searchURL: searchURL, max: q.MaxResults}, nil
}

type cursor struct {
	d         *Driver
	b         adapter.Browser
	searchURL string
	max       int
	next      int
	done      bool
}

// Next re-reads the result list on every call so that element handles stay
// valid after an application navigated away.
func (c *cursor) Next(ctx context.Context) (model.CandidateListing, bool, error) {
	for !c.done {
		if c.max > 0 && c.next >= c.max {
			c.done = true
			break
		}
		if err := c.backToResults(ctx); err != nil {
			c.done = true
			return model.CandidateListing{}, false, err
		}
		items, err := c.b.FindElements(ctx, c.d.sel.Listing)
		if err != nil {
			c.done = true
			return model.CandidateListing{}, false, err
		}
		if c.next >= len(items) {
			c.done = true
			break
		}
		item := items[c.next]
		c.next++

		l, err := c.d.open(ctx, c.b, item)
		if err != nil {
			if ctx.Err() != nil {
				return model.CandidateListing{}, false, ctx.Err()
			}
			c.d.log.Debug().Err(err).Int("index", c.next-1).Msg("listing skipped")
			continue
		}
		return l, true, nil
	}
	return model.CandidateListing{}, false, nil
}

func (c *cursor) backToResults(ctx context.Context) error {
	u, err := c.b.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if c.d.onResults(u) {
		return nil
	}
	if err := c.b.Navigate(ctx, c.searchURL); err != nil {
		return err
	}
	_, err = c.d.waitFor(ctx, c.b, c.d.sel.Listing, c.d.timeout.page)
	return err
}

func (d *Driver) onResults(u string) bool {
	pu, err := url.Parse(u)
	if err != nil {
		return false
	}
	return strings.HasPrefix(pu.Path, d.sel.SearchPath)
}

// open clicks a result and reads the job details.
func (d *Driver) open(ctx context.Context, b adapter.Browser, item adapter.Element) (model.CandidateListing, error) {
	link := item
	if d.sel.ListingLink != "" {
		links, err := item.Find(ctx, d.sel.ListingLink)
		if err != nil {
			return model.CandidateListing{}, err
		}
		if len(links) > 0 {
			link = links[0]
		}
	}
	href := link.Attr("href")

	if err := b.Click(ctx, item); err != nil {
		return model.CandidateListing{}, fmt.Errorf("%w: open listing: %v", domain.ErrApply, err)
	}
	titleEl, err := d.waitFor(ctx, b, d.sel.DetailTitle, d.timeout.page)
	if err != nil {
		return model.CandidateListing{}, err
	}
	title, err := titleEl.Text(ctx)
	if err != nil {
		return model.CandidateListing{}, err
	}
	company := ""
	if el, err := b.FindElement(ctx, d.sel.DetailCompany); err == nil {
		company, _ = el.Text(ctx)
	}

	cur, err := b.CurrentURL(ctx)
	if err != nil {
		return model.CandidateListing{}, err
	}
	jobURL := resolve(cur, href)
	if jobURL == "" {
		jobURL = cur
	}
	return model.CandidateListing{ID: jobID(jobURL), URL: jobURL, Title: title, Company: company}, nil
}

func resolve(base, href string) string {
	if href == "" {
		return ""
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	hu, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(hu).String()
}

// jobID extracts a stable identifier: the last path segment, or the jk/
// currentJobId query parameter when present.
func jobID(u string) string {
	pu, err := url.Parse(u)
	if err != nil {
		return u
	}
	for _, k := range []string{"currentJobId", "jk", "vjk"} {
		if v := pu.Query().Get(k); v != "" {
			return v
		}
	}
	parts := strings.Split(strings.Trim(pu.Path, "/"), "/")
	return parts[len(parts)-1]
}

// ApplyToCandidate opens the application form for l and runs the bounded
// apply flow. Failures are scoped to this candidate.
func (d *Driver) ApplyToCandidate(ctx context.Context, s adapter.Session, l model.CandidateListing) (*model.JobApplicationRecord, error) {
	b, err := d.browserOf(s)
	if err != nil {
		return nil, err
	}

	var open adapter.Element
	for _, sel := range d.sel.OpenApply {
		els, err := b.FindElements(ctx, sel)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrApply, err)
		}
		if len(els) > 0 {
			open = els[0]
			break
		}
	}
	if open == nil {
		return nil, fmt.Errorf("%w: no apply button for %s", domain.ErrNoAffordance, l.URL)
	}
	if err := b.Click(ctx, open); err != nil {
		return nil, fmt.Errorf("%w: open form: %v", domain.ErrApply, err)
	}

	res, err := d.flow.Run(ctx, b)
	d.log.Debug().Str("job_url", l.URL).Str("state", string(res.State)).Int("steps", res.Steps).Msg("apply flow finished")
	if err != nil {
		return nil, err
	}

	return &model.JobApplicationRecord{
		JobTitle:          l.Title,
		Company:           l.Company,
		Platform:          d.name,
		JobURL:            l.URL,
		ApplicationMethod: d.method,
		Status:            model.ApplicationStatusApplied,
		AppliedAt:         d.now().UTC(),
	}, nil
}
