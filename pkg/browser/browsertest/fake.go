// Package browsertest provides an in-memory browser.Page for tests.
// Pages are static HTML documents queried with goquery; each scroll advances
// a document to its next snapshot, which is how tests model infinite feeds.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"postscraper/pkg/browser"
)

const blank = "<html><body></body></html>"

// Document is a page served by the fake.
type Document struct {
	// Snapshots are successive renderings. Each scroll shows the next one;
	// the last snapshot repeats once reached.
	Snapshots []string
	// RedirectTo makes navigation land on another URL.
	RedirectTo string
	// Err is returned by every navigation to this URL.
	Err error
}

// Page is a fake browser.Page.
type Page struct {
	mu sync.Mutex

	docs map[string]*Document
	// navErrs are returned by successive navigations before documents are consulted.
	navErrs []error
	onClick map[string]func(p *Page)

	current  string
	snapshot int
	cookies  []browser.Cookie

	Typed       map[string]string
	Navigations []string
	Scrolls     int
	Clicks      []string
	Closed      bool
}

// NewPage creates an empty fake page.
func NewPage() *Page {
	return &Page{
		docs:    make(map[string]*Document),
		onClick: make(map[string]func(p *Page)),
		Typed:   make(map[string]string),
	}
}

// Serve registers a document at url.
func (p *Page) Serve(url string, snapshots ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[url] = &Document{Snapshots: snapshots}
	return p
}

// Redirect makes navigation to from land on to.
func (p *Page) Redirect(from, to string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[from] = &Document{RedirectTo: to}
	return p
}

// Fail makes every navigation to url return err.
func (p *Page) Fail(url string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[url] = &Document{Err: err}
	return p
}

// FailNext queues errors returned by the next navigations, in order.
func (p *Page) FailNext(errs ...error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErrs = append(p.navErrs, errs...)
	return p
}

// OnClick registers a handler run when selector is clicked.
func (p *Page) OnClick(selector string, fn func(p *Page)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[selector] = fn
	return p
}

// Go moves the page to url without counting a navigation. Use it from click handlers.
func (p *Page) Go(url string) {
	p.current = p.resolve(url)
	p.snapshot = 0
}

// Advance shows the next snapshot of the current document.
func (p *Page) Advance() {
	p.snapshot++
}

func (p *Page) resolve(url string) string {
	for i := 0; i < 8; i++ {
		d, ok := p.docs[url]
		if !ok || d.RedirectTo == "" {
			return url
		}
		url = d.RedirectTo
	}
	return url
}

func (p *Page) html() string {
	d, ok := p.docs[p.current]
	if !ok || len(d.Snapshots) == 0 {
		return blank
	}
	i := p.snapshot
	if i >= len(d.Snapshots) {
		i = len(d.Snapshots) - 1
	}
	return d.Snapshots[i]
}

func (p *Page) find(selector string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html()))
	if err != nil {
		return nil, err
	}
	return doc.Find(selector), nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	if len(p.navErrs) > 0 {
		err := p.navErrs[0]
		p.navErrs = p.navErrs[1:]
		if err != nil {
			return err
		}
	}
	if d, ok := p.docs[url]; ok && d.Err != nil {
		return d.Err
	}
	p.Go(url)
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.find(selector)
	if err != nil {
		return false, err
	}
	return sel.Length() > 0, nil
}

func (p *Page) OuterHTML(ctx context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.find(selector)
	if err != nil {
		return nil, err
	}
	var out []string
	var outerErr error
	sel.Each(func(_ int, s *goquery.Selection) {
		h, err := goquery.OuterHtml(s)
		if err != nil {
			outerErr = err
			return
		}
		out = append(out, h)
	})
	return out, outerErr
}

func (p *Page) ScrollBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Scrolls++
	p.snapshot++
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.find(selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrNoElement, selector)
	}
	p.Clicks = append(p.Clicks, selector)
	if fn, ok := p.onClick[selector]; ok {
		fn(p)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.find(selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrNoElement, selector)
	}
	p.Typed[selector] += text
	return nil
}

func (p *Page) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Cookie(nil), p.cookies...), nil
}

func (p *Page) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range cookies {
		replaced := false
		for i := range p.cookies {
			if p.cookies[i].Name == c.Name && p.cookies[i].Domain == c.Domain {
				p.cookies[i] = c
				replaced = true
			}
		}
		if !replaced {
			p.cookies = append(p.cookies, c)
		}
	}
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Launcher hands out fake pages and records launch options.
type Launcher struct {
	mu sync.Mutex
	// NewPage builds the page for each launch. Nil yields an empty page.
	NewPage func(opts browser.Options) *Page
	Err     error
	// FailNext is returned by successive launches, in order, before Err.
	FailNext []error
	Launched []browser.Options
	Pages    []*Page
}

func (l *Launcher) Launch(ctx context.Context, opts browser.Options) (browser.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.FailNext) > 0 {
		err := l.FailNext[0]
		l.FailNext = l.FailNext[1:]
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	l.Launched = append(l.Launched, opts)
	var p *Page
	if l.NewPage != nil {
		p = l.NewPage(opts)
	} else {
		p = NewPage()
	}
	l.Pages = append(l.Pages, p)
	return p, nil
}
