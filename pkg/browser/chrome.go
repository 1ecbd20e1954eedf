package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"

	errs "postscraper/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// blockedStatus is the status the site answers with when it refuses automated traffic.
const blockedStatus = 999

// ChromeLauncher launches Chrome through the DevTools protocol.
type ChromeLauncher struct{}

// NewChromeLauncher creates a launcher for a locally installed Chrome or Chromium.
func NewChromeLauncher() *ChromeLauncher {
	return &ChromeLauncher{}
}

// Launch starts a browser process with one tab.
func (l *ChromeLauncher) Launch(ctx context.Context, opts Options) (Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	if opts.Locale != "" {
		allocOpts = append(allocOpts, chromedp.Flag("lang", opts.Locale))
	}
	if opts.Width > 0 && opts.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	p := &ChromePage{
		ctx:     tabCtx,
		timeout: opts.Timeout,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}

	setup := []chromedp.Action{chromedp.Navigate("about:blank")}
	if opts.Stealth {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}))
	}
	if err := p.run(ctx, setup...); err != nil {
		p.Close()
		return nil, errs.Wrap(errs.KindTransientNetwork, err, "failed to start browser")
	}
	return p, nil
}

// ChromePage is a Page backed by a Chrome tab.
type ChromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions on the tab, bounded by the page timeout and by ctx.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and classifies the outcome.
func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.Wrap(errs.KindTransientNetwork, err, "navigation failed").WithTarget(url)
	}
	if resp != nil {
		status := int(resp.Status)
		switch {
		case status == 429 || status == blockedStatus:
			return errs.Newf(errs.KindTerminalBlock, "site refused request with status %d", status).WithTarget(url)
		case status >= 400 && errs.IsRetryableStatusCode(status):
			return errs.Newf(errs.KindTransientNetwork, "status %d", status).WithTarget(url)
		}
	}
	if err := chromedp.Run(runCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.Wrap(errs.KindTransientNetwork, err, "page did not become ready").WithTarget(url)
	}
	return nil
}

func (p *ChromePage) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, chromedp.Location(&u))
	return u, err
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (p *ChromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	js := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
	err := p.run(ctx, chromedp.Evaluate(js, &ok))
	return ok, err
}

func (p *ChromePage) OuterHTML(ctx context.Context, selector string) ([]string, error) {
	var out []string
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => e.outerHTML)`, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(js, &out)); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *ChromePage) ScrollBottom(ctx context.Context) error {
	return p.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

// Click clicks the first element matching selector. It does not wait for
// the element to appear.
func (p *ChromePage) Click(ctx context.Context, selector string) error {
	var clicked bool
	js := fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (!el) return false; el.click(); return true; })()`, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return nil
}

// Type focuses the element and sends text as key events.
func (p *ChromePage) Type(ctx context.Context, selector, text string) error {
	return p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (p *ChromePage) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		ck := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		}
		// session cookies report -1
		if c.Expires > 0 {
			sec := int64(c.Expires)
			ck.Expires = time.Unix(sec, 0).UTC()
		}
		out = append(out, ck)
	}
	return out, nil
}

func (p *ChromePage) SetCookies(ctx context.Context, cookies []Cookie) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			set := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if !c.Expires.IsZero() {
				exp := cdp.TimeSinceEpoch(c.Expires)
				set = set.WithExpires(&exp)
			}
			if ss, ok := sameSite(c.SameSite); ok {
				set = set.WithSameSite(ss)
			}
			if err := set.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

func sameSite(v string) (network.CookieSameSite, bool) {
	switch strings.ToLower(v) {
	case "strict":
		return network.CookieSameSiteStrict, true
	case "lax":
		return network.CookieSameSiteLax, true
	case "none":
		return network.CookieSameSiteNone, true
	default:
		return "", false
	}
}

// Close terminates the tab and its browser process.
func (p *ChromePage) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
