// Package browser abstracts the headless browser the scraper drives.
// Everything above this package talks to a Page; the Chrome implementation
// lives in chrome.go and an in-memory fake in browsertest.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNoElement is returned when an interaction targets a selector that matches nothing.
var ErrNoElement = errors.New("no element matches selector")

// Cookie is a browser cookie in a transport-neutral form.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	HTTPOnly bool      `json:"http_only"`
	Secure   bool      `json:"secure"`
	SameSite string    `json:"same_site,omitempty"`
}

// Expired reports whether the cookie has an expiry before now.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && c.Expires.Before(now)
}

// Page is one browser tab.
type Page interface {
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// URL returns the current location, after any redirects.
	URL(ctx context.Context) (string, error)
	// Exists reports whether selector matches anything on the page.
	Exists(ctx context.Context, selector string) (bool, error)
	// OuterHTML returns the outer HTML of every element matching selector, in document order.
	OuterHTML(ctx context.Context, selector string) ([]string, error)
	// ScrollBottom scrolls the viewport to the end of the document.
	ScrollBottom(ctx context.Context) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Close() error
}

// Options configures a browser launch.
type Options struct {
	Headless  bool
	Stealth   bool
	UserAgent string
	// Proxy is a proxy server URL such as http://host:port.
	Proxy    string
	Locale   string
	Width    int
	Height   int
	ExecPath string
	// Timeout bounds each page action.
	Timeout time.Duration
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Page, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, opts Options) (Page, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, opts Options) (Page, error) {
	return f(ctx, opts)
}

// AnyExists reports whether any of selectors matches on page.
func AnyExists(ctx context.Context, page Page, selectors []string) (bool, error) {
	for _, sel := range selectors {
		ok, err := page.Exists(ctx, sel)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
