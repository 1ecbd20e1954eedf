// Package session acquires the browsing context a worker scrapes with.
//
// Three identity modes are supported. Login submits credentials and waits for
// a post-login signal. Cookie reuse restores a persisted cookie set and
// validates it against an authenticated-only page. Anonymous mode carries no
// identity, only a random user agent and an optional proxy from the pool.
//
// A Session is owned by exactly one worker. Authenticated sessions share one
// account, so the manager clamps concurrency to one when an identity is in use.
package session

import (
	"sync"

	"postscraper/pkg/browser"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
)

// Identity is the identity mode of a session.
type Identity string

const (
	IdentityAuthenticated Identity = "authenticated"
	IdentityAnonymous     Identity = "anonymous"
)

// Session is one worker's browsing context.
type Session struct {
	ID        string
	WorkerID  int
	Identity  Identity
	Page      browser.Page
	Proxy     string
	UserAgent string
	Locale    string
	Width     int
	Height    int

	proxies *ProxyPool
	logger  logger.Logger

	mu      sync.Mutex
	invalid error
	retired bool
}

// Browser returns the session's page.
func (s *Session) Browser() browser.Page {
	return s.Page
}

// Authenticated reports whether the session carries an account identity.
func (s *Session) Authenticated() bool {
	return s.Identity == IdentityAuthenticated
}

// Observe feeds the outcome of a network-facing step back into proxy health
// and invalidates the session on session-level failures. A session whose
// proxy gets quarantined is retired: its owner must replace it before the
// next target.
func (s *Session) Observe(err error) {
	if s.Proxy != "" && s.proxies != nil {
		switch {
		case err == nil:
			s.proxies.ReportSuccess(s.Proxy)
		case errs.IsRetryable(err) || errs.IsKind(err, errs.KindTerminalBlock):
			if s.proxies.ReportFailure(s.Proxy) {
				s.mu.Lock()
				s.retired = true
				s.mu.Unlock()
				if s.logger != nil {
					s.logger.WarnWithFields("Proxy quarantined, retiring session", map[string]interface{}{
						"proxy":  s.Proxy,
						"worker": s.WorkerID,
					})
				}
			}
		}
	}
	if errs.IsSessionLevel(err) {
		s.Invalidate(err)
	}
}

// Invalidate marks the session unusable.
func (s *Session) Invalidate(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalid == nil {
		s.invalid = cause
	}
}

// Err returns the cause of invalidation, or nil while the session is usable.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalid
}

// Retired reports whether the session's proxy was quarantined. A retired
// session is not invalid; its worker replaces it with a fresh one.
func (s *Session) Retired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retired
}

// Valid reports whether the session may still be used.
func (s *Session) Valid() bool {
	return s.Err() == nil
}

// Close releases the browser.
func (s *Session) Close() error {
	if s.Page == nil {
		return nil
	}
	return s.Page.Close()
}
