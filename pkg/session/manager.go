package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"postscraper/pkg/browser"
	"postscraper/pkg/config"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
	"postscraper/pkg/notify"
	"postscraper/pkg/ratelimit"
	"postscraper/pkg/retry"
	"postscraper/pkg/selectors"
)

// Site entry points.
const (
	LoginURL = "https://www.linkedin.com/login"
	FeedURL  = "https://www.linkedin.com/feed/"
)

// Login form fields.
const (
	EmailInput    = `input[name="session_key"]`
	PasswordInput = `input[name="session_password"]`
	SubmitButton  = `button[type="submit"]`
)

var (
	challengePaths = []string{"/checkpoint/", "/challenge/"}
	loginPaths     = []string{"/login", "/authwall", "/uas/login", "/signup"}
)

// Manager acquires sessions for workers.
type Manager struct {
	cfg        *config.Config
	launcher   browser.Launcher
	registry   *selectors.Registry
	proxies    *ProxyPool
	agents     *UserAgentPool
	cookies    *CookieStore
	notifier   notify.Notifier
	controller *retry.Controller
	logger     logger.Logger

	loginTimeout time.Duration
	pollInterval time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithNotifier sets the notifier told about expired sessions.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithController sets the retry controller used for navigation.
func WithController(c *retry.Controller) Option {
	return func(m *Manager) { m.controller = c }
}

// WithRegistry sets the selector registry used for page markers.
func WithRegistry(r *selectors.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// WithLoginTimeout bounds the wait for a post-login signal.
func WithLoginTimeout(timeout, poll time.Duration) Option {
	return func(m *Manager) {
		m.loginTimeout = timeout
		m.pollInterval = poll
	}
}

// NewManager creates a session manager.
func NewManager(cfg *config.Config, launcher browser.Launcher, opts ...Option) *Manager {
	m := &Manager{
		cfg:          cfg,
		launcher:     launcher,
		agents:       NewUserAgentPool(cfg.Browser.UserAgents),
		cookies:      NewCookieStore(cfg.Credentials.CookieFile),
		loginTimeout: 45 * time.Second,
		pollInterval: time.Second,
	}
	if cfg.Proxy.Enabled {
		m.proxies = NewProxyPool(cfg.Proxy.List, cfg.Proxy.FailureThreshold)
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.GetLogger()
	}
	if m.registry == nil {
		m.registry = selectors.Default()
	}
	if m.notifier == nil {
		m.notifier = notify.NewLogNotifier(m.logger)
	}
	if m.controller == nil {
		gate := ratelimit.NewPacingGate(cfg.RateLimit.ActionsPerMinute)
		m.controller = retry.NewController(retry.FromConfig(cfg.Retry, gate, m.logger))
	}
	return m
}

// Proxies returns the proxy pool, or nil when rotation is disabled.
func (m *Manager) Proxies() *ProxyPool {
	return m.proxies
}

// Cookies returns the cookie store.
func (m *Manager) Cookies() *CookieStore {
	return m.cookies
}

func (m *Manager) hasCredentials() bool {
	return m.cfg.Credentials.Email != "" && m.cfg.Credentials.Password != ""
}

// Mode resolves the configured session mode. Auto prefers a saved cookie
// file, then credentials, then anonymous.
func (m *Manager) Mode() string {
	mode := m.cfg.Credentials.SessionMode
	if mode != "" && mode != config.SessionModeAuto {
		return mode
	}
	switch {
	case m.cookies.Exists():
		return config.SessionModeCookie
	case m.hasCredentials():
		return config.SessionModeLogin
	default:
		return config.SessionModeAnonymous
	}
}

func (m *Manager) auto() bool {
	mode := m.cfg.Credentials.SessionMode
	return mode == "" || mode == config.SessionModeAuto
}

// MaxWorkers returns the worker count the session mode allows. Authenticated
// sessions share one account and are never run concurrently.
func (m *Manager) MaxWorkers(requested int) int {
	if requested < 1 {
		requested = 1
	}
	if m.Mode() != config.SessionModeAnonymous && requested > 1 {
		m.logger.WarnWithFields("Authenticated sessions run with one worker", map[string]interface{}{
			"requested": requested,
		})
		return 1
	}
	return requested
}

// Acquire launches a browser for workerID and establishes its identity.
// It fails with AuthFailure, ChallengeRequired or SessionExpired when no
// usable session can be had.
func (m *Manager) Acquire(ctx context.Context, workerID int) (*Session, error) {
	mode := m.Mode()
	log := m.logger.WithFields(map[string]interface{}{"worker": workerID, "session_mode": mode})

	var saved *CookieFile
	if mode == config.SessionModeCookie {
		f, err := m.cookies.Load()
		if err != nil {
			m.expired(ctx, err)
			if !m.auto() || !m.hasCredentials() {
				return nil, err
			}
			log.WithError(err).Warn("Saved session unusable, falling back to login")
			mode = config.SessionModeLogin
		} else {
			saved = f
		}
	}
	if mode == config.SessionModeLogin && !m.hasCredentials() {
		return nil, errs.New(errs.KindAuthFailure, "login mode requires email and password")
	}

	sess := &Session{
		ID:        uuid.NewString(),
		WorkerID:  workerID,
		Identity:  IdentityAnonymous,
		UserAgent: m.agents.Random(),
		Locale:    m.cfg.Browser.Locale,
		Width:     m.cfg.Browser.Width,
		Height:    m.cfg.Browser.Height,
		proxies:   m.proxies,
		logger:    log,
	}
	if saved != nil && saved.Metadata["user_agent"] != "" {
		sess.UserAgent = saved.Metadata["user_agent"]
	}
	if m.proxies != nil {
		p, err := m.proxies.Next()
		if err != nil {
			return nil, err
		}
		sess.Proxy = p
	}

	page, err := m.launcher.Launch(ctx, browser.Options{
		Headless:  m.cfg.Browser.Headless,
		Stealth:   m.cfg.Browser.Stealth,
		UserAgent: sess.UserAgent,
		Proxy:     sess.Proxy,
		Locale:    sess.Locale,
		Width:     sess.Width,
		Height:    sess.Height,
		ExecPath:  m.cfg.Browser.ExecPath,
		Timeout:   m.cfg.Browser.Timeout,
	})
	if err != nil {
		sess.Observe(err)
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	sess.Page = page

	switch mode {
	case config.SessionModeAnonymous:
		log.InfoWithFields("Anonymous session ready", map[string]interface{}{"proxy": sess.Proxy})
		return sess, nil
	case config.SessionModeCookie:
		err = m.restore(ctx, sess, saved)
		if errs.IsKind(err, errs.KindSessionExpired) {
			m.expired(ctx, err)
			if m.auto() && m.hasCredentials() {
				log.WithError(err).Warn("Saved session rejected, falling back to login")
				err = m.login(ctx, sess)
			}
		}
	default:
		err = m.login(ctx, sess)
	}
	if err != nil {
		sess.Close()
		return nil, err
	}

	sess.Identity = IdentityAuthenticated
	if m.cfg.Credentials.PersistCookies {
		if err := m.persist(ctx, sess, mode); err != nil {
			log.WithError(err).Warn("Failed to persist session cookies")
		}
	}
	log.Info("Authenticated session ready")
	return sess, nil
}

func (m *Manager) expired(ctx context.Context, cause error) {
	if err := m.notifier.Notify(ctx, notify.SessionExpired(m.cookies.Path(), cause)); err != nil {
		m.logger.WithError(err).Warn("Failed to deliver session notification")
	}
}

func (m *Manager) navigate(ctx context.Context, sess *Session, url string) error {
	return m.controller.Do(ctx, func(ctx context.Context) error {
		err := sess.Page.Navigate(ctx, url)
		sess.Observe(err)
		return err
	})
}

// restore installs saved cookies and checks that they still authenticate.
func (m *Manager) restore(ctx context.Context, sess *Session, saved *CookieFile) error {
	if err := sess.Page.SetCookies(ctx, saved.Cookies); err != nil {
		return fmt.Errorf("failed to install saved cookies: %w", err)
	}
	if err := m.navigate(ctx, sess, FeedURL); err != nil {
		return err
	}
	return m.validate(ctx, sess.Page)
}

// validate inspects the current page for an authenticated-only marker.
func (m *Manager) validate(ctx context.Context, page browser.Page) error {
	u, err := page.URL(ctx)
	if err != nil {
		return err
	}
	if containsAny(u, challengePaths) || m.has(ctx, page, selectors.MarkerChallenge) {
		return errs.New(errs.KindChallengeRequired, "verification challenge shown").WithTarget(u)
	}
	if containsAny(u, loginPaths) || m.has(ctx, page, selectors.MarkerLoginWall) {
		return errs.New(errs.KindSessionExpired, "saved session redirected to login").WithTarget(u)
	}
	if m.has(ctx, page, selectors.MarkerBlocked) {
		return errs.New(errs.KindTerminalBlock, "account restricted").WithTarget(u)
	}
	if !m.has(ctx, page, selectors.MarkerLoggedIn) {
		return errs.New(errs.KindSessionExpired, "authenticated marker not found").WithTarget(u)
	}
	return nil
}

// login submits credentials and waits for the post-login signal.
func (m *Manager) login(ctx context.Context, sess *Session) error {
	if err := m.navigate(ctx, sess, LoginURL); err != nil {
		return err
	}
	steps := []func(context.Context) error{
		func(ctx context.Context) error { return sess.Page.Type(ctx, EmailInput, m.cfg.Credentials.Email) },
		func(ctx context.Context) error { return sess.Page.Type(ctx, PasswordInput, m.cfg.Credentials.Password) },
		func(ctx context.Context) error { return sess.Page.Click(ctx, SubmitButton) },
	}
	for _, step := range steps {
		if err := m.controller.Pace(ctx); err != nil {
			return err
		}
		if err := step(ctx); err != nil {
			if m.has(ctx, sess.Page, selectors.MarkerChallenge) {
				return errs.New(errs.KindChallengeRequired, "verification challenge shown instead of login form")
			}
			return errs.Wrap(errs.KindAuthFailure, err, "login form not usable")
		}
	}
	return m.awaitLogin(ctx, sess.Page)
}

// awaitLogin polls for the outcome of a submitted login. A challenge is
// reported as soon as it is seen; it is never retried.
func (m *Manager) awaitLogin(ctx context.Context, page browser.Page) error {
	deadline := time.Now().Add(m.loginTimeout)
	for {
		u, err := page.URL(ctx)
		if err != nil {
			return err
		}
		switch {
		case containsAny(u, challengePaths) || m.has(ctx, page, selectors.MarkerChallenge):
			return errs.New(errs.KindChallengeRequired, "login requires verification").WithTarget(u)
		case m.has(ctx, page, selectors.MarkerLoggedIn) || strings.Contains(u, "/feed"):
			return nil
		case m.has(ctx, page, selectors.MarkerLoginForm):
			return errs.New(errs.KindAuthFailure, "credentials rejected")
		case m.has(ctx, page, selectors.MarkerBlocked):
			return errs.New(errs.KindTerminalBlock, "account restricted").WithTarget(u)
		}
		if time.Now().After(deadline) {
			return errs.Newf(errs.KindAuthFailure, "no post-login signal within %s", m.loginTimeout)
		}
		if err := retry.Wait(ctx, m.pollInterval); err != nil {
			return err
		}
	}
}

func (m *Manager) persist(ctx context.Context, sess *Session, mode string) error {
	cookies, err := sess.Page.Cookies(ctx)
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return nil
	}
	return m.cookies.Save(cookies, map[string]string{
		"user_agent": sess.UserAgent,
		"mode":       mode,
	})
}

func (m *Manager) has(ctx context.Context, page browser.Page, marker selectors.Field) bool {
	ok, err := browser.AnyExists(ctx, page, m.registry.Spec(marker).Selectors())
	return err == nil && ok
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
