// Package feed drives incremental loading of a target's content units.
//
// Per target the loader runs Navigating → Loading(scroll) and stops in one of:
// Satisfied (max units reached), Stagnant (K scrolls in a row found nothing
// new), Exhausted (max scroll attempts used) or Done (error, cancellation, or
// the consumer stopped). Units are produced lazily as an iter.Seq.
package feed

import (
	"context"
	"iter"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"postscraper/pkg/browser"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/extract"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/retry"
	"postscraper/pkg/selectors"
)

// State is a loader state.
type State string

const (
	StateNavigating State = "navigating"
	StateLoading    State = "loading"
	StateSatisfied  State = "satisfied"
	StateStagnant   State = "stagnant"
	StateExhausted  State = "exhausted"
	StateDone       State = "done"
)

// Session is the part of a session the loader drives.
type Session interface {
	Browser() browser.Page
	Observe(err error)
	Authenticated() bool
	// Retired reports that the session's proxy was quarantined.
	Retired() bool
}

// Options bounds one target's loading.
type Options struct {
	MaxUnits        int
	MaxScrolls      int
	StagnantScrolls int
	DelayMin        time.Duration
	DelayMax        time.Duration
}

// Run reports the progress and outcome of one Load.
type Run struct {
	Target models.Target

	mu      sync.Mutex
	state   State
	partial bool
	err     error
	units   int
	scrolls int
}

func (r *Run) set(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Run) finish(s State, partial bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state, r.partial, r.err = s, partial, err
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Partial reports whether loading ended early on an error or cancellation.
func (r *Run) Partial() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.partial
}

// Err returns the error that ended loading, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Units returns the number of units produced.
func (r *Run) Units() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.units
}

// Scrolls returns the number of scroll attempts made.
func (r *Run) Scrolls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scrolls
}

// Loader loads feeds. One loader may serve every worker.
type Loader struct {
	registry   *selectors.Registry
	controller *retry.Controller
	logger     logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
	now   func() time.Time
}

// NewLoader creates a loader.
func NewLoader(registry *selectors.Registry, controller *retry.Controller, log logger.Logger) *Loader {
	if registry == nil {
		registry = selectors.Default()
	}
	if controller == nil {
		controller = retry.NewController(nil)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Loader{
		registry:   registry,
		controller: controller,
		logger:     log,
		sleep:      retry.Wait,
		rand:       rand.Float64,
		now:        time.Now,
	}
}

// Load navigates to target and yields its content units. The returned Run is
// final once the sequence has been consumed.
func (l *Loader) Load(ctx context.Context, sess Session, target models.Target, opts Options) (iter.Seq[models.RawUnit], *Run) {
	run := &Run{Target: target, state: StateNavigating}
	seq := func(yield func(models.RawUnit) bool) {
		l.load(ctx, sess, target, opts, run, yield)
	}
	return seq, run
}

func (l *Loader) load(ctx context.Context, sess Session, target models.Target, opts Options, run *Run, yield func(models.RawUnit) bool) {
	page := sess.Browser()
	log := l.logger.WithFields(map[string]interface{}{"target": target.ID, "mode": string(target.Mode)})

	run.set(StateNavigating)
	err := l.controller.Do(ctx, func(ctx context.Context) error {
		err := page.Navigate(ctx, target.URL)
		if err == nil {
			err = l.inspect(ctx, page, sess.Authenticated(), target.URL)
		}
		return observe(sess, err)
	})
	if err != nil {
		log.WithError(err).Warn("Navigation failed, target is partial")
		run.finish(StateDone, true, err)
		return
	}

	run.set(StateLoading)
	seen := make(map[string]bool)
	stagnant := 0
	for {
		var fresh []models.RawUnit
		err := l.controller.Do(ctx, func(ctx context.Context) error {
			var err error
			fresh, err = l.scan(ctx, page, target, seen)
			return err
		})
		if err != nil {
			log.WithError(err).Warn("Unit scan failed, target is partial")
			run.finish(StateDone, true, err)
			return
		}

		for _, u := range fresh {
			seen[u.Key] = true
			run.mu.Lock()
			u.Index = run.units
			run.units++
			n := run.units
			run.mu.Unlock()
			if !yield(u) {
				run.finish(StateDone, false, nil)
				return
			}
			if opts.MaxUnits > 0 && n >= opts.MaxUnits {
				run.finish(StateSatisfied, false, nil)
				return
			}
		}

		scrolls := run.Scrolls()
		logger.LogScrollProgress(log, target.ID, scrolls, run.Units(), opts.MaxUnits, stagnant)

		if target.Mode == models.ModeURL {
			if run.Units() == 0 {
				run.finish(StateDone, true, errs.New(errs.KindExtractionGap, "no content unit on page").WithTarget(target.URL))
				return
			}
			run.finish(StateSatisfied, false, nil)
			return
		}

		if scrolls > 0 {
			if len(fresh) == 0 {
				stagnant++
			} else {
				stagnant = 0
			}
		}
		if opts.StagnantScrolls > 0 && stagnant >= opts.StagnantScrolls {
			run.finish(StateStagnant, false, nil)
			return
		}
		if scrolls >= opts.MaxScrolls {
			run.finish(StateExhausted, false, nil)
			return
		}

		// a cancelled run may finish the step in flight but never starts another
		if err := ctx.Err(); err != nil {
			run.finish(StateDone, true, err)
			return
		}
		if err := l.scroll(ctx, sess, target); err != nil {
			log.WithError(err).Warn("Scroll failed, target is partial")
			run.finish(StateDone, true, err)
			return
		}
		run.mu.Lock()
		run.scrolls++
		run.mu.Unlock()

		delay := retry.Between(opts.DelayMin, opts.DelayMax, l.rand)
		if err := l.sleep(ctx, delay); err != nil {
			run.finish(StateDone, true, err)
			return
		}
	}
}

// scroll advances the feed and clicks a load-more control when one is shown.
func (l *Loader) scroll(ctx context.Context, sess Session, target models.Target) error {
	page := sess.Browser()
	return l.controller.Do(ctx, func(ctx context.Context) error {
		if err := page.ScrollBottom(ctx); err != nil {
			return observe(sess, errs.Wrap(errs.KindTransientNetwork, err, "scroll failed"))
		}
		for _, sel := range l.registry.Spec(selectors.MarkerLoadMore).Selectors() {
			if ok, _ := page.Exists(ctx, sel); ok {
				_ = page.Click(ctx, sel)
				break
			}
		}
		return observe(sess, l.inspect(ctx, page, sess.Authenticated(), target.URL))
	})
}

// observe reports err to the session. Once the session is retired its proxy
// is out of rotation, so the step is not retried through it.
func observe(sess Session, err error) error {
	sess.Observe(err)
	if err != nil && sess.Retired() {
		return retry.Permanent(err)
	}
	return err
}

// scan returns the units on the page not yet in seen, in document order.
func (l *Loader) scan(ctx context.Context, page browser.Page, target models.Target, seen map[string]bool) ([]models.RawUnit, error) {
	var htmls []string
	for _, sel := range l.registry.Spec(selectors.FieldUnit).Selectors() {
		found, err := page.OuterHTML(ctx, sel)
		if err != nil {
			return nil, errs.Wrap(errs.KindTransientNetwork, err, "unit query failed")
		}
		if len(found) > 0 {
			htmls = found
			break
		}
	}

	now := l.now().UTC()
	batch := make(map[string]bool)
	var out []models.RawUnit
	for _, h := range htmls {
		root, err := extract.Root(h)
		if err != nil {
			continue
		}
		key := extract.UnitKey(root, h)
		if seen[key] || batch[key] {
			continue
		}
		batch[key] = true
		out = append(out, models.RawUnit{Key: key, HTML: h, Target: target, CapturedAt: now})
	}
	return out, nil
}

// inspect classifies a loaded page. A login wall ends an authenticated
// session; for an anonymous one it only blocks this target.
func (l *Loader) inspect(ctx context.Context, page browser.Page, authenticated bool, target string) error {
	u, _ := page.URL(ctx)
	if strings.Contains(u, "/checkpoint/") || l.has(ctx, page, selectors.MarkerChallenge) {
		return errs.New(errs.KindChallengeRequired, "verification challenge shown").WithTarget(target)
	}
	if l.has(ctx, page, selectors.MarkerBlocked) {
		return errs.New(errs.KindTerminalBlock, "block page shown").WithTarget(target)
	}
	if strings.Contains(u, "/authwall") || strings.Contains(u, "/login") || l.has(ctx, page, selectors.MarkerLoginWall) {
		if authenticated {
			return errs.New(errs.KindSessionExpired, "redirected to login wall").WithTarget(target)
		}
		return errs.New(errs.KindTerminalBlock, "content requires sign-in").WithTarget(target)
	}
	return nil
}

func (l *Loader) has(ctx context.Context, page browser.Page, marker selectors.Field) bool {
	ok, err := browser.AnyExists(ctx, page, l.registry.Spec(marker).Selectors())
	return err == nil && ok
}
