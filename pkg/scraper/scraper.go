package scraper

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"postscraper/internal/worker"
	"postscraper/pkg/browser"
	"postscraper/pkg/checkpoint"
	"postscraper/pkg/config"
	"postscraper/pkg/enrich"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/export"
	"postscraper/pkg/extract"
	"postscraper/pkg/feed"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/notify"
	"postscraper/pkg/pipeline"
	"postscraper/pkg/query"
	"postscraper/pkg/ratelimit"
	"postscraper/pkg/retry"
	"postscraper/pkg/selectors"
	"postscraper/pkg/session"
	"postscraper/pkg/storage"
)

// Runner orchestrates scrape runs
type Runner struct {
	cfg        *config.Config
	sessions   SessionSource
	controller *retry.Controller
	planner    *query.Planner
	loader     *feed.Loader
	extractor  *extract.Extractor
	enricher   enrich.Lookup
	reporter   Reporter
	logger     logger.Logger

	// checkpointDir overrides the user data directory for checkpoints.
	checkpointDir string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithSessions replaces the session manager built from the config.
func WithSessions(s SessionSource) Option {
	return func(r *Runner) { r.sessions = s }
}

// WithController sets the retry controller shared by sessions and loading.
func WithController(c *retry.Controller) Option {
	return func(r *Runner) { r.controller = c }
}

// WithEnricher sets the enrichment lookup. It overrides the configured endpoint.
func WithEnricher(e enrich.Lookup) Option {
	return func(r *Runner) { r.enricher = e }
}

// WithReporter sets the progress reporter.
func WithReporter(rep Reporter) Option {
	return func(r *Runner) { r.reporter = rep }
}

// WithCheckpointDir stores checkpoints in dir.
func WithCheckpointDir(dir string) Option {
	return func(r *Runner) { r.checkpointDir = dir }
}

// New creates a Runner. Browsers are started through launcher.
func New(cfg *config.Config, launcher browser.Launcher, opts ...Option) (*Runner, error) {
	r := &Runner{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.GetLogger()
	}
	if r.reporter == nil {
		r.reporter = nopReporter{}
	}

	registry, err := selectors.Load(cfg.Scrape.SelectorsFile)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "invalid selector overrides")
	}

	if r.controller == nil {
		gate := ratelimit.NewPacingGate(cfg.RateLimit.ActionsPerMinute)
		r.controller = retry.NewController(retry.FromConfig(cfg.Retry, gate, r.logger))
	}
	if r.sessions == nil {
		r.sessions = session.NewManager(cfg, launcher,
			session.WithLogger(r.logger),
			session.WithNotifier(notify.New(cfg.Notifications, r.logger)),
			session.WithController(r.controller),
			session.WithRegistry(registry),
		)
	}
	if r.enricher == nil {
		if c := enrich.NewClient(cfg.Enrichment, r.logger); c != nil {
			r.enricher = c
		}
	}

	r.planner = query.NewPlanner(r.logger)
	r.loader = feed.NewLoader(registry, r.controller, r.logger)
	r.extractor = extract.New(registry, r.logger)

	logger.LogComponentStart(r.logger, "scraper", map[string]interface{}{
		"selectors":   registry.Version,
		"concurrency": cfg.Scrape.Concurrency,
		"formats":     cfg.Output.Formats,
		"enrichment":  r.enricher != nil,
	})
	return r, nil
}

// Plan returns the targets req would scrape.
func (r *Runner) Plan(req models.Request) ([]models.Target, []query.Warning, error) {
	return r.planner.Plan(withDefaults(req, r.cfg))
}

// runState collects per-target outcomes from the workers.
type runState struct {
	mu      sync.Mutex
	results map[int]models.TargetResult
	units   atomic.Int64
}

func (s *runState) add(seq int, res models.TargetResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[seq] = res
}

func (s *runState) ordered() []models.TargetResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	seqs := make([]int, 0, len(s.results))
	for seq := range s.results {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	out := make([]models.TargetResult, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, s.results[seq])
	}
	return out
}

// Run executes req and returns its summary. The summary is returned even when
// the run fails; the error then carries the session-level, export or
// cancellation failure that ended it.
func (r *Runner) Run(ctx context.Context, req models.Request) (*models.Summary, error) {
	req = withDefaults(req, r.cfg)
	summary := &models.Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Failures:  make(map[errs.Kind]int),
		Outputs:   []string{},
		Targets:   []models.TargetResult{},
	}
	log := r.logger.WithFields(map[string]interface{}{"run_id": summary.RunID, "mode": string(req.Mode)})
	finish := func(err error) (*models.Summary, error) {
		summary.FinishedAt = time.Now().UTC()
		if err != nil {
			summary.Error = err.Error()
		}
		return summary, err
	}

	targets, warnings, err := r.planner.Plan(req)
	if err != nil {
		summary.AddFailure(errs.KindConfig)
		return finish(errs.Wrap(errs.KindConfig, err, "invalid request"))
	}
	if req.Mode == models.ModeFeed && r.cfg.Credentials.SessionMode == config.SessionModeAnonymous {
		summary.AddFailure(errs.KindConfig)
		return finish(errs.New(errs.KindConfig, "feed mode needs an authenticated session"))
	}
	summary.TargetsPlanned = len(targets)
	summary.TargetsDropped = len(warnings)
	if req.DryRun {
		summary.Plan = targets
		log.InfoWithFields("Dry run planned", map[string]interface{}{"targets": len(targets)})
		return finish(nil)
	}
	if len(targets) == 0 {
		summary.AddFailure(errs.KindConfig)
		return finish(errs.New(errs.KindConfig, "no valid targets"))
	}

	formats, err := export.ParseFormats(r.cfg.Output.Formats)
	if err != nil {
		summary.AddFailure(errs.KindConfig)
		return finish(err)
	}
	store, err := storage.NewManager(r.cfg.Output.Directory)
	if err != nil {
		summary.AddFailure(errs.KindExportError)
		return finish(errs.Wrap(errs.KindExportError, err, "output directory unusable"))
	}
	writer := export.NewWriter(store, r.cfg.Output, r.logger)
	pipe := pipeline.New(pipeline.Options{
		MinContentLength: r.cfg.Output.MinContentLength,
		Enricher:         r.enricher,
		Controller:       r.controller,
		Logger:           r.logger,
	})

	cpMgr, cp, pending := r.prepareCheckpoint(req, targets, pipe, writer, formats, log)

	state := &runState{results: make(map[int]models.TargetResult)}
	var runErr error
	if len(pending) > 0 {
		runErr = r.process(ctx, req, pending, pipe, cpMgr, cp, state, summary, log)
	}

	results := state.ordered()
	summary.Targets = results
	summary.TargetsAttempted = len(results)
	summary.TargetsSkipped = len(targets) - len(results)
	for _, res := range results {
		if res.Partial {
			summary.TargetsPartial++
		}
	}
	summary.UnitsSeen = int(state.units.Load())
	if runErr != nil {
		if summary.TargetsSkipped > 0 {
			summary.Aborted = true
		} else {
			// another worker finished the lost session's targets
			log.WithError(runErr).Warn("Session lost after all targets were processed")
			runErr = nil
		}
	}
	if ctx.Err() != nil {
		summary.Aborted = true
	}

	// collected records are flushed whatever ended the run
	records := pipe.Records()
	paths, exportErr := writer.ExportAll(formats, records)
	summary.Outputs = append(summary.Outputs, paths...)
	if exportErr != nil {
		summary.Failures[errs.KindExportError] += len(formats) - len(paths)
	}

	stats := pipe.Stats()
	summary.RecordsCollected = len(records)
	summary.RecordsDeduped = stats.Deduped
	summary.RecordsDropped = stats.Dropped
	summary.EnrichmentFailures = stats.EnrichmentFailures

	if cpMgr != nil && !summary.Aborted && runErr == nil && summary.TargetsPartial == 0 {
		if err := cpMgr.Delete(); err != nil {
			log.WithError(err).Warn("Failed to remove finished checkpoint")
		}
	}

	err = errors.Join(runErr, exportErr)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	log.InfoWithFields("Run finished", map[string]interface{}{
		"targets":   summary.TargetsAttempted,
		"partial":   summary.TargetsPartial,
		"records":   summary.RecordsCollected,
		"deduped":   summary.RecordsDeduped,
		"aborted":   summary.Aborted,
		"duration":  time.Since(summary.StartedAt).String(),
		"exported":  len(paths),
		"seeded":    stats.Seeded,
		"enrichErr": stats.EnrichmentFailures,
	})
	return finish(err)
}

// process runs pending targets on the worker pool and returns the first
// session-level failure, if any.
func (r *Runner) process(ctx context.Context, req models.Request, pending []models.Target, pipe *pipeline.Pipeline,
	cpMgr *checkpoint.Manager, cp *checkpoint.Checkpoint, state *runState, summary *models.Summary, log logger.Logger) error {

	opts := feed.Options{
		MaxUnits:        req.MaxPosts,
		MaxScrolls:      req.ScrollAttempts,
		StagnantScrolls: r.cfg.Scrape.StagnantScrolls,
		DelayMin:        r.cfg.Scrape.DelayMin,
		DelayMax:        r.cfg.Scrape.DelayMax,
	}
	workers := min(r.sessions.MaxWorkers(r.cfg.Scrape.Concurrency), len(pending))

	pool := worker.NewPool(ctx, workers, func(ctx context.Context, id int) (worker.Handler, error) {
		sess, err := r.sessions.Acquire(ctx, id)
		if err != nil {
			return nil, err
		}
		return &targetHandler{
			runner: r,
			sess:   sess,
			pipe:   pipe,
			opts:   opts,
			cpMgr:  cpMgr,
			cp:     cp,
			state:  state,
			logger: log.WithField("worker_id", id),
		}, nil
	}, r.logger)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, t := range pending {
			if err := pool.Submit(worker.Job{Target: t, Seq: i}); err != nil {
				log.WithError(err).DebugWithFields("Stopped queueing targets", map[string]interface{}{
					"queued": i,
					"total":  len(pending),
				})
				return
			}
		}
	}()

	var sessionErr error
	for res := range pool.Results() {
		if res.Err == nil {
			continue
		}
		if isCancellation(res.Err) {
			summary.Aborted = true
			continue
		}
		summary.AddFailure(errs.KindOf(res.Err))
		if res.Requeued {
			log.WithError(res.Err).WarnWithFields("Session start failed, target handed to another worker", map[string]interface{}{
				"target": res.Job.Target.ID,
				"worker": res.WorkerID,
			})
			continue
		}
		if errs.IsSessionLevel(res.Err) || !state.has(res.Job.Seq) {
			if sessionErr == nil {
				sessionErr = res.Err
			}
		}
	}
	return sessionErr
}

func (s *runState) has(seq int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.results[seq]
	return ok
}

// prepareCheckpoint loads or creates the run's checkpoint and returns the
// targets still to do. Without a usable checkpoint every target is pending.
func (r *Runner) prepareCheckpoint(req models.Request, targets []models.Target, pipe *pipeline.Pipeline,
	writer *export.Writer, formats []export.Format, log logger.Logger) (*checkpoint.Manager, *checkpoint.Checkpoint, []models.Target) {

	runKey := checkpoint.RunKey(req.Mode, targets)
	var (
		mgr *checkpoint.Manager
		err error
	)
	if r.checkpointDir != "" {
		mgr, err = checkpoint.NewManagerIn(r.checkpointDir, runKey)
	} else {
		mgr, err = checkpoint.NewManager(runKey)
	}
	if err != nil {
		log.WithError(err).Warn("Checkpoints unavailable, run cannot be resumed")
		return nil, nil, targets
	}
	mgr.WithLogger(log)

	if req.Resume {
		cp, err := mgr.Load()
		if err != nil {
			log.WithError(err).Warn("Failed to load checkpoint, starting over")
		} else if cp != nil {
			pending := cp.Remaining(targets)
			seeded := r.seed(pipe, writer, formats, log)
			log.InfoWithFields("Resuming run", map[string]interface{}{
				"completed": len(targets) - len(pending),
				"pending":   len(pending),
				"records":   seeded,
			})
			return mgr, cp, pending
		}
	}

	cp, err := mgr.Create(runKey, req.Mode, len(targets))
	if err != nil {
		log.WithError(err).Warn("Failed to create checkpoint, run cannot be resumed")
		return nil, nil, targets
	}
	return mgr, cp, targets
}

// seed carries the records of the previous export into pipe, reading the
// first format that has a file.
func (r *Runner) seed(pipe *pipeline.Pipeline, writer *export.Writer, formats []export.Format, log logger.Logger) int {
	for _, f := range []export.Format{export.FormatJSONL, export.FormatJSON, export.FormatCSV} {
		if !containsFormat(formats, f) {
			continue
		}
		file, err := os.Open(writer.Path(f))
		if err != nil {
			continue
		}
		records, err := export.Read(f, file)
		file.Close()
		if err != nil {
			log.WithError(err).WarnWithFields("Previous output unreadable", map[string]interface{}{"format": string(f)})
			continue
		}
		return pipe.Seed(records)
	}
	return 0
}

func containsFormat(formats []export.Format, f export.Format) bool {
	for _, g := range formats {
		if g == f {
			return true
		}
	}
	return false
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// targetHandler processes targets on one worker's session.
type targetHandler struct {
	runner *Runner
	sess   *session.Session
	pipe   *pipeline.Pipeline
	opts   feed.Options
	cpMgr  *checkpoint.Manager
	cp     *checkpoint.Checkpoint
	state  *runState
	logger logger.Logger
}

func (h *targetHandler) Handle(ctx context.Context, job worker.Job) error {
	if err := h.sess.Err(); err != nil {
		return err
	}
	t := job.Target
	start := time.Now()
	logger.LogTargetStart(h.logger, h.sess.WorkerID, t.ID, string(t.Mode), t.URL)
	h.runner.reporter.TargetStarted(h.sess.WorkerID, t)

	seq, run := h.runner.loader.Load(ctx, h.sess, t, h.opts)
	records := 0
	for unit := range seq {
		h.state.units.Add(1)
		if _, ok := h.pipe.Add(ctx, h.runner.extractor.Extract(unit)); ok {
			records++
		}
	}

	res := models.TargetResult{
		Target:   t,
		WorkerID: h.sess.WorkerID,
		State:    string(run.State()),
		Units:    run.Units(),
		Records:  records,
		Partial:  run.Partial(),
		Duration: time.Since(start),
	}
	err := run.Err()
	if err != nil {
		res.Kind = errs.KindOf(err)
		res.Error = err.Error()
	}
	h.state.add(job.Seq, res)

	if !res.Partial && h.cp != nil {
		if err := h.cpMgr.RecordTarget(h.cp, t, res.State, res.Units); err != nil {
			h.logger.WithError(err).Warn("Failed to update checkpoint")
		}
	}
	h.runner.reporter.TargetFinished(res)

	fields := map[string]interface{}{
		"target":   t.ID,
		"state":    res.State,
		"units":    res.Units,
		"records":  records,
		"duration": res.Duration.String(),
	}
	if err != nil {
		h.logger.WithError(err).WarnWithFields("Target finished with partial results", fields)
	} else {
		h.logger.InfoWithFields("Target finished", fields)
	}
	return err
}

func (h *targetHandler) Close() error {
	return h.sess.Close()
}

// Retired reports that the session's proxy was quarantined; the worker then
// acquires a fresh session for its next target.
func (h *targetHandler) Retired() bool {
	return h.sess.Retired()
}
