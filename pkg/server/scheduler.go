package server

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"postscraper/pkg/logger"
	"postscraper/pkg/models"
)

// Scheduler triggers runs on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	server *Server
	logger logger.Logger
}

// NewScheduler registers request on spec. Standard five-field expressions and
// descriptors such as "@daily" or "@every 6h" are accepted.
func NewScheduler(s *Server, spec string, request func() models.Request, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	sc := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		spec:   spec,
		server: s,
		logger: log.WithField("component", "scheduler"),
	}

	_, err := sc.cron.AddFunc(spec, func() {
		run, err := s.Trigger(request(), "schedule")
		if err != nil {
			sc.logger.WithError(err).Warn("Scheduled run skipped")
			return
		}
		sc.logger.InfoWithFields("Scheduled run started", map[string]interface{}{"run": run.ID})
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sc, nil
}

// Start begins the schedule.
func (sc *Scheduler) Start() {
	sc.cron.Start()
	sc.logger.InfoWithFields("Schedule active", map[string]interface{}{"schedule": sc.spec})
}

// Stop halts the schedule. A run already triggered keeps going.
func (sc *Scheduler) Stop() {
	<-sc.cron.Stop().Done()
}
