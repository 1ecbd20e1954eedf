package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"postscraper/pkg/browser"
	"postscraper/pkg/config"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/scraper"
	"postscraper/pkg/server"
	"postscraper/pkg/ui"
)

var (
	serveAddr    string
	withSchedule bool
	scheduleSpec string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP trigger server",
	Long: `Run an HTTP server that starts scrape runs on request and reports their status.

Endpoints:
  GET  /health            liveness and whether a run is in flight
  POST /api/v1/runs       start a run; the body is a run request, empty for the configured one
  GET  /api/v1/runs       recent runs, newest first
  GET  /api/v1/runs/:id   one run with its summary

One run executes at a time; a trigger during a run is answered with 409.`,
	Example: `  postscraper serve --addr :9090
  postscraper serve --with-schedule --schedule "0 7 * * 1-5"
  curl -X POST localhost:8080/api/v1/runs -d '{"mode":"search","keywords":["golang"]}'`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the configured scrape on a cron schedule",
	Long: `Run the scrape described by the configuration on a cron schedule until interrupted.

Standard five-field expressions and descriptors such as "@daily" or
"@every 6h" are accepted. A tick that fires while the previous run is
still going is skipped.`,
	Example: `  postscraper schedule --schedule "@every 6h"`,
	Args:    cobra.NoArgs,
	RunE:    runSchedule,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&withSchedule, "with-schedule", false, "also trigger runs on the configured schedule")
	serveCmd.Flags().StringVar(&scheduleSpec, "schedule", "", "cron schedule (default from config)")
	scheduleCmd.Flags().StringVar(&scheduleSpec, "schedule", "", "cron schedule (default from config)")
}

// newServer wires a runner into a trigger server bound to ctx.
func newServer(ctx context.Context) (*config.Config, *server.Server, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, nil, err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if scheduleSpec != "" {
		cfg.Server.Schedule = scheduleSpec
	}

	runner, err := scraper.New(cfg, browser.NewChromeLauncher())
	if err != nil {
		return nil, nil, err
	}
	return cfg, server.New(ctx, cfg.Server, runner, logger.GetLogger()), nil
}

func startScheduler(cfg *config.Config, srv *server.Server) (*server.Scheduler, error) {
	sched, err := server.NewScheduler(srv, cfg.Server.Schedule, func() models.Request {
		return scraper.RequestFromConfig(cfg)
	}, logger.GetLogger())
	if err != nil {
		return nil, err
	}
	sched.Start()
	ui.PrintInfo("Schedule", cfg.Server.Schedule)
	return sched, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, srv, err := newServer(ctx)
	if err != nil {
		return err
	}

	if withSchedule {
		sched, err := startScheduler(cfg, srv)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	ui.PrintInfo("Listening", cfg.Server.Addr)
	err = srv.ListenAndServe(ctx)
	drain(srv)
	return err
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, srv, err := newServer(ctx)
	if err != nil {
		return err
	}
	sched, err := startScheduler(cfg, srv)
	if err != nil {
		return err
	}

	<-ctx.Done()
	sched.Stop()
	drain(srv)
	return nil
}

// drain waits for an in-flight run to export what it collected.
func drain(srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Wait(ctx); err != nil {
		logger.WithError(err).Warn("Run still in flight at shutdown")
	}
}
