package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"postscraper/pkg/browser"
	"postscraper/pkg/config"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/scraper"
	"postscraper/pkg/ui"
	"postscraper/pkg/ui/tui"
)

var (
	// Scrape command flags
	mode           string
	keywords       []string
	composition    string
	profiles       []string
	postURLs       []string
	maxPosts       int
	scrollAttempts int
	sessionMode    string
	email          string
	cookieFile     string
	formats        []string
	outputDir      string
	concurrency    int
	headless       bool
	dryRun         bool
	resume         bool
	useTUI         bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape posts and export them",
	Long: `Scrape posts from keyword searches, profile activity feeds, single post URLs or
the signed-in account's home feed.

Targets not given as flags come from the configuration file or environment
(SEARCH_MODE, SEARCH_KEYWORDS, PROFILE_URLS, POST_URLS). Records are written
to the output directory in every configured format even when the run is
interrupted.`,
	Example: `  # Search recent posts mentioning any keyword
  postscraper scrape --keywords "data platform,lakehouse"

  # Posts that mention every keyword, as JSON Lines
  postscraper scrape --keywords golang,kubernetes --composition and --formats jsonl

  # Recent activity of two profiles
  postscraper scrape --mode profile --profiles https://www.linkedin.com/in/jane,https://www.linkedin.com/in/sam

  # The signed-in account's home feed
  postscraper scrape --mode feed --max-posts 50

  # Single posts without an account
  postscraper scrape --mode url --session-mode anonymous --urls https://www.linkedin.com/feed/update/urn:li:activity:7200000000000000000/

  # Show what would be scraped
  postscraper scrape --keywords rust --dry-run

  # Continue an interrupted run
  postscraper scrape --keywords rust --resume`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	f := scrapeCmd.Flags()
	f.StringVarP(&mode, "mode", "m", "", "what to scrape: search, profile, url or feed")
	f.StringSliceVarP(&keywords, "keywords", "k", nil, "search keywords")
	f.StringVar(&composition, "composition", "", "keyword composition: or, and or hashtag")
	f.StringSliceVar(&profiles, "profiles", nil, "profile URLs")
	f.StringSliceVar(&postURLs, "urls", nil, "post URLs")
	f.IntVar(&maxPosts, "max-posts", 0, "maximum posts per target")
	f.IntVar(&scrollAttempts, "scroll-attempts", 0, "maximum scrolls per target")
	f.StringVar(&sessionMode, "session-mode", "", "session mode: auto, login, cookie or anonymous")
	f.StringVar(&email, "email", "", "account email (password from LINKEDIN_PASSWORD or the credential store)")
	f.StringVar(&cookieFile, "cookie-file", "", "saved session cookie file")
	f.StringSliceVar(&formats, "formats", nil, "export formats: csv, json, jsonl")
	f.StringVarP(&outputDir, "output", "o", "", "output directory")
	f.IntVar(&concurrency, "concurrency", 0, "browser workers for anonymous sessions")
	f.BoolVar(&headless, "headless", true, "run the browser without a window")
	f.BoolVar(&dryRun, "dry-run", false, "print the planned targets and exit")
	f.BoolVar(&resume, "resume", false, "skip targets completed by an interrupted run")
	f.BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
}

// scrapeFlags collects the flags the user set explicitly.
func scrapeFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := func(name string, v interface{}) {
		if cmd.Flags().Changed(name) {
			flags[name] = v
		}
	}
	set("mode", mode)
	set("keywords", keywords)
	set("composition", composition)
	set("profiles", profiles)
	set("urls", postURLs)
	set("max-posts", maxPosts)
	set("scroll-attempts", scrollAttempts)
	set("session-mode", sessionMode)
	set("email", email)
	set("cookie-file", cookieFile)
	set("formats", formats)
	set("output", outputDir)
	set("concurrency", concurrency)
	set("headless", headless)

	// Progress mode keeps the terminal to the progress line unless asked otherwise
	if !verbose && logLevel == "" {
		flags["log-level"] = "error"
	}
	return flags
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(scrapeFlags(cmd))
	if err != nil {
		return err
	}

	req := scraper.RequestFromConfig(cfg)
	req.DryRun = dryRun
	req.Resume = resume

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dryRun {
		return runDryRun(cfg, req)
	}
	if useTUI {
		return runWithTUI(ctx, stop, cfg, req)
	}

	ui.PrintInfo("Mode", string(req.Mode))
	ui.PrintInfo("Session", cfg.Credentials.SessionMode)
	ui.PrintHighlight("[INITIATING EXTRACTION SEQUENCE]")

	display := ui.NewProgressDisplay(ui.Output, 0, verbose)
	runner, err := scraper.New(cfg, browser.NewChromeLauncher(), scraper.WithReporter(display))
	if err != nil {
		return err
	}
	targets, warnings, err := runner.Plan(req)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		ui.PrintWarning("Dropped input", w.String())
	}
	display.SetPlanned(len(targets))

	summary, err := runner.Run(ctx, req)
	display.Complete()
	return finish(summary, err)
}

func runDryRun(cfg *config.Config, req models.Request) error {
	runner, err := scraper.New(cfg, browser.NewChromeLauncher())
	if err != nil {
		return err
	}
	targets, warnings, err := runner.Plan(req)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		ui.PrintWarning("Dropped input", w.String())
	}
	ui.RenderPlan(ui.Output, targets)
	return nil
}

func runWithTUI(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, req models.Request) error {
	terminal := tui.NewTUI(cancel)

	runner, err := scraper.New(cfg, browser.NewChromeLauncher(), scraper.WithReporter(terminal))
	if err != nil {
		return err
	}
	targets, _, err := runner.Plan(req)
	if err != nil {
		return err
	}

	type result struct {
		summary *models.Summary
		err     error
	}
	scraperDone := make(chan result, 1)
	go func() {
		terminal.Plan(targets)
		summary, err := runner.Run(ctx, req)
		terminal.Finish(summary)
		scraperDone <- result{summary, err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- terminal.Start()
	}()

	// Wait for either to finish
	select {
	case res := <-scraperDone:
		terminal.Stop()
		<-tuiDone
		return finish(res.summary, res.err)
	case err := <-tuiDone:
		// The dashboard is gone; cancel and let the run flush its exports
		cancel()
		res := <-scraperDone
		if err != nil {
			logger.WithError(err).Error("TUI failed")
		}
		return finish(res.summary, res.err)
	}
}

// finish renders the summary and maps the run error to the exit status.
func finish(summary *models.Summary, err error) error {
	if summary != nil {
		fmt.Fprintln(ui.Output)
		ui.RenderSummary(ui.Output, summary)
	}
	switch {
	case errors.Is(err, context.Canceled):
		ui.PrintWarning("Run interrupted; exported what was collected")
		return nil
	case err != nil:
		logger.WithError(err).Error("Extraction failed")
		return err
	case summary != nil && summary.TargetsPartial > 0:
		ui.PrintWarning(fmt.Sprintf("[EXTRACTION COMPLETED WITH %d PARTIAL TARGETS]", summary.TargetsPartial))
	default:
		ui.PrintSuccess("[EXTRACTION COMPLETED SUCCESSFULLY]")
	}
	return nil
}
