package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"postscraper/pkg/config"
	"postscraper/pkg/selectors"
	"postscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage postscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - .env file
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with the common options.

The file will be created in the current directory as 'postscraper.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources.

Passwords and API keys are never printed.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Selector override file
  - Output and log path accessibility`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# postscraper configuration file
#
# Every option can also be set by environment variable, for example
# SEARCH_KEYWORDS, MAX_POSTS or SESSION_MODE. Secrets (LINKEDIN_PASSWORD,
# SMTP_PASSWORD, ENRICH_API_KEY) are read from the environment or the
# credential store only.

credentials:
  # auto, login, cookie or anonymous
  session_mode: auto
  email: ""
  cookie_file: cookies.json
  persist_cookies: true

search:
  # search, profile or url
  mode: search
  keywords: ["data platform", "lakehouse"]
  # or, and, hashtag
  composition: or
  # Keywords per search query, 0 puts all keywords in one query
  batch_size: 0
  profile_urls: []
  post_urls: []
  sort_by_recent: true

scrape:
  max_posts: 50
  scroll_attempts: 10
  stagnant_scrolls: 3
  delay_min: 2s
  delay_max: 5s
  # Only anonymous sessions use more than one worker
  concurrency: 1
  selectors_file: ""

browser:
  headless: true
  stealth: true
  timeout: 60s
  locale: en-US

proxy:
  enabled: false
  list: []
  failure_threshold: 3

rate_limit:
  actions_per_minute: 30

retry:
  max_attempts: 3
  base_delay: 2s
  max_delay: 60s

output:
  directory: output
  formats: [csv, json]
  min_content_length: 10

enrichment:
  endpoint: ""
  timeout: 10s

notifications:
  smtp_host: ""
  smtp_port: 587
  from: ""
  to: ""
  desktop: false

logging:
  # debug, info, warn, error
  level: info
  # console or json
  format: console
  file: ""

server:
  addr: ":8080"
  schedule: "@daily"
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "postscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the search section with your keywords or profiles")
	fmt.Println("2. Run 'postscraper auth login' to store an account")
	fmt.Println("3. Run 'postscraper config validate' to check the configuration")
	fmt.Println("4. Start with 'postscraper scrape --dry-run'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated(configFile, nil)
	if err != nil {
		return err
	}

	// Secrets carry yaml:"-" and are left out
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated(configFile, nil)
	if err != nil {
		return err
	}
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	var problems []string
	if err := cfg.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := selectors.Load(cfg.Scrape.SelectorsFile); err != nil {
		problems = append(problems, fmt.Sprintf("selector overrides: %v", err))
	}
	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	var warnings []string
	if cfg.Search.Mode != config.ModeURL && cfg.Credentials.SessionMode == config.SessionModeAnonymous {
		warnings = append(warnings, "search, profile and home feeds need a signed-in session")
	}
	if cfg.Search.Mode == config.ModeSearch && len(cfg.Search.Keywords) == 0 {
		warnings = append(warnings, "search mode has no keywords")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Fprintf(ui.Output, "  - %s\n", p)
		}
		return fmt.Errorf("invalid configuration")
	}
	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Mode: %s (%s session)\n", cfg.Search.Mode, cfg.Credentials.SessionMode)
	fmt.Fprintf(ui.Output, "  Output: %s %v\n", cfg.Output.Directory, cfg.Output.Formats)
	fmt.Fprintf(ui.Output, "  Pacing: %d actions/minute, %d retries\n", cfg.RateLimit.ActionsPerMinute, cfg.Retry.MaxAttempts)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
