package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session modes.
const (
	SessionModeAuto      = "auto"
	SessionModeLogin     = "login"
	SessionModeCookie    = "cookie"
	SessionModeAnonymous = "anonymous"
)

// Search modes.
const (
	ModeSearch  = "search"
	ModeProfile = "profile"
	ModeURL     = "url"
	ModeFeed    = "feed"
)

// Keyword composition policies for search mode.
const (
	CompositionOR      = "or"
	CompositionAND     = "and"
	CompositionHashtag = "hashtag"
)

// Export formats.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// Config holds all configuration options for a scrape run
type Config struct {
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	Search SearchConfig `yaml:"search" json:"search"`

	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	Browser BrowserConfig `yaml:"browser" json:"browser"`

	Proxy ProxyConfig `yaml:"proxy" json:"proxy"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	Retry RetryConfig `yaml:"retry" json:"retry"`

	Output OutputConfig `yaml:"output" json:"output"`

	Enrichment EnrichmentConfig `yaml:"enrichment" json:"enrichment"`

	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`

	Server ServerConfig `yaml:"server" json:"server"`
}

// CredentialsConfig holds login and cookie-reuse settings
type CredentialsConfig struct {
	Email       string `yaml:"email" json:"email"`
	Password    string `yaml:"-" json:"-"`
	SessionMode string `yaml:"session_mode" json:"session_mode"`
	CookieFile  string `yaml:"cookie_file" json:"cookie_file"`
	// PersistCookies writes the cookie set back after a successful login.
	PersistCookies bool `yaml:"persist_cookies" json:"persist_cookies"`
}

// SearchConfig describes what to scrape
type SearchConfig struct {
	Mode         string   `yaml:"mode" json:"mode"`
	Keywords     []string `yaml:"keywords" json:"keywords"`
	Composition  string   `yaml:"composition" json:"composition"`
	BatchSize    int      `yaml:"batch_size" json:"batch_size"`
	ProfileURLs  []string `yaml:"profile_urls" json:"profile_urls"`
	PostURLs     []string `yaml:"post_urls" json:"post_urls"`
	SortByRecent bool     `yaml:"sort_by_recent" json:"sort_by_recent"`
}

// ScrapeConfig controls feed loading
type ScrapeConfig struct {
	MaxPosts        int           `yaml:"max_posts" json:"max_posts"`
	ScrollAttempts  int           `yaml:"scroll_attempts" json:"scroll_attempts"`
	StagnantScrolls int           `yaml:"stagnant_scrolls" json:"stagnant_scrolls"`
	DelayMin        time.Duration `yaml:"delay_min" json:"delay_min"`
	DelayMax        time.Duration `yaml:"delay_max" json:"delay_max"`
	Concurrency     int           `yaml:"concurrency" json:"concurrency"`
	// SelectorsFile overrides the built-in strategy ordering.
	SelectorsFile string `yaml:"selectors_file" json:"selectors_file"`
}

// BrowserConfig holds browser launch options
type BrowserConfig struct {
	Headless   bool          `yaml:"headless" json:"headless"`
	Stealth    bool          `yaml:"stealth" json:"stealth"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	Locale     string        `yaml:"locale" json:"locale"`
	Width      int           `yaml:"width" json:"width"`
	Height     int           `yaml:"height" json:"height"`
	ExecPath   string        `yaml:"exec_path" json:"exec_path"`
	UserAgents []string      `yaml:"user_agents" json:"user_agents"`
}

// ProxyConfig holds proxy rotation settings
type ProxyConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	List             []string `yaml:"list" json:"list"`
	FailureThreshold int      `yaml:"failure_threshold" json:"failure_threshold"`
}

// RateLimitConfig holds pacing configuration
type RateLimitConfig struct {
	ActionsPerMinute int `yaml:"actions_per_minute" json:"actions_per_minute"`
}

// RetryConfig holds retry/backoff configuration
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// OutputConfig holds export configuration
type OutputConfig struct {
	Directory        string   `yaml:"directory" json:"directory"`
	CSVFilename      string   `yaml:"csv_filename" json:"csv_filename"`
	JSONFilename     string   `yaml:"json_filename" json:"json_filename"`
	JSONLFilename    string   `yaml:"jsonl_filename" json:"jsonl_filename"`
	Formats          []string `yaml:"formats" json:"formats"`
	MinContentLength int      `yaml:"min_content_length" json:"min_content_length"`
}

// EnrichmentConfig configures the optional lookup service
type EnrichmentConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	APIKey   string        `yaml:"-" json:"-"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// Enabled reports whether an enrichment endpoint is configured.
func (e EnrichmentConfig) Enabled() bool {
	return e.Endpoint != ""
}

// NotificationConfig holds operator notification settings
type NotificationConfig struct {
	SMTPHost     string `yaml:"smtp_host" json:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port" json:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username" json:"smtp_username"`
	SMTPPassword string `yaml:"-" json:"-"`
	From         string `yaml:"from" json:"from"`
	To           string `yaml:"to" json:"to"`
	// Desktop also raises a desktop notification on the local machine.
	Desktop bool `yaml:"desktop" json:"desktop"`
}

// EmailEnabled reports whether SMTP delivery is configured.
func (n NotificationConfig) EmailEnabled() bool {
	return n.SMTPHost != "" && n.To != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// ServerConfig holds trigger server and scheduler settings
type ServerConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Schedule string `yaml:"schedule" json:"schedule"`
}

// DefaultUserAgents is the built-in user-agent pool for anonymous sessions.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.4; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Credentials: CredentialsConfig{
			SessionMode:    SessionModeAuto,
			CookieFile:     "cookies.json",
			PersistCookies: true,
		},
		Search: SearchConfig{
			Mode:         ModeSearch,
			Composition:  CompositionOR,
			SortByRecent: true,
		},
		Scrape: ScrapeConfig{
			MaxPosts:        50,
			ScrollAttempts:  10,
			StagnantScrolls: 3,
			DelayMin:        2 * time.Second,
			DelayMax:        5 * time.Second,
			Concurrency:     1,
		},
		Browser: BrowserConfig{
			Headless:   true,
			Stealth:    true,
			Timeout:    60 * time.Second,
			Locale:     "en-US",
			Width:      1920,
			Height:     1080,
			UserAgents: append([]string(nil), DefaultUserAgents...),
		},
		Proxy: ProxyConfig{
			FailureThreshold: 3,
		},
		RateLimit: RateLimitConfig{
			ActionsPerMinute: 30,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    60 * time.Second,
		},
		Output: OutputConfig{
			Directory:        "output",
			CSVFilename:      "posts.csv",
			JSONFilename:     "posts.json",
			JSONLFilename:    "posts.jsonl",
			Formats:          []string{FormatCSV, FormatJSON},
			MinContentLength: 10,
		},
		Enrichment: EnrichmentConfig{
			Timeout: 10 * time.Second,
		},
		Notifications: NotificationConfig{
			SMTPPort: 587,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:     ":8080",
			Schedule: "@daily",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString(&c.Credentials.Email, "LINKEDIN_EMAIL")
	setString(&c.Credentials.Password, "LINKEDIN_PASSWORD")
	setString(&c.Credentials.SessionMode, "SESSION_MODE")
	setString(&c.Credentials.CookieFile, "COOKIE_FILE")

	setString(&c.Search.Mode, "SEARCH_MODE")
	setList(&c.Search.Keywords, "SEARCH_KEYWORDS")
	setString(&c.Search.Composition, "QUERY_COMPOSITION")
	setList(&c.Search.ProfileURLs, "PROFILE_URLS")
	setList(&c.Search.PostURLs, "POST_URLS")
	errs = append(errs,
		setInt(&c.Search.BatchSize, "KEYWORD_BATCH_SIZE"),
		setBool(&c.Search.SortByRecent, "SORT_BY_RECENT"),
		setInt(&c.Scrape.MaxPosts, "MAX_POSTS"),
		setInt(&c.Scrape.ScrollAttempts, "SCROLL_ATTEMPTS"),
		setInt(&c.Scrape.StagnantScrolls, "STAGNANT_SCROLLS"),
		setSeconds(&c.Scrape.DelayMin, "DELAY_MIN"),
		setSeconds(&c.Scrape.DelayMax, "DELAY_MAX"),
		setInt(&c.Scrape.Concurrency, "CONCURRENCY"),
		setBool(&c.Browser.Headless, "HEADLESS"),
		setBool(&c.Browser.Stealth, "STEALTH_MODE"),
		setDuration(&c.Browser.Timeout, "BROWSER_TIMEOUT"),
		setBool(&c.Proxy.Enabled, "ENABLE_PROXIES"),
		setInt(&c.Proxy.FailureThreshold, "PROXY_FAILURE_THRESHOLD"),
		setInt(&c.RateLimit.ActionsPerMinute, "ACTIONS_PER_MINUTE"),
		setInt(&c.Retry.MaxAttempts, "RETRY_ATTEMPTS"),
		setDuration(&c.Retry.BaseDelay, "RETRY_BASE_DELAY"),
		setDuration(&c.Retry.MaxDelay, "RETRY_MAX_DELAY"),
		setInt(&c.Output.MinContentLength, "MIN_CONTENT_LENGTH"),
		setInt(&c.Notifications.SMTPPort, "SMTP_PORT"),
		setBool(&c.Notifications.Desktop, "NOTIFY_DESKTOP"),
	)
	setString(&c.Scrape.SelectorsFile, "SELECTORS_FILE")
	setString(&c.Browser.ExecPath, "CHROME_PATH")
	setList(&c.Proxy.List, "PROXY_LIST")

	setString(&c.Output.Directory, "OUTPUT_DIR")
	setString(&c.Output.CSVFilename, "CSV_FILENAME")
	setString(&c.Output.JSONFilename, "JSON_FILENAME")
	setList(&c.Output.Formats, "EXPORT_FORMATS")

	setString(&c.Enrichment.Endpoint, "ENRICH_ENDPOINT")
	setString(&c.Enrichment.APIKey, "ENRICH_API_KEY")

	setString(&c.Notifications.SMTPHost, "SMTP_HOST")
	setString(&c.Notifications.SMTPUsername, "SMTP_USERNAME")
	setString(&c.Notifications.SMTPPassword, "SMTP_PASSWORD")
	setString(&c.Notifications.To, "NOTIFY_EMAIL")
	setString(&c.Notifications.From, "NOTIFY_FROM")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Logging.File, "LOG_FILE")

	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Server.Schedule, "SCHEDULE")

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// setList splits a comma separated variable, ignoring blank entries.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return
	}
	*dst = SplitList(v)
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	*dst = b
	return nil
}

// setSeconds accepts either a bare number of seconds ("2.5") or a duration ("2500ms").
func setSeconds(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(f * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, v)
	}
	*dst = d
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	return setSeconds(dst, key)
}

// SplitList splits a comma separated list, trimming entries and dropping empties.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"postscraper.yaml",
		".postscraper.yaml",
		".postscraper.yml",
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		locations = append(locations, filepath.Join(xdg, "postscraper", "config.yaml"))
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "postscraper", "config.yaml"),
			filepath.Join(home, ".postscraper.yaml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Credentials.SessionMode {
	case SessionModeAuto, SessionModeLogin, SessionModeCookie, SessionModeAnonymous:
	default:
		errs = append(errs, fmt.Errorf("invalid session mode %q", c.Credentials.SessionMode))
	}
	if c.Credentials.SessionMode == SessionModeLogin && (c.Credentials.Email == "" || c.Credentials.Password == "") {
		errs = append(errs, errors.New("login session mode requires email and password"))
	}

	switch c.Search.Mode {
	case ModeSearch, ModeProfile, ModeURL, ModeFeed:
	default:
		errs = append(errs, fmt.Errorf("invalid search mode %q", c.Search.Mode))
	}
	switch c.Search.Composition {
	case CompositionOR, CompositionAND, CompositionHashtag:
	default:
		errs = append(errs, fmt.Errorf("invalid query composition %q", c.Search.Composition))
	}
	if c.Search.BatchSize < 0 {
		errs = append(errs, errors.New("keyword batch size cannot be negative"))
	}

	if c.Scrape.MaxPosts <= 0 {
		errs = append(errs, errors.New("max posts must be positive"))
	}
	if c.Scrape.ScrollAttempts <= 0 {
		errs = append(errs, errors.New("scroll attempts must be positive"))
	}
	if c.Scrape.StagnantScrolls <= 0 {
		errs = append(errs, errors.New("stagnant scrolls must be positive"))
	}
	if c.Scrape.DelayMin < 0 || c.Scrape.DelayMax < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}
	if c.Scrape.DelayMin > c.Scrape.DelayMax {
		errs = append(errs, errors.New("minimum delay cannot exceed maximum delay"))
	}
	if c.Scrape.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if c.Scrape.Concurrency > 10 {
		errs = append(errs, errors.New("concurrency should not exceed 10"))
	}

	if c.Browser.Timeout <= 0 {
		errs = append(errs, errors.New("browser timeout must be positive"))
	}
	if c.Proxy.Enabled && len(c.Proxy.List) == 0 {
		errs = append(errs, errors.New("proxy rotation enabled but proxy list is empty"))
	}
	if c.Proxy.FailureThreshold <= 0 {
		errs = append(errs, errors.New("proxy failure threshold must be positive"))
	}

	if c.RateLimit.ActionsPerMinute <= 0 {
		errs = append(errs, errors.New("actions per minute must be positive"))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry attempts must be positive"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry delays must satisfy 0 <= base <= max"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if len(c.Output.Formats) == 0 {
		errs = append(errs, errors.New("at least one export format is required"))
	}
	for _, f := range c.Output.Formats {
		switch strings.ToLower(f) {
		case FormatCSV, FormatJSON, FormatJSONL:
		default:
			errs = append(errs, fmt.Errorf("unknown export format %q", f))
		}
	}
	if c.Output.MinContentLength < 0 {
		errs = append(errs, errors.New("minimum content length cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["mode"].(string); ok && v != "" {
		c.Search.Mode = v
	}
	if v, ok := flags["email"].(string); ok && v != "" {
		c.Credentials.Email = v
	}
	if v, ok := flags["session-mode"].(string); ok && v != "" {
		c.Credentials.SessionMode = v
	}
	if v, ok := flags["keywords"].([]string); ok && len(v) > 0 {
		c.Search.Keywords = v
	}
	if v, ok := flags["composition"].(string); ok && v != "" {
		c.Search.Composition = v
	}
	if v, ok := flags["profiles"].([]string); ok && len(v) > 0 {
		c.Search.ProfileURLs = v
	}
	if v, ok := flags["urls"].([]string); ok && len(v) > 0 {
		c.Search.PostURLs = v
	}
	if v, ok := flags["max-posts"].(int); ok && v > 0 {
		c.Scrape.MaxPosts = v
	}
	if v, ok := flags["scroll-attempts"].(int); ok && v > 0 {
		c.Scrape.ScrollAttempts = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Scrape.Concurrency = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["formats"].([]string); ok && len(v) > 0 {
		c.Output.Formats = v
	}
	if v, ok := flags["cookie-file"].(string); ok && v != "" {
		c.Credentials.CookieFile = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	config, err := LoadUnvalidated(configPath, flags)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadUnvalidated is Load without the final Validate, for callers that fill
// in more settings (such as stored credentials) before validating.
func LoadUnvalidated(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	if home := os.Getenv("HOME"); home != "" {
		_ = godotenv.Load(filepath.Join(home, ".postscraper.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)
	return config, nil
}
