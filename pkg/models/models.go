// Package models holds the data shared between the scrape stages: targets,
// raw content units, canonical records and the run summary.
package models

import (
	"time"

	errs "postscraper/pkg/errors"
)

// Mode tags a target with how it was planned.
type Mode string

const (
	ModeSearch  Mode = "search"
	ModeProfile Mode = "profile"
	ModeURL     Mode = "url"
	ModeFeed    Mode = "feed"
)

// ValidMode reports whether m is a known mode.
func ValidMode(m Mode) bool {
	return m == ModeSearch || m == ModeProfile || m == ModeURL || m == ModeFeed
}

// Target is one addressable unit of scrape work. Targets are immutable once planned.
type Target struct {
	ID   string `json:"id"`
	Mode Mode   `json:"mode"`
	URL  string `json:"url"`
	// Query is the composed search expression for search targets.
	Query string `json:"query,omitempty"`
	// SourceProfileURL is the input profile for profile targets.
	SourceProfileURL string `json:"source_profile_url,omitempty"`
}

// RawUnit is a rendered content block captured from a page before extraction.
type RawUnit struct {
	// Key identifies the unit on its page (activity URN or content hash).
	Key        string
	HTML       string
	Target     Target
	Index      int
	CapturedAt time.Time
}

// PostType classifies a record by its content features.
type PostType string

const (
	PostTypeText    PostType = "text"
	PostTypeImage   PostType = "image"
	PostTypeVideo   PostType = "video"
	PostTypeArticle PostType = "article"
	PostTypePoll    PostType = "poll"
)

// Enrichment is the result of an optional contact lookup.
type Enrichment struct {
	Email      string  `json:"email,omitempty"`
	ProfileURL string  `json:"profile_url,omitempty"`
	Confidence float64 `json:"confidence"`
	Provider   string  `json:"provider,omitempty"`
}

// Record is the canonical output row. Nil pointers are nulls.
type Record struct {
	ID string `json:"id"`

	ContentText      string  `json:"content_text"`
	AuthorName       string  `json:"author_name"`
	AuthorFirstName  string  `json:"author_first_name"`
	AuthorLastName   string  `json:"author_last_name"`
	AuthorTitle      *string `json:"author_title"`
	AuthorCompany    *string `json:"author_company"`
	AuthorProfileURL *string `json:"author_profile_url"`
	PostURL          *string `json:"post_url"`

	PostedAtRaw  *string `json:"posted_at_raw"`
	PostedAt     *string `json:"posted_at"`
	RelativeTime *string `json:"relative_time"`

	Likes    *int `json:"likes"`
	Comments *int `json:"comments"`
	Shares   *int `json:"shares"`

	Hashtags  []string `json:"hashtags"`
	Mentions  []string `json:"mentions"`
	Links     []string `json:"links"`
	MediaURLs []string `json:"media_urls"`
	PostType  PostType `json:"post_type"`

	SourceTarget     string    `json:"source_target"`
	SourceMode       Mode      `json:"source_mode"`
	SourceProfileURL *string   `json:"source_profile_url"`
	ScrapeMethod     string    `json:"scrape_method"`
	ScrapedAt        time.Time `json:"scraped_at"`

	// MissingFields names the fields for which every extraction strategy failed.
	MissingFields []string    `json:"missing_fields"`
	Enrichment    *Enrichment `json:"enrichment"`
}

// Request describes what a run should scrape.
type Request struct {
	Mode           Mode     `json:"mode"`
	Keywords       []string `json:"keywords,omitempty"`
	Composition    string   `json:"composition,omitempty"`
	BatchSize      int      `json:"batch_size,omitempty"`
	ProfileURLs    []string `json:"profile_urls,omitempty"`
	PostURLs       []string `json:"post_urls,omitempty"`
	SortByRecent   bool     `json:"sort_by_recent"`
	MaxPosts       int      `json:"max_posts,omitempty"`
	ScrollAttempts int      `json:"scroll_attempts,omitempty"`
	DryRun         bool     `json:"dry_run"`
	Resume         bool     `json:"resume"`
}

// TargetResult is the outcome of one target.
type TargetResult struct {
	Target   Target        `json:"target"`
	WorkerID int           `json:"worker_id"`
	State    string        `json:"state"`
	Units    int           `json:"units"`
	Records  int           `json:"records"`
	Partial  bool          `json:"partial"`
	Kind     errs.Kind     `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Summary is the user-visible outcome of a run.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	TargetsPlanned   int `json:"targets_planned"`
	TargetsAttempted int `json:"targets_attempted"`
	TargetsPartial   int `json:"targets_partial"`
	TargetsSkipped   int `json:"targets_skipped"`
	TargetsDropped   int `json:"targets_dropped"`

	UnitsSeen          int `json:"units_seen"`
	RecordsCollected   int `json:"records_collected"`
	RecordsDeduped     int `json:"records_deduped"`
	RecordsDropped     int `json:"records_dropped"`
	EnrichmentFailures int `json:"enrichment_failures"`

	Failures map[errs.Kind]int `json:"failures"`
	Outputs  []string          `json:"outputs"`
	Targets  []TargetResult    `json:"targets"`
	// Plan lists the planned targets of a dry run.
	Plan []Target `json:"plan,omitempty"`
	// Aborted is set when a session-level failure or cancellation stopped the run early.
	Aborted bool   `json:"aborted"`
	Error   string `json:"error,omitempty"`
}

// AddFailure counts a failure of kind.
func (s *Summary) AddFailure(kind errs.Kind) {
	if s.Failures == nil {
		s.Failures = make(map[errs.Kind]int)
	}
	s.Failures[kind]++
}

// Duration is the wall time of the run.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
