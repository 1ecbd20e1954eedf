// Package pipeline finalizes extracted records: it cleans them, drops
// duplicates within a run and applies the optional enrichment lookup.
// A Pipeline is run-scoped and safe for concurrent use by workers.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"iter"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"postscraper/pkg/enrich"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/retry"
)

// Stats counts what the pipeline did with the records it saw.
type Stats struct {
	// Seeded counts records carried over from a previous run's output.
	Seeded             int `json:"seeded"`
	Seen               int `json:"seen"`
	Accepted           int `json:"accepted"`
	Deduped            int `json:"deduped"`
	Dropped            int `json:"dropped"`
	EnrichmentFailures int `json:"enrichment_failures"`
}

// Options configures a pipeline.
type Options struct {
	// MinContentLength drops records whose cleaned text has fewer runes.
	MinContentLength int
	// Enricher is optional.
	Enricher enrich.Lookup
	// Controller retries failed lookups. Its pacing gate is not used.
	// Nil tries each lookup once.
	Controller *retry.Controller
	Logger     logger.Logger
}

// Pipeline is the record pipeline of one run.
type Pipeline struct {
	minContent int
	enricher   enrich.Lookup
	controller *retry.Controller
	logger     logger.Logger

	mu      sync.Mutex
	seen    map[string]bool
	records []*models.Record
	stats   Stats
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	controller := retry.NewController(&retry.Config{MaxAttempts: 1})
	if opts.Controller != nil {
		controller = opts.Controller.WithoutGate()
	}
	return &Pipeline{
		minContent: opts.MinContentLength,
		enricher:   opts.Enricher,
		controller: controller,
		logger:     log,
		seen:       make(map[string]bool),
	}
}

// Add cleans, deduplicates and enriches rec. It returns the finalized record
// and true when rec was accepted; dropped and duplicate records return false.
func (p *Pipeline) Add(ctx context.Context, rec *models.Record) (*models.Record, bool) {
	if rec == nil {
		return nil, false
	}
	out := Clean(rec)
	key := Key(out)

	p.mu.Lock()
	p.stats.Seen++
	if utf8.RuneCountInString(out.ContentText) < p.minContent {
		p.stats.Dropped++
		p.mu.Unlock()
		p.logger.DebugWithFields("Dropped short record", map[string]interface{}{
			"length": utf8.RuneCountInString(out.ContentText),
			"min":    p.minContent,
		})
		return nil, false
	}
	if p.seen[key] {
		p.stats.Deduped++
		p.mu.Unlock()
		return nil, false
	}
	p.seen[key] = true
	p.mu.Unlock()

	out.ID = ID(key)
	failed := p.enrich(ctx, out)

	p.mu.Lock()
	defer p.mu.Unlock()
	if failed {
		p.stats.EnrichmentFailures++
	}
	p.stats.Accepted++
	p.records = append(p.records, out)
	return out, true
}

func (p *Pipeline) enrich(ctx context.Context, rec *models.Record) (failed bool) {
	if p.enricher == nil {
		return false
	}
	e, err := retry.Call(ctx, p.controller, func(ctx context.Context) (*models.Enrichment, error) {
		return p.enricher.Lookup(ctx, rec)
	})
	if err != nil {
		p.logger.WithError(err).WarnWithFields("Enrichment failed", map[string]interface{}{
			"record": rec.ID,
		})
		rec.Enrichment = nil
		return true
	}
	rec.Enrichment = e
	return false
}

// Seed registers records kept from an earlier, interrupted run. They are
// kept as-is and their keys count as seen.
func (p *Pipeline) Seed(records []*models.Record) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, rec := range records {
		key := Key(rec)
		if p.seen[key] {
			continue
		}
		p.seen[key] = true
		if rec.ID == "" {
			rec.ID = ID(key)
		}
		p.records = append(p.records, rec)
		n++
	}
	p.stats.Seeded += n
	return n
}

// Process runs every record of seq through the pipeline and yields the
// accepted ones in order.
func (p *Pipeline) Process(ctx context.Context, seq iter.Seq[*models.Record]) iter.Seq[*models.Record] {
	return func(yield func(*models.Record) bool) {
		for rec := range seq {
			if ctx.Err() != nil {
				return
			}
			out, ok := p.Add(ctx, rec)
			if !ok {
				continue
			}
			if !yield(out) {
				return
			}
		}
	}
}

// Records returns the accepted records in acceptance order.
func (p *Pipeline) Records() []*models.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.Record(nil), p.records...)
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Clean returns a trimmed copy of rec with invalid counters and timestamps
// nulled and list fields non-nil.
func Clean(rec *models.Record) *models.Record {
	out := *rec
	out.ContentText = strings.TrimSpace(out.ContentText)
	out.AuthorName = strings.TrimSpace(out.AuthorName)
	out.AuthorFirstName = strings.TrimSpace(out.AuthorFirstName)
	out.AuthorLastName = strings.TrimSpace(out.AuthorLastName)
	out.AuthorTitle = trimPtr(out.AuthorTitle)
	out.AuthorCompany = trimPtr(out.AuthorCompany)
	out.AuthorProfileURL = trimPtr(out.AuthorProfileURL)
	out.PostURL = trimPtr(out.PostURL)
	out.PostedAtRaw = trimPtr(out.PostedAtRaw)
	out.RelativeTime = trimPtr(out.RelativeTime)

	out.PostedAt = trimPtr(out.PostedAt)
	if out.PostedAt != nil {
		if _, err := time.Parse(time.RFC3339, *out.PostedAt); err != nil {
			out.PostedAt = nil
		}
	}

	out.Likes = nonNegative(out.Likes)
	out.Comments = nonNegative(out.Comments)
	out.Shares = nonNegative(out.Shares)

	out.Hashtags = list(out.Hashtags)
	out.Mentions = list(out.Mentions)
	out.Links = list(out.Links)
	out.MediaURLs = list(out.MediaURLs)
	out.MissingFields = list(out.MissingFields)
	return &out
}

// Key is a record's identity: its post URL when known, otherwise a hash of
// the normalized text, author and timestamp.
func Key(rec *models.Record) string {
	if u := models.Deref(rec.PostURL); u != "" {
		return u
	}
	text := strings.ToLower(strings.Join(strings.Fields(rec.ContentText), " "))
	sum := sha256.Sum256([]byte(text + "|" + rec.AuthorName + "|" + models.Deref(rec.PostedAt)))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// ID is the short record id derived from a key.
func ID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return models.StringPtr(strings.TrimSpace(*s))
}

func nonNegative(n *int) *int {
	if n == nil || *n < 0 {
		return nil
	}
	return models.IntPtr(*n)
}

func list(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
