// Package extract turns rendered content units into canonical records.
// Extraction never fails: a field whose strategies all miss is left null and
// named in the record's MissingFields.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/selectors"
)

// ScrapeMethod is recorded in each record's provenance.
const ScrapeMethod = "browser"

// Validator accepts or rejects a normalized candidate value.
type Validator func(string) bool

var (
	noiseRE = regexp.MustCompile(`(?i)^\s*[\d.,]+[KkMm]?\+?\s+(followers?|connections?|members?|employees?)\b|^\s*•?\s*(following|follow|promoted|connect)\s*$`)
	ageRE   = regexp.MustCompile(`(?i)^\d+\s*(s|m|h|d|w|mo|y|yr)\b`)
)

// IsNoise reports text that is UI chrome rather than content, such as
// "500+ followers" or "• Following".
func IsNoise(s string) bool {
	return noiseRE.MatchString(s)
}

func nonEmpty(s string) bool { return strings.TrimSpace(s) != "" }

func validName(s string) bool {
	if !nonEmpty(s) || IsNoise(s) || len(s) > 120 {
		return false
	}
	return !strings.Contains(strings.ToLower(s), "linkedin member")
}

func validTitle(s string) bool {
	return nonEmpty(s) && !IsNoise(s) && !ageRE.MatchString(s) && !strings.Contains(strings.ToLower(s), "followers")
}

func validCount(s string) bool { return ParseCount(s) != nil }

// Extractor applies a selector registry to raw units.
type Extractor struct {
	registry *selectors.Registry
	logger   logger.Logger
}

// New creates an extractor over registry.
func New(registry *selectors.Registry, log logger.Logger) *Extractor {
	if registry == nil {
		registry = selectors.Default()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{registry: registry, logger: log}
}

// Registry returns the registry in use.
func (e *Extractor) Registry() *selectors.Registry {
	return e.registry
}

type fieldResult struct {
	value    string
	strategy string
}

// first runs the field's strategies in order, normalizing each candidate with
// clean and accepting the first that valid approves.
func (e *Extractor) first(root *goquery.Selection, f selectors.Field, clean func(string) string, valid Validator) (fieldResult, bool) {
	for _, st := range e.registry.Spec(f).Strategies {
		v := st.First(root)
		if clean != nil {
			v = clean(v)
		}
		if valid(v) {
			return fieldResult{value: v, strategy: st.Name}, true
		}
	}
	return fieldResult{}, false
}

// all gathers every value of every strategy, in strategy order.
func (e *Extractor) all(root *goquery.Selection, f selectors.Field) []string {
	var out []string
	for _, st := range e.registry.Spec(f).Strategies {
		out = append(out, st.Values(root)...)
	}
	return out
}

// Root parses unit HTML and returns the unit element.
func Root(html string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	root := doc.Find("body").Children().First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	return root, nil
}

// Extract converts a raw unit into a record-in-progress. The unit's capture
// time is the reference for relative timestamps, so extracting the same unit
// twice yields identical output.
func (e *Extractor) Extract(unit models.RawUnit) *models.Record {
	rec := &models.Record{
		SourceTarget: unit.Target.URL,
		SourceMode:   unit.Target.Mode,
		ScrapeMethod: ScrapeMethod,
		ScrapedAt:    unit.CapturedAt.UTC(),
		PostType:     models.PostTypeText,
	}
	if unit.Target.SourceProfileURL != "" {
		rec.SourceProfileURL = models.StringPtr(unit.Target.SourceProfileURL)
	}

	root, err := Root(unit.HTML)
	if err != nil {
		rec.MissingFields = []string{string(selectors.FieldContent), string(selectors.FieldAuthorName)}
		e.logger.WithError(err).Warn("Unparseable content unit")
		return rec
	}

	var missing []string
	miss := func(f selectors.Field) { missing = append(missing, string(f)) }

	if r, ok := e.first(root, selectors.FieldContent, CleanText, nonEmpty); ok {
		rec.ContentText = r.value
	} else {
		miss(selectors.FieldContent)
	}

	if r, ok := e.first(root, selectors.FieldAuthorName, CleanName, validName); ok {
		rec.AuthorName = r.value
		rec.AuthorFirstName, rec.AuthorLastName = SplitName(r.value)
	} else {
		miss(selectors.FieldAuthorName)
	}

	if r, ok := e.first(root, selectors.FieldAuthorTitle, selectors.CollapseSpace, validTitle); ok {
		role, company := SplitTitle(r.value)
		rec.AuthorTitle = models.StringPtr(role)
		rec.AuthorCompany = models.StringPtr(company)
	} else {
		miss(selectors.FieldAuthorTitle)
	}

	if r, ok := e.first(root, selectors.FieldAuthorProfile, CanonicalProfileURL, nonEmpty); ok {
		rec.AuthorProfileURL = models.StringPtr(r.value)
	} else {
		miss(selectors.FieldAuthorProfile)
	}

	if r, ok := e.first(root, selectors.FieldPostURL, CanonicalPostURL, nonEmpty); ok {
		rec.PostURL = models.StringPtr(r.value)
	} else if u := CanonicalPostURL(unit.Key); u != "" {
		rec.PostURL = models.StringPtr(u)
	} else {
		miss(selectors.FieldPostURL)
	}

	e.extractTimestamp(root, rec, miss)

	for _, c := range []struct {
		field selectors.Field
		dst   **int
	}{
		{selectors.FieldLikes, &rec.Likes},
		{selectors.FieldComments, &rec.Comments},
		{selectors.FieldShares, &rec.Shares},
	} {
		if r, ok := e.first(root, c.field, nil, validCount); ok {
			*c.dst = ParseCount(r.value)
		} else {
			miss(c.field)
		}
	}

	rec.Hashtags = ExtractHashtags(rec.ContentText)
	rec.Mentions = ExtractMentions(rec.ContentText)
	rec.MediaURLs = FilterMedia(e.all(root, selectors.FieldMedia))
	rec.Links = FilterLinks(e.all(root, selectors.FieldLinks))

	rec.PostType = ClassifyPostType(
		e.registry.Spec(selectors.FieldPollMarker).Any(root),
		e.registry.Spec(selectors.FieldVideoMarker).Any(root),
		rec.MediaURLs,
		rec.Links,
		e.registry.Spec(selectors.FieldArticleMarker).Any(root),
	)

	rec.MissingFields = missing
	logger.LogExtractionGap(e.logger, unit.Key, missing)
	return rec
}

func (e *Extractor) extractTimestamp(root *goquery.Selection, rec *models.Record, miss func(selectors.Field)) {
	var datetime, display string
	for _, st := range e.registry.Spec(selectors.FieldTimestamp).Strategies {
		v := st.First(root)
		if v == "" {
			continue
		}
		if st.Attr != "" {
			if datetime == "" {
				datetime = v
			}
			continue
		}
		if display == "" {
			display = v
		}
	}
	ts := NormalizeTimestamp(datetime, display, rec.ScrapedAt)
	if ts.ISO == "" && ts.Raw == "" {
		miss(selectors.FieldTimestamp)
		return
	}
	rec.PostedAtRaw = models.StringPtr(ts.Raw)
	rec.PostedAt = models.StringPtr(ts.ISO)
	rec.RelativeTime = models.StringPtr(ts.Relative)
}

// UnitKey derives a stable key for a unit: its activity URN when present,
// otherwise a content hash.
func UnitKey(root *goquery.Selection, html string) string {
	for _, a := range []string{"data-urn", "data-id"} {
		if v, ok := root.Attr(a); ok && activityRE.MatchString(v) {
			return v
		}
	}
	if v, ok := root.Find(`[data-urn^="urn:li:activity"]`).First().Attr("data-urn"); ok {
		return v
	}
	sum := sha256.Sum256([]byte(selectors.CollapseSpace(html)))
	return "sha256:" + hex.EncodeToString(sum[:12])
}
