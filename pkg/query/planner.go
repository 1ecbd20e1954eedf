// Package query turns a scrape request into navigable targets.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"postscraper/pkg/config"
	"postscraper/pkg/extract"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
)

const (
	// SearchURL is the content search endpoint.
	SearchURL = "https://www.linkedin.com/search/results/content/"
	// HomeFeedURL is the signed-in member's home feed.
	HomeFeedURL = "https://www.linkedin.com/feed/"
)

// Warning reports an input dropped during planning.
type Warning struct {
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Input, w.Reason)
}

// Planner builds targets. It holds no state and is safe for concurrent use.
type Planner struct {
	logger logger.Logger
}

// NewPlanner creates a planner.
func NewPlanner(log logger.Logger) *Planner {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Planner{logger: log}
}

// Plan returns the ordered targets for req. Invalid inputs are dropped and
// reported as warnings; only an unusable request is an error.
func (p *Planner) Plan(req models.Request) ([]models.Target, []Warning, error) {
	var (
		targets  []models.Target
		warnings []Warning
	)
	switch req.Mode {
	case models.ModeSearch:
		kws := cleanKeywords(req.Keywords)
		if len(kws) == 0 {
			return nil, nil, fmt.Errorf("search mode needs at least one keyword")
		}
		for _, batch := range Batches(kws, req.BatchSize) {
			q, err := Compose(batch, req.Composition)
			if err != nil {
				return nil, nil, err
			}
			u := SearchTargetURL(q, req.SortByRecent)
			targets = append(targets, models.Target{
				ID:    TargetID(models.ModeSearch, u),
				Mode:  models.ModeSearch,
				URL:   u,
				Query: q,
			})
		}
	case models.ModeProfile:
		for _, in := range req.ProfileURLs {
			profile, err := ValidateProfileURL(in)
			if err != nil {
				warnings = append(warnings, Warning{Input: in, Reason: err.Error()})
				continue
			}
			u := profile + "recent-activity/all/"
			targets = append(targets, models.Target{
				ID:               TargetID(models.ModeProfile, u),
				Mode:             models.ModeProfile,
				URL:              u,
				SourceProfileURL: profile,
			})
		}
	case models.ModeURL:
		for _, in := range req.PostURLs {
			u, err := ValidateURL(in)
			if err != nil {
				warnings = append(warnings, Warning{Input: in, Reason: err.Error()})
				continue
			}
			targets = append(targets, models.Target{
				ID:   TargetID(models.ModeURL, u),
				Mode: models.ModeURL,
				URL:  u,
			})
		}
	case models.ModeFeed:
		targets = append(targets, models.Target{
			ID:   TargetID(models.ModeFeed, HomeFeedURL),
			Mode: models.ModeFeed,
			URL:  HomeFeedURL,
		})
	default:
		return nil, nil, fmt.Errorf("unknown mode %q", req.Mode)
	}

	targets, dupes := dedupe(targets)
	for _, d := range dupes {
		warnings = append(warnings, Warning{Input: d, Reason: "duplicate target"})
	}
	for _, w := range warnings {
		p.logger.WarnWithFields("Dropped target input", map[string]interface{}{
			"input":  w.Input,
			"reason": w.Reason,
		})
	}
	return targets, warnings, nil
}

func cleanKeywords(in []string) []string {
	var out []string
	for _, k := range in {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Batches splits keywords into groups of size. A size below 1 keeps every
// keyword in one batch.
func Batches(keywords []string, size int) [][]string {
	if size < 1 || size >= len(keywords) {
		return [][]string{keywords}
	}
	var out [][]string
	for i := 0; i < len(keywords); i += size {
		end := min(i+size, len(keywords))
		out = append(out, keywords[i:end])
	}
	return out
}

// Compose joins keywords under a composition policy.
func Compose(keywords []string, composition string) (string, error) {
	parts := make([]string, len(keywords))
	switch composition {
	case config.CompositionOR, config.CompositionAND:
		for i, k := range keywords {
			parts[i] = `"` + strings.ReplaceAll(k, `"`, "") + `"`
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return strings.Join(parts, " "+strings.ToUpper(composition)+" "), nil
	case config.CompositionHashtag:
		for i, k := range keywords {
			parts[i] = "#" + strings.Join(strings.Fields(strings.TrimPrefix(k, "#")), "")
		}
		return strings.Join(parts, " OR "), nil
	default:
		return "", fmt.Errorf("unknown query composition %q", composition)
	}
}

// SearchTargetURL builds the search results URL for a composed query.
func SearchTargetURL(query string, sortByRecent bool) string {
	u := SearchURL + "?keywords=" + url.QueryEscape(query) + "&origin=GLOBAL_SEARCH_HEADER"
	if sortByRecent {
		u += "&sortBy=%22date_posted%22"
	}
	return u
}

// ValidateURL checks that raw is an absolute http(s) URL on the target site.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("unparseable URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https")
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("missing host")
	}
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return "", fmt.Errorf("host %s is not %s", host, extract.SiteHost)
	}
	u.Scheme = "https"
	u.Fragment = ""
	return u.String(), nil
}

// ValidateProfileURL checks a member or company profile URL and returns it
// in canonical form with a trailing slash.
func ValidateProfileURL(raw string) (string, error) {
	u, err := ValidateURL(raw)
	if err != nil {
		return "", err
	}
	profile := extract.CanonicalProfileURL(u)
	if profile == "" {
		return "", fmt.Errorf("not a profile URL")
	}
	return profile, nil
}

// TargetID derives a stable identifier so a resumed run recognizes targets it
// already finished.
func TargetID(mode models.Mode, u string) string {
	sum := sha256.Sum256([]byte(u))
	return string(mode) + "-" + hex.EncodeToString(sum[:6])
}

func dedupe(targets []models.Target) ([]models.Target, []string) {
	seen := make(map[string]bool, len(targets))
	out := targets[:0]
	var dupes []string
	for _, t := range targets {
		if seen[t.ID] {
			dupes = append(dupes, t.URL)
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out, dupes
}
