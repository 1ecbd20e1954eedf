package extract

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"postscraper/pkg/models"
	"postscraper/pkg/selectors"
)

// SiteHost is the canonical host of the target site.
const SiteHost = "www.linkedin.com"

var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "mx": true, "dr": true,
	"prof": true, "professor": true, "sir": true, "dame": true, "rev": true,
	"hon": true, "capt": true, "eng": true,
}

var suffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "v": true,
	"phd": true, "md": true, "mba": true, "cpa": true, "esq": true, "pmp": true,
	"cfa": true, "dds": true, "jd": true, "msc": true, "bsc": true, "pe": true,
}

func nameToken(tok string) string {
	return strings.ToLower(strings.Trim(tok, ".,()"))
}

// CleanName drops badges and relationship noise from a displayed name,
// e.g. "Jane Doe • Following" or "Jane Doe 3rd+".
func CleanName(raw string) string {
	s := selectors.CollapseSpace(raw)
	if i := strings.IndexAny(s, "•·|"); i >= 0 {
		s = s[:i]
	}
	s = degreeRE.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	for _, noise := range []string{"Following", "Follow", "View profile", "Verified"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, noise))
	}
	return s
}

var degreeRE = regexp.MustCompile(`(?i)\s*\b(1st|2nd|3rd|\d+th)\+?\s*$`)

// SplitName strips honorifics and suffixes, then takes the first remaining
// token as the first name and the rest as the last name.
func SplitName(name string) (first, last string) {
	s := CleanName(name)
	// credentials after a comma: "Jane Doe, PhD"
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	var tokens []string
	for _, tok := range strings.Fields(s) {
		tokens = append(tokens, tok)
	}
	for len(tokens) > 0 && honorifics[nameToken(tokens[0])] {
		tokens = tokens[1:]
	}
	for len(tokens) > 1 && suffixes[nameToken(tokens[len(tokens)-1])] {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return "", ""
	}
	return tokens[0], strings.Join(tokens[1:], " ")
}

var (
	hashtagRE = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_&/])#([\p{L}\p{N}_]+)`)
	mentionRE = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_.])@([\p{L}\p{N}_]+(?:[.\-][\p{L}\p{N}_]+)*)`)
)

func scan(re *regexp.Regexp, text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		tag := m[1]
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// ExtractHashtags returns '#'-stripped tags in first-appearance order.
// Tags are compared exactly, so #AI and #ai are both kept.
func ExtractHashtags(text string) []string {
	return scan(hashtagRE, text)
}

// ExtractMentions returns '@'-stripped handles in first-appearance order.
func ExtractMentions(text string) []string {
	return scan(mentionRE, text)
}

var seeMoreRE = regexp.MustCompile(`(?i)\s*(?:(?:…|\.\.\.)\s*(?:see more|show more|more)|see more|show more)\s*$`)

// CleanText collapses whitespace and strips trailing expand affordances.
func CleanText(s string) string {
	s = selectors.CollapseSpace(s)
	for {
		next := strings.TrimSpace(seeMoreRE.ReplaceAllString(s, ""))
		if next == s {
			break
		}
		s = next
	}
	return s
}

var (
	relativeRE = regexp.MustCompile(`(?i)^(\d+)\s*(s|sec|secs|second|seconds|m|min|mins|minute|minutes|h|hr|hrs|hour|hours|d|day|days|w|wk|wks|week|weeks|mo|mos|month|months|y|yr|yrs|year|years)\b(\s+ago)?`)
	nowRE      = regexp.MustCompile(`(?i)^(now|just now)\b`)
)

var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// ParseRelative converts a relative age such as "2d", "3 hours ago" or "now"
// into an absolute time before ref. The returned string is the relative token
// as displayed.
func ParseRelative(text string, ref time.Time) (time.Time, string, bool) {
	s := selectors.CollapseSpace(text)
	if i := strings.IndexAny(s, "•·"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if m := nowRE.FindString(s); m != "" {
		return ref, m, true
	}
	m := relativeRE.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, "", false
	}
	unit := strings.ToLower(m[2])
	var t time.Time
	switch {
	case unit == "s" || strings.HasPrefix(unit, "sec"):
		t = ref.Add(-time.Duration(n) * time.Second)
	case unit == "m" || strings.HasPrefix(unit, "min"):
		t = ref.Add(-time.Duration(n) * time.Minute)
	case unit == "h" || strings.HasPrefix(unit, "h"):
		t = ref.Add(-time.Duration(n) * time.Hour)
	case unit == "d" || strings.HasPrefix(unit, "day"):
		t = ref.AddDate(0, 0, -n)
	case unit == "w" || strings.HasPrefix(unit, "w"):
		t = ref.AddDate(0, 0, -7*n)
	case strings.HasPrefix(unit, "mo"):
		t = ref.AddDate(0, -n, 0)
	default:
		t = ref.AddDate(-n, 0, 0)
	}
	return t, strings.TrimSpace(m[0]), true
}

// Timestamp is a normalized posting time.
type Timestamp struct {
	Raw      string
	ISO      string
	Relative string
}

// NormalizeTimestamp prefers a machine-readable datetime value and falls back
// to relative display text resolved against ref. ISO output is RFC 3339 in UTC.
func NormalizeTimestamp(datetime, display string, ref time.Time) Timestamp {
	var ts Timestamp
	if datetime != "" {
		ts.Raw = datetime
		if t, ok := parseAbsolute(datetime); ok {
			ts.ISO = t.UTC().Format(time.RFC3339)
		}
	}
	if display != "" {
		if ts.Raw == "" {
			ts.Raw = display
		}
		if t, rel, ok := ParseRelative(display, ref); ok {
			ts.Relative = rel
			if ts.ISO == "" {
				ts.ISO = t.UTC().Format(time.RFC3339)
			}
		} else if ts.ISO == "" {
			if t, ok := parseAbsolute(display); ok {
				ts.ISO = t.UTC().Format(time.RFC3339)
			}
		}
	}
	return ts
}

func parseAbsolute(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// epoch milliseconds, as found in some data attributes
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 1e11 {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

var (
	mediaHostRE = regexp.MustCompile(`^https://(media|media-exp\d+|dms)\.licdn\.com/`)
	avatarDeny  = []string{
		"profile-displayphoto", "profile-framedphoto", "profile-displaybackgroundimage",
		"company-logo", "school-logo", "/emoji/", "ghost-person", "ghost-organization",
		"/aero-v1/sc/h/", "-logo_", "/sc/h/",
	}
)

// IsMediaURL reports whether u is content media hosted by the target site
// and not an avatar, logo or icon.
func IsMediaURL(u string) bool {
	if !mediaHostRE.MatchString(u) {
		return false
	}
	for _, deny := range avatarDeny {
		if strings.Contains(u, deny) {
			return false
		}
	}
	return true
}

// FilterMedia keeps media URLs in order, deduplicated.
func FilterMedia(urls []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if !IsMediaURL(u) || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func isSiteHost(host string) bool {
	host = strings.ToLower(host)
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com") || strings.HasSuffix(host, ".licdn.com")
}

// FilterLinks keeps absolute external http(s) links, deduplicated, in order.
func FilterLinks(hrefs []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, h := range hrefs {
		h = strings.TrimSpace(h)
		if h == "" || strings.HasPrefix(h, "#") {
			continue
		}
		u, err := url.Parse(h)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		if isSiteHost(u.Hostname()) {
			continue
		}
		u.Fragment = ""
		s := u.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

var activityRE = regexp.MustCompile(`urn:li:(activity|ugcPost|share):(\d+)`)

// CanonicalPostURL returns the stable URL of a post from a link or URN.
func CanonicalPostURL(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if strings.HasPrefix(v, "urn:") {
		m := activityRE.FindStringSubmatch(v)
		if m == nil {
			return ""
		}
		return "https://" + SiteHost + "/feed/update/urn:li:" + m[1] + ":" + m[2] + "/"
	}
	u, err := url.Parse(v)
	if err != nil {
		return ""
	}
	if u.Host == "" {
		u.Scheme, u.Host = "https", SiteHost
	}
	if !isSiteHost(u.Hostname()) {
		return ""
	}
	if !strings.Contains(u.Path, "/feed/update/") && !strings.Contains(u.Path, "/posts/") {
		return ""
	}
	u.Scheme = "https"
	u.Host = SiteHost
	u.RawQuery, u.Fragment = "", ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// CanonicalProfileURL strips tracking parameters from a profile link.
func CanonicalProfileURL(v string) string {
	u, err := url.Parse(strings.TrimSpace(v))
	if err != nil || v == "" {
		return ""
	}
	if u.Host == "" {
		u.Scheme, u.Host = "https", SiteHost
	}
	if !isSiteHost(u.Hostname()) {
		return ""
	}
	if !strings.HasPrefix(u.Path, "/in/") && !strings.HasPrefix(u.Path, "/company/") {
		return ""
	}
	// keep /in/<slug>/ only
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	u.Path = "/" + parts[0] + "/" + parts[1] + "/"
	u.Scheme, u.Host = "https", SiteHost
	u.RawQuery, u.Fragment = "", ""
	return u.String()
}

var countRE = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*([KkMmBb])?\b`)

// ParseCount reads engagement counts such as "1,234", "1.2K" or
// "45 comments". Text without a number yields nil.
func ParseCount(s string) *int {
	m := countRE.FindStringSubmatch(selectors.CollapseSpace(s))
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || f < 0 {
		return nil
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		f *= 1e3
	case "M":
		f *= 1e6
	case "B":
		f *= 1e9
	}
	if f > math.MaxInt32 {
		return nil
	}
	return models.IntPtr(int(math.Round(f)))
}

// SplitTitle separates "Role at Company" into its parts.
func SplitTitle(title string) (role, company string) {
	lower := strings.ToLower(title)
	for _, sep := range []string{" at ", " @ "} {
		if i := strings.LastIndex(lower, sep); i > 0 {
			return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+len(sep):])
		}
	}
	return title, ""
}

// ClassifyPostType applies poll > video > image > article > text.
func ClassifyPostType(poll, video bool, media, links []string, article bool) models.PostType {
	switch {
	case poll:
		return models.PostTypePoll
	case video:
		return models.PostTypeVideo
	case len(media) > 0:
		return models.PostTypeImage
	case len(links) > 0 || article:
		return models.PostTypeArticle
	default:
		return models.PostTypeText
	}
}
