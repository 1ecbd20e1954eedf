// Package selectors holds the versioned, ordered extraction strategies used
// to locate content units and their fields in rendered feed markup.
//
// Each field maps to a Spec: an ordered list of independent strategies. The
// extractor applies them in order and keeps the first value that passes the
// field's validation. Orderings can be replaced from a YAML file without a
// rebuild when the target markup drifts.
package selectors

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// Version identifies the built-in strategy set.
const Version = "2024.06"

// Field names a logical field or page marker.
type Field string

// Unit-level fields.
const (
	FieldUnit          Field = "unit"
	FieldContent       Field = "content"
	FieldAuthorName    Field = "author_name"
	FieldAuthorTitle   Field = "author_title"
	FieldAuthorProfile Field = "author_profile_url"
	FieldTimestamp     Field = "timestamp"
	FieldLikes         Field = "likes"
	FieldComments      Field = "comments"
	FieldShares        Field = "shares"
	FieldMedia         Field = "media_urls"
	FieldLinks         Field = "links"
	FieldPostURL       Field = "post_url"
	FieldPollMarker    Field = "poll_marker"
	FieldVideoMarker   Field = "video_marker"
	FieldArticleMarker Field = "article_marker"
)

// Page-level markers.
const (
	MarkerLoggedIn  Field = "logged_in"
	MarkerChallenge Field = "challenge"
	MarkerLoginWall Field = "login_wall"
	MarkerBlocked   Field = "blocked"
	MarkerLoginForm Field = "login_error"
	MarkerLoadMore  Field = "load_more"
)

// Strategy is one side-effect-free way to read a value out of a selection.
type Strategy struct {
	Name string `yaml:"name"`
	// Selector is a CSS selector relative to the unit. Empty means the unit itself.
	Selector string `yaml:"selector"`
	// Attr reads an attribute instead of text.
	Attr string `yaml:"attr,omitempty"`
	// Own reads only the element's direct text nodes.
	Own bool `yaml:"own,omitempty"`
}

// Spec is the ordered strategy list for one field.
type Spec struct {
	Field      Field      `yaml:"field"`
	Strategies []Strategy `yaml:"strategies"`
}

var spaceRE = regexp.MustCompile(`\s+`)

// CollapseSpace trims s and collapses internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}

func (s Strategy) target(root *goquery.Selection) *goquery.Selection {
	if s.Selector == "" {
		return root
	}
	return root.Find(s.Selector)
}

func (s Strategy) read(sel *goquery.Selection) (string, bool) {
	if s.Attr != "" {
		v, ok := sel.Attr(s.Attr)
		return strings.TrimSpace(v), ok
	}
	if s.Own {
		var b strings.Builder
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				b.WriteString(c.Text())
				b.WriteString(" ")
			}
		})
		return CollapseSpace(b.String()), true
	}
	return CollapseSpace(sel.Text()), true
}

// First returns the value of the first matching element, or "".
func (s Strategy) First(root *goquery.Selection) string {
	sel := s.target(root).First()
	if sel.Length() == 0 {
		return ""
	}
	v, _ := s.read(sel)
	return v
}

// Values returns the non-empty values of every matching element in document order.
func (s Strategy) Values(root *goquery.Selection) []string {
	var out []string
	s.target(root).Each(func(_ int, sel *goquery.Selection) {
		if v, ok := s.read(sel); ok && v != "" {
			out = append(out, v)
		}
	})
	return out
}

// Matches reports whether the strategy's selector matches anything under root.
func (s Strategy) Matches(root *goquery.Selection) bool {
	return s.target(root).Length() > 0
}

// Selectors returns the CSS selectors of a spec, for callers that query a live page.
func (sp Spec) Selectors() []string {
	out := make([]string, 0, len(sp.Strategies))
	for _, st := range sp.Strategies {
		if st.Selector != "" {
			out = append(out, st.Selector)
		}
	}
	return out
}

// Any reports whether any strategy matches under root.
func (sp Spec) Any(root *goquery.Selection) bool {
	for _, st := range sp.Strategies {
		if st.Matches(root) {
			return true
		}
	}
	return false
}

// Registry is a versioned set of specs.
type Registry struct {
	Version string
	specs   map[Field]Spec
}

// New builds a registry from specs.
func New(version string, specs ...Spec) *Registry {
	r := &Registry{Version: version, specs: make(map[Field]Spec, len(specs))}
	for _, sp := range specs {
		r.specs[sp.Field] = sp
	}
	return r
}

// Spec returns the spec for f. Unknown fields yield an empty spec.
func (r *Registry) Spec(f Field) Spec {
	sp, ok := r.specs[f]
	if !ok {
		return Spec{Field: f}
	}
	return sp
}

// Fields lists the registered fields.
func (r *Registry) Fields() []Field {
	out := make([]Field, 0, len(r.specs))
	for f := range r.specs {
		out = append(out, f)
	}
	return out
}

// Clone returns a deep copy.
func (r *Registry) Clone() *Registry {
	c := &Registry{Version: r.Version, specs: make(map[Field]Spec, len(r.specs))}
	for f, sp := range r.specs {
		c.specs[f] = Spec{Field: f, Strategies: append([]Strategy(nil), sp.Strategies...)}
	}
	return c
}

type overrideFile struct {
	Version string                `yaml:"version"`
	Fields  map[string][]Strategy `yaml:"fields"`
}

// Override replaces the strategy lists of the fields named in data.
// Fields not mentioned keep their current ordering.
func (r *Registry) Override(data []byte) error {
	var of overrideFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return fmt.Errorf("failed to parse selector overrides: %w", err)
	}
	for name, strategies := range of.Fields {
		if len(strategies) == 0 {
			return fmt.Errorf("selector override for %q has no strategies", name)
		}
		for i, st := range strategies {
			if st.Selector == "" && st.Attr == "" {
				return fmt.Errorf("selector override %s[%d] needs a selector or attr", name, i)
			}
			if st.Name == "" {
				strategies[i].Name = fmt.Sprintf("%s#%d", name, i)
			}
		}
		r.specs[Field(name)] = Spec{Field: Field(name), Strategies: strategies}
	}
	if of.Version != "" {
		r.Version = of.Version
	}
	return nil
}

// Load returns the default registry with overrides from path applied, if path is set.
func Load(path string) (*Registry, error) {
	r := Default()
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selector overrides: %w", err)
	}
	if err := r.Override(data); err != nil {
		return nil, err
	}
	return r, nil
}
