package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postscraper/pkg/config"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		name        string
		keywords    []string
		composition string
		want        string
	}{
		{"or", []string{"ai", "machine learning"}, config.CompositionOR, `"ai" OR "machine learning"`},
		{"and", []string{"ai", "hiring"}, config.CompositionAND, `"ai" AND "hiring"`},
		{"single", []string{"golang"}, config.CompositionOR, `"golang"`},
		{"hashtag", []string{"ai", "#Machine Learning"}, config.CompositionHashtag, `#ai OR #MachineLearning`},
		{"quotes stripped", []string{`say "hi"`}, config.CompositionAND, `"say hi"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compose(tt.keywords, tt.composition)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Compose([]string{"a"}, "xor")
	assert.Error(t, err)
}

func TestBatches(t *testing.T) {
	kws := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{kws}, Batches(kws, 0))
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, Batches(kws, 2))
	assert.Equal(t, [][]string{kws}, Batches(kws, 10))
}

func TestPlanSearch(t *testing.T) {
	p := NewPlanner(nil)
	targets, warnings, err := p.Plan(models.Request{
		Mode:         models.ModeSearch,
		Keywords:     []string{"ai", " ", "golang", "rust"},
		Composition:  config.CompositionOR,
		BatchSize:    2,
		SortByRecent: true,
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, targets, 2)

	first := targets[0]
	assert.Equal(t, models.ModeSearch, first.Mode)
	assert.Equal(t, `"ai" OR "golang"`, first.Query)
	u, err := url.Parse(first.URL)
	require.NoError(t, err)
	assert.Equal(t, "www.linkedin.com", u.Host)
	assert.Equal(t, "/search/results/content/", u.Path)
	assert.Equal(t, `"ai" OR "golang"`, u.Query().Get("keywords"))
	assert.Equal(t, `"date_posted"`, u.Query().Get("sortBy"))
	assert.Regexp(t, `^search-[0-9a-f]{12}$`, first.ID)
	assert.Equal(t, `"rust"`, targets[1].Query)

	again, _, err := p.Plan(models.Request{Mode: models.ModeSearch, Keywords: []string{"ai", "golang", "rust"}, Composition: config.CompositionOR, BatchSize: 2, SortByRecent: true})
	require.NoError(t, err)
	assert.Equal(t, targets[0].ID, again[0].ID, "target IDs are stable across runs")
}

func TestPlanSearchWithoutSort(t *testing.T) {
	targets, _, err := NewPlanner(nil).Plan(models.Request{Mode: models.ModeSearch, Keywords: []string{"ai"}, Composition: config.CompositionHashtag})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.NotContains(t, targets[0].URL, "sortBy")
	assert.Equal(t, "#ai", targets[0].Query)
}

func TestPlanSearchErrors(t *testing.T) {
	_, _, err := NewPlanner(nil).Plan(models.Request{Mode: models.ModeSearch})
	assert.Error(t, err)

	_, _, err = NewPlanner(nil).Plan(models.Request{Mode: models.ModeSearch, Keywords: []string{"a"}, Composition: "nor"})
	assert.Error(t, err)

	_, _, err = NewPlanner(nil).Plan(models.Request{Mode: "timeline"})
	assert.Error(t, err)
}

func TestPlanHomeFeed(t *testing.T) {
	targets, warnings, err := NewPlanner(nil).Plan(models.Request{Mode: models.ModeFeed, Keywords: []string{"ignored"}})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, targets, 1)
	assert.Equal(t, models.ModeFeed, targets[0].Mode)
	assert.Equal(t, "https://www.linkedin.com/feed/", targets[0].URL)
	assert.Regexp(t, `^feed-[0-9a-f]{12}$`, targets[0].ID)
}

func TestPlanProfiles(t *testing.T) {
	log := logger.NewTestLogger()
	targets, warnings, err := NewPlanner(log).Plan(models.Request{
		Mode: models.ModeProfile,
		ProfileURLs: []string{
			"https://www.linkedin.com/in/jane-doe?trk=abc",
			"linkedin.com/in/missing-scheme",
			"https://example.com/in/jane",
			"https://www.linkedin.com/feed/",
			"http://linkedin.com/in/jane-doe/",
			"https://www.linkedin.com/company/acme/",
		},
	})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe/recent-activity/all/", targets[0].URL)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe/", targets[0].SourceProfileURL)
	assert.Equal(t, "https://www.linkedin.com/company/acme/recent-activity/all/", targets[1].URL)

	require.Len(t, warnings, 4)
	assert.Equal(t, "linkedin.com/in/missing-scheme", warnings[0].Input)
	assert.Equal(t, "duplicate target", warnings[3].Reason)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 4)
}

func TestPlanURLs(t *testing.T) {
	targets, warnings, err := NewPlanner(nil).Plan(models.Request{
		Mode: models.ModeURL,
		PostURLs: []string{
			"https://www.linkedin.com/feed/update/urn:li:activity:123/#comments",
			"ftp://www.linkedin.com/posts/x",
			"not a url at all",
		},
	})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, models.ModeURL, targets[0].Mode)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:activity:123/", targets[0].URL)
	assert.Len(t, warnings, 2)
}

func TestPlanAllInvalidIsNotAnError(t *testing.T) {
	targets, warnings, err := NewPlanner(nil).Plan(models.Request{Mode: models.ModeURL, PostURLs: []string{"nope"}})
	require.NoError(t, err)
	assert.Empty(t, targets)
	assert.Len(t, warnings, 1)
}
