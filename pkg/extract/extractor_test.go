package extract

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/selectors"
)

var capturedAt = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

const followingUnit = `<div class="feed-shared-update-v2" data-urn="urn:li:activity:7201">
  <div class="update-components-actor">
    <a class="update-components-actor__meta-link" href="https://www.linkedin.com/in/jane-doe?miniProfileUrn=abc">
      <span class="update-components-actor__name">Jane Doe • Following</span>
      <span class="update-components-actor__description">500+ followers</span>
      <span class="update-components-actor__sub-description"><span aria-hidden="true">2d • Edited •</span></span>
    </a>
  </div>
  <div class="update-components-text">Check out #AI and #MachineLearning with @DataConf …see more</div>
  <span class="social-details-social-counts__reactions-count">1,234</span>
  <button aria-label="45 comments on Jane Doe's post">45 comments</button>
  <button aria-label="3 reposts of Jane Doe's post">3 reposts</button>
</div>`

const imageUnit = `<div class="feed-shared-update-v2" data-urn="urn:li:activity:7300">
  <div class="feed-shared-actor__name"><span class="visually-hidden">Dr. John Smith, PhD</span></div>
  <div class="feed-shared-actor__description">Head of Data at Acme Corp</div>
  <a class="feed-shared-actor__container-link" href="/in/john-smith/"><img src="https://media.licdn.com/dms/image/v2/C5603AQ/profile-displayphoto-shrink_100_100/0/1"></a>
  <time datetime="2024-06-10T08:30:00.000Z">5d</time>
  <div class="feed-shared-update-v2__commentary">Our Q2 report is live https://reports.example.com/q2</div>
  <img src="https://media.licdn.com/dms/image/v2/D4E22AQ/feedshare-shrink_800/0/1?e=1">
  <a href="https://reports.example.com/q2">report</a>
  <a href="https://www.linkedin.com/feed/hashtag/data">#data</a>
</div>`

func newTestUnit(html string) models.RawUnit {
	return models.RawUnit{
		Key:        "urn:li:activity:7201",
		HTML:       html,
		Target:     models.Target{ID: "search-1", Mode: models.ModeSearch, URL: "https://www.linkedin.com/search/results/content/?keywords=ai"},
		CapturedAt: capturedAt,
	}
}

func TestExtractRejectsFollowerNoise(t *testing.T) {
	log := logger.NewTestLogger()
	rec := New(nil, log).Extract(newTestUnit(followingUnit))

	assert.Equal(t, "Jane Doe", rec.AuthorName)
	assert.Equal(t, "Jane", rec.AuthorFirstName)
	assert.Equal(t, "Doe", rec.AuthorLastName)
	assert.Nil(t, rec.AuthorTitle, "follower counts are not a title")
	assert.Nil(t, rec.AuthorCompany)
	assert.Contains(t, rec.MissingFields, string(selectors.FieldAuthorTitle))
	assert.True(t, log.HasMessage("Extraction gap"))
}

func TestExtractContentAndTags(t *testing.T) {
	rec := New(nil, nil).Extract(newTestUnit(followingUnit))

	assert.Equal(t, "Check out #AI and #MachineLearning with @DataConf", rec.ContentText)
	assert.Equal(t, []string{"AI", "MachineLearning"}, rec.Hashtags)
	assert.Equal(t, []string{"DataConf"}, rec.Mentions)
	assert.Equal(t, models.PostTypeText, rec.PostType)
	assert.Empty(t, rec.Links)
	assert.Empty(t, rec.MediaURLs)
}

func TestExtractEngagementAndProvenance(t *testing.T) {
	rec := New(nil, nil).Extract(newTestUnit(followingUnit))

	require.NotNil(t, rec.Likes)
	require.NotNil(t, rec.Comments)
	require.NotNil(t, rec.Shares)
	assert.Equal(t, 1234, *rec.Likes)
	assert.Equal(t, 45, *rec.Comments)
	assert.Equal(t, 3, *rec.Shares)

	require.NotNil(t, rec.AuthorProfileURL)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe/", *rec.AuthorProfileURL)
	require.NotNil(t, rec.PostURL)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:activity:7201/", *rec.PostURL)

	assert.Equal(t, models.ModeSearch, rec.SourceMode)
	assert.Equal(t, "https://www.linkedin.com/search/results/content/?keywords=ai", rec.SourceTarget)
	assert.Equal(t, ScrapeMethod, rec.ScrapeMethod)
	assert.Equal(t, capturedAt, rec.ScrapedAt)
	assert.Nil(t, rec.SourceProfileURL)
}

func TestExtractRelativeTimestamp(t *testing.T) {
	rec := New(nil, nil).Extract(newTestUnit(followingUnit))

	require.NotNil(t, rec.PostedAt)
	parsed, err := time.Parse(time.RFC3339, *rec.PostedAt)
	require.NoError(t, err)
	assert.Equal(t, capturedAt.AddDate(0, 0, -2), parsed)
	require.NotNil(t, rec.RelativeTime)
	assert.Equal(t, "2d", *rec.RelativeTime)
	require.NotNil(t, rec.PostedAtRaw)
	assert.Equal(t, "2d • Edited •", *rec.PostedAtRaw)
}

func TestExtractImagePost(t *testing.T) {
	rec := New(nil, nil).Extract(newTestUnit(imageUnit))

	assert.Equal(t, "Dr. John Smith, PhD", rec.AuthorName)
	assert.Equal(t, "John", rec.AuthorFirstName)
	assert.Equal(t, "Smith", rec.AuthorLastName)
	require.NotNil(t, rec.AuthorTitle)
	assert.Equal(t, "Head of Data", *rec.AuthorTitle)
	require.NotNil(t, rec.AuthorCompany)
	assert.Equal(t, "Acme Corp", *rec.AuthorCompany)
	require.NotNil(t, rec.AuthorProfileURL)
	assert.Equal(t, "https://www.linkedin.com/in/john-smith/", *rec.AuthorProfileURL)

	require.NotNil(t, rec.PostedAt)
	assert.Equal(t, "2024-06-10T08:30:00Z", *rec.PostedAt)

	assert.Equal(t, []string{"https://media.licdn.com/dms/image/v2/D4E22AQ/feedshare-shrink_800/0/1?e=1"}, rec.MediaURLs)
	assert.Equal(t, []string{"https://reports.example.com/q2"}, rec.Links)
	assert.Equal(t, models.PostTypeImage, rec.PostType)

	assert.Nil(t, rec.Likes)
	assert.Nil(t, rec.Comments)
	assert.Nil(t, rec.Shares)
	assert.Subset(t, rec.MissingFields, []string{"likes", "comments", "shares"})
}

func TestExtractEmptyUnit(t *testing.T) {
	unit := newTestUnit(`<div class="feed-shared-update-v2"></div>`)
	unit.Key = "sha256:abc"
	rec := New(nil, nil).Extract(unit)

	require.NotNil(t, rec)
	assert.Empty(t, rec.ContentText)
	assert.Empty(t, rec.AuthorName)
	assert.Nil(t, rec.PostURL)
	assert.Nil(t, rec.PostedAt)
	assert.Contains(t, rec.MissingFields, "content")
	assert.Contains(t, rec.MissingFields, "author_name")
	assert.Contains(t, rec.MissingFields, "post_url")
	assert.Contains(t, rec.MissingFields, "timestamp")
	assert.Equal(t, models.PostTypeText, rec.PostType)
}

func TestExtractPostURLFallsBackToUnitKey(t *testing.T) {
	unit := newTestUnit(`<div><span class="break-words">hello</span></div>`)
	unit.Key = "urn:li:activity:999"
	rec := New(nil, nil).Extract(unit)

	require.NotNil(t, rec.PostURL)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:activity:999/", *rec.PostURL)
	assert.NotContains(t, rec.MissingFields, "post_url")
}

func TestExtractIsIdempotent(t *testing.T) {
	ex := New(nil, nil)
	for _, html := range []string{followingUnit, imageUnit} {
		unit := newTestUnit(html)
		first := ex.Extract(unit)
		second := ex.Extract(unit)
		assert.Empty(t, cmp.Diff(first, second))
	}
}

func TestExtractHonorsOverriddenOrdering(t *testing.T) {
	reg := selectors.Default().Clone()
	require.NoError(t, reg.Override([]byte(`
fields:
  author_name:
    - name: headline-as-name
      selector: .update-components-actor__description
`)))
	unit := newTestUnit(`<div><span class="update-components-actor__name">Jane Doe</span><span class="update-components-actor__description">Growth Lead</span></div>`)
	rec := New(reg, nil).Extract(unit)
	assert.Equal(t, "Growth Lead", rec.AuthorName)
}

func TestExtractPollAndVideoMarkers(t *testing.T) {
	poll := New(nil, nil).Extract(newTestUnit(`<div><div class="update-components-text">Vote!</div><div class="update-components-poll"></div><video poster="https://media.licdn.com/x.jpg"></video></div>`))
	assert.Equal(t, models.PostTypePoll, poll.PostType)

	video := New(nil, nil).Extract(newTestUnit(`<div><div class="update-components-text">Watch</div><video poster="https://dms.licdn.com/playlist/vid/cover"></video></div>`))
	assert.Equal(t, models.PostTypeVideo, video.PostType)
	assert.Equal(t, []string{"https://dms.licdn.com/playlist/vid/cover"}, video.MediaURLs)
}

func TestUnitKey(t *testing.T) {
	root, err := Root(followingUnit)
	require.NoError(t, err)
	assert.Equal(t, "urn:li:activity:7201", UnitKey(root, followingUnit))

	html := `<div class="feed-shared-update-v2"><p>no urn</p></div>`
	root, err = Root(html)
	require.NoError(t, err)
	key := UnitKey(root, html)
	assert.Regexp(t, `^sha256:[0-9a-f]{24}$`, key)
	assert.Equal(t, key, UnitKey(root, html))

	nested := `<div><div data-urn="urn:li:activity:42"></div></div>`
	root, err = Root(nested)
	require.NoError(t, err)
	assert.Equal(t, "urn:li:activity:42", UnitKey(root, nested))
}
