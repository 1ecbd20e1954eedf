package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postscraper/pkg/config"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/storage"
)

func sampleRecords() []*models.Record {
	scraped := time.Date(2024, 6, 15, 12, 30, 45, 123000000, time.UTC)
	return []*models.Record{
		{
			ID:               "a1b2c3d4e5f60718",
			ContentText:      "Check out #AI and #MachineLearning with @DataConf\nSee you there, \"friends\", ok?",
			AuthorName:       "Jane Doe",
			AuthorFirstName:  "Jane",
			AuthorLastName:   "Doe",
			AuthorTitle:      models.StringPtr("Head of Data"),
			AuthorCompany:    models.StringPtr("Acme Corp"),
			AuthorProfileURL: models.StringPtr("https://www.linkedin.com/in/janedoe"),
			PostURL:          models.StringPtr("https://www.linkedin.com/feed/update/urn:li:activity:1/"),
			PostedAtRaw:      models.StringPtr("2d"),
			PostedAt:         models.StringPtr("2024-06-13T12:30:45Z"),
			RelativeTime:     models.StringPtr("2d"),
			Likes:            models.IntPtr(1234),
			Comments:         models.IntPtr(0),
			Shares:           models.IntPtr(3),
			Hashtags:         []string{"AI", "MachineLearning"},
			Mentions:         []string{"DataConf"},
			Links:            []string{"https://example.com/a?b=1"},
			MediaURLs:        []string{"https://media.licdn.com/dms/image/abc/feedshare.jpg"},
			PostType:         models.PostTypeImage,
			SourceTarget:     "https://www.linkedin.com/search/results/content/?keywords=ai",
			SourceMode:       models.ModeSearch,
			ScrapeMethod:     "browser",
			ScrapedAt:        scraped,
			MissingFields:    []string{},
			Enrichment:       &models.Enrichment{Email: "jane@acme.example", Confidence: 0.75, Provider: "http"},
		},
		{
			ID:               "0f0e0d0c0b0a0908",
			ContentText:      "A plain text post, with commas",
			AuthorName:       "John",
			AuthorFirstName:  "John",
			SourceProfileURL: models.StringPtr("https://www.linkedin.com/in/john"),
			Hashtags:         []string{},
			Mentions:         []string{},
			Links:            []string{},
			MediaURLs:        []string{},
			PostType:         models.PostTypeText,
			SourceTarget:     "https://www.linkedin.com/in/john/recent-activity/all/",
			SourceMode:       models.ModeProfile,
			ScrapeMethod:     "browser",
			ScrapedAt:        scraped,
			MissingFields:    []string{"author_title", "likes", "comments", "shares"},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatCSV, FormatJSON, FormatJSONL} {
		t.Run(string(f), func(t *testing.T) {
			exp, err := ForFormat(f)
			require.NoError(t, err)
			assert.Equal(t, f, exp.Format())

			var buf bytes.Buffer
			require.NoError(t, exp.Export(&buf, sampleRecords()))

			got, err := Read(f, &buf)
			require.NoError(t, err)
			if diff := cmp.Diff(sampleRecords(), got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCSVHeaderMatchesJSONKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONLExporter{}.Export(&buf, sampleRecords()[:1]))
	line := buf.String()
	for _, col := range Columns {
		assert.Contains(t, line, `"`+col+`":`)
	}
}

func TestCSVCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSVExporter{}.Export(&buf, sampleRecords()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, strings.Join(Columns, ",")+"\n"))
	assert.Contains(t, out, ",AI|MachineLearning,DataConf,")
	assert.Contains(t, out, `"{""email"":""jane@acme.example""`)
}

func TestCSVListCellsKeepSeparatorInItems(t *testing.T) {
	rec := sampleRecords()[0]
	rec.Links = []string{"https://example.com/a?tags=x|y", `https://example.com/dir\file`, "https://example.com/c"}
	rec.Hashtags = []string{"AI"}

	var buf bytes.Buffer
	require.NoError(t, CSVExporter{}.Export(&buf, []*models.Record{rec}))
	assert.Contains(t, buf.String(), `https://example.com/a?tags=x\|y|https://example.com/dir\\file|https://example.com/c`)

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.Links, got[0].Links)
	assert.Equal(t, []string{"AI"}, got[0].Hashtags)
}

func TestEmptyExports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONExporter{}.Export(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())

	got, err := ReadCSV(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadCSVRejectsBadCount(t *testing.T) {
	in := "id,likes\nabc,lots\n"
	_, err := ReadCSV(strings.NewReader(in))
	assert.ErrorContains(t, err, "line 2")
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats([]string{"CSV", " json", "csv", "jsonl"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatCSV, FormatJSON, FormatJSONL}, got)

	_, err = ParseFormats([]string{"xml"})
	assert.True(t, errs.IsKind(err, errs.KindConfig))
}

func newWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewManager(dir)
	require.NoError(t, err)
	cfg := config.DefaultConfig().Output
	return NewWriter(store, cfg, logger.NewNopLogger()), dir
}

func TestWriterExportAll(t *testing.T) {
	w, dir := newWriter(t)

	paths, err := w.ExportAll([]Format{FormatCSV, FormatJSON, FormatJSONL}, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "posts.csv"),
		filepath.Join(dir, "posts.json"),
		filepath.Join(dir, "posts.jsonl"),
	}, paths)

	f, err := os.Open(filepath.Join(dir, "posts.json"))
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadJSON(f)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestWriterExportAllContinuesPastFailure(t *testing.T) {
	w, dir := newWriter(t)
	// a directory where the JSON file should go makes the final rename fail
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "posts.json", "blocker"), 0755))

	paths, err := w.ExportAll([]Format{FormatJSON, FormatCSV}, sampleRecords())
	require.Error(t, err)
	assert.Equal(t, errs.KindExportError, errs.KindOf(err))
	assert.Equal(t, []string{filepath.Join(dir, "posts.csv")}, paths)

	_, statErr := os.Stat(filepath.Join(dir, "posts.csv"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(dir, "posts.json.tmp"))
	assert.True(t, os.IsNotExist(statErr))
}
