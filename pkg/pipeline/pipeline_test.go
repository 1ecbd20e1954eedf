package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postscraper/pkg/enrich"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/retry"
)

func rec(text, author, postURL string) *models.Record {
	return &models.Record{
		ContentText: text,
		AuthorName:  author,
		PostURL:     models.StringPtr(postURL),
		PostedAt:    models.StringPtr("2024-06-13T12:00:00Z"),
	}
}

func TestAddDeduplicatesByPostURL(t *testing.T) {
	p := New(Options{MinContentLength: 5})

	first, ok := p.Add(context.Background(), rec("First version of the post", "Jane Doe", "https://www.linkedin.com/feed/update/urn:li:activity:1/"))
	require.True(t, ok)
	_, ok = p.Add(context.Background(), rec("Edited version of the post", "Jane Doe", "https://www.linkedin.com/feed/update/urn:li:activity:1/"))
	assert.False(t, ok)

	records := p.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "First version of the post", records[0].ContentText, "first seen wins")
	assert.Equal(t, first.ID, records[0].ID)
	assert.Len(t, first.ID, 16)
	assert.Equal(t, Stats{Seen: 2, Accepted: 1, Deduped: 1}, p.Stats())
}

func TestAddDeduplicatesByContentHash(t *testing.T) {
	p := New(Options{})

	_, ok := p.Add(context.Background(), rec("Hello   World from the feed", "Jane Doe", ""))
	require.True(t, ok)
	_, ok = p.Add(context.Background(), rec("hello world FROM the feed", "Jane Doe", ""))
	assert.False(t, ok, "text is compared case and whitespace insensitively")
	_, ok = p.Add(context.Background(), rec("hello world from the feed", "John Smith", ""))
	assert.True(t, ok, "a different author is a different record")

	assert.Equal(t, 1, p.Stats().Deduped)
}

func TestAddDropsShortContent(t *testing.T) {
	p := New(Options{MinContentLength: 10})

	_, ok := p.Add(context.Background(), rec("   short   ", "Jane", "https://www.linkedin.com/posts/a"))
	assert.False(t, ok)
	assert.Equal(t, 1, p.Stats().Dropped)
	assert.Empty(t, p.Records())
}

func TestClean(t *testing.T) {
	in := &models.Record{
		ContentText: "  body text  ",
		AuthorName:  " Jane Doe ",
		AuthorTitle: models.StringPtr("   "),
		PostedAt:    models.StringPtr("2 days ago"),
		Likes:       models.IntPtr(-3),
		Comments:    models.IntPtr(0),
		Shares:      nil,
	}
	out := Clean(in)

	assert.Equal(t, "body text", out.ContentText)
	assert.Equal(t, "Jane Doe", out.AuthorName)
	assert.Nil(t, out.AuthorTitle)
	assert.Nil(t, out.PostedAt, "non ISO timestamps are nulled")
	assert.Nil(t, out.Likes)
	require.NotNil(t, out.Comments)
	assert.Equal(t, 0, *out.Comments)
	assert.Nil(t, out.Shares)
	assert.NotNil(t, out.Hashtags)
	assert.NotNil(t, out.MissingFields)

	assert.Equal(t, "  body text  ", in.ContentText, "input is not modified")
	assert.Equal(t, -3, *in.Likes)
}

func TestKey(t *testing.T) {
	withURL := rec("x", "a", "https://www.linkedin.com/posts/abc")
	assert.Equal(t, "https://www.linkedin.com/posts/abc", Key(withURL))

	a := Key(rec("Some  Text", "Jane", ""))
	b := Key(rec("some text", "Jane", ""))
	c := Key(&models.Record{ContentText: "some text", AuthorName: "Jane"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "timestamp is part of the hash")
	assert.Len(t, ID(a), 16)
}

func TestEnrichment(t *testing.T) {
	lookup := enrich.LookupFunc(func(ctx context.Context, r *models.Record) (*models.Enrichment, error) {
		if r.AuthorName == "Broken" {
			return nil, errors.New("lookup down")
		}
		return &models.Enrichment{Email: "jane@acme.example", Confidence: 0.9}, nil
	})
	log := logger.NewTestLogger()
	p := New(Options{Enricher: lookup, Logger: log})

	r1, _ := p.Add(context.Background(), rec("post by jane", "Jane Doe", "https://www.linkedin.com/posts/1"))
	r2, _ := p.Add(context.Background(), rec("post by broken", "Broken", "https://www.linkedin.com/posts/2"))

	require.NotNil(t, r1.Enrichment)
	assert.Equal(t, "jane@acme.example", r1.Enrichment.Email)
	assert.Nil(t, r2.Enrichment)
	assert.Equal(t, "post by broken", r2.ContentText)

	assert.Equal(t, 2, p.Stats().Accepted)
	assert.Equal(t, 1, p.Stats().EnrichmentFailures)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
}

func TestEnrichmentRetriesTransientFailure(t *testing.T) {
	var calls int
	lookup := enrich.LookupFunc(func(ctx context.Context, r *models.Record) (*models.Enrichment, error) {
		calls++
		if calls == 1 {
			return nil, errs.New(errs.KindTransientNetwork, "enrichment returned 503 Service Unavailable")
		}
		return &models.Enrichment{Email: "jane@acme.example", Confidence: 0.8}, nil
	})
	p := New(Options{
		Enricher:   lookup,
		Controller: retry.NewController(&retry.Config{MaxAttempts: 3}),
	})

	r, ok := p.Add(context.Background(), rec("post by jane", "Jane Doe", "https://www.linkedin.com/posts/1"))
	require.True(t, ok)
	require.NotNil(t, r.Enrichment)
	assert.Equal(t, "jane@acme.example", r.Enrichment.Email)
	assert.Equal(t, 2, calls)
	assert.Zero(t, p.Stats().EnrichmentFailures)
}

func TestEnrichmentGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int
	lookup := enrich.LookupFunc(func(ctx context.Context, r *models.Record) (*models.Enrichment, error) {
		calls++
		return nil, errs.New(errs.KindTransientNetwork, "connection refused")
	})
	p := New(Options{
		Enricher:   lookup,
		Controller: retry.NewController(&retry.Config{MaxAttempts: 2}),
	})

	r, ok := p.Add(context.Background(), rec("post by jane", "Jane Doe", "https://www.linkedin.com/posts/1"))
	require.True(t, ok, "a failed lookup keeps the record")
	assert.Nil(t, r.Enrichment)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, p.Stats().EnrichmentFailures)
}

func TestProcess(t *testing.T) {
	p := New(Options{MinContentLength: 3})
	in := []*models.Record{
		rec("first post", "A", "https://www.linkedin.com/posts/1"),
		rec("no", "B", "https://www.linkedin.com/posts/2"),
		rec("dup post", "A", "https://www.linkedin.com/posts/1"),
		rec("third post", "C", "https://www.linkedin.com/posts/3"),
	}

	var got []string
	for r := range p.Process(context.Background(), slices.Values(in)) {
		got = append(got, r.ContentText)
	}
	assert.Equal(t, []string{"first post", "third post"}, got)
}

func TestConcurrentAddKeepsKeysUnique(t *testing.T) {
	p := New(Options{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				p.Add(context.Background(), rec(fmt.Sprintf("post %d", i), "Jane", fmt.Sprintf("https://www.linkedin.com/posts/%d", i)))
			}
		}()
	}
	wg.Wait()

	records := p.Records()
	assert.Len(t, records, 50)
	keys := make(map[string]bool)
	for _, r := range records {
		assert.False(t, keys[Key(r)])
		keys[Key(r)] = true
	}
	assert.Equal(t, Stats{Seen: 200, Accepted: 50, Deduped: 150}, p.Stats())
}

func TestSeed(t *testing.T) {
	p := New(Options{})
	prev := []*models.Record{
		rec("kept from last run", "Jane", "https://www.linkedin.com/posts/1"),
		rec("kept from last run", "Jane", "https://www.linkedin.com/posts/1"),
	}

	assert.Equal(t, 1, p.Seed(prev))
	_, ok := p.Add(context.Background(), rec("scraped again", "Jane", "https://www.linkedin.com/posts/1"))
	assert.False(t, ok)

	assert.Len(t, p.Records(), 1)
	assert.Equal(t, Stats{Seeded: 1, Seen: 1, Deduped: 1}, p.Stats())
}
