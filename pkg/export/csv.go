package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"postscraper/pkg/models"
)

// ListSeparator joins list fields inside one CSV cell. A separator or
// backslash inside an item is escaped with a backslash.
const ListSeparator = "|"

var listEscaper = strings.NewReplacer(`\`, `\\`, ListSeparator, `\`+ListSeparator)

// Columns is the CSV header. Names match the JSON keys.
var Columns = []string{
	"id",
	"content_text",
	"author_name",
	"author_first_name",
	"author_last_name",
	"author_title",
	"author_company",
	"author_profile_url",
	"post_url",
	"posted_at_raw",
	"posted_at",
	"relative_time",
	"likes",
	"comments",
	"shares",
	"hashtags",
	"mentions",
	"links",
	"media_urls",
	"post_type",
	"source_target",
	"source_mode",
	"source_profile_url",
	"scrape_method",
	"scraped_at",
	"missing_fields",
	"enrichment",
}

// CSVExporter writes one row per record. Nulls are empty cells, list fields
// are joined with ListSeparator and enrichment is a compact JSON object.
type CSVExporter struct{}

func (CSVExporter) Format() Format { return FormatCSV }

func (CSVExporter) Export(w io.Writer, records []*models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row, err := csvRow(r)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r *models.Record) ([]string, error) {
	enrichment := ""
	if r.Enrichment != nil {
		b, err := json.Marshal(r.Enrichment)
		if err != nil {
			return nil, err
		}
		enrichment = string(b)
	}
	return []string{
		r.ID,
		r.ContentText,
		r.AuthorName,
		r.AuthorFirstName,
		r.AuthorLastName,
		models.Deref(r.AuthorTitle),
		models.Deref(r.AuthorCompany),
		models.Deref(r.AuthorProfileURL),
		models.Deref(r.PostURL),
		models.Deref(r.PostedAtRaw),
		models.Deref(r.PostedAt),
		models.Deref(r.RelativeTime),
		formatInt(r.Likes),
		formatInt(r.Comments),
		formatInt(r.Shares),
		joinList(r.Hashtags),
		joinList(r.Mentions),
		joinList(r.Links),
		joinList(r.MediaURLs),
		string(r.PostType),
		r.SourceTarget,
		string(r.SourceMode),
		models.Deref(r.SourceProfileURL),
		r.ScrapeMethod,
		r.ScrapedAt.UTC().Format(time.RFC3339Nano),
		joinList(r.MissingFields),
		enrichment,
	}, nil
}

// ReadCSV parses a file written by CSVExporter. Columns are matched by header
// name, so column order may differ.
func ReadCSV(r io.Reader) ([]*models.Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	var out []*models.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		rec, err := parseRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

func parseRow(row []string, index map[string]int) (*models.Record, error) {
	get := func(col string) string {
		if i, ok := index[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	rec := &models.Record{
		ID:               get("id"),
		ContentText:      get("content_text"),
		AuthorName:       get("author_name"),
		AuthorFirstName:  get("author_first_name"),
		AuthorLastName:   get("author_last_name"),
		AuthorTitle:      models.StringPtr(get("author_title")),
		AuthorCompany:    models.StringPtr(get("author_company")),
		AuthorProfileURL: models.StringPtr(get("author_profile_url")),
		PostURL:          models.StringPtr(get("post_url")),
		PostedAtRaw:      models.StringPtr(get("posted_at_raw")),
		PostedAt:         models.StringPtr(get("posted_at")),
		RelativeTime:     models.StringPtr(get("relative_time")),
		Hashtags:         splitList(get("hashtags")),
		Mentions:         splitList(get("mentions")),
		Links:            splitList(get("links")),
		MediaURLs:        splitList(get("media_urls")),
		PostType:         models.PostType(get("post_type")),
		SourceTarget:     get("source_target"),
		SourceMode:       models.Mode(get("source_mode")),
		SourceProfileURL: models.StringPtr(get("source_profile_url")),
		ScrapeMethod:     get("scrape_method"),
		MissingFields:    splitList(get("missing_fields")),
	}

	var err error
	for _, c := range []struct {
		col string
		dst **int
	}{
		{"likes", &rec.Likes},
		{"comments", &rec.Comments},
		{"shares", &rec.Shares},
	} {
		if *c.dst, err = parseInt(get(c.col)); err != nil {
			return nil, fmt.Errorf("%s: %w", c.col, err)
		}
	}

	if v := get("scraped_at"); v != "" {
		if rec.ScrapedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("scraped_at: %w", err)
		}
	}
	if v := get("enrichment"); v != "" {
		rec.Enrichment = &models.Enrichment{}
		if err := json.Unmarshal([]byte(v), rec.Enrichment); err != nil {
			return nil, fmt.Errorf("enrichment: %w", err)
		}
	}
	return rec, nil
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func parseInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func joinList(items []string) string {
	escaped := make([]string, len(items))
	for i, item := range items {
		escaped[i] = listEscaper.Replace(item)
	}
	return strings.Join(escaped, ListSeparator)
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	var (
		out  []string
		item strings.Builder
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			item.WriteByte(s[i])
		case c == ListSeparator[0]:
			out = append(out, item.String())
			item.Reset()
		default:
			item.WriteByte(c)
		}
	}
	return append(out, item.String())
}
