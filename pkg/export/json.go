package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"postscraper/pkg/models"
)

// JSONExporter writes all records as one JSON array.
type JSONExporter struct {
	Indent string
}

func (JSONExporter) Format() Format { return FormatJSON }

func (e JSONExporter) Export(w io.Writer, records []*models.Record) error {
	if records == nil {
		records = []*models.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if e.Indent != "" {
		enc.SetIndent("", e.Indent)
	}
	return enc.Encode(records)
}

// ReadJSON parses a file written by JSONExporter.
func ReadJSON(r io.Reader) ([]*models.Record, error) {
	var out []*models.Record
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return out, nil
}

// JSONLExporter writes one JSON object per line.
type JSONLExporter struct{}

func (JSONLExporter) Format() Format { return FormatJSONL }

func (JSONLExporter) Export(w io.Writer, records []*models.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
	}
	return nil
}

// ReadJSONL parses a file written by JSONLExporter. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]*models.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var out []*models.Record
	for line := 1; sc.Scan(); line++ {
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec models.Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, &rec)
	}
	return out, sc.Err()
}
