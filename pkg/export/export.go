// Package export writes run records as CSV, JSON or JSON Lines. Every format
// uses the same field names, and each can be read back with its Read function.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"postscraper/pkg/config"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/storage"
)

// Format is an export format name.
type Format string

const (
	FormatCSV   Format = config.FormatCSV
	FormatJSON  Format = config.FormatJSON
	FormatJSONL Format = config.FormatJSONL
)

// Exporter encodes records in one format.
type Exporter interface {
	Format() Format
	Export(w io.Writer, records []*models.Record) error
}

// ForFormat returns the exporter for f.
func ForFormat(f Format) (Exporter, error) {
	switch f {
	case FormatCSV:
		return CSVExporter{}, nil
	case FormatJSON:
		return JSONExporter{Indent: "  "}, nil
	case FormatJSONL:
		return JSONLExporter{}, nil
	default:
		return nil, errs.Newf(errs.KindConfig, "unknown export format %q", f)
	}
}

// Read decodes records written in format f.
func Read(f Format, r io.Reader) ([]*models.Record, error) {
	switch f {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	case FormatJSONL:
		return ReadJSONL(r)
	default:
		return nil, errs.Newf(errs.KindConfig, "unknown export format %q", f)
	}
}

// Writer exports records into the output directory, one file per format.
type Writer struct {
	store     *storage.Manager
	filenames map[Format]string
	logger    logger.Logger
}

// NewWriter creates a writer using the filenames from cfg.
func NewWriter(store *storage.Manager, cfg config.OutputConfig, log logger.Logger) *Writer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{
		store: store,
		filenames: map[Format]string{
			FormatCSV:   cfg.CSVFilename,
			FormatJSON:  cfg.JSONFilename,
			FormatJSONL: cfg.JSONLFilename,
		},
		logger: log,
	}
}

// Filename returns the output file name for f.
func (w *Writer) Filename(f Format) string {
	if name := w.filenames[f]; name != "" {
		return name
	}
	return "posts." + string(f)
}

// Path returns the output path for f.
func (w *Writer) Path(f Format) string {
	return w.store.Path(w.Filename(f))
}

// Export writes records in format f and returns the file path. A failed
// export leaves any previous file in place.
func (w *Writer) Export(f Format, records []*models.Record) (string, error) {
	exp, err := ForFormat(f)
	if err != nil {
		return "", err
	}
	path, err := w.store.Write(w.Filename(f), func(out io.Writer) error {
		return exp.Export(out, records)
	})
	if err != nil {
		return "", errs.Wrap(errs.KindExportError, err, fmt.Sprintf("%s export failed", f)).WithTarget(w.Path(f))
	}
	w.logger.InfoWithFields("Exported records", map[string]interface{}{
		"format":  string(f),
		"path":    path,
		"records": len(records),
	})
	return path, nil
}

// ExportAll writes every format. A failing format does not stop the others;
// the written paths are returned with the failures joined.
func (w *Writer) ExportAll(formats []Format, records []*models.Record) ([]string, error) {
	var paths []string
	var failures []error
	for _, f := range formats {
		path, err := w.Export(f, records)
		if err != nil {
			w.logger.WithError(err).ErrorWithFields("Export failed", map[string]interface{}{"format": string(f)})
			failures = append(failures, err)
			continue
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(failures...)
}

// ParseFormats converts configured format names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool)
	var out []Format
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		if _, err := ForFormat(f); err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}
