package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/c360studio/crucible/verdict"
)

// Format is a batch export format.
type Format string

// Supported batch export formats.
const (
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatJSONL: {
		Name:        FormatJSONL,
		MIMEType:    "application/jsonl",
		Extension:   ".jsonl",
		Description: "One verdict record per line, usable as a bench dataset seed",
	},
	FormatCSV: {
		Name:        FormatCSV,
		MIMEType:    "text/csv",
		Extension:   ".csv",
		Description: "Flat table with redlines joined by semicolons",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// FormatNames lists the registered formats in sorted order.
func FormatNames() []string {
	names := make([]string, 0, len(FormatRegistry))
	for f := range FormatRegistry {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// Record is one evaluated idea in a batch export.
type Record struct {
	Slug     string          `json:"id"`
	IdeaPath string          `json:"idea_path"`
	Mode     string          `json:"mode"`
	Verdict  verdict.Verdict `json:"verdict"`
}

// WriteRecords writes records in the given format.
func WriteRecords(w io.Writer, format Format, records []Record) error {
	switch format {
	case FormatJSONL:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("encode %s: %w", r.Slug, err)
			}
		}
		return nil
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"id", "idea_path", "mode", "decision", "conf_level", "redlines"}); err != nil {
			return err
		}
		for _, r := range records {
			row := []string{
				r.Slug,
				r.IdeaPath,
				r.Mode,
				string(r.Verdict.Decision),
				strconv.FormatFloat(r.Verdict.ConfLevel, 'f', 2, 64),
				strings.Join(r.Verdict.Redlines, ";"),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return fmt.Errorf("unsupported export format %q (want %s)", format, strings.Join(FormatNames(), "|"))
}
