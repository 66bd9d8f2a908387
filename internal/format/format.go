// Package format renders fetch results for terminal and JSON output.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/meigma/rex/digest"
)

// Bytes renders a byte count in human form ("12 MB").
func Bytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

// Age renders a timestamp as a relative age ("3 days ago"), or "-"
// when unknown.
func Age(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.Time(*t)
}

// ShortDigest renders a digest as its first 12 hex characters.
func ShortDigest(d digest.Digest) string {
	if d.IsZero() {
		return "-"
	}
	hex := d.Hex()
	if len(hex) > 12 {
		hex = hex[:12]
	}
	return hex
}

// Platforms joins platform strings for table display.
func Platforms(platforms []string) string {
	if len(platforms) == 0 {
		return "-"
	}
	return strings.Join(platforms, ",")
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes rows as a tab-aligned table with a header line.
func Table(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
