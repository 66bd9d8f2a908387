package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/meigma/rex/fetch"
	"github.com/meigma/rex/internal/format"
	"github.com/meigma/rex/reference"
)

// qualifyReference resolves an unqualified reference against the
// configured registry instead of the Docker Hub default.
func qualifyReference(refStr string) string {
	if appConfig.Registry == "" || appConfig.Registry == reference.DefaultRegistry {
		return refStr
	}
	ref, err := reference.Parse(refStr)
	if err != nil {
		return refStr
	}
	if ref.Registry() != reference.DefaultRegistry {
		return refStr
	}
	if strings.HasPrefix(refStr, reference.DefaultRegistry+"/") {
		return refStr
	}
	return appConfig.Registry + "/" + refStr
}

// jsonOutput reports whether the active output format is JSON.
func jsonOutput() bool {
	return appConfig.Output == "json"
}

// writeJSON renders v as indented JSON to w.
func writeJSON(w io.Writer, v any) error {
	return format.JSON(w, v)
}

// writeTable renders a tabwriter table to w.
func writeTable(w io.Writer, headers []string, rows [][]string) error {
	return format.Table(w, headers, rows)
}

// reportFailures prints per-item failures to stderr and returns a
// non-nil error when any occurred, so the process exits non-zero
// while successful results still reach stdout.
func reportFailures(errW io.Writer, failures []fetch.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	for _, f := range failures {
		fmt.Fprintf(errW, "warning: %s\n", f.String())
	}
	return fmt.Errorf("%d fetch(es) failed", len(failures))
}
