// Package cli provides CLI output helpers for the pama command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/pama/internal/cds"
	"github.com/hyperjump/pama/internal/models"
	"github.com/hyperjump/pama/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one "code<TAB>display" line per option.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// maxDisplayLen bounds the display column in text output.
const maxDisplayLen = 72

// SearchResult is one terminology search as printed by the CLI.
type SearchResult struct {
	Kind      string                `json:"kind"`
	Query     string                `json:"query"`
	QueryTime int64                 `json:"query_time_ms"`
	Options   []models.SelectOption `json:"options"`
	// Suggestion is a corrected query offered when nothing matched.
	Suggestion string `json:"suggestion,omitempty"`
}

// ParseFormat validates an output format name.
func ParseFormat(s string) (SearchOutputFormat, error) {
	switch SearchOutputFormat(s) {
	case OutputText, OutputCompact, OutputJSON:
		return SearchOutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes result to w in the given format. Unknown formats fall back to text.
func WriteSearchResults(w io.Writer, result *SearchResult, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		if result.Options == nil {
			result.Options = []models.SelectOption{}
		}
		return WriteJSON(w, result)
	case OutputCompact:
		for _, o := range result.Options {
			fmt.Fprintf(w, "%s\t%s\n", o.Value, o.Label)
		}
		return nil
	default:
		writeSearchResultsText(w, result)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, result *SearchResult) {
	fmt.Fprintf(w, "\nFound %d %s for %q in %dms\n\n", len(result.Options), result.Kind, result.Query, result.QueryTime)
	if len(result.Options) == 0 {
		if result.Suggestion != "" {
			fmt.Fprintf(w, "Did you mean %q?\n\n", result.Suggestion)
		}
		return
	}
	width := 0
	for _, o := range result.Options {
		if len(o.Value) > width {
			width = len(o.Value)
		}
	}
	for i, o := range result.Options {
		fmt.Fprintf(w, "%3d. %-*s  %s\n", i+1, width, o.Value, utils.Truncate(o.Label, maxDisplayLen))
	}
	fmt.Fprintln(w)
}

// WriteContext writes the hook context as indented JSON.
func WriteContext(w io.Writer, hctx cds.HookContext) error {
	return WriteJSON(w, hctx)
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(result *SearchResult) {
	_ = WriteSearchResults(os.Stdout, result, OutputText)
}

// JoinArgs joins positional args with spaces so multi-word queries work with or without
// shell quoting.
func JoinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
