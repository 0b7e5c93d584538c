package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"finitefield.org/page-spark/internal/pagespark/apiclient"
)

func sortedKeys[M ~map[string]V, V any](m M) []string {
	return slices.Sorted(maps.Keys(m))
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

// when renders a backend timestamp relative to now, or verbatim when unparseable.
func when(value string) string {
	if t, ok := apiclient.ParseTimestamp(value); ok {
		return humanize.RelTime(t, time.Now(), "ago", "from now")
	}
	if value == "" {
		return "-"
	}
	return value
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printGenerated(out io.Writer, resp *apiclient.GeneratePageResponse) {
	fmt.Fprintln(out, "Page generated successfully!")
	fmt.Fprintf(out, "Live URL: %s\n", resp.LiveURL)
	if resp.PageID != "" {
		fmt.Fprintf(out, "Page ID:  %s\n", resp.PageID)
	}
}
