// Package report renders the final fixed-format results block: one
// right-aligned millisecond figure per operation, in run order, then a
// separator and the total.
package report

import (
	"fmt"
	"io"
	"strings"

	"sqlitebench/runner"
)

const (
	labelWidth = 17
	separator  = "─────────────────────────"
)

// Total sums the core operation timings. Extra workloads never count toward
// the total; they are appended to the report as standalone figures so the
// six-operation total stays comparable across harnesses that skip them.
func Total(core []runner.Result) int64 {
	var total int64
	for _, r := range core {
		total += r.ElapsedMs
	}
	return total
}

// Print writes the results block. core rows appear first, extra rows after
// them, and the printed total covers core only.
func Print(w io.Writer, core, extra []runner.Result) error {
	if len(core) == 0 && len(extra) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Results ===")
	for _, r := range append(append([]runner.Result{}, core...), extra...) {
		printRow(w, r.Label, r.ElapsedMs)
	}
	fmt.Fprintln(w, separator)
	printRow(w, "Total Time", Total(core))

	return nil
}

func printRow(w io.Writer, label string, ms int64) {
	fmt.Fprintf(w, "%s%8dms\n", pad(label+":"), ms)
}

func pad(label string) string {
	if len(label) >= labelWidth {
		return label
	}
	return label + strings.Repeat(" ", labelWidth-len(label))
}
