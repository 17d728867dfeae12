// Package runner executes benchmark operations strictly sequentially and
// times each one. Timing uses the monotonic clock and is truncated to whole
// milliseconds so figures are comparable across harness implementations.
package runner

import (
	"fmt"
	"io"
	"time"

	zlog "github.com/rs/zerolog/log"

	"sqlitebench/benchmark"
)

// Result is one timed operation.
type Result struct {
	Name      string
	Label     string
	ElapsedMs int64
	Note      string
}

// Runner prints numbered progress lines to out while it works. The numbering
// continues across Run calls, so a workload appended after the core suite
// picks up where the suite left off.
type Runner struct {
	out   io.Writer
	index int
}

func New(out io.Writer) *Runner {
	return &Runner{out: out}
}

// Run executes ops in order. The measurement window for an operation spans
// exactly its Run call: the first statement through the final commit. Any
// failure stops the run; partial results are discarded (the figures are only
// meaningful for a completed workload).
func (r *Runner) Run(ops []benchmark.Operation) ([]Result, error) {
	results := make([]Result, 0, len(ops))

	for _, op := range ops {
		r.index++
		if op.Detail != "" {
			fmt.Fprintf(r.out, "%d. %s (%s)... ", r.index, op.Label, op.Detail)
		} else {
			fmt.Fprintf(r.out, "%d. %s... ", r.index, op.Label)
		}

		start := time.Now()
		note, err := op.Run()
		elapsed := time.Since(start).Milliseconds()

		if err != nil {
			fmt.Fprintln(r.out, "failed")
			return nil, fmt.Errorf("operation %s: %w", op.Name, err)
		}

		fmt.Fprintf(r.out, "%dms\n", elapsed)
		if note != "" {
			fmt.Fprintf(r.out, "  → %s\n", note)
		}

		zlog.Debug().Str("operation", op.Name).Int64("ms", elapsed).Msg("operation done")

		results = append(results, Result{
			Name:      op.Name,
			Label:     op.Label,
			ElapsedMs: elapsed,
			Note:      note,
		})
	}

	return results, nil
}
