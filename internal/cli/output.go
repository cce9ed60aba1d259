// # Naming Conventions
//
// Functions in this package follow consistent naming patterns based on their behavior:
//
//   - Display* functions write formatted output to an [io.Writer].
//     Examples: [DisplayResults], [DisplaySeriesInfo].
//
//   - Format* functions return a formatted string without performing I/O.
//     Examples: [FormatExecutionDuration].

package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/lumenlab/holofit/internal/fit"
)

// DisplayResults writes the per-frame fit results as an aligned table:
// one row per frame, one column per fitted parameter (sorted by name),
// followed by chi-squared, convergence and fit time.
func DisplayResults(out io.Writer, results []*fit.Result) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No frames fitted.")
		return
	}

	// Collect the union of parameter names so sparse results still line up.
	nameSet := make(map[string]struct{})
	for _, r := range results {
		for name := range r.Parameters {
			nameSet[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "FRAME")
	for _, name := range names {
		fmt.Fprintf(w, "\t%s", name)
	}
	fmt.Fprint(w, "\tCHISQ\tCONVERGED\tTIME\n")

	for _, r := range results {
		fmt.Fprintf(w, "%d", r.Frame)
		for _, name := range names {
			if v, ok := r.Parameters[name]; ok {
				fmt.Fprintf(w, "\t%.6g", v)
			} else {
				fmt.Fprint(w, "\t-")
			}
		}
		fmt.Fprintf(w, "\t%.6g\t%t\t%s\n",
			r.Chisq, r.Converged,
			FormatExecutionDuration(time.Duration(r.FitTime*float64(time.Second))))
	}
	w.Flush()
}

// DisplaySeriesInfo writes a short summary of a resolved series: frame count,
// frame shape, and the run configuration that matters for fitting.
func DisplaySeriesInfo(out io.Writer, frames, width, height int, spacing float64) {
	fmt.Fprintf(out, "Series: %d frame(s), %dx%d px, spacing %g\n",
		frames, width, height, spacing)
}

// DisplayQuietSummary writes the one-line form used with -quiet: frame count
// and total wall time only.
func DisplayQuietSummary(out io.Writer, fitted int, elapsed time.Duration) {
	fmt.Fprintf(out, "%d frame(s) fitted in %s\n", fitted, FormatExecutionDuration(elapsed))
}
