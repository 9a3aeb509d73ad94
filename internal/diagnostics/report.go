package diagnostics

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// Write prints the report. Verbosity 0 prints nothing, 1 prints the summary
// and one row per output file, 2 and above add the phase timers.
func (r *Report) Write(w io.Writer, verbosity int) error {
	if verbosity <= 0 {
		return nil
	}
	failed := len(r.Failed())
	if _, err := fmt.Fprintf(w, "Converted %d of %d outputs with %d workers: %s, %s records.\n",
		len(r.Files)-failed, len(r.Files), r.Workers,
		humanize.Bytes(uint64(max(r.Bytes, 0))), humanize.Comma(int64(r.Records))); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(r.Files) > 0 {
		fmt.Fprintln(tw, "VARIABLE\tSTATUS\tWORKER\tRECORDS\tSIZE\tTIME\tPATH\tERROR")
		for _, f := range r.Files {
			errText := ""
			if f.Err != nil {
				errText = f.Err.Error()
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
				f.Variable, f.Status, f.Worker, f.Records,
				humanize.Bytes(uint64(max(f.Bytes, 0))), round(f.Elapsed), f.Path, errText)
		}
	}
	if verbosity >= 2 && len(r.Timers) > 0 {
		if len(r.Files) > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintln(tw, "PHASE\tSLOWEST WORKER")
		for _, t := range r.Timers {
			fmt.Fprintf(tw, "%s\t%s\n", t.Phase, round(t.Max))
		}
	}
	return tw.Flush()
}

func round(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(time.Microsecond)
	}
	return d
}
