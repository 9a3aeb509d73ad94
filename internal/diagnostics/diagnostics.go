// Package diagnostics collects per-worker timing and volume counters and
// turns the gathered counters of all workers into a report.
package diagnostics

import (
	"slices"
	"strings"
	"time"
)

// Phase names timed by the engine.
const (
	PhaseOpenInputs    = "open inputs"
	PhaseClassify      = "classify"
	PhaseDistribute    = "distribute"
	PhaseWriteMetadata = "write metadata"
	PhaseWriteSeries   = "write series"
	PhaseTotal         = "total"
)

// Phases lists the phases in report order.
var Phases = []string{
	PhaseOpenInputs,
	PhaseClassify,
	PhaseDistribute,
	PhaseWriteMetadata,
	PhaseWriteSeries,
	PhaseTotal,
}

// Status is the outcome of one output file.
type Status string

const (
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// FileStat describes one attempted output file.
type FileStat struct {
	Variable string
	Path     string
	Worker   int
	Status   Status
	Elapsed  time.Duration
	Bytes    int64
	Records  int
	Err      error
}

// Collector accumulates the counters of one worker. It is not safe for
// concurrent use; each worker owns its own.
type Collector struct {
	worker int
	now    func() time.Time
	timers map[string]time.Duration
	files  []FileStat
}

// NewCollector returns an empty collector for the given worker.
func NewCollector(worker int) *Collector {
	return &Collector{worker: worker, now: time.Now, timers: map[string]time.Duration{}}
}

// Start begins timing a phase. The returned function stops it; repeated
// runs of the same phase add up.
func (c *Collector) Start(phase string) func() {
	begin := c.now()
	return func() {
		c.timers[phase] += c.now().Sub(begin)
	}
}

// Record stores the outcome of one output file.
func (c *Collector) Record(fs FileStat) {
	fs.Worker = c.worker
	c.files = append(c.files, fs)
}

// Snapshot is the immutable state of a collector, exchanged at the final
// collective point.
type Snapshot struct {
	Worker int
	Timers map[string]time.Duration
	Files  []FileStat
}

// Snapshot copies the collector's current counters.
func (c *Collector) Snapshot() *Snapshot {
	timers := make(map[string]time.Duration, len(c.timers))
	for k, v := range c.timers {
		timers[k] = v
	}
	return &Snapshot{Worker: c.worker, Timers: timers, Files: slices.Clone(c.files)}
}

// Timer is the slowest worker's time for one phase.
type Timer struct {
	Phase string
	Max   time.Duration
}

// Report aggregates the snapshots of every worker.
type Report struct {
	Workers int
	Timers  []Timer
	Files   []FileStat
	Bytes   int64
	Records int
}

// Merge aggregates snapshots. Files are ordered by variable name, timers
// keep the slowest worker's value. Nil snapshots are skipped.
func Merge(snaps ...*Snapshot) *Report {
	r := &Report{}
	maxima := map[string]time.Duration{}
	for _, s := range snaps {
		if s == nil {
			continue
		}
		r.Workers++
		for phase, d := range s.Timers {
			maxima[phase] = max(maxima[phase], d)
		}
		for _, f := range s.Files {
			r.Files = append(r.Files, f)
			r.Bytes += f.Bytes
			r.Records += f.Records
		}
	}
	slices.SortStableFunc(r.Files, func(a, b FileStat) int {
		return strings.Compare(a.Variable, b.Variable)
	})
	for _, phase := range Phases {
		if d, ok := maxima[phase]; ok {
			r.Timers = append(r.Timers, Timer{Phase: phase, Max: d})
			delete(maxima, phase)
		}
	}
	extra := make([]string, 0, len(maxima))
	for phase := range maxima {
		extra = append(extra, phase)
	}
	slices.Sort(extra)
	for _, phase := range extra {
		r.Timers = append(r.Timers, Timer{Phase: phase, Max: maxima[phase]})
	}
	return r
}

// Failed lists the outputs that did not complete.
func (r *Report) Failed() []FileStat {
	var out []FileStat
	for _, f := range r.Files {
		if f.Status != StatusComplete {
			out = append(out, f)
		}
	}
	return out
}

// Timer returns the aggregated time of a phase.
func (r *Report) Timer(phase string) (time.Duration, bool) {
	for _, t := range r.Timers {
		if t.Phase == phase {
			return t.Max, true
		}
	}
	return 0, false
}
