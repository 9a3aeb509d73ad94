package scheduler

import (
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// ErrNoWorkers is returned when the worker count is not positive.
var ErrNoWorkers = errors.New("scheduler: at least one worker is required")

// Item is one schedulable variable.
type Item struct {
	Name string
	// Size is the balancing weight; see Estimate.
	Size int64
}

// Assignment maps every worker to the variables it owns.
type Assignment struct {
	workers [][]string
	loads   []int64
}

// Estimate is the number of elements one record of v holds. The unlimited
// dimension counts as 1, fixed dimensions count their full length. Unknown
// dimensions also count as 1.
func Estimate(s *grid.Schema, v grid.Var) int64 {
	n := int64(1)
	for _, name := range v.Dims {
		d, ok := s.Dim(name)
		if !ok || d.Unlimited {
			continue
		}
		n *= int64(d.Len)
	}
	return n
}

// Items builds schedulable items for the named variables of s, keeping
// their order.
func Items(s *grid.Schema, names []string) ([]Item, error) {
	items := make([]Item, 0, len(names))
	for _, name := range names {
		v, ok := s.Var(name)
		if !ok {
			return nil, fmt.Errorf("scheduler: unknown variable %q", name)
		}
		items = append(items, Item{Name: name, Size: Estimate(s, v)})
	}
	return items, nil
}

// Partition assigns every item to exactly one of the workers. Each worker's
// list keeps the items' original relative order. Workers beyond the number
// of items receive nothing.
func Partition(items []Item, workers int) (Assignment, error) {
	if workers < 1 {
		return Assignment{}, ErrNoWorkers
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.Name] {
			return Assignment{}, fmt.Errorf("scheduler: duplicate item %q", it.Name)
		}
		seen[it.Name] = true
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps the original order among equal sizes.
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case items[a].Size > items[b].Size:
			return -1
		case items[a].Size < items[b].Size:
			return 1
		}
		return 0
	})

	owner := make([]int, len(items))
	loads := make([]int64, workers)
	for _, idx := range order {
		w := leastLoaded(loads)
		owner[idx] = w
		loads[w] += items[idx].Size
	}

	a := Assignment{workers: make([][]string, workers), loads: loads}
	for idx, it := range items {
		a.workers[owner[idx]] = append(a.workers[owner[idx]], it.Name)
	}
	return a, nil
}

func leastLoaded(loads []int64) int {
	best := 0
	for i, l := range loads {
		if l < loads[best] {
			best = i
		}
	}
	return best
}

// Workers is the number of workers the assignment was computed for.
func (a Assignment) Workers() int {
	return len(a.workers)
}

// For returns the variables owned by rank, in original order. Out of range
// ranks own nothing.
func (a Assignment) For(rank int) []string {
	if rank < 0 || rank >= len(a.workers) {
		return nil
	}
	return slices.Clone(a.workers[rank])
}

// Load is the summed size estimate assigned to rank.
func (a Assignment) Load(rank int) int64 {
	if rank < 0 || rank >= len(a.loads) {
		return 0
	}
	return a.loads[rank]
}

// Owner returns the rank that owns name.
func (a Assignment) Owner(name string) (int, bool) {
	for rank, names := range a.workers {
		if slices.Contains(names, name) {
			return rank, true
		}
	}
	return 0, false
}
