package nse

import "sort"

// Partition groups tasks by Runlevel and returns the buckets in ascending
// runlevel order (§4.4 "Runlevel Partitioner"). Construction order within
// a bucket is preserved, since Go's sort here only orders the levels
// themselves, never the tasks inside one.
func Partition(tasks []*Task) [][]*Task {
	byLevel := make(map[int][]*Task)
	for _, t := range tasks {
		byLevel[t.Runlevel] = append(byLevel[t.Runlevel], t)
	}

	levels := make([]int, 0, len(byLevel))
	for lvl := range byLevel {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)

	buckets := make([][]*Task, len(levels))
	for i, lvl := range levels {
		buckets[i] = byLevel[lvl]
	}
	return buckets
}
