package nse

import "testing"

func TestPartitionOrdersByRunlevel(t *testing.T) {
	tasks := []*Task{
		{ID: 1, Runlevel: 2},
		{ID: 2, Runlevel: 1},
		{ID: 3, Runlevel: 2},
		{ID: 4, Runlevel: 3},
	}

	buckets := Partition(tasks)
	if len(buckets) != 3 {
		t.Fatalf("expected 3 runlevel buckets, got %d", len(buckets))
	}
	if buckets[0][0].Runlevel != 1 || buckets[1][0].Runlevel != 2 || buckets[2][0].Runlevel != 3 {
		t.Fatalf("buckets are not in ascending runlevel order: %+v", buckets)
	}
	if len(buckets[1]) != 2 {
		t.Fatalf("expected 2 tasks at runlevel 2, got %d", len(buckets[1]))
	}
}

func TestPartitionEmpty(t *testing.T) {
	if buckets := Partition(nil); len(buckets) != 0 {
		t.Fatalf("expected no buckets for an empty task list, got %d", len(buckets))
	}
}

func TestPartitionSingleRunlevel(t *testing.T) {
	tasks := []*Task{{ID: 1, Runlevel: 5}, {ID: 2, Runlevel: 5}}
	buckets := Partition(tasks)
	if len(buckets) != 1 || len(buckets[0]) != 2 {
		t.Fatalf("expected a single bucket of 2 tasks, got %+v", buckets)
	}
}
