package cluster

import (
	"fmt"
	"math"
)

// Dendrogram is the pointer representation of a single-linkage merge tree:
// parent[i] is the event that i was last merged toward, and height[i] is
// the dissimilarity at which that merge happened. The last event's height
// is +Inf (it never merges upward).
type Dendrogram struct {
	parent []int
	height []float64
}

// SingleLinkage builds the single-linkage dendrogram over the events of m
// using the SLINK recurrence (Sibson 1973): O(n^2) time, O(n) working
// memory, processing events in document order so equal-weight merges
// resolve deterministically toward the lowest original index.
//
// Any NaN or negative dissimilarity is a caller bug (distances are
// non-negative by construction) and is surfaced as an error, never clamped.
func SingleLinkage(m Matrix) (*Dendrogram, error) {
	n := m.Len()
	d := &Dendrogram{
		parent: make([]int, n),
		height: make([]float64, n),
	}
	if n == 0 {
		return d, nil
	}

	inf := math.Inf(1)
	d.parent[0] = 0
	d.height[0] = inf

	row := make([]float64, n)
	for i := 1; i < n; i++ {
		d.parent[i] = i
		d.height[i] = inf

		for j := 0; j < i; j++ {
			dist := m.Distance(j, i)
			if math.IsNaN(dist) || dist < 0 {
				return nil, fmt.Errorf("invalid dissimilarity %g between events %d and %d", dist, j, i)
			}
			row[j] = dist
		}

		for j := 0; j < i; j++ {
			p := d.parent[j]
			if d.height[j] >= row[j] {
				row[p] = math.Min(row[p], d.height[j])
				d.height[j] = row[j]
				d.parent[j] = i
			} else {
				row[p] = math.Min(row[p], row[j])
			}
		}
		for j := 0; j < i; j++ {
			if d.height[j] >= d.height[d.parent[j]] {
				d.parent[j] = i
			}
		}
	}
	return d, nil
}

// Len returns the number of events in the dendrogram.
func (d *Dendrogram) Len() int { return len(d.parent) }

// Cut removes every merge above the threshold and labels the remaining
// connected components. Two events share a label iff they are connected by
// a chain of merges whose heights are all <= threshold. Labels are assigned
// by first appearance in event order, so the output is deterministic and
// independent of merge ordering among equal heights.
func (d *Dendrogram) Cut(threshold float64) []int {
	n := len(d.parent)
	root := make([]int, n)
	for i := range root {
		root[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if root[x] != x {
			root[x] = find(root[x])
		}
		return root[x]
	}

	for i := 0; i < n; i++ {
		if d.height[i] <= threshold {
			root[find(i)] = find(d.parent[i])
		}
	}

	labels := make([]int, n)
	next := 0
	seen := make(map[int]int, n)
	for i := 0; i < n; i++ {
		r := find(i)
		id, ok := seen[r]
		if !ok {
			id = next
			next++
			seen[r] = id
		}
		labels[i] = id
	}
	return labels
}
