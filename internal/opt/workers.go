package opt

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// resolveThreads picks the worker count: the requested value, or the number
// of CPUs when zero, never more than the units of work available.
func resolveThreads(requested, work int) int {
	n := requested
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > work {
		n = work
	}
	if n < 1 {
		n = 1
	}
	return n
}

// subRanges splits [0,n) into parts contiguous half-open ranges whose sizes
// differ by at most one.
func subRanges(n, parts int) [][2]int {
	if parts > n {
		parts = n
	}
	ranges := make([][2]int, 0, parts)
	base, extra := n/parts, n%parts
	start := 0
	for p := 0; p < parts; p++ {
		size := base
		if p < extra {
			size++
		}
		ranges = append(ranges, [2]int{start, start + size})
		start += size
	}
	return ranges
}

// roundRobin deals indexes [0,n) into parts bins
func roundRobin(n, parts int) [][]int {
	bins := make([][]int, parts)
	for i := 0; i < n; i++ {
		bins[i%parts] = append(bins[i%parts], i)
	}
	return bins
}

// forkJoin runs fn once per part concurrently and returns when all are done
func forkJoin(parts int, fn func(part int)) {
	var g errgroup.Group
	for p := 0; p < parts; p++ {
		g.Go(func() error {
			fn(p)
			return nil
		})
	}
	_ = g.Wait()
}

// parallelRanges evaluates fn over [0,n) split into contiguous ranges
func parallelRanges(n, threads int, fn func(i int)) {
	if n == 0 {
		return
	}
	ranges := subRanges(n, resolveThreads(threads, n))
	forkJoin(len(ranges), func(part int) {
		for i := ranges[part][0]; i < ranges[part][1]; i++ {
			fn(i)
		}
	})
}

// Gradient computes the central-difference gradient of eval at x. Parameter
// indexes are dealt round-robin across the workers.
func Gradient(eval Objective, x []float64, epsilon float64, threads int) []float64 {
	grad := make([]float64, len(x))
	bins := roundRobin(len(x), resolveThreads(threads, len(x)))

	forkJoin(len(bins), func(part int) {
		right := cloneVec(x)
		left := cloneVec(x)
		for _, i := range bins[part] {
			right[i] = x[i] + epsilon
			left[i] = x[i] - epsilon
			grad[i] = (eval(right) - eval(left)) / (2 * epsilon)
			right[i] = x[i]
			left[i] = x[i]
		}
	})
	return grad
}
