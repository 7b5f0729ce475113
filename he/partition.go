package he

import "github.com/Pro7ech/hyperplan/utils/concurrency"

// PartitionInfo splits a range [0,n) into a balanced set of contiguous
// intervals, one per worker, so that concurrent workers accumulate into
// disjoint ciphertexts with no cross-thread mutation (spec.md §4.7, §5).
// The same abstraction is reused by the baby/giant-step and general
// rotation loops and the block matmul's final j-axis reduction.
// ConstMultiplierCache.Upgrade dispatches its own per-entry walk instead,
// since cache entries are sparse (many nil) and gain nothing from
// contiguous partitioning.
type PartitionInfo struct {
	n, numIntervals int
}

// NewPartitionInfo builds a PartitionInfo over n items, using up to
// workers intervals (clamped to n; a non-positive or zero n yields no
// intervals).
func NewPartitionInfo(n, workers int) PartitionInfo {
	if n <= 0 {
		return PartitionInfo{n: 0, numIntervals: 0}
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	return PartitionInfo{n: n, numIntervals: workers}
}

// NumIntervals returns the number of intervals the partition was split into.
func (p PartitionInfo) NumIntervals() int { return p.numIntervals }

// Interval returns the half-open range [first,last) of the index-th interval.
// Intervals differ in length by at most one, with the larger ones first.
func (p PartitionInfo) Interval(index int) (first, last int) {
	base := p.n / p.numIntervals
	rem := p.n % p.numIntervals
	if index < rem {
		first = index * (base + 1)
		last = first + base + 1
	} else {
		first = rem*(base+1) + (index-rem)*base
		last = first + base
	}
	return
}

// Run dispatches one task per interval of the partition through pool —
// work computes and returns that interval's accumulator (and, for a
// non-native dimension, a second compensation accumulator; work's
// second return is ignored when unused) — then reduces both results,
// in ascending index order, into the first interval's pair (spec.md
// §5: "partitions accumulated in index order, then reduced index-0 +=
// index-i ascending"). Returns (nil, nil, nil) when the partition is
// empty.
func (p PartitionInfo) Run(pool *concurrency.ResourceManager[int], work func(index, first, last int) (acc, acc1 Ciphertext)) (Ciphertext, Ciphertext, error) {
	if p.numIntervals == 0 {
		return nil, nil, nil
	}
	accs := make([]Ciphertext, p.numIntervals)
	acc1s := make([]Ciphertext, p.numIntervals)
	for index := 0; index < p.numIntervals; index++ {
		index := index
		first, last := p.Interval(index)
		pool.Run(func(int) error {
			accs[index], acc1s[index] = work(index, first, last)
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, nil, err
	}
	for i := 1; i < p.numIntervals; i++ {
		accs[0].Add(accs[i])
		if acc1s[0] != nil {
			acc1s[0].Add(acc1s[i])
		}
	}
	return accs[0], acc1s[0], nil
}

// newWorkerPool builds a ResourceManager sized to workers tokens, the
// concrete instance of the "external work-stealing thread pool" a phase
// dispatches its batch through (spec.md §5).
func newWorkerPool(workers int) *concurrency.ResourceManager[int] {
	if workers < 1 {
		workers = 1
	}
	tokens := make([]int, workers)
	for i := range tokens {
		tokens[i] = i
	}
	return concurrency.NewRessourceManager(tokens)
}
