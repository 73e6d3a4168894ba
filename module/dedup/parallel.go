package dedup

import (
	"math"
	"sync"

	"go.uber.org/atomic"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// scoreParallel scores the chunk on the worker pool. Every worker writes
// only its own slot of scores and errs. lowest tracks the smallest index
// known to match; entries above it are not scored, as they can no longer
// win. Because lowest only decreases, every entry below the final match was
// scored, and the result equals that of a sequential scan.
func (d *Detector) scoreParallel(query *provenance.FeatureSet, chunk []provenance.CorpusEntry, scores []float64, errs []error) int {
	lowest := atomic.NewInt64(math.MaxInt64)

	var wg sync.WaitGroup
	wg.Add(len(chunk))
	for i := range chunk {
		i := i
		d.pool.Submit(func() {
			defer wg.Done()
			if int64(i) > lowest.Load() {
				return
			}

			scores[i], errs[i] = d.score(query, chunk[i])
			if errs[i] != nil || scores[i] < d.cfg.Threshold {
				return
			}
			for {
				current := lowest.Load()
				if int64(i) >= current || lowest.CompareAndSwap(current, int64(i)) {
					return
				}
			}
		})
	}
	wg.Wait()

	if matched := lowest.Load(); matched != math.MaxInt64 {
		return int(matched)
	}
	return -1
}
