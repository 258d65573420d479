package device

import (
	"runtime"
	"sync"
)

// minLanesPerWorker keeps small passes (a handful of rigid bodies, a
// sparse fluid blob) from paying goroutine spin-up cost for no benefit.
const minLanesPerWorker = 256

// Parallel partitions the index range [0,n) across at most
// runtime.GOMAXPROCS(0) goroutines (and at most n/minLanesPerWorker+1;
// when that comes to one, fn runs inline on the calling goroutine) and
// calls fn once per partition with
// its [lo,hi) bounds, then blocks until every partition has returned. This
// is the CPU-emulated analogue of a single compute-kernel launch: callers
// must treat it as an implicit barrier and never assume anything about
// the order partitions run in or how many goroutines were used.
func Parallel(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n/minLanesPerWorker+1 {
		workers = n/minLanesPerWorker + 1
	}
	if workers < 1 {
		workers = 1
	}
	if workers == 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= n {
			break
		}
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

// ParallelEach is a convenience wrapper around Parallel for passes that
// are naturally expressed per-particle rather than per-range.
func ParallelEach(n int, fn func(i int)) {
	Parallel(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			fn(i)
		}
	})
}
